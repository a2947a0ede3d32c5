package services

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// versionCache is an LRU of version rows keyed by version id. Rows are
// immutable, so entries never need invalidation. A nil *versionCache is a
// valid, always-missing cache.
type versionCache struct {
	lru *lru.Cache[string, *models.DocumentVersion]
}

// newVersionCache returns nil, a disabled cache, when size is not positive.
func newVersionCache(size int) *versionCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, *models.DocumentVersion](size)
	if err != nil {
		return nil
	}
	return &versionCache{lru: c}
}

// Get returns a private copy of the cached row.
func (c *versionCache) Get(id string) (*models.DocumentVersion, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(id)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return v.Clone(), true
}

func (c *versionCache) Add(v *models.DocumentVersion) {
	if c == nil {
		return
	}
	c.lru.Add(v.ID, v.Clone())
}

func (c *versionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
