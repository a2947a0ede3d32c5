package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_KnownVector(t *testing.T) {
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Digest([]byte("abc")).String())
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(nil).String())
}

func TestDigest_Stable(t *testing.T) {
	p := []byte("document body")
	assert.Equal(t, Digest(p), Digest(p))
	assert.NotEqual(t, Digest(p), Digest([]byte("document body.")))
}

func TestParseHash(t *testing.T) {
	h := Digest([]byte("A"))

	got, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = ParseHash("zz")
	assert.Error(t, err)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
}
