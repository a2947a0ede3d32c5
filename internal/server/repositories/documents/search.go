package documents

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// searchQuery renders the search statement. placeholder returns the bind
// marker for the n-th argument (1-based) and like is the matching operator.
func searchQuery(f models.SearchFilter, like string, placeholder func(n int) string) (string, []any) {
	f = f.Normalize()

	var (
		where = []string{"NOT is_deleted"}
		args  []any
	)
	if f.TitleContains != "" {
		args = append(args, likePattern(f.TitleContains))
		where = append(where, fmt.Sprintf(`title %s %s ESCAPE '\'`, like, placeholder(len(args))))
	}
	if f.CreatorID != "" {
		args = append(args, f.CreatorID)
		where = append(where, "creator_id = "+placeholder(len(args)))
	}

	// SortBy and SortOrder are whitelisted by Normalize.
	order := fmt.Sprintf("%s %s, id %s", f.SortBy, strings.ToUpper(f.SortOrder), strings.ToUpper(f.SortOrder))

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY %s LIMIT %s OFFSET %s`,
		columns, strings.Join(where, " AND "), order, placeholder(len(args)-1), placeholder(len(args)))

	return query, args
}

const columns = `id, title, description, filename, media_type, current_version_id, creator_id, created_at, updated_at, is_deleted`
