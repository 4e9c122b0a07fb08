// Package query filters cached records for the read API.
package query

import (
	"strings"

	"github.com/samber/lo"

	"github.com/DeafMist/fire-radar/internal/models"
)

// Params narrow the cached set. Zero values mean "no filter". Search is matched as given,
// surrounding whitespace included.
type Params struct {
	Search   string
	Category string
}

// Filter applies the search term and category to records, keeping their order. It never
// returns nil.
func Filter(records []models.NewsRecord, p Params) []models.NewsRecord {
	out := records

	if term := strings.ToLower(p.Search); term != "" {
		out = lo.Filter(out, func(r models.NewsRecord, _ int) bool {
			return strings.Contains(strings.ToLower(r.Title), term) ||
				strings.Contains(strings.ToLower(r.Content), term) ||
				strings.Contains(strings.ToLower(r.Location), term)
		})
	}

	if cat := strings.TrimSpace(p.Category); cat != "" && cat != models.CategoryAll {
		out = lo.Filter(out, func(r models.NewsRecord, _ int) bool {
			return string(r.Category) == cat
		})
	}

	if out == nil {
		return []models.NewsRecord{}
	}
	return out
}

// Source is anything that can hand out the current cached records.
type Source interface {
	Records() []models.NewsRecord
}

// News reads the current cache contents and filters them.
func News(src Source, p Params) []models.NewsRecord {
	return Filter(src.Records(), p)
}
