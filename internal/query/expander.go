// Package query expands a requested job title into the provider queries that
// should be issued for it.
package query

import (
	"strings"

	"github.com/JakeFAU/jobsignal/internal/dictionary"
)

// Expander maps canonical role titles to synonymous search titles.
type Expander struct {
	roles map[string][]string
}

// NewExpander indexes the role table by normalized title.
func NewExpander(roles []dictionary.RoleEntry) *Expander {
	idx := make(map[string][]string, len(roles))
	for _, r := range roles {
		queries := make([]string, 0, len(r.Queries))
		for _, q := range r.Queries {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
		if len(queries) == 0 {
			continue
		}
		idx[normalize(r.Title)] = queries
	}
	return &Expander{roles: idx}
}

// Expand returns the queries for title. Unknown titles expand to themselves.
func (e *Expander) Expand(title string) []string {
	title = strings.TrimSpace(title)
	if queries, ok := e.roles[normalize(title)]; ok {
		out := make([]string, len(queries))
		copy(out, queries)
		return out
	}
	return []string{title}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
