package extract

import (
	"regexp"
	"strings"
)

const (
	boundaryBefore = `(?:^|[^a-z0-9])`
	boundaryAfter  = `(?:[^a-z0-9]|$)`
)

// compileTerms builds one matcher for a set of lowercased phrases. A phrase
// matches only when it is not glued to other letters or digits, and internal
// spaces match any whitespace run.
func compileTerms(terms []string) *regexp.Regexp {
	alts := make([]string, 0, len(terms))
	for _, t := range terms {
		words := strings.Fields(t)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		if len(words) > 0 {
			alts = append(alts, strings.Join(words, `\s+`))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(boundaryBefore + `(?:` + strings.Join(alts, "|") + `)` + boundaryAfter)
}
