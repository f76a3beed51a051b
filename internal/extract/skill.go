package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/jobsignal/internal/dictionary"
	"github.com/JakeFAU/jobsignal/internal/scanner"
)

type skillMatcher struct {
	display string
	re      *regexp.Regexp
}

// SkillExtractor matches whole-word technical keywords.
type SkillExtractor struct {
	matchers []skillMatcher
}

// NewSkillExtractor compiles the keyword list. Entries without an explicit
// display name are title-cased.
func NewSkillExtractor(entries []dictionary.SkillEntry) *SkillExtractor {
	title := cases.Title(language.English)
	matchers := make([]skillMatcher, 0, len(entries))
	for _, e := range entries {
		re := compileTerms(e.Terms())
		if re == nil {
			continue
		}
		display := strings.TrimSpace(e.Display)
		if display == "" {
			display = title.String(strings.ToLower(strings.TrimSpace(e.Name)))
		}
		matchers = append(matchers, skillMatcher{display: display, re: re})
	}
	return &SkillExtractor{matchers: matchers}
}

// Kind implements Extractor.
func (*SkillExtractor) Kind() scanner.SignalKind { return scanner.KindSkill }

// Extract emits one signal per matched keyword.
func (e *SkillExtractor) Extract(text string, job scanner.JobRef) []scanner.ExtractedSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []scanner.ExtractedSignal
	seen := make(map[string]struct{})
	for _, m := range e.matchers {
		if _, dup := seen[m.display]; dup {
			continue
		}
		if m.re.MatchString(lower) {
			seen[m.display] = struct{}{}
			out = append(out, scanner.NewSignal(m.display, job))
		}
	}
	return out
}
