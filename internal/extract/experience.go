package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

const maxPlausibleYears = 40

const yearsWord = `(?:years?|yrs?)`

// experienceRule pairs a pattern with a normalizer. normalize returns false
// when the match has an implausible shape; strict rules then drop the match
// instead of reporting the raw phrase.
type experienceRule struct {
	re        *regexp.Regexp
	normalize func(groups []string) (string, bool)
	strict    bool
}

// ExperienceExtractor reports experience requirements in canonical form.
type ExperienceExtractor struct {
	rules    []experienceRule
	mentions *regexp.Regexp
}

// NewExperienceExtractor compiles the ordered rule list. Earlier rules win
// where matches overlap.
func NewExperienceExtractor() *ExperienceExtractor {
	return &ExperienceExtractor{
		rules: []experienceRule{
			{
				re:        regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:-|–|—|to)\s*(\d{1,2})\+?\s*` + yearsWord + `\b`),
				normalize: normalizeRange,
			},
			{
				re:        regexp.MustCompile(`(?i)\b(?:minimum|min\.?|at\s+least)\s+(?:of\s+)?(\d{1,2})\+?\s*` + yearsWord + `\b`),
				normalize: normalizeMinimum,
			},
			{
				re:        regexp.MustCompile(`(?i)\b(\d{1,2})\s*\+\s*` + yearsWord + `\b`),
				normalize: normalizeMinimum,
			},
			{
				re: regexp.MustCompile(`(?i)\b(\d{1,2})\s*` + yearsWord + `(?:'|’)?\s+(?:of\s+)?` +
					`(?:[a-z-]+\s+){0,2}?(?:experience|exp\b)`),
				normalize: normalizeYears,
			},
			{
				re:        regexp.MustCompile(`(?i)\b(\d{1,2})\s*` + yearsWord + `\b`),
				normalize: normalizeYears,
				strict:    true,
			},
			{
				re:        regexp.MustCompile(`(?i)\bentry[\s-]+level\b`),
				normalize: constant("Entry Level"),
			},
			{
				re:        regexp.MustCompile(`(?i)\bjunior[\s-]+level\b`),
				normalize: constant("Junior Level"),
			},
		},
		mentions: regexp.MustCompile(`(?i)year|yr|experience`),
	}
}

// Kind implements Extractor.
func (*ExperienceExtractor) Kind() scanner.SignalKind { return scanner.KindExperience }

// Extract scans rules in order, skipping matches that overlap an accepted span
// or repeat a raw phrase already seen.
func (e *ExperienceExtractor) Extract(text string, job scanner.JobRef) []scanner.ExtractedSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		accepted []span
		out      []scanner.ExtractedSignal
	)
	rawSeen := make(map[string]struct{})
	nameSeen := make(map[string]struct{})
	for _, rule := range e.rules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			s := span{start: idx[0], end: idx[1]}
			if overlapsAny(s, accepted) {
				continue
			}
			raw := text[s.start:s.end]
			rawKey := strings.ToLower(strings.Join(strings.Fields(raw), " "))
			if _, dup := rawSeen[rawKey]; dup {
				accepted = append(accepted, s)
				continue
			}
			name, ok := rule.normalize(submatches(text, idx))
			if !ok {
				if rule.strict || !e.mentions.MatchString(raw) {
					continue
				}
				name = sentenceCase(raw)
			}
			accepted = append(accepted, s)
			rawSeen[rawKey] = struct{}{}
			if _, dup := nameSeen[name]; dup {
				continue
			}
			nameSeen[name] = struct{}{}
			out = append(out, scanner.NewSignal(name, job))
		}
	}
	return out
}

func submatches(text string, idx []int) []string {
	groups := make([]string, 0, len(idx)/2)
	for i := 2; i+1 < len(idx); i += 2 {
		if idx[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, text[idx[i]:idx[i+1]])
	}
	return groups
}

func parseYears(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxPlausibleYears {
		return 0, false
	}
	return n, true
}

func normalizeRange(groups []string) (string, bool) {
	if len(groups) < 2 {
		return "", false
	}
	lo, okLo := parseYears(groups[0])
	hi, okHi := parseYears(groups[1])
	if !okLo || !okHi || lo >= hi {
		return "", false
	}
	return fmt.Sprintf("%d-%d Years", lo, hi), true
}

func normalizeMinimum(groups []string) (string, bool) {
	if len(groups) < 1 {
		return "", false
	}
	n, ok := parseYears(groups[0])
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d+ Years", n), true
}

func normalizeYears(groups []string) (string, bool) {
	if len(groups) < 1 {
		return "", false
	}
	n, ok := parseYears(groups[0])
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d Years", n), true
}

func constant(name string) func([]string) (string, bool) {
	return func([]string) (string, bool) { return name, true }
}
