// Package extract finds certification, skill, experience and education signals
// in normalized posting text. Every extractor is pure and safe for concurrent
// use; patterns are compiled once at construction.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JakeFAU/jobsignal/internal/dictionary"
	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Extractor finds one family of signals in a posting's text.
type Extractor interface {
	Kind() scanner.SignalKind
	Extract(text string, job scanner.JobRef) []scanner.ExtractedSignal
}

// Set bundles the four extractors built from one dictionary.
type Set struct {
	Certs      *CertExtractor
	Skills     *SkillExtractor
	Experience *ExperienceExtractor
	Education  *EducationExtractor
}

// NewSet compiles all extractors from d.
func NewSet(d *dictionary.Dictionary) *Set {
	return &Set{
		Certs:      NewCertExtractor(d.Certifications),
		Skills:     NewSkillExtractor(d.Skills),
		Experience: NewExperienceExtractor(),
		Education:  NewEducationExtractor(),
	}
}

// All returns the extractors in report order.
func (s *Set) All() []Extractor {
	return []Extractor{s.Certs, s.Skills, s.Experience, s.Education}
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

func overlapsAny(s span, accepted []span) bool {
	for _, a := range accepted {
		if s.overlaps(a) {
			return true
		}
	}
	return false
}

// sentenceCase collapses whitespace, lowercases and upper-cases the first rune.
func sentenceCase(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
