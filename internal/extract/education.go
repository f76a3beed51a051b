package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// educationRule matches the head of a degree phrase. When requireField is set
// the head alone is too ambiguous and only counts with a field of study.
type educationRule struct {
	head         *regexp.Regexp
	requireField bool
}

// EducationExtractor reports degree requirements as sentence-cased phrases.
type EducationExtractor struct {
	rules      []educationRule
	fieldIntro *regexp.Regexp
	fieldWord  *regexp.Regexp
	related    *regexp.Regexp
	qualifier  *regexp.Regexp
}

const maxFieldWords = 4

var fieldStopWords = map[string]struct{}{
	"and": {}, "or": {}, "with": {}, "plus": {}, "required": {}, "preferred": {},
	"is": {}, "are": {}, "from": {}, "to": {}, "a": {}, "an": {}, "the": {},
	"experience": {}, "years": {}, "year": {}, "degree": {}, "strongly": {},
}

// NewEducationExtractor compiles the ordered degree rules.
func NewEducationExtractor() *EducationExtractor {
	return &EducationExtractor{
		rules: []educationRule{
			{head: regexp.MustCompile(`(?i)\bbachelor(?:'s|’s|s)?(?:\s+(?:degree|of\s+science|of\s+arts))?\b`)},
			{head: regexp.MustCompile(`(?i)\bmaster(?:(?:'s|’s)(?:\s+degree)?|s?\s+degree)\b`)},
			{head: regexp.MustCompile(`(?i)\b(?:ph\.?\s?d\b\.?|doctorate|doctoral\s+degree)`)},
			{head: regexp.MustCompile(`(?i)\bassociate(?:(?:'s|’s)(?:\s+degree)?|s?\s+degree)\b`)},
			{head: regexp.MustCompile(`(?i)\b(?:college|university|undergraduate|graduate|advanced|technical|four[\s-]year|4[\s-]year)\s+degree\b`)},
			{head: regexp.MustCompile(`(?i)\bdegree\b`), requireField: true},
			{head: regexp.MustCompile(`(?i)\bhigh\s+school\s+diploma(?:\s+or\s+(?:equivalent|ged))?|\bged\b`)},
			{head: regexp.MustCompile(`(?i)\bdiploma\b`), requireField: true},
			{head: regexp.MustCompile(`(?i)\b(?:technical|vocational|graduate|post-?secondary)\s+certificate\b`)},
			{head: regexp.MustCompile(`(?i)\bcertificate\b`), requireField: true},
		},
		fieldIntro: regexp.MustCompile(`(?i)^(?:\s+degree)?\s+(?:in|of)\s+`),
		fieldWord:  regexp.MustCompile(`^[A-Za-z][A-Za-z&/+\-]*`),
		related:    regexp.MustCompile(`(?i)^,?\s+or\s+(?:a\s+|an\s+)?(?:related|equivalent|similar)(?:\s+(?:technical\s+)?(?:field|discipline|area|experience))?\b`),
		qualifier:  regexp.MustCompile(`(?i)^,?\s+(?:is\s+|are\s+)?(?:strongly\s+)?(?:required|preferred)\b`),
	}
}

// Kind implements Extractor.
func (*EducationExtractor) Kind() scanner.SignalKind { return scanner.KindEducation }

// Extract returns one signal per distinct degree phrase.
func (e *EducationExtractor) Extract(text string, job scanner.JobRef) []scanner.ExtractedSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var (
		accepted []span
		out      []scanner.ExtractedSignal
	)
	seen := make(map[string]struct{})
	for _, rule := range e.rules {
		for _, idx := range rule.head.FindAllStringIndex(text, -1) {
			head := span{start: idx[0], end: idx[1]}
			if overlapsAny(head, accepted) {
				continue
			}
			end, hasField := e.extend(text, head.end)
			if rule.requireField && !hasField {
				continue
			}
			full := span{start: head.start, end: end}
			if overlapsAny(full, accepted) {
				full.end = head.end
			}
			accepted = append(accepted, full)
			name := sentenceCase(text[full.start:full.end])
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, scanner.NewSignal(name, job))
		}
	}
	return out
}

// extend grows a degree phrase over an optional field of study, an
// "or related field" clause and a required/preferred qualifier.
func (e *EducationExtractor) extend(text string, pos int) (int, bool) {
	hasField := false
	if loc := e.fieldIntro.FindStringIndex(text[pos:]); loc != nil {
		cursor := pos + loc[1]
		words := 0
		fieldEnd := pos
		for words < maxFieldWords {
			w := e.fieldWord.FindString(text[cursor:])
			if w == "" {
				break
			}
			if _, stop := fieldStopWords[strings.ToLower(w)]; stop {
				break
			}
			words++
			fieldEnd = cursor + len(w)
			next := fieldEnd
			for next < len(text) && text[next] == ' ' {
				next++
			}
			if next == fieldEnd {
				break
			}
			cursor = next
		}
		if words > 0 {
			pos = fieldEnd
			hasField = true
		}
	}
	if loc := e.related.FindStringIndex(text[pos:]); loc != nil {
		pos += loc[1]
	}
	if loc := e.qualifier.FindStringIndex(text[pos:]); loc != nil {
		pos += loc[1]
	}
	return pos, hasField
}
