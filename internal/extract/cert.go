package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/jobsignal/internal/dictionary"
	"github.com/JakeFAU/jobsignal/internal/scanner"
)

type certMatcher struct {
	entry dictionary.CertEntry
	re    *regexp.Regexp
}

// CertExtractor matches dictionary certifications by abbreviation, full name or alias.
type CertExtractor struct {
	matchers []certMatcher
}

// NewCertExtractor compiles one matcher per certification entry.
func NewCertExtractor(entries []dictionary.CertEntry) *CertExtractor {
	matchers := make([]certMatcher, 0, len(entries))
	for _, e := range entries {
		re := compileTerms(e.Terms())
		if re == nil {
			continue
		}
		matchers = append(matchers, certMatcher{entry: e, re: re})
	}
	return &CertExtractor{matchers: matchers}
}

// Kind implements Extractor.
func (*CertExtractor) Kind() scanner.SignalKind { return scanner.KindCertification }

// Extract emits at most one signal per certification entry.
func (e *CertExtractor) Extract(text string, job scanner.JobRef) []scanner.ExtractedSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []scanner.ExtractedSignal
	for _, m := range e.matchers {
		if !m.re.MatchString(lower) {
			continue
		}
		sig := scanner.NewSignal(m.entry.Abbr, job)
		sig.FullName = m.entry.FullName
		sig.Org = m.entry.Org
		out = append(out, sig)
	}
	return out
}
