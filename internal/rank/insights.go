package rank

import (
	"sort"
	"strings"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Insight limits.
const (
	TopTitles       = 8
	TopCertPairs    = 5
	MinPairPostings = 2
)

// TitleShare is one entry of the title distribution.
type TitleShare struct {
	Title      string  `json:"title"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CertPair counts postings that require both certifications.
type CertPair struct {
	Certs      [2]string `json:"certs"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"`
}

// TitleDistribution counts postings per normalized title (case and whitespace
// folded) and returns the top eight. The displayed title is the first spelling seen.
func TitleDistribution(postings []scanner.JobPosting) []TitleShare {
	type bucket struct {
		display string
		count   int
	}
	var order []*bucket
	byKey := make(map[string]*bucket)
	for _, p := range postings {
		collapsed := strings.Join(strings.Fields(p.Title), " ")
		if collapsed == "" {
			continue
		}
		key := strings.ToLower(collapsed)
		b, ok := byKey[key]
		if !ok {
			b = &bucket{display: collapsed}
			byKey[key] = b
			order = append(order, b)
		}
		b.count++
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].count > order[j].count })
	if len(order) > TopTitles {
		order = order[:TopTitles]
	}
	out := make([]TitleShare, 0, len(order))
	for _, b := range order {
		out = append(out, TitleShare{
			Title:      b.display,
			Count:      b.count,
			Percentage: Percentage(b.count, len(postings)),
		})
	}
	return out
}

// CertPairs counts, per unordered certification pair, the postings that
// mention both. Pairs seen in fewer than two postings are dropped; the top
// five are returned with percentages over total.
func CertPairs(signals []scanner.ExtractedSignal, total int) []CertPair {
	perJob := make(map[string]map[string]struct{})
	var jobOrder []string
	for _, sig := range signals {
		certs, ok := perJob[sig.JobKey]
		if !ok {
			certs = make(map[string]struct{})
			perJob[sig.JobKey] = certs
			jobOrder = append(jobOrder, sig.JobKey)
		}
		certs[sig.Name] = struct{}{}
	}

	counts := make(map[[2]string]int)
	var pairOrder [][2]string
	for _, key := range jobOrder {
		names := make([]string, 0, len(perJob[key]))
		for n := range perJob[key] {
			names = append(names, n)
		}
		sort.Strings(names)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				pair := [2]string{names[i], names[j]}
				if _, ok := counts[pair]; !ok {
					pairOrder = append(pairOrder, pair)
				}
				counts[pair]++
			}
		}
	}

	out := make([]CertPair, 0, len(pairOrder))
	for _, pair := range pairOrder {
		if counts[pair] < MinPairPostings {
			continue
		}
		out = append(out, CertPair{Certs: pair, Count: counts[pair], Percentage: Percentage(counts[pair], total)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Certs[0] != out[j].Certs[0] {
			return out[i].Certs[0] < out[j].Certs[0]
		}
		return out[i].Certs[1] < out[j].Certs[1]
	})
	if len(out) > TopCertPairs {
		out = out[:TopCertPairs]
	}
	return out
}
