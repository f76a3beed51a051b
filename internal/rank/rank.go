// Package rank aggregates extracted signals into ranked, percentage-weighted
// lists and derives the title and certification co-occurrence insights.
package rank

import (
	"math"
	"sort"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// MaxSources caps the postings cited per ranked signal.
const MaxSources = 5

type group struct {
	name     string
	fullName string
	org      string
	jobs     map[string]struct{}
	sources  []scanner.Source
	seenSrc  map[string]struct{}
}

// Rank groups signals by canonical name, counts distinct postings per name and
// returns the topN names by count. Ties keep first-seen order. topN <= 0
// disables truncation.
func Rank(signals []scanner.ExtractedSignal, total int, topN int) []scanner.RankedSignal {
	var order []*group
	byName := make(map[string]*group)
	for _, sig := range signals {
		g, ok := byName[sig.Name]
		if !ok {
			g = &group{
				name:    sig.Name,
				jobs:    make(map[string]struct{}),
				seenSrc: make(map[string]struct{}),
			}
			byName[sig.Name] = g
			order = append(order, g)
		}
		if g.fullName == "" {
			g.fullName = sig.FullName
		}
		if g.org == "" {
			g.org = sig.Org
		}
		g.jobs[sig.JobKey] = struct{}{}
		g.addSource(sig)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return len(order[i].jobs) > len(order[j].jobs)
	})
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}

	out := make([]scanner.RankedSignal, 0, len(order))
	for _, g := range order {
		count := len(g.jobs)
		out = append(out, scanner.RankedSignal{
			Name:       g.name,
			FullName:   g.fullName,
			Org:        g.org,
			Count:      count,
			Percentage: Percentage(count, total),
			Sources:    g.sources,
		})
	}
	return out
}

func (g *group) addSource(sig scanner.ExtractedSignal) {
	if len(g.sources) >= MaxSources {
		return
	}
	key := "url:" + sig.JobURL
	if sig.JobURL == "" {
		key = "label:" + sig.JobLabel + "|" + sig.Company
	}
	if _, dup := g.seenSrc[key]; dup {
		return
	}
	g.seenSrc[key] = struct{}{}
	g.sources = append(g.sources, scanner.Source{
		Title:   sig.JobLabel,
		Company: sig.Company,
		URL:     sig.JobURL,
	})
}

// Percentage returns count/total*100 rounded to one decimal, or 0 when total is 0.
func Percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
