package fetcher

import (
	"math"
	"strings"
	"time"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Epoch values above this magnitude are milliseconds.
const millisecondThreshold = 1e11

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FilterByWindow keeps postings published at or after now minus windowDays.
// Postings without a parseable timestamp are kept. windowDays <= 0 keeps all.
func FilterByWindow(postings []scanner.JobPosting, windowDays int, now time.Time) []scanner.JobPosting {
	if windowDays <= 0 {
		return postings
	}
	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	out := make([]scanner.JobPosting, 0, len(postings))
	for _, p := range postings {
		ts, ok := PostedAt(p)
		if ok && ts.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// PostedAt resolves a posting's publication time from the numeric epoch
// first, then the ISO-8601 string.
func PostedAt(p scanner.JobPosting) (time.Time, bool) {
	if p.PostedEpoch != nil {
		v := *p.PostedEpoch
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			if math.Abs(v) > millisecondThreshold {
				v /= 1000
			}
			sec, frac := math.Modf(v)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
		}
	}
	raw := strings.TrimSpace(p.PostedISO)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
