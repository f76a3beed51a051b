// Package storage holds helpers shared by the scan store implementations:
// the timestamp layout, cert_data encoding and the retention cutoff.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// TimestampLayout is fixed width so lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout and falls back to RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scan timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// EncodeCerts serializes the ranked certification list for the cert_data column.
func EncodeCerts(certs []scanner.RankedSignal) ([]byte, error) {
	if certs == nil {
		certs = []scanner.RankedSignal{}
	}
	data, err := json.Marshal(certs)
	if err != nil {
		return nil, fmt.Errorf("encode cert data: %w", err)
	}
	return data, nil
}

// DecodeCerts parses a cert_data column. Empty input yields an empty list.
func DecodeCerts(data []byte) ([]scanner.RankedSignal, error) {
	if len(data) == 0 {
		return []scanner.RankedSignal{}, nil
	}
	var certs []scanner.RankedSignal
	if err := json.Unmarshal(data, &certs); err != nil {
		return nil, fmt.Errorf("decode cert data: %w", err)
	}
	if certs == nil {
		certs = []scanner.RankedSignal{}
	}
	return certs, nil
}

// AgeCutoff returns the oldest timestamp kept by policy, and false when age
// pruning is disabled.
func AgeCutoff(policy scanner.RetentionPolicy, now time.Time) (time.Time, bool) {
	if policy.MaxAgeDays <= 0 {
		return time.Time{}, false
	}
	return now.UTC().Add(-time.Duration(policy.MaxAgeDays) * 24 * time.Hour), true
}
