package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://JSearch.p.RapidAPI.com/search", "jsearch.p.rapidapi.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "localhost:8080", "localhost"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if providerRequestsTotal == nil || scansTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	beforeTimeouts := testutil.ToFloat64(providerRequestsTotal.WithLabelValues(OutcomeTimeout))
	ObserveProviderRequest(OutcomeTimeout, 2*time.Second)
	if got := testutil.ToFloat64(providerRequestsTotal.WithLabelValues(OutcomeTimeout)); got != beforeTimeouts+1 {
		t.Errorf("expected timeout counter to increase by 1, got %f -> %f", beforeTimeouts, got)
	}

	beforeAnalyzed := testutil.ToFloat64(postingsTotal.WithLabelValues("analyzed"))
	AddPostings("analyzed", 3)
	AddPostings("analyzed", 0)
	if got := testutil.ToFloat64(postingsTotal.WithLabelValues("analyzed")); got != beforeAnalyzed+3 {
		t.Errorf("expected analyzed postings to increase by 3, got %f -> %f", beforeAnalyzed, got)
	}

	beforeAge := testutil.ToFloat64(scansPrunedTotal.WithLabelValues("age"))
	ObservePruned(2, 0)
	if got := testutil.ToFloat64(scansPrunedTotal.WithLabelValues("age")); got != beforeAge+2 {
		t.Errorf("expected pruned-by-age to increase by 2, got %f -> %f", beforeAge, got)
	}

	beforeRejections := testutil.ToFloat64(rateLimitRejectionsTotal)
	IncRateLimitRejections()
	if got := testutil.ToFloat64(rateLimitRejectionsTotal); got != beforeRejections+1 {
		t.Errorf("expected rejections to increase by 1, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://jsearch.p.rapidapi.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
