package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/analysis"
	"github.com/JakeFAU/jobsignal/internal/clock/system"
	"github.com/JakeFAU/jobsignal/internal/policy/ratelimit"
	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage"
	"github.com/JakeFAU/jobsignal/internal/storage/memory"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	resp  analysis.Response
	err   error
	calls []analysis.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (analysis.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

func newTestServer(t *testing.T, analyzer Analyzer, opts Options) (*Server, *memory.ScanStore) {
	t.Helper()
	store := memory.NewScanStore(scanner.RetentionPolicy{}, system.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}
	return NewServer(analyzer, store, opts, nil), store
}

func do(t *testing.T, s *Server, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthzReportsProvider(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, Options{Environment: "test", ProviderConfigured: true, Version: "1.2.3"})
	rec := do(t, s, http.MethodGet, "/healthz", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","environment":"test","provider_configured":true,"data_source":"live_api","version":"1.2.3"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, Options{})
	rec := do(t, s, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	store := &storage.MockScanStore{}
	store.On("Ping", mock.Anything).Return(errors.New("database is locked"))
	down := NewServer(&fakeAnalyzer{}, store, Options{}, nil)
	rec = do(t, down, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	store.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, Options{})
	_ = do(t, s, http.MethodGet, "/healthz", nil, nil)
	rec := do(t, s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAnalyzeJobsSuccess(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{resp: analysis.Response{
		Success:      true,
		Message:      analysis.MessageCompleted,
		JobsAnalyzed: 2,
		Data: &analysis.Report{
			Certifications: analysis.Section{Title: analysis.CertificationsTitle, Items: []scanner.RankedSignal{{Name: "Security+", Count: 2, Percentage: 100}}},
			RunID:          "run-1",
		},
	}}
	s, _ := newTestServer(t, analyzer, Options{})
	body := []byte(`{"job_title":"SOC Analyst","location":"Remote","time_range":"7d","target_path":"blue team","owned_certs":["A+"]}`)
	rec := do(t, s, http.MethodPost, "/analyze-jobs", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp analysis.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Security+", resp.Data.Certifications.Items[0].Name)

	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, analysis.Request{
		JobTitle:   "SOC Analyst",
		Location:   "Remote",
		TimeRange:  "7d",
		TargetPath: "blue team",
		OwnedCerts: []string{"A+"},
	}, analyzer.calls[0])
}

func TestAnalyzeJobsNoResultsIsOK(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{resp: analysis.Response{Success: false, Message: analysis.MessageNoJobs}}
	s, _ := newTestServer(t, analyzer, Options{})
	rec := do(t, s, http.MethodPost, "/analyze-jobs", []byte(`{"job_title":"x","time_range":"1d"}`), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"No jobs found for the given criteria","jobs_analyzed":0}`, rec.Body.String())
}

func TestAnalyzeJobsErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "invalid range", err: fmt.Errorf("%w: %q", scanner.ErrInvalidTimeRange, "1w"), wantStatus: http.StatusUnprocessableEntity},
		{name: "empty title", err: scanner.ErrEmptyTitle, wantStatus: http.StatusUnprocessableEntity},
		{name: "not configured", err: scanner.ErrProviderNotConfigured, wantStatus: http.StatusServiceUnavailable},
		{name: "timeout", err: &scanner.ProviderQueryError{Query: "q", Err: scanner.ErrUpstreamTimeout}, wantStatus: http.StatusGatewayTimeout},
		{name: "status", err: &scanner.ProviderQueryError{Query: "q", Err: &scanner.UpstreamStatusError{StatusCode: 429}}, wantStatus: http.StatusBadGateway},
		{name: "internal", err: errors.New("save scan: disk I/O error at /var/lib/db"), wantStatus: http.StatusInternalServerError, wantBody: `{"error":"analysis failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestServer(t, &fakeAnalyzer{err: tt.err}, Options{})
			rec := do(t, s, http.MethodPost, "/analyze-jobs", []byte(`{"job_title":"x","time_range":"7d"}`), nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAnalyzeJobsInvalidJSON(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{}
	s, _ := newTestServer(t, analyzer, Options{})
	rec := do(t, s, http.MethodPost, "/analyze-jobs", []byte("{invalid"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, analyzer.calls)
}

func TestAnalyzeJobsRateLimited(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: 0.001, DefaultBurst: 2})
	analyzer := &fakeAnalyzer{resp: analysis.Response{Success: false, Message: analysis.MessageNoJobs}}
	s, _ := newTestServer(t, analyzer, Options{AnalyzeLimiter: limiter})

	body := []byte(`{"job_title":"x","time_range":"7d"}`)
	for range 2 {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/analyze-jobs", body, nil).Code)
	}
	rec := do(t, s, http.MethodPost, "/analyze-jobs", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Len(t, analyzer.calls, 2)

	// Other routes are not limited.
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil, nil).Code)
}

func TestAdminKeyProtectsHistoryAndStats(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, Options{AdminKey: "secret"})
	for _, path := range []string{"/history", "/stats"} {
		rec := do(t, s, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = do(t, s, http.MethodGet, path, nil, map[string]string{"X-Admin-Key": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = do(t, s, http.MethodGet, path, nil, map[string]string{"X-Admin-Key": "secret"})
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestHistoryAndStatsOpenWithoutAdminKey(t *testing.T) {
	t.Parallel()

	s, store := newTestServer(t, nil, Options{})
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"SOC Analyst", "Cloud Engineer", "SOC Analyst"} {
		_, err := store.Save(ctx, scanner.ScanRecord{
			Timestamp:            base.Add(time.Duration(i) * time.Hour),
			JobTitle:             title,
			TimeRange:            "7d",
			TotalJobs:            10,
			JobsWithDescriptions: 10,
			Certs:                []scanner.RankedSignal{{Name: "Security+", Count: 5, Percentage: float64(40 + 10*i)}},
		})
		require.NoError(t, err)
	}

	rec := do(t, s, http.MethodGet, "/history?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Scans []scanner.ScanRecord `json:"scans"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, 2, hist.Count)
	assert.Equal(t, "SOC Analyst", hist.Scans[0].JobTitle)
	assert.Equal(t, "Cloud Engineer", hist.Scans[1].JobTitle)

	rec = do(t, s, http.MethodGet, "/history?limit=0", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalScans    int `json:"total_scans"`
		DistinctRoles int `json:"distinct_roles"`
		AllTimeCerts  []struct {
			Name          string  `json:"name"`
			AvgPercentage float64 `json:"avg_percentage"`
			TotalMentions int     `json:"total_mentions"`
		} `json:"all_time_certs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalScans)
	assert.Equal(t, 2, stats.DistinctRoles)
	require.Len(t, stats.AllTimeCerts, 1)
	assert.InDelta(t, 50.0, stats.AllTimeCerts[0].AvgPercentage, 0.001)
	assert.Equal(t, 15, stats.AllTimeCerts[0].TotalMentions)
}

func TestHistoryStoreFailure(t *testing.T) {
	t.Parallel()

	store := &storage.MockScanStore{}
	store.On("History", mock.Anything, 20).Return(nil, errors.New("boom"))
	s := NewServer(&fakeAnalyzer{}, store, Options{}, nil)

	rec := do(t, s, http.MethodGet, "/history", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
	store.AssertExpectations(t)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, Options{})
	rec := do(t, s, http.MethodGet, "/healthz", nil, map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeAnalyzer{}, Options{CORSOrigins: []string{"http://localhost:5173"}})

	preflight := do(t, s, http.MethodOptions, "/analyze-jobs", nil, map[string]string{
		"Origin":                         "http://localhost:5173",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "content-type",
	})
	assert.Equal(t, "http://localhost:5173", preflight.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", preflight.Header().Get("Access-Control-Allow-Credentials"))

	rec := do(t, s, http.MethodGet, "/healthz", nil, map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	other := do(t, s, http.MethodGet, "/healthz", nil, map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, other.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil, Options{})
	rec := do(t, s, http.MethodGet, "/healthz", nil, map[string]string{"Origin": "http://localhost:5173"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
