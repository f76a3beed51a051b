package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsignal/internal/clock/system"
	"github.com/JakeFAU/jobsignal/internal/dictionary"
	"github.com/JakeFAU/jobsignal/internal/extract"
	"github.com/JakeFAU/jobsignal/internal/fetcher"
	"github.com/JakeFAU/jobsignal/internal/hash/sha256"
	publishermemory "github.com/JakeFAU/jobsignal/internal/publisher/memory"
	"github.com/JakeFAU/jobsignal/internal/query"
	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage"
	storagememory "github.com/JakeFAU/jobsignal/internal/storage/memory"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type stubProvider struct {
	mu         sync.Mutex
	configured bool
	postings   []scanner.JobPosting
	err        error
	queries    []scanner.Query
}

func (p *stubProvider) Configured() bool { return p.configured }

func (p *stubProvider) Search(_ context.Context, q scanner.Query) ([]scanner.JobPosting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	if p.err != nil {
		return nil, p.err
	}
	return append([]scanner.JobPosting(nil), p.postings...), nil
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type failingArchive struct{}

func (failingArchive) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket unavailable")
}

type harness struct {
	provider  *stubProvider
	store     *storagememory.ScanStore
	archive   *storagememory.BlobStore
	publisher *publishermemory.Publisher
	analyzer  *Analyzer
}

func newHarness(t *testing.T, postings ...scanner.JobPosting) *harness {
	t.Helper()

	dict, err := dictionary.Default()
	require.NoError(t, err)

	clock := system.NewFixed(testNow)
	h := &harness{
		provider:  &stubProvider{configured: true, postings: postings},
		store:     storagememory.NewScanStore(scanner.RetentionPolicy{}, clock),
		archive:   storagememory.NewBlobStore(),
		publisher: publishermemory.New(),
	}
	h.analyzer, err = New(Config{}, Deps{
		Fetcher:    fetcher.New(h.provider, query.NewExpander(dict.Roles), sha256.New(), nil),
		Extractors: extract.NewSet(dict),
		Store:      h.store,
		Archive:    h.archive,
		Publisher:  h.publisher,
		Clock:      clock,
		IDs:        fixedIDs{id: "run-1"},
	})
	require.NoError(t, err)
	return h
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestAnalyzeCountsDistinctPostings(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		scanner.JobPosting{
			Title:       "Widget Analyst",
			Company:     "Acme",
			URL:         "https://acme.test/jobs/1",
			Description: "<p>Security+ required. We love <b>Security+</b> holders with 3-5 years of experience.</p>",
		},
		scanner.JobPosting{
			Title:       "Widget Analyst",
			Company:     "Acme",
			URL:         "https://acme.test/jobs/2",
			Description: "Security+ or CISSP preferred. Bachelor's degree in Computer Science required.",
		},
	)

	resp, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "Widget Analyst", TimeRange: "7d", OwnedCerts: []string{"A+"}})
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, MessageCompleted, resp.Message)
	assert.Equal(t, 2, resp.JobsAnalyzed)

	report := resp.Data
	require.NotNil(t, report)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"Widget Analyst"}, report.QueriesUsed)
	assert.Equal(t, 2, report.TotalJobsFound)
	assert.Equal(t, 2, report.JobsWithDescriptions)
	assert.Equal(t, CertificationsTitle, report.Certifications.Title)
	assert.Equal(t, []string{"A+"}, report.SearchCriteria.OwnedCerts)
	assert.Equal(t, "7d", report.SearchCriteria.TimeRange)

	require.NotEmpty(t, report.Certifications.Items)
	top := report.Certifications.Items[0]
	assert.Equal(t, "Security+", top.Name)
	assert.Equal(t, 2, top.Count)
	assert.InDelta(t, 100.0, top.Percentage, 0.001)
	assert.Equal(t, "CompTIA", top.Org)
	assert.Len(t, top.Sources, 2)

	require.NotEmpty(t, report.Experience.Items)
	assert.Equal(t, "3-5 Years", report.Experience.Items[0].Name)
	assert.NotEmpty(t, report.Education.Items)

	require.Len(t, report.TitleDistribution, 1)
	assert.Equal(t, 2, report.TitleDistribution[0].Count)

	history, err := h.store.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Widget Analyst", history[0].JobTitle)
	assert.Equal(t, "7d", history[0].TimeRange)
	assert.Equal(t, report.Certifications.Items, history[0].Certs)
	assert.Equal(t, history[0].ID, report.ScanID)

	paths := h.archive.Paths()
	require.Equal(t, []string{"reports/2026/06/15/run-1.json"}, paths)
	assert.Equal(t, "memory://reports/2026/06/15/run-1.json", report.ArchiveURI)
	body, contentType, ok := h.archive.Get(paths[0])
	require.True(t, ok)
	assert.Equal(t, "application/json", contentType)
	var archived Response
	require.NoError(t, json.Unmarshal(body, &archived))
	assert.True(t, archived.Success)

	msgs := h.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventScanCompleted, msgs[0].Topic)
	event, ok := msgs[0].Payload.(CompletedEvent)
	require.True(t, ok)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "Security+", event.TopCertifications[0])
	assert.Equal(t, report.ArchiveURI, event.ArchiveURI)
}

func TestAnalyzeExpandsKnownRole(t *testing.T) {
	t.Parallel()

	h := newHarness(t, scanner.JobPosting{ID: "same", Title: "SOC Analyst", Company: "Acme", Description: "CySA+ needed"})
	resp, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "soc analyst", Location: "Remote", TimeRange: "3d"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.Len(t, resp.Data.QueriesUsed, 3)
	assert.Equal(t, 1, resp.Data.TotalJobsFound)
	require.NotEmpty(t, h.provider.queries)
	for _, q := range h.provider.queries {
		assert.Equal(t, "3days", q.DatePosted)
		assert.Equal(t, "Remote", q.Location)
	}
}

func TestAnalyzeDenominatorIgnoresMissingDescriptions(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		scanner.JobPosting{ID: "1", Title: "Analyst", Company: "A", Description: "CISSP required"},
		scanner.JobPosting{ID: "2", Title: "Analyst", Company: "B", Description: "  "},
		scanner.JobPosting{ID: "3", Title: "Analyst", Company: "C", Description: "Python and SQL"},
	)
	resp, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "1d"})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Data.TotalJobsFound)
	assert.Equal(t, 2, resp.Data.JobsWithDescriptions)
	require.NotEmpty(t, resp.Data.Certifications.Items)
	assert.InDelta(t, 50.0, resp.Data.Certifications.Items[0].Percentage, 0.001)
}

func TestAnalyzeFiltersByWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		scanner.JobPosting{ID: "recent", Title: "Analyst", Company: "A", Description: "CISSP", PostedISO: testNow.Add(-24 * time.Hour).Format(time.RFC3339)},
		scanner.JobPosting{ID: "old", Title: "Analyst", Company: "B", Description: "CISSP", PostedISO: testNow.AddDate(0, 0, -20).Format(time.RFC3339)},
	)
	resp, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "7d"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Data.TotalJobsFound)
}

func TestAnalyzeNoJobs(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	resp, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "30d"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, MessageNoJobs, resp.Message)
	assert.Nil(t, resp.Data)

	history, err := h.store.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, h.publisher.Messages())
	assert.Empty(t, h.archive.Paths())
}

func TestAnalyzeRejectsInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "empty title", req: Request{JobTitle: "  ", TimeRange: "7d"}, want: scanner.ErrEmptyTitle},
		{name: "bad range", req: Request{JobTitle: "Analyst", TimeRange: "1w"}, want: scanner.ErrInvalidTimeRange},
		{name: "missing range", req: Request{JobTitle: "Analyst"}, want: scanner.ErrInvalidTimeRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			_, err := h.analyzer.Analyze(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, h.provider.queries)
		})
	}
}

func TestAnalyzeProviderErrors(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.provider.configured = false
		_, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "7d"})
		require.ErrorIs(t, err, scanner.ErrProviderNotConfigured)
	})

	t.Run("upstream status", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.provider.err = &scanner.UpstreamStatusError{StatusCode: 503}
		_, err := h.analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "7d"})
		var statusErr *scanner.UpstreamStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 503, statusErr.StatusCode)
	})
}

func TestAnalyzeSideEffectFailuresAreLogged(t *testing.T) {
	t.Parallel()

	dict, err := dictionary.Default()
	require.NoError(t, err)
	provider := &stubProvider{configured: true, postings: []scanner.JobPosting{{ID: "1", Title: "Analyst", Company: "A", Description: "CISSP"}}}
	pub := publishermemory.New()
	pub.FailWith(errors.New("broker down"))

	analyzer, err := New(Config{}, Deps{
		Fetcher:    fetcher.New(provider, query.NewExpander(dict.Roles), sha256.New(), nil),
		Extractors: extract.NewSet(dict),
		Store:      storagememory.NewScanStore(scanner.RetentionPolicy{}, system.NewFixed(testNow)),
		Archive:    failingArchive{},
		Publisher:  pub,
		Clock:      system.NewFixed(testNow),
		IDs:        fixedIDs{id: "run-2"},
	})
	require.NoError(t, err)

	resp, err := analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "7d"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Data.ArchiveURI)
}

func TestAnalyzeStoreFailure(t *testing.T) {
	t.Parallel()

	dict, err := dictionary.Default()
	require.NoError(t, err)
	provider := &stubProvider{configured: true, postings: []scanner.JobPosting{{ID: "1", Title: "Analyst", Company: "A", Description: "CISSP"}}}
	store := &storage.MockScanStore{}
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec scanner.ScanRecord) bool {
		return rec.JobTitle == "Analyst" && rec.TotalJobs == 1 && strings.EqualFold(rec.TimeRange, "7d")
	})).Return(scanner.SaveResult{}, errors.New("database is locked"))

	analyzer, err := New(Config{}, Deps{
		Fetcher:    fetcher.New(provider, query.NewExpander(dict.Roles), sha256.New(), nil),
		Extractors: extract.NewSet(dict),
		Store:      store,
		Clock:      system.NewFixed(testNow),
		IDs:        fixedIDs{id: "run-3"},
	})
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), Request{JobTitle: "Analyst", TimeRange: "7d"})
	require.ErrorContains(t, err, "save scan")
	store.AssertExpectations(t)
}

type panickingExtractor struct{}

func (panickingExtractor) Kind() scanner.SignalKind { return scanner.KindSkill }

func (panickingExtractor) Extract(string, scanner.JobRef) []scanner.ExtractedSignal {
	panic("bad pattern")
}

func TestSafeExtractRecovers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	found := safeExtract(panickingExtractor{}, "text", scanner.JobRef{Key: "k"}, h.analyzer.logger)
	assert.Nil(t, found)
}
