// Package fetcher fans a role's expanded queries out to the job-search
// provider, merges the results in query order and removes duplicate postings.
package fetcher

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobsignal/internal/metrics"
	"github.com/JakeFAU/jobsignal/internal/scanner"
)

// Expander turns a title into provider queries.
type Expander interface {
	Expand(title string) []string
}

// Request describes one acquisition.
type Request struct {
	Title      string
	Location   string
	DatePosted string
}

// Result is the merged, deduplicated output of one acquisition.
type Result struct {
	Postings      []scanner.JobPosting
	Queries       []string
	FetchedTotal  int
	FailedQueries int
}

// Fetcher runs provider queries concurrently.
type Fetcher struct {
	provider scanner.Provider
	expander Expander
	hasher   scanner.Hasher
	logger   *zap.Logger
}

// New wires a Fetcher.
func New(provider scanner.Provider, expander Expander, hasher scanner.Hasher, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		provider: provider,
		expander: expander,
		hasher:   hasher,
		logger:   logger,
	}
}

type queryResult struct {
	postings []scanner.JobPosting
	err      error
}

// Fetch issues one provider call per expanded query. A failing query is
// logged and contributes nothing; the first failure is returned only when no
// posting survives the merge.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if !f.provider.Configured() {
		return Result{}, scanner.ErrProviderNotConfigured
	}
	queries := f.expander.Expand(req.Title)
	results := make([]queryResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, text := range queries {
		g.Go(func() error {
			q := scanner.Query{Text: text, Location: req.Location, DatePosted: req.DatePosted}
			start := time.Now()
			postings, err := f.provider.Search(gctx, q)
			metrics.ObserveProviderRequest(outcome(err), time.Since(start))
			if err != nil {
				results[i] = queryResult{err: &scanner.ProviderQueryError{Query: q.SearchText(), Err: err}}
				return nil
			}
			results[i] = queryResult{postings: postings}
			return nil
		})
	}
	_ = g.Wait()

	out := Result{Queries: queries}
	seen := make(map[string]struct{})
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			out.FailedQueries++
			if firstErr == nil {
				firstErr = r.err
			}
			f.logger.Warn("provider query failed", zap.Error(r.err))
			continue
		}
		out.FetchedTotal += len(r.postings)
		for _, p := range r.postings {
			p.Key = f.identity(p)
			if _, dup := seen[p.Key]; dup {
				continue
			}
			seen[p.Key] = struct{}{}
			out.Postings = append(out.Postings, p)
		}
	}
	metrics.AddPostings("fetched", out.FetchedTotal)
	metrics.AddPostings("unique", len(out.Postings))

	f.logger.Info("postings fetched",
		zap.Strings("queries", queries),
		zap.Int("fetched", out.FetchedTotal),
		zap.Int("unique", len(out.Postings)),
		zap.Int("failed_queries", out.FailedQueries),
	)
	if len(out.Postings) == 0 && firstErr != nil {
		return out, firstErr
	}
	return out, nil
}

// identity keys a posting by provider ID, then listing URL, then a hash of
// employer, title, location and posting time. Composite fields must match
// exactly, case included.
func (f *Fetcher) identity(p scanner.JobPosting) string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return "id:" + id
	}
	if u := strings.TrimSpace(p.URL); u != "" {
		return "url:" + u
	}
	posted := p.PostedISO
	if posted == "" && p.PostedEpoch != nil {
		posted = strconv.FormatFloat(*p.PostedEpoch, 'f', -1, 64)
	}
	composite := strings.Join([]string{
		strings.TrimSpace(p.Company),
		strings.TrimSpace(p.Title),
		strings.TrimSpace(p.City),
		strings.TrimSpace(p.State),
		posted,
	}, "|")
	if f.hasher == nil {
		return "composite:" + composite
	}
	sum, err := f.hasher.Hash([]byte(composite))
	if err != nil {
		return "composite:" + composite
	}
	return "composite:" + sum
}

func outcome(err error) string {
	var status *scanner.UpstreamStatusError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &status):
		return metrics.OutcomeStatus
	case errors.Is(err, scanner.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
