// Package analysis runs one scan end to end: fetch postings for a role,
// filter them to the requested window, extract signals, rank them, persist
// the summary and announce the result.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/extract"
	"github.com/JakeFAU/jobsignal/internal/fetcher"
	"github.com/JakeFAU/jobsignal/internal/metrics"
	"github.com/JakeFAU/jobsignal/internal/rank"
	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/textnorm"
)

// EventScanCompleted is the event type published after a scan is saved.
const EventScanCompleted = "scan.completed"

// TopN bounds each ranked list. Zero disables truncation.
type TopN struct {
	Certifications int
	Skills         int
	Experience     int
	Education      int
}

// DefaultTopN is used when Config.TopN is left zero.
var DefaultTopN = TopN{Certifications: 15, Skills: 15, Experience: 8, Education: 8}

// Config tunes the analyzer.
type Config struct {
	TopN          TopN
	ArchivePrefix string
}

// Fetcher acquires merged postings for a role.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (fetcher.Result, error)
}

// Analyzer coordinates the scan pipeline. Archive and Publisher are optional.
type Analyzer struct {
	cfg        Config
	fetcher    Fetcher
	extractors *extract.Set
	store      scanner.ScanStore
	archive    scanner.BlobStore
	publisher  scanner.Publisher
	clock      scanner.Clock
	ids        scanner.IDGenerator
	logger     *zap.Logger
}

// Deps groups the analyzer collaborators.
type Deps struct {
	Fetcher    Fetcher
	Extractors *extract.Set
	Store      scanner.ScanStore
	Archive    scanner.BlobStore
	Publisher  scanner.Publisher
	Clock      scanner.Clock
	IDs        scanner.IDGenerator
	Logger     *zap.Logger
}

// New validates deps and returns an Analyzer.
func New(cfg Config, deps Deps) (*Analyzer, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("analysis: fetcher is required")
	case deps.Extractors == nil:
		return nil, errors.New("analysis: extractors are required")
	case deps.Store == nil:
		return nil, errors.New("analysis: scan store is required")
	case deps.Clock == nil:
		return nil, errors.New("analysis: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("analysis: id generator is required")
	}
	if cfg.TopN == (TopN{}) {
		cfg.TopN = DefaultTopN
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "reports"
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		cfg:        cfg,
		fetcher:    deps.Fetcher,
		extractors: deps.Extractors,
		store:      deps.Store,
		archive:    deps.Archive,
		publisher:  deps.Publisher,
		clock:      deps.Clock,
		ids:        deps.IDs,
		logger:     logger.Named("analysis"),
	}, nil
}

type signals struct {
	certs      []scanner.ExtractedSignal
	skills     []scanner.ExtractedSignal
	experience []scanner.ExtractedSignal
	education  []scanner.ExtractedSignal
}

// Analyze runs one scan. An empty result is a successful Response with
// Success=false; errors are reserved for invalid input, provider failures
// and persistence failures.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := a.analyze(ctx, req)
	switch {
	case err != nil:
		metrics.ObserveScan(metrics.OutcomeError, time.Since(start))
	case !resp.Success:
		metrics.ObserveScan(metrics.OutcomeEmpty, time.Since(start))
	default:
		metrics.ObserveScan(metrics.OutcomeOK, time.Since(start))
	}
	return resp, err
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (Response, error) {
	title := strings.TrimSpace(req.JobTitle)
	if title == "" {
		return Response{}, scanner.ErrEmptyTitle
	}
	location := strings.TrimSpace(req.Location)
	tr, err := scanner.ParseTimeRange(req.TimeRange)
	if err != nil {
		return Response{}, err
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return Response{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID), zap.String("job_title", title))

	fetched, err := a.fetcher.Fetch(ctx, fetcher.Request{
		Title:      title,
		Location:   location,
		DatePosted: tr.ProviderBucket(),
	})
	if err != nil {
		return Response{}, err
	}
	now := a.clock.Now()
	postings := fetcher.FilterByWindow(fetched.Postings, tr.Days(), now)
	metrics.AddPostings("windowed", len(postings))
	logger.Info("postings acquired",
		zap.Int("fetched", fetched.FetchedTotal),
		zap.Int("unique", len(fetched.Postings)),
		zap.Int("in_window", len(postings)),
		zap.Int("failed_queries", fetched.FailedQueries),
	)
	if len(postings) == 0 {
		return Response{Success: false, Message: MessageNoJobs}, nil
	}

	found, analyzed := a.extractAll(postings, logger)
	metrics.AddPostings("analyzed", analyzed)

	certs := rank.Rank(found.certs, analyzed, a.cfg.TopN.Certifications)
	report := &Report{
		Certifications:       Section{Title: CertificationsTitle, Items: certs},
		Skills:               Section{Title: SkillsTitle, Items: rank.Rank(found.skills, analyzed, a.cfg.TopN.Skills)},
		Experience:           Section{Title: ExperienceTitle, Items: rank.Rank(found.experience, analyzed, a.cfg.TopN.Experience)},
		Education:            Section{Title: EducationTitle, Items: rank.Rank(found.education, analyzed, a.cfg.TopN.Education)},
		TotalJobsFound:       len(postings),
		JobsWithDescriptions: analyzed,
		QueriesUsed:          fetched.Queries,
		TitleDistribution:    rank.TitleDistribution(postings),
		CertPairs:            rank.CertPairs(found.certs, analyzed),
		SearchCriteria: SearchCriteria{
			JobTitle:   title,
			Location:   location,
			TimeRange:  string(tr),
			TargetPath: strings.TrimSpace(req.TargetPath),
			OwnedCerts: req.OwnedCerts,
		},
		RunID: runID,
	}

	saved, err := a.store.Save(ctx, scanner.ScanRecord{
		Timestamp:            now,
		JobTitle:             title,
		Location:             location,
		TimeRange:            string(tr),
		TotalJobs:            len(postings),
		JobsWithDescriptions: analyzed,
		Certs:                certs,
	})
	if err != nil {
		return Response{}, fmt.Errorf("save scan: %w", err)
	}
	metrics.ObservePruned(saved.PrunedByAge, saved.PrunedByCount)
	report.ScanID = saved.ID
	if saved.PrunedByAge > 0 || saved.PrunedByCount > 0 {
		logger.Info("scan history pruned",
			zap.Int64("by_age", saved.PrunedByAge),
			zap.Int64("by_count", saved.PrunedByCount),
		)
	}

	resp := Response{
		Success:      true,
		Message:      MessageCompleted,
		JobsAnalyzed: len(postings),
		Data:         report,
	}
	report.ArchiveURI = a.archiveReport(ctx, resp, now, logger)
	a.publishCompleted(ctx, report, now, logger)

	logger.Info("scan completed",
		zap.Int64("scan_id", saved.ID),
		zap.Int("postings", len(postings)),
		zap.Int("analyzed", analyzed),
		zap.Int("certifications", len(certs)),
	)
	return resp, nil
}

// extractAll runs every extractor over each posting with a usable
// description and returns the collected signals and the analyzed count.
func (a *Analyzer) extractAll(postings []scanner.JobPosting, logger *zap.Logger) (signals, int) {
	var (
		out      signals
		analyzed int
	)
	for _, p := range postings {
		if strings.TrimSpace(p.Description) == "" {
			continue
		}
		text := textnorm.Normalize(p.Description)
		if text == "" {
			continue
		}
		analyzed++
		ref := p.Ref()
		for _, ex := range a.extractors.All() {
			found := safeExtract(ex, text, ref, logger)
			switch ex.Kind() {
			case scanner.KindCertification:
				out.certs = append(out.certs, found...)
			case scanner.KindSkill:
				out.skills = append(out.skills, found...)
			case scanner.KindExperience:
				out.experience = append(out.experience, found...)
			case scanner.KindEducation:
				out.education = append(out.education, found...)
			}
		}
	}
	return out, analyzed
}

// safeExtract contains a misbehaving extractor to the posting it failed on.
func safeExtract(ex extract.Extractor, text string, ref scanner.JobRef, logger *zap.Logger) (found []scanner.ExtractedSignal) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extractor panicked",
				zap.String("kind", string(ex.Kind())),
				zap.String("job_key", ref.Key),
				zap.Any("panic", r),
			)
			found = nil
		}
	}()
	return ex.Extract(text, ref)
}

func (a *Analyzer) archiveReport(ctx context.Context, resp Response, now time.Time, logger *zap.Logger) string {
	if a.archive == nil {
		return ""
	}
	body, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("encode report for archive", zap.Error(err))
		return ""
	}
	path := fmt.Sprintf("%s/%s/%s.json", a.cfg.ArchivePrefix, now.UTC().Format("2006/01/02"), resp.Data.RunID)
	uri, err := a.archive.PutObject(ctx, path, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("archive report", zap.String("path", path), zap.Error(err))
		return ""
	}
	return uri
}

func (a *Analyzer) publishCompleted(ctx context.Context, report *Report, now time.Time, logger *zap.Logger) {
	if a.publisher == nil {
		return
	}
	top := make([]string, 0, 5)
	for i, c := range report.Certifications.Items {
		if i == 5 {
			break
		}
		top = append(top, c.Name)
	}
	event := CompletedEvent{
		RunID:                report.RunID,
		ScanID:               report.ScanID,
		JobTitle:             report.SearchCriteria.JobTitle,
		Location:             report.SearchCriteria.Location,
		TimeRange:            report.SearchCriteria.TimeRange,
		TotalJobs:            report.TotalJobsFound,
		JobsWithDescriptions: report.JobsWithDescriptions,
		TopCertifications:    top,
		ArchiveURI:           report.ArchiveURI,
		CompletedAt:          now.UTC().Format(time.RFC3339),
	}
	if _, err := a.publisher.Publish(ctx, EventScanCompleted, event); err != nil {
		logger.Warn("publish scan event", zap.Error(err))
	}
}
