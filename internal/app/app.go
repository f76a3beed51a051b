// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/analysis"
	"github.com/JakeFAU/jobsignal/internal/api"
	"github.com/JakeFAU/jobsignal/internal/clock/system"
	"github.com/JakeFAU/jobsignal/internal/config"
	"github.com/JakeFAU/jobsignal/internal/dictionary"
	"github.com/JakeFAU/jobsignal/internal/extract"
	"github.com/JakeFAU/jobsignal/internal/fetcher"
	"github.com/JakeFAU/jobsignal/internal/hash/sha256"
	"github.com/JakeFAU/jobsignal/internal/id/uuid"
	"github.com/JakeFAU/jobsignal/internal/logging"
	"github.com/JakeFAU/jobsignal/internal/metrics"
	"github.com/JakeFAU/jobsignal/internal/policy/ratelimit"
	"github.com/JakeFAU/jobsignal/internal/provider/jsearch"
	"github.com/JakeFAU/jobsignal/internal/publisher/memory"
	"github.com/JakeFAU/jobsignal/internal/publisher/pubsub"
	"github.com/JakeFAU/jobsignal/internal/query"
	"github.com/JakeFAU/jobsignal/internal/scanner"
	"github.com/JakeFAU/jobsignal/internal/storage/gcs"
	"github.com/JakeFAU/jobsignal/internal/storage/local"
	memstore "github.com/JakeFAU/jobsignal/internal/storage/memory"
	"github.com/JakeFAU/jobsignal/internal/storage/postgres"
	"github.com/JakeFAU/jobsignal/internal/storage/sqlite"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// maxHistoryLimit caps ?limit on GET /history.
const maxHistoryLimit = 500

// App holds the shared, long-lived services for one process: the logger,
// the analyzer and its collaborators, and the HTTP handler built on top.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    scanner.ScanStore
	analyzer *analysis.Analyzer
	handler  http.Handler
	closers  []func() error
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the scan history backend.
func (a *App) Store() scanner.ScanStore { return a.store }

// Analyzer returns the scan pipeline.
func (a *App) Analyzer() *analysis.Analyzer { return a.analyzer }

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler { return a.handler }

// NewApp creates every service described by cfg. It fails fast when a
// backend cannot be reached; anything already opened is closed again.
func NewApp(ctx context.Context, cfg config.Config) (_ *App, err error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	dict, err := dictionary.Load(cfg.Dictionary.Path)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}

	clock := system.New()

	store, err := openStore(ctx, cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	archive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := archive.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	publisher, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := publisher.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	client := jsearch.New(jsearch.Config{
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		Host:      cfg.Provider.Host,
		NumPages:  cfg.Provider.NumPages,
		Timeout:   cfg.ProviderTimeout(),
		UserAgent: cfg.Provider.UserAgent,
	}, ratelimit.New(ratelimit.PerMinute(cfg.Provider.RequestsPerMinute)), logger)
	if !client.Configured() {
		logger.Warn("job search API key not configured; scans will fail until it is set")
	}

	a.analyzer, err = analysis.New(analysis.Config{
		TopN: analysis.TopN{
			Certifications: cfg.Analysis.TopCertifications,
			Skills:         cfg.Analysis.TopSkills,
			Experience:     cfg.Analysis.TopExperience,
			Education:      cfg.Analysis.TopEducation,
		},
		ArchivePrefix: cfg.Archive.Prefix,
	}, analysis.Deps{
		Fetcher:    fetcher.New(client, query.NewExpander(dict.Roles), sha256.New(), logger),
		Extractors: extract.NewSet(dict),
		Store:      store,
		Archive:    archive,
		Publisher:  publisher,
		Clock:      clock,
		IDs:        uuid.New(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init analyzer: %w", err)
	}

	opts := api.Options{
		AdminKey:           cfg.Auth.AdminKey,
		Environment:        cfg.Environment,
		Version:            Version,
		ProviderConfigured: client.Configured(),
		RequestTimeout:     cfg.RequestTimeout(),
		HistoryLimit:       cfg.Server.HistoryLimit,
		MaxHistoryLimit:    maxHistoryLimit,
		CORSOrigins:        cfg.Server.CORSOrigins,
	}
	if cfg.RateLimit.AnalyzePerMinute > 0 {
		opts.AnalyzeLimiter = ratelimit.New(ratelimit.PerMinute(cfg.RateLimit.AnalyzePerMinute))
	}
	a.handler = api.NewServer(a.analyzer, store, opts, logger).Handler()

	logger.Info("application services initialized",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("archive", cfg.Archive.Driver),
		zap.String("events", cfg.Events.Driver),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, clock scanner.Clock, logger *zap.Logger) (scanner.ScanStore, error) {
	retention := cfg.RetentionPolicy()
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		logger.Info("using sqlite scan store", zap.String("path", cfg.Storage.SQLite.Path))
		s, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Storage.SQLite.Path, Retention: retention}, clock)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		logger.Info("connecting to postgres scan store", zap.String("table", cfg.Storage.Postgres.Table))
		s, err := postgres.NewScanStore(ctx, postgres.Config{
			DSN:       cfg.Storage.Postgres.DSN,
			Table:     cfg.Storage.Postgres.Table,
			MaxConns:  cfg.Storage.Postgres.MaxConns,
			MinConns:  cfg.Storage.Postgres.MinConns,
			Retention: retention,
		}, clock)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		logger.Info("using in-memory scan store; history is lost on restart")
		return memstore.NewScanStore(retention, clock), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

func openArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (scanner.BlobStore, error) {
	switch cfg.Archive.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverMemory:
		return memstore.NewBlobStore(), nil
	case config.DriverLocal:
		logger.Info("archiving reports to local disk", zap.String("dir", cfg.Archive.BaseDir))
		s, err := local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open local archive: %w", err)
		}
		return s, nil
	case config.DriverGCS:
		logger.Info("archiving reports to GCS", zap.String("bucket", cfg.Archive.GCS.Bucket))
		s, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Archive.GCS.Bucket, Prefix: cfg.Archive.GCS.Prefix})
		if err != nil {
			return nil, fmt.Errorf("open gcs archive: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown archive driver: %s", cfg.Archive.Driver)
	}
}

func openPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (scanner.Publisher, error) {
	switch cfg.Events.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPubSub:
		logger.Info("publishing scan events to Pub/Sub", zap.String("topic", cfg.Events.PubSub.Topic))
		p, err := pubsub.Open(ctx, pubsub.Config{ProjectID: cfg.Events.PubSub.ProjectID, TopicID: cfg.Events.PubSub.Topic})
		if err != nil {
			return nil, fmt.Errorf("open pubsub publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events driver: %s", cfg.Events.Driver)
	}
}

// Close releases backends in reverse order of creation and flushes the logger.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
	}
	_ = a.logger.Sync()
}
