package cmd

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/billing-inquiry/internal/config"
	"github.com/ginjaninja78/billing-inquiry/internal/csvparser"
	"github.com/ginjaninja78/billing-inquiry/internal/ingest"
	"github.com/ginjaninja78/billing-inquiry/internal/logger"
	"github.com/ginjaninja78/billing-inquiry/internal/service"
	"github.com/ginjaninja78/billing-inquiry/internal/store"
	"github.com/ginjaninja78/billing-inquiry/internal/store/mongo"
	"github.com/ginjaninja78/billing-inquiry/internal/store/sqlite"
	"github.com/ginjaninja78/billing-inquiry/internal/validation"
)

// app bundles what every command needs.
type app struct {
	cfg     *config.MainConfig
	log     *logger.ZapLogger
	repo    store.Repository
	billing *service.Billing

	closeRepo func(context.Context) error
}

// loadConfig reads the configuration and builds the logger.
func loadConfig() (*config.MainConfig, *logger.ZapLogger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

// newApp loads the configuration, opens the configured store and builds the
// billing service. The caller must call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, closeRepo: func(context.Context) error { return nil }}
	if err := a.openRepository(ctx); err != nil {
		log.Sync()
		return nil, err
	}

	a.billing = service.New(a.repo, service.Options{
		StoreName:       cfg.Storage.Driver,
		LoadTimeout:     cfg.Storage.LoadTimeout,
		DemoFallback:    cfg.App.UseDemoFallback(),
		SuggestLimit:    cfg.Search.SuggestLimit,
		SuggestMinChars: cfg.Search.SuggestMinChars,
		Validation: validation.Options{
			AllowedExtensions:     cfg.Ingestion.AllowedExtensions,
			MaxUploadBytes:        cfg.Server.MaxUploadBytes(),
			TreatWarningsAsErrors: cfg.Ingestion.StrictValidation,
		},
		Ingestion: ingest.Options{
			CurrencySymbols:     cfg.Ingestion.CurrencySymbols,
			ThousandsSeparators: cfg.Ingestion.ThousandsSeparators,
			CSV:                 csvparser.Settings{Delimiter: cfg.Ingestion.CSVDelimiter},
		},
		Logger: log,
	})
	return a, nil
}

// openRepository connects the configured store. An unreachable MongoDB is
// tolerated when demo fallback is enabled: reads fall back to demo records
// and uploads fail until the process is restarted.
func (a *app) openRepository(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		a.repo = store.NewMemoryRepository()

	case config.DriverMongo:
		repo, err := mongo.Connect(ctx, mongo.Config{
			URI:        a.cfg.Storage.Mongo.URI,
			Database:   a.cfg.Storage.Mongo.Database,
			Collection: a.cfg.Storage.Mongo.Collection,
			Timeout:    a.cfg.Storage.Mongo.Timeout,
			BatchSize:  a.cfg.Storage.BatchSize,
		})
		if err != nil {
			if !a.cfg.App.UseDemoFallback() {
				return err
			}
			a.log.Warn("MongoDB unavailable: %v", err)
			a.repo = store.UnavailableRepository{Err: err}
			return nil
		}
		a.repo = repo
		a.closeRepo = repo.Close

	default:
		repo, err := sqlite.Open(a.cfg.Storage.SQLite.Path, a.cfg.Storage.BatchSize)
		if err != nil {
			return err
		}
		a.repo = repo
		a.closeRepo = repo.Close
	}

	a.log.Debug("Using %s store", a.cfg.Storage.Driver)
	return nil
}

// close releases the store and flushes the logger.
func (a *app) close(ctx context.Context) {
	if err := a.closeRepo(ctx); err != nil {
		a.log.Warn("Closing %s store: %v", a.cfg.Storage.Driver, err)
	}
	a.log.Sync()
}
