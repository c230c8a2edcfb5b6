package app

import (
	"context"
	"fmt"

	"press_archive/internal/config"
	"press_archive/internal/dataset"
	"press_archive/internal/db"
	"press_archive/internal/extract"
	"press_archive/internal/fetch"
	"press_archive/internal/logger"
	"press_archive/internal/models"
)

// Mirror receives a copy of each stage's rows after its dataset is written.
type Mirror interface {
	SaveArchiveRows(ctx context.Context, rows []models.ArchiveRow) (int64, error)
	SaveValidationRows(ctx context.Context, rows []models.ValidationRow) (int64, error)
	TickerCounts(ctx context.Context) (map[string]int, error)
	Close() error
}

// App wires configuration, fetching, extraction and output for both stages.
type App struct {
	cfg     *config.Config
	log     logger.Logger
	fetcher Fetcher
	sleep   Sleeper
	mirror  Mirror
}

type Option func(*App)

func WithFetcher(f Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

func WithSleep(s Sleeper) Option {
	return func(a *App) { a.sleep = s }
}

func WithMirror(m Mirror) Option {
	return func(a *App) { a.mirror = m }
}

func New(cfg *config.Config, log logger.Logger, opts ...Option) *App {
	if log == nil {
		log = logger.NewNop()
	}

	a := &App{cfg: cfg, log: log, sleep: sleepCtx}
	for _, opt := range opts {
		opt(a)
	}

	if a.fetcher == nil {
		a.fetcher = fetch.NewClient(fetch.Options{
			UserAgent:     cfg.Fetch.UserAgent,
			Timeout:       cfg.Timeout(),
			RespectRobots: cfg.Fetch.RespectRobots,
			MaxBodyBytes:  cfg.Fetch.MaxBodyKB * 1024,
		})
	}

	return a
}

// ConnectMirror opens the MongoDB mirror when it is enabled. A mirror that
// cannot be reached is logged and left out; the CSV output does not depend on it.
func ConnectMirror(ctx context.Context, cfg config.DBConfig, log logger.Logger) Mirror {
	if !cfg.Enabled {
		return nil
	}

	m, err := db.NewMongoDB(ctx, cfg)
	if err != nil {
		log.Warn("MongoDB mirror unavailable", logger.Error(err))
		return nil
	}

	log.Info("MongoDB mirror connected", logger.String("database", cfg.Database))
	return m
}

// Archive runs the archiver over the configured tickers and writes its
// dataset once, even when no rows were produced or the run was interrupted.
func (a *App) Archive(ctx context.Context) (*models.ArchiveResult, error) {
	a.log.Info("Starting archiver",
		logger.Int("tickers", len(a.cfg.Tickers)),
		logger.String("base_dir", a.cfg.Archive.BaseDir),
		logger.Duration("delay", a.cfg.Delay()),
	)

	archiver := NewArchiver(ArchiverConfig{
		BaseDir:     a.cfg.Archive.BaseDir,
		Ext:         a.cfg.Archive.Ext,
		Delay:       a.cfg.Delay(),
		ListingPath: a.cfg.ListingPath,
		Listing:     extract.NewListing(a.cfg.Listing.Selectors, a.cfg.Listing.Origin),
	}, a.fetcher, a.log, WithSleeper(a.sleep))

	res, runErr := archiver.Run(ctx, a.cfg.Tickers)
	if runErr != nil {
		a.log.Warn("Archiver interrupted", logger.Error(runErr))
	}

	if err := dataset.Write(a.cfg.Archive.Output, models.ArchiveHeader, res.Records()); err != nil {
		return res, fmt.Errorf("%w: %v", models.ErrWriteFailed, err)
	}

	a.log.Info("Archive dataset written",
		logger.String("path", a.cfg.Archive.Output),
		logger.Int("rows", len(res.Rows)),
		logger.Int("skipped", len(res.Skips)),
	)

	if a.mirror != nil && runErr == nil {
		n, err := a.mirror.SaveArchiveRows(ctx, res.Rows)
		a.logMirror("articles", n, err)
		if err == nil {
			a.logMirrorTotals(ctx)
		}
	}

	return res, runErr
}

// Validate runs the validator over the file list at listPath. An unreadable
// list is the one failure that stops the stage before it starts.
func (a *App) Validate(ctx context.Context, listPath string) (*models.ValidationResult, error) {
	paths, err := ReadList(listPath)
	if err != nil {
		return nil, err
	}

	a.log.Info("Starting validator",
		logger.String("list", listPath),
		logger.Int("files", len(paths)),
	)

	validator := NewValidator(a.cfg.Validation.Selectors, a.cfg.Archive.Ext, a.log)

	res, runErr := validator.Run(ctx, paths)
	if runErr != nil {
		a.log.Warn("Validator interrupted", logger.Error(runErr))
	}

	if err := dataset.Write(a.cfg.Validation.Output, models.ValidationHeader, res.Records()); err != nil {
		return res, fmt.Errorf("%w: %v", models.ErrWriteFailed, err)
	}

	a.log.Info("Validation dataset written",
		logger.String("path", a.cfg.Validation.Output),
		logger.Int("rows", len(res.Rows)),
		logger.Int("skipped", len(res.Skips)),
	)

	if a.mirror != nil && runErr == nil {
		n, err := a.mirror.SaveValidationRows(ctx, res.Rows)
		a.logMirror("validations", n, err)
	}

	return res, runErr
}

func (a *App) logMirror(collection string, n int64, err error) {
	if err != nil {
		a.log.Warn("Mirror write failed", logger.String("collection", collection), logger.Error(err))
		return
	}
	a.log.Info("Mirror updated", logger.String("collection", collection), logger.Int("documents", int(n)))
}

func (a *App) logMirrorTotals(ctx context.Context) {
	counts, err := a.mirror.TickerCounts(ctx)
	if err != nil {
		a.log.Warn("Mirror totals unavailable", logger.Error(err))
		return
	}
	for _, ticker := range a.cfg.Tickers {
		a.log.Info("Mirror total", logger.String("ticker", ticker), logger.Int("articles", counts[ticker]))
	}
}

func (a *App) Close() error {
	if a.mirror == nil {
		return nil
	}
	return a.mirror.Close()
}
