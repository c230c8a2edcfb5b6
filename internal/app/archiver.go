package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"press_archive/internal/dataset"
	"press_archive/internal/extract"
	"press_archive/internal/logger"
	"press_archive/internal/models"
	"press_archive/internal/naming"
)

// Fetcher returns the body of url. fetch.Client is the production one.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ArchiverConfig struct {
	BaseDir     string
	Ext         string
	Delay       time.Duration
	ListingPath func(ticker string) string
	Listing     *extract.Listing
}

// Archiver walks each ticker's saved listing, fetches every linked article
// once and stores it under BaseDir.
type Archiver struct {
	cfg     ArchiverConfig
	fetcher Fetcher
	sleep   Sleeper
	log     logger.Logger
}

type ArchiverOption func(*Archiver)

func WithSleeper(s Sleeper) ArchiverOption {
	return func(a *Archiver) { a.sleep = s }
}

func NewArchiver(cfg ArchiverConfig, fetcher Fetcher, log logger.Logger, opts ...ArchiverOption) *Archiver {
	if log == nil {
		log = logger.NewNop()
	}

	a := &Archiver{
		cfg:     cfg,
		fetcher: fetcher,
		sleep:   sleepCtx,
		log:     log,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run processes tickers in order. Per-ticker and per-entry failures end up in
// the result's Skips; the only error returned is cancellation, together with
// the rows gathered before it.
func (a *Archiver) Run(ctx context.Context, tickers []string) (*models.ArchiveResult, error) {
	res := &models.ArchiveResult{}

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := len(res.Rows)
		skipped := len(res.Skips)

		if err := a.archiveTicker(ctx, ticker, res); err != nil {
			return res, err
		}

		a.log.Info("Ticker archived",
			logger.String("ticker", ticker),
			logger.Int("rows", len(res.Rows)-start),
			logger.Int("skipped", len(res.Skips)-skipped),
		)
	}

	return res, nil
}

func (a *Archiver) archiveTicker(ctx context.Context, ticker string, res *models.ArchiveResult) error {
	log := a.log.With(logger.String("ticker", ticker))

	dir := naming.TickerDir(a.cfg.BaseDir, ticker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.skip(log, res, "Skipped ticker", models.Skip{Ticker: ticker, Item: dir, Err: fmt.Errorf("%w: %v", models.ErrWriteFailed, err)})
		return nil
	}

	listingPath := a.cfg.ListingPath(ticker)
	doc, err := extract.Open(listingPath)
	if err != nil {
		a.skip(log, res, "Skipped ticker", models.Skip{Ticker: ticker, Item: listingPath, Err: err})
		return nil
	}

	candidates, err := a.cfg.Listing.Entries(doc)
	if err != nil {
		a.skip(log, res, "Skipped ticker", models.Skip{Ticker: ticker, Item: listingPath, Err: err})
		return nil
	}

	seq := naming.NewSequence(ticker)
	for _, c := range candidates {
		item := fmt.Sprintf("entry %d", c.Index)
		if c.Err != nil {
			a.skip(log, res, "Skipped entry", models.Skip{Ticker: ticker, Item: item, Err: c.Err})
			continue
		}

		row, err := a.archiveEntry(ctx, seq, c.Entry)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			a.skip(log, res, "Skipped entry", models.Skip{Ticker: ticker, Item: item + " " + c.Entry.Link, Err: err})
			continue
		}

		res.Rows = append(res.Rows, row)
		log.Debug("Article archived",
			logger.String("id", row.ID),
			logger.String("path", row.FilePath),
		)
	}

	return nil
}

// archiveEntry takes a fully extracted entry through delay, fetch and write.
// The sequence number is committed only once the file is on disk.
func (a *Archiver) archiveEntry(ctx context.Context, seq *naming.Sequence, entry models.ArticleEntry) (models.ArchiveRow, error) {
	n := seq.Next()
	id, path := naming.Assign(a.cfg.BaseDir, seq.Ticker(), n, a.cfg.Ext)

	if err := a.sleep(ctx, a.cfg.Delay); err != nil {
		return models.ArchiveRow{}, err
	}

	body, err := a.fetcher.Fetch(ctx, entry.Link)
	if err != nil {
		return models.ArchiveRow{}, err
	}

	if err := dataset.WriteFile(path, body); err != nil {
		return models.ArchiveRow{}, fmt.Errorf("%w: %v", models.ErrWriteFailed, err)
	}

	if err := seq.Commit(n); err != nil {
		return models.ArchiveRow{}, err
	}

	return models.ArchiveRow{
		ID:       id,
		Ticker:   seq.Ticker(),
		Title:    entry.Title,
		Site:     entry.Link,
		Source:   entry.Source,
		Date:     entry.Date,
		FilePath: path,
	}, nil
}

func (a *Archiver) skip(log logger.Logger, res *models.ArchiveResult, msg string, s models.Skip) {
	res.Skips = append(res.Skips, s)
	log.Warn(msg, logger.String("item", s.Item), logger.Error(s.Err))
}
