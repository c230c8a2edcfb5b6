package app_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"press_archive/internal/app"
	"press_archive/internal/config"
	"press_archive/internal/dataset"
	"press_archive/internal/models"
)

const origin = "https://finance.yahoo.com"

type listingEntry struct {
	title, href, source, date string
}

func listingHTML(entries ...listingEntry) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="summaryPressStream-0-Stream"><ul>`)
	for _, e := range entries {
		b.WriteString(`<li class="js-stream-content Pos(r)"><div>`)
		fmt.Fprintf(&b, `<h3 class="Mb(5px)"><a href="%s">%s</a></h3>`, e.href, e.title)
		b.WriteString(`<div class="C(#959595) Fz(11px) D(ib) Mb(6px)">`)
		if e.source != "" {
			fmt.Fprintf(&b, `<span>%s</span>`, e.source)
		}
		if e.date != "" {
			fmt.Fprintf(&b, `<span>%s</span>`, e.date)
		}
		b.WriteString(`</div></div></li>`)
	}
	b.WriteString(`</ul></div></body></html>`)
	return b.String()
}

func articleHTML(headline, datetime string) string {
	t := ""
	if datetime != "" {
		t = fmt.Sprintf(`<time datetime="%s">April 30, 2020</time>`, datetime)
	}
	return fmt.Sprintf(`<html><body><h1 data-test-locator="headline">%s</h1>%s<p>Body.</p></body></html>`, headline, t)
}

type fakeFetcher struct {
	pages   map[string]string
	calls   []string
	onFetch func(n int)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if f.onFetch != nil {
		f.onFetch(len(f.calls))
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: HTTP 404", models.ErrFetchFailed, url)
	}
	return []byte(body), nil
}

type fakeMirror struct {
	articles    []models.ArchiveRow
	validations []models.ValidationRow
	totals      int
	closed      bool
}

func (m *fakeMirror) SaveArchiveRows(_ context.Context, rows []models.ArchiveRow) (int64, error) {
	m.articles = append(m.articles, rows...)
	return int64(len(rows)), nil
}

func (m *fakeMirror) SaveValidationRows(_ context.Context, rows []models.ValidationRow) (int64, error) {
	m.validations = append(m.validations, rows...)
	return int64(len(rows)), nil
}

func (m *fakeMirror) TickerCounts(context.Context) (map[string]int, error) {
	m.totals++
	counts := map[string]int{}
	for _, r := range m.articles {
		counts[r.Ticker]++
	}
	return counts, nil
}

func (m *fakeMirror) Close() error {
	m.closed = true
	return nil
}

type harness struct {
	dir     string
	cfg     *config.Config
	fetcher *fakeFetcher
	sleeps  []time.Duration
}

func newHarness(t *testing.T, tickers ...string) *harness {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Tickers = tickers
	cfg.Listing.Dir = filepath.Join(dir, "listings")
	cfg.Archive.BaseDir = filepath.Join(dir, "yahoo_scrape")
	cfg.Archive.Output = filepath.Join(dir, "yahoo_main.csv")
	cfg.Validation.Output = filepath.Join(dir, "yahoo_dates.csv")
	require.NoError(t, os.MkdirAll(cfg.Listing.Dir, 0o755))

	return &harness{
		dir:     dir,
		cfg:     cfg,
		fetcher: &fakeFetcher{pages: map[string]string{}},
	}
}

func (h *harness) writeListing(t *testing.T, ticker string, entries ...listingEntry) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.cfg.ListingPath(ticker), []byte(listingHTML(entries...)), 0o644))
}

func (h *harness) app(opts ...app.Option) *app.App {
	opts = append([]app.Option{
		app.WithFetcher(h.fetcher),
		app.WithSleep(func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		}),
	}, opts...)
	return app.New(h.cfg, nil, opts...)
}

func (h *harness) article(ticker string, seq int) string {
	return filepath.Join(h.cfg.Archive.BaseDir, ticker, fmt.Sprintf("%s%d.html", ticker, seq))
}

func ids(rows []models.ArchiveRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestArchiveTwoEntries(t *testing.T) {
	h := newHarness(t, "AAPL")
	h.writeListing(t, "AAPL",
		listingEntry{"Apple reports results", "/news/results.html", "Business Wire", "April 30, 2020"},
		listingEntry{"Apple declares dividend", "/news/dividend.html", "Business Wire", "April 30, 2020"},
	)
	h.fetcher.pages[origin+"/news/results.html"] = "<html>results</html>"
	h.fetcher.pages[origin+"/news/dividend.html"] = "<html>dividend</html>"

	res, err := h.app().Archive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL1", "AAPL2"}, ids(res.Rows))
	assert.Empty(t, res.Skips)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, h.sleeps)

	body, err := os.ReadFile(h.article("AAPL", 1))
	require.NoError(t, err)
	assert.Equal(t, "<html>results</html>", string(body))
	body, err = os.ReadFile(h.article("AAPL", 2))
	require.NoError(t, err)
	assert.Equal(t, "<html>dividend</html>", string(body))

	records, err := dataset.Read(h.cfg.Archive.Output)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		models.ArchiveHeader,
		{"AAPL1", "AAPL", "Apple reports results", origin + "/news/results.html", "Business Wire", "April 30, 2020", h.article("AAPL", 1)},
		{"AAPL2", "AAPL", "Apple declares dividend", origin + "/news/dividend.html", "Business Wire", "April 30, 2020", h.article("AAPL", 2)},
	}, records)
}

func TestArchiveUnopenableTickerIsSkipped(t *testing.T) {
	h := newHarness(t, "AAPL", "MSFT")
	h.writeListing(t, "MSFT",
		listingEntry{"Microsoft earnings", "/news/msft.html", "PR Newswire", "April 29, 2020"},
	)
	h.fetcher.pages[origin+"/news/msft.html"] = "msft"

	res, err := h.app().Archive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT1"}, ids(res.Rows))
	require.Len(t, res.Skips, 1)
	assert.Equal(t, "AAPL", res.Skips[0].Ticker)
	assert.True(t, errors.Is(res.Skips[0], models.ErrInputUnreadable))
	assert.FileExists(t, h.article("MSFT", 1))

	records, err := dataset.Read(h.cfg.Archive.Output)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "MSFT1", records[1][0])
}

func TestArchiveSequenceStaysDenseOnFetchFailure(t *testing.T) {
	h := newHarness(t, "AAPL")
	h.writeListing(t, "AAPL",
		listingEntry{"First", "/news/1.html", "Business Wire", "April 1, 2020"},
		listingEntry{"Gone", "/news/gone.html", "Business Wire", "April 2, 2020"},
		listingEntry{"Third", "/news/3.html", "Business Wire", "April 3, 2020"},
	)
	h.fetcher.pages[origin+"/news/1.html"] = "one"
	h.fetcher.pages[origin+"/news/3.html"] = "three"

	res, err := h.app().Archive(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"AAPL1", "AAPL2"}, ids(res.Rows))
	assert.Equal(t, "Third", res.Rows[1].Title)
	assert.Equal(t, h.article("AAPL", 2), res.Rows[1].FilePath)

	require.Len(t, res.Skips, 1)
	assert.True(t, errors.Is(res.Skips[0], models.ErrFetchFailed))

	body, err := os.ReadFile(h.article("AAPL", 2))
	require.NoError(t, err)
	assert.Equal(t, "three", string(body))
	assert.NoFileExists(t, h.article("AAPL", 3))
}

func TestArchiveDropsEntryMissingDate(t *testing.T) {
	h := newHarness(t, "AAPL")
	h.writeListing(t, "AAPL",
		listingEntry{"No date", "/news/nodate.html", "Business Wire", ""},
		listingEntry{"Complete", "/news/ok.html", "Business Wire", "May 1, 2020"},
	)
	h.fetcher.pages[origin+"/news/nodate.html"] = "never fetched"
	h.fetcher.pages[origin+"/news/ok.html"] = "ok"

	res, err := h.app().Archive(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "AAPL1", res.Rows[0].ID)
	assert.Equal(t, "Complete", res.Rows[0].Title)
	assert.Equal(t, []string{origin + "/news/ok.html"}, h.fetcher.calls)

	require.Len(t, res.Skips, 1)
	assert.True(t, errors.Is(res.Skips[0], models.ErrShapeMismatch))
}

func TestArchiveWritesHeaderOnlyDataset(t *testing.T) {
	h := newHarness(t, "AAPL")
	require.NoError(t, os.WriteFile(h.cfg.ListingPath("AAPL"), []byte("<html><body>moved</body></html>"), 0o644))

	res, err := h.app().Archive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.Skips, 1)
	assert.True(t, errors.Is(res.Skips[0], models.ErrShapeMismatch))

	raw, err := os.ReadFile(h.cfg.Archive.Output)
	require.NoError(t, err)
	assert.Equal(t, "ID,Ticker,Title,Site,Source,Date,File Path\n", string(raw))
	assert.DirExists(t, filepath.Join(h.cfg.Archive.BaseDir, "AAPL"))
}

func TestArchiveCanceledKeepsGatheredRows(t *testing.T) {
	h := newHarness(t, "AAPL", "MSFT")
	h.writeListing(t, "AAPL",
		listingEntry{"First", "/news/1.html", "Business Wire", "April 1, 2020"},
		listingEntry{"Second", "/news/2.html", "Business Wire", "April 2, 2020"},
	)
	h.writeListing(t, "MSFT",
		listingEntry{"Other", "/news/m.html", "Business Wire", "April 3, 2020"},
	)
	h.fetcher.pages[origin+"/news/1.html"] = "one"
	h.fetcher.pages[origin+"/news/2.html"] = "two"
	h.fetcher.pages[origin+"/news/m.html"] = "m"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.fetcher.onFetch = func(int) { cancel() }

	mirror := &fakeMirror{}
	res, err := h.app(app.WithMirror(mirror)).Archive(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"AAPL1"}, ids(res.Rows))
	assert.Empty(t, res.Skips)
	assert.Len(t, h.fetcher.calls, 1)
	assert.Empty(t, mirror.articles)

	records, err := dataset.Read(h.cfg.Archive.Output)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestArchiveMirrorsRows(t *testing.T) {
	h := newHarness(t, "AAPL")
	h.writeListing(t, "AAPL",
		listingEntry{"First", "/news/1.html", "Business Wire", "April 1, 2020"},
	)
	h.fetcher.pages[origin+"/news/1.html"] = "one"

	mirror := &fakeMirror{}
	a := h.app(app.WithMirror(mirror))

	res, err := a.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Rows, mirror.articles)
	assert.Equal(t, 1, mirror.totals)

	require.NoError(t, a.Close())
	assert.True(t, mirror.closed)
}

func (h *harness) writeArticle(t *testing.T, ticker string, seq int, body string) string {
	t.Helper()
	p := h.article(ticker, seq)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestValidateSkipsFileWithoutTime(t *testing.T) {
	h := newHarness(t, "AAPL")
	first := h.writeArticle(t, "AAPL", 1, articleHTML(" Apple reports results ", "2020-04-30T20:30:00.000Z"))
	noTime := h.writeArticle(t, "AAPL", 2, articleHTML("Undated", ""))
	third := h.writeArticle(t, "FB", 7, articleHTML("Facebook Q1", "2020-04-29T20:05:00.000Z"))

	list := filepath.Join(h.dir, "article_list.txt")
	require.NoError(t, os.WriteFile(list, []byte(first+"\n"+noTime+"\n\n"+third+"\n"), 0o644))

	mirror := &fakeMirror{}
	res, err := h.app(app.WithMirror(mirror)).Validate(context.Background(), list)
	require.NoError(t, err)

	assert.Equal(t, []models.ValidationRow{
		{ID: "AAPL1", Title: "Apple reports results", Date: "2020-04-30T20:30:00.000Z"},
		{ID: "FB7", Title: "Facebook Q1", Date: "2020-04-29T20:05:00.000Z"},
	}, res.Rows)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, noTime, res.Skips[0].Item)
	assert.True(t, errors.Is(res.Skips[0], models.ErrShapeMismatch))
	assert.Equal(t, res.Rows, mirror.validations)

	raw, err := os.ReadFile(h.cfg.Validation.Output)
	require.NoError(t, err)
	assert.Equal(t,
		"ID,Title,Date\n"+
			"AAPL1,Apple reports results,2020-04-30T20:30:00.000Z\n"+
			"FB7,Facebook Q1,2020-04-29T20:05:00.000Z\n",
		string(raw))
}

func TestValidateIsIdempotent(t *testing.T) {
	h := newHarness(t, "AAPL")
	p := h.writeArticle(t, "AAPL", 1, articleHTML(`Apple, "Inc."`, "2020-04-30T20:30:00.000Z"))
	missing := filepath.Join(h.cfg.Archive.BaseDir, "AAPL", "AAPL9.html")

	list := filepath.Join(h.dir, "article_list.txt")
	require.NoError(t, os.WriteFile(list, []byte(p+"\n"+missing+"\n"), 0o644))

	a := h.app()
	_, err := a.Validate(context.Background(), list)
	require.NoError(t, err)
	first, err := os.ReadFile(h.cfg.Validation.Output)
	require.NoError(t, err)

	res, err := a.Validate(context.Background(), list)
	require.NoError(t, err)
	second, err := os.ReadFile(h.cfg.Validation.Output)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, res.Skips, 1)
	assert.True(t, errors.Is(res.Skips[0], models.ErrInputUnreadable))
}

func TestValidateUnreadableList(t *testing.T) {
	h := newHarness(t, "AAPL")

	_, err := h.app().Validate(context.Background(), filepath.Join(h.dir, "missing.txt"))
	assert.True(t, errors.Is(err, models.ErrInputUnreadable))
	assert.NoFileExists(t, h.cfg.Validation.Output)
}

func TestValidateRejectsPathOutsideLayout(t *testing.T) {
	h := newHarness(t, "AAPL")
	loose := filepath.Join(h.dir, "loose.txt")
	require.NoError(t, os.WriteFile(loose, []byte(articleHTML("x", "2020-01-01T00:00:00Z")), 0o644))

	list := filepath.Join(h.dir, "article_list.txt")
	require.NoError(t, os.WriteFile(list, []byte(loose+"\n"), 0o644))

	res, err := h.app().Validate(context.Background(), list)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	require.Len(t, res.Skips, 1)
	assert.True(t, errors.Is(res.Skips[0], models.ErrBadPath))
}
