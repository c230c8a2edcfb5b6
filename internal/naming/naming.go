// Package naming holds the identifier and on-disk layout rules shared by the
// archiver and the validator. Everything here is pure.
package naming

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"press_archive/internal/models"
)

const DefaultExt = "html"

// ArticleID returns "{ticker}{seq}".
func ArticleID(ticker string, seq int) string {
	return ticker + strconv.Itoa(seq)
}

func TickerDir(base, ticker string) string {
	return filepath.Join(base, ticker)
}

// ArticlePath returns {base}/{ticker}/{ticker}{seq}.{ext}.
func ArticlePath(base, ticker string, seq int, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Join(TickerDir(base, ticker), ArticleID(ticker, seq)+"."+strings.TrimPrefix(ext, "."))
}

// Assign maps a ticker and its sequence number to the article id and archive path.
func Assign(base, ticker string, seq int, ext string) (string, string) {
	return ArticleID(ticker, seq), ArticlePath(base, ticker, seq, ext)
}

// ResolveLink turns a listing href into an absolute article URL under origin.
// Absolute http(s) hrefs are kept; fragments are dropped.
func ResolveLink(origin, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: empty href", models.ErrShapeMismatch)
	}

	base, err := url.Parse(origin)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid origin %q", origin)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: bad href %q: %v", models.ErrShapeMismatch, href, err)
	}

	if ref.IsAbs() && ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme in %q", models.ErrShapeMismatch, href)
	}

	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""

	return resolved.String(), nil
}

func idPattern(ext string) *regexp.Regexp {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExt
	}
	return regexp.MustCompile(`(?:^|/)([^/]+)/([^/]+)\.` + regexp.QuoteMeta(ext) + `$`)
}

// IDFromPath recovers an article id from an archived file path of the form
// .../{ticker}/{stem}.{ext}. The stem is the id; the parent directory must be present.
func IDFromPath(p, ext string) (string, error) {
	slashed := path.Clean(strings.ReplaceAll(strings.TrimSpace(p), `\`, "/"))

	m := idPattern(ext).FindStringSubmatch(slashed)
	if m == nil || m[1] == "." || m[1] == ".." {
		return "", fmt.Errorf("%w: %s", models.ErrBadPath, p)
	}

	return m[2], nil
}

// Sequence tracks the per-ticker article counter. Next reserves nothing;
// only Commit advances the counter, so committed numbers stay dense.
type Sequence struct {
	ticker string
	last   int
}

func NewSequence(ticker string) *Sequence {
	return &Sequence{ticker: ticker}
}

func (s *Sequence) Ticker() string { return s.ticker }

// Next is the number the next successful article will receive.
func (s *Sequence) Next() int {
	return s.last + 1
}

// Commit marks seq as used. It must equal Next().
func (s *Sequence) Commit(seq int) error {
	if seq != s.last+1 {
		return fmt.Errorf("sequence %s: commit %d out of order (next %d)", s.ticker, seq, s.last+1)
	}
	s.last = seq
	return nil
}

// Last is the highest committed number, 0 if none.
func (s *Sequence) Last() int {
	return s.last
}
