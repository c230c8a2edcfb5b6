// Package fetch retrieves article pages one request at a time through a
// synchronous colly collector.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"press_archive/internal/models"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; PressArchive/1.0)"
	DefaultTimeout   = 30 * time.Second

	statusKey = "status"
)

var errBodyTooLarge = errors.New("response body exceeds limit")

type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
	// MaxBodyBytes rejects larger responses; 0 means no limit.
	MaxBodyBytes int
}

// Client fetches a URL and returns the response body exactly as the server
// sent it, after transfer decoding.
type Client struct {
	mu        sync.Mutex
	collector *colly.Collector
	raw       *rawTransport
}

func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes < 0 {
		opts.MaxBodyBytes = 0
	}

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.MaxBodySize = opts.MaxBodyBytes
	c.IgnoreRobotsTxt = !opts.RespectRobots

	raw := &rawTransport{
		next: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   opts.Timeout,
			ResponseHeaderTimeout: opts.Timeout,
			IdleConnTimeout:       90 * time.Second,
		},
		limit: opts.MaxBodyBytes,
	}
	c.WithTransport(raw)

	c.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(statusKey, r.StatusCode)
		}
	})

	return &Client{collector: c, raw: raw}
}

// Fetch performs a single GET. Non-2xx responses, robots.txt refusals,
// oversized bodies and transport errors are returned wrapped in
// models.ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.raw.reset()

	reqCtx := colly.NewContext()
	if err := c.collector.Request(http.MethodGet, url, nil, reqCtx, nil); err != nil {
		if errors.Is(err, colly.ErrRobotsTxtBlocked) {
			return nil, fmt.Errorf("%w: %s: %w", models.ErrFetchFailed, url, err)
		}
		if status, ok := reqCtx.GetAny(statusKey).(int); ok && status != 0 {
			return nil, fmt.Errorf("%w: %s: HTTP %d: %v", models.ErrFetchFailed, url, status, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrFetchFailed, url, err)
	}

	body := c.raw.take()
	if body == nil {
		return nil, fmt.Errorf("%w: %s: no response", models.ErrFetchFailed, url)
	}

	return body, nil
}

// rawTransport keeps the bytes of the last response it carried. colly
// re-encodes bodies whose Content-Type names a non-UTF-8 charset before any
// callback sees them, so the archived copy is taken here instead.
type rawTransport struct {
	next  http.RoundTripper
	limit int

	mu   sync.Mutex
	last []byte
}

func (t *rawTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var r io.Reader = res.Body
	if !res.Uncompressed && strings.EqualFold(res.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(res.Body)
		switch {
		case errors.Is(err, io.EOF):
			r = bytes.NewReader(nil)
		case err != nil:
			return nil, err
		default:
			defer gz.Close()
			r = gz
		}
		res.Header.Del("Content-Encoding")
		res.Header.Del("Content-Length")
		res.ContentLength = -1
		res.Uncompressed = true
	}
	if t.limit > 0 {
		r = io.LimitReader(r, int64(t.limit)+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if t.limit > 0 && len(body) > t.limit {
		return nil, fmt.Errorf("%w: %s larger than %d bytes", errBodyTooLarge, req.URL, t.limit)
	}

	t.mu.Lock()
	t.last = body
	t.mu.Unlock()

	res.Body = io.NopCloser(bytes.NewReader(body))
	return res, nil
}

func (t *rawTransport) reset() {
	t.mu.Lock()
	t.last = nil
	t.mu.Unlock()
}

func (t *rawTransport) take() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	body := t.last
	t.last = nil
	return body
}
