// Package fetch downloads web pages and decodes them to UTF-8.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/mempirate/docscrape/log"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultUserAgent    = "docscrape/1.0"
)

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Response is a successfully (2xx) fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL         *url.URL
	StatusCode  int
	ContentType string
	Body        []byte
}

// MediaType returns the media type of the Content-Type header, without parameters.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(r.ContentType, ";")[0]))
	}

	return mt
}

// IsHTML reports whether the response looks like an HTML document. A missing
// Content-Type is treated as HTML.
func (r *Response) IsHTML() bool {
	switch r.MediaType() {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// Reader returns the body decoded to UTF-8. The encoding is taken from the
// Content-Type header, a byte order mark or a <meta charset> tag, in that order.
func (r *Response) Reader() (io.Reader, error) {
	if len(r.Body) == 0 {
		return bytes.NewReader(nil), nil
	}

	rd, err := charset.NewReader(bytes.NewReader(r.Body), r.ContentType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to determine page encoding")
	}

	return rd, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status code %d (%s) for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// HTTPFetcher is the net/http backed Fetcher.
type HTTPFetcher struct {
	log       zerolog.Logger
	client    *http.Client
	userAgent string
	maxBody   int64
}

type Option func(*HTTPFetcher)

func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) { f.client.Timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

func WithMaxBodyBytes(n int64) Option {
	return func(f *HTTPFetcher) { f.maxBody = n }
}

// WithClient replaces the HTTP client. Options applied after it still modify the new client.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		log:       log.NewLogger("fetch"),
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodyBytes,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads rawURL. Network errors and non-2xx statuses are returned as errors;
// there are no retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download page")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.log.Debug().Str("url", rawURL).Int("status", resp.StatusCode).Msg("Fetch returned bad status code")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if int64(len(body)) > f.maxBody {
		return nil, errors.Errorf("response body exceeds %d bytes", f.maxBody)
	}

	f.log.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("took", time.Since(start)).
		Msg("Fetched page")

	return &Response{
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
