package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mempirate/docscrape/content"
	"github.com/mempirate/docscrape/fetch"
	"github.com/mempirate/docscrape/link"
	"github.com/mempirate/docscrape/store"
)

type fakeDiscoverer struct {
	DiscoverFn func(ctx context.Context, baseURL string, visited *link.VisitedSet) ([]string, error)
	calls      atomic.Int32
}

func (f *fakeDiscoverer) Discover(ctx context.Context, baseURL string, visited *link.VisitedSet) ([]string, error) {
	f.calls.Add(1)
	return f.DiscoverFn(ctx, baseURL, visited)
}

type fakeExtractor struct {
	ExtractFn func(ctx context.Context, pageURL string, sink store.LocalStore) (string, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, pageURL string, sink store.LocalStore) (string, error) {
	return f.ExtractFn(ctx, pageURL, sink)
}

func staticLinks(links ...string) *fakeDiscoverer {
	return &fakeDiscoverer{
		DiscoverFn: func(context.Context, string, *link.VisitedSet) ([]string, error) {
			return links, nil
		},
	}
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="/docs/a">A</a>
			<a href="/docs/b">B</a>
			<a href="/docs/missing">Missing</a>
			<a href="/img/logo.png">Logo</a>
			<a href="https://other.com/x">Other</a>
		</body></html>`)
	})
	mux.HandleFunc("/docs/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><nav>nav</nav><main><h1>Page A</h1></main></body></html>`)
	})
	mux.HandleFunc("/docs/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main><h1>Page B</h1></main></body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newScraper(opts ...Option) *Scraper {
	f := fetch.NewHTTPFetcher(fetch.WithTimeout(5 * time.Second))
	return New(link.NewDiscoverer(f, nil), content.NewExtractor(f), opts...)
}

func TestRunPartialFailure(t *testing.T) {
	srv := newSite(t)
	dir := filepath.Join(t.TempDir(), "out")

	report, err := newScraper().Run(context.Background(), srv.URL, dir)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Saved)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, report.Warning)
	assert.False(t, report.Canceled)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 3)

	for _, res := range report.Results {
		if res.URL == srv.URL+"/docs/missing" {
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, content.KindFetch, res.Kind)
			assert.Contains(t, res.Reason, "404")
		} else {
			assert.Equal(t, StatusSaved, res.Status)
		}
	}

	a, err := os.ReadFile(filepath.Join(dir, "docs_a.md"))
	require.NoError(t, err)
	assert.Contains(t, string(a), "# Page A")
	assert.NotContains(t, string(a), "nav")

	_, err = os.Stat(filepath.Join(dir, "docs_b.md"))
	require.NoError(t, err)

	files, err := store.NewFileStore(dir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs_a.md", "docs_b.md"}, files)
}

func TestRunNothingFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="https://other.com/">elsewhere</a></body></html>`)
	}))
	defer srv.Close()

	report, err := newScraper().Run(context.Background(), srv.URL, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, WarningNothingFound, report.Warning)
	assert.Empty(t, report.DiscoveryError)
	assert.Empty(t, report.Results)
}

func TestRunDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	report, err := newScraper().Run(context.Background(), srv.URL, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, WarningNothingFound, report.Warning)
	assert.Contains(t, report.DiscoveryError, "404")
	assert.Contains(t, report.Summary(), "nothing found")
}

func TestRunOutputDirFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	d := staticLinks("https://example.com/a")
	s := New(d, &fakeExtractor{})

	report, err := s.Run(context.Background(), "https://example.com", filepath.Join(blocker, "out"))
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrCreateOutputDir))
	assert.Equal(t, int32(0), d.calls.Load())
}

func TestRunIsolatesFailures(t *testing.T) {
	links := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3", "https://example.com/4"}
	x := &fakeExtractor{
		ExtractFn: func(_ context.Context, pageURL string, _ store.LocalStore) (string, error) {
			if pageURL == "https://example.com/1" {
				return "", &content.Error{Kind: content.KindWrite, URL: pageURL, Err: errors.New("read-only file system")}
			}
			time.Sleep(10 * time.Millisecond)
			return filepath.Base(pageURL) + ".md", nil
		},
	}

	report, err := New(staticLinks(links...), x, WithConcurrency(4)).Run(context.Background(), "https://example.com", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Attempted)
	assert.Equal(t, 3, report.Saved)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Summary(), "1 failed")

	for _, res := range report.Results {
		if res.Status == StatusFailed {
			assert.Equal(t, content.KindWrite, res.Kind)
		}
	}
}

func TestRunRespectsConcurrency(t *testing.T) {
	var links []string
	for i := 0; i < 12; i++ {
		links = append(links, fmt.Sprintf("https://example.com/%d", i))
	}

	var inFlight, maxInFlight atomic.Int32
	x := &fakeExtractor{
		ExtractFn: func(_ context.Context, pageURL string, _ store.LocalStore) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return "x.md", nil
		},
	}

	report, err := New(staticLinks(links...), x, WithConcurrency(3)).Run(context.Background(), "https://example.com", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 12, report.Attempted)
	assert.Equal(t, 12, report.Saved)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.GreaterOrEqual(t, maxInFlight.Load(), int32(1))
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	links := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3", "https://example.com/4"}
	x := &fakeExtractor{
		ExtractFn: func(ctx context.Context, pageURL string, _ store.LocalStore) (string, error) {
			cancel()
			<-ctx.Done()
			return "", &content.Error{Kind: content.KindFetch, URL: pageURL, Err: ctx.Err()}
		},
	}

	report, err := New(staticLinks(links...), x, WithConcurrency(1)).Run(ctx, "https://example.com", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.Canceled)
}

func TestRunIdempotent(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	s := newScraper()

	_, err := s.Run(context.Background(), srv.URL, dir)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "docs_a.md"))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), srv.URL, dir)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "docs_a.md"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSummary(t *testing.T) {
	r := &Report{BaseURL: "https://example.com", OutputDir: "out", Attempted: 3, Saved: 2, Failed: 1}
	assert.Equal(t, "Saved 2 of 3 pages from https://example.com to out, 1 failed", r.Summary())

	r = &Report{BaseURL: "https://example.com", Warning: WarningNothingFound, DiscoveryError: "boom"}
	assert.Equal(t, "No pages scraped from https://example.com: nothing found (boom)", r.Summary())
}
