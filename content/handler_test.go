package content

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mempirate/docscrape/fetch"
	"github.com/mempirate/docscrape/store"
)

type page struct {
	contentType string
	body        string
}

// siteFetcher serves fixed pages keyed by URL and 404s everything else.
type siteFetcher map[string]page

func (s siteFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Response, error) {
	p, ok := s[rawURL]
	if !ok {
		return nil, &fetch.StatusError{URL: rawURL, StatusCode: 404}
	}

	ct := p.contentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}

	u, _ := url.Parse(rawURL)
	return &fetch.Response{URL: u, StatusCode: 200, ContentType: ct, Body: []byte(p.body)}, nil
}

// brokenStore fails every write.
type brokenStore struct {
	store.LocalStore
}

func (brokenStore) Contains(string) (bool, error) {
	return false, nil
}

func (brokenStore) Store(string, io.Reader) error {
	return errors.New("disk full")
}

const docPage = `<html>
<head><title>Docs A/B</title><script>var x = 1;</script></head>
<body>
  <nav>Navigation menu</nav>
  <main>
    <h1>Section B</h1>
    <p>Read <a href="/docs/c">the next page</a> first.</p>
  </main>
  <footer>Footer text</footer>
</body>
</html>`

func TestExtract(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/docs/a/b": {body: docPage}}
	dir := t.TempDir()

	name, err := NewExtractor(fetcher).Extract(context.Background(), "https://example.com/docs/a/b", store.NewFileStore(dir))
	require.NoError(t, err)
	assert.Equal(t, "docs_a_b.md", name)

	data, err := os.ReadFile(filepath.Join(dir, "docs_a_b.md"))
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "# Section B")
	assert.Contains(t, out, "[the next page](https://example.com/docs/c)")
	assert.NotContains(t, out, "Navigation menu")
	assert.NotContains(t, out, "Footer text")
	assert.NotContains(t, out, "var x")
}

func TestExtractFallsBackToWholeDocument(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/": {body: `<html><body><nav>Menu</nav><p>Hello world</p></body></html>`}}

	doc, err := NewExtractor(fetcher).Document(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, "index.md", doc.FileName)
	assert.Contains(t, doc.Content, "Menu")
	assert.Contains(t, doc.Content, "Hello world")
}

func TestExtractSelectorPreference(t *testing.T) {
	body := `<html><body><article>Article text</article><main>Main text</main></body></html>`
	fetcher := siteFetcher{"https://example.com/p": {body: body}}

	doc, err := NewExtractor(fetcher).Document(context.Background(), "https://example.com/p")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Main text")
	assert.NotContains(t, doc.Content, "Article text")

	doc, err = NewExtractor(fetcher, WithSelector("article")).Document(context.Background(), "https://example.com/p")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Article text")
	assert.NotContains(t, doc.Content, "Main text")
}

func TestExtractDecodesCharset(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/fr": {
		contentType: "text/html; charset=iso-8859-1",
		body:        "<html><body><main><p>Caf\xe9 cr\xe8me</p></main></body></html>",
	}}

	doc, err := NewExtractor(fetcher).Document(context.Background(), "https://example.com/fr")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Café crème")
}

func TestExtractTitle(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/docs/a/b": {body: docPage}}

	doc, err := NewExtractor(fetcher).Document(context.Background(), "https://example.com/docs/a/b")
	require.NoError(t, err)
	assert.Equal(t, "Docs A/B", doc.Metadata.Title)
	assert.Equal(t, "https://example.com/docs/a/b", doc.Metadata.Source)
}

func TestExtractTitleFromHeading(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/guide": {body: `<html><body><main><h1>Getting Started</h1><p>Hi</p></main></body></html>`}}
	dir := t.TempDir()

	_, err := NewExtractor(fetcher, WithFrontMatter(true)).Extract(context.Background(), "https://example.com/guide", store.NewFileStore(dir))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "guide.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "---\ntitle: Getting Started\nsource: https://example.com/guide\n---\n")
}

func TestExtractFrontMatter(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/docs/a/b": {body: docPage}}
	dir := t.TempDir()

	_, err := NewExtractor(fetcher, WithFrontMatter(true)).Extract(context.Background(), "https://example.com/docs/a/b", store.NewFileStore(dir))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "docs_a_b.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "---\ntitle: Docs A/B\nsource: https://example.com/docs/a/b\n---\n")
}

func TestExtractIsIdempotent(t *testing.T) {
	fetcher := siteFetcher{"https://example.com/docs/a/b": {body: docPage}}
	dir := t.TempDir()
	x := NewExtractor(fetcher, WithFrontMatter(true))

	_, err := x.Extract(context.Background(), "https://example.com/docs/a/b", store.NewFileStore(dir))
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "docs_a_b.md"))
	require.NoError(t, err)

	_, err = x.Extract(context.Background(), "https://example.com/docs/a/b", store.NewFileStore(dir))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "docs_a_b.md"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractErrors(t *testing.T) {
	fetcher := siteFetcher{
		"https://example.com/ok":  {body: docPage},
		"https://example.com/pdf": {contentType: "application/pdf", body: "%PDF-1.7"},
	}
	x := NewExtractor(fetcher)
	sink := store.NewFileStore(t.TempDir())

	_, err := x.Extract(context.Background(), "https://example.com/missing", sink)
	require.Error(t, err)
	assert.Equal(t, KindFetch, KindOf(err))

	var statusErr *fetch.StatusError
	assert.True(t, errors.As(err, &statusErr))

	_, err = x.Extract(context.Background(), "https://example.com/pdf", sink)
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))

	_, err = x.Extract(context.Background(), "https://example.com/ok", brokenStore{})
	require.Error(t, err)
	assert.Equal(t, KindWrite, KindOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindWrite, KindOf(errors.Wrap(&Error{Kind: KindWrite}, "wrapped")))
}
