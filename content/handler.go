package content

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/docscrape/document"
	"github.com/mempirate/docscrape/fetch"
	"github.com/mempirate/docscrape/log"
	"github.com/mempirate/docscrape/store"
)

// DefaultSelector lists main content containers in order of preference.
const DefaultSelector = "main, article, [role='main']"

// Kind classifies why a page could not be extracted.
type Kind string

const (
	KindFetch   Kind = "fetch"
	KindDecode  Kind = "decode"
	KindConvert Kind = "convert"
	KindWrite   Kind = "write"
)

// Error is returned by Extract for any per-page failure.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of an extraction error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// Extractor turns a page into a Markdown file.
type Extractor struct {
	log         zerolog.Logger
	fetcher     fetch.Fetcher
	selectors   []string
	frontMatter bool
}

type Option func(*Extractor)

// WithSelector sets the comma separated main content selectors, tried in order.
func WithSelector(selector string) Option {
	return func(x *Extractor) {
		if s := splitSelector(selector); len(s) > 0 {
			x.selectors = s
		}
	}
}

// WithFrontMatter prepends title and source as YAML front matter to every file.
func WithFrontMatter(enabled bool) Option {
	return func(x *Extractor) { x.frontMatter = enabled }
}

func NewExtractor(fetcher fetch.Fetcher, opts ...Option) *Extractor {
	x := &Extractor{
		log:       log.NewLogger("content"),
		fetcher:   fetcher,
		selectors: splitSelector(DefaultSelector),
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// Extract fetches pageURL, converts its main content to Markdown and writes it to sink.
// It returns the name of the written file.
func (x *Extractor) Extract(ctx context.Context, pageURL string, sink store.LocalStore) (string, error) {
	doc, err := x.Document(ctx, pageURL)
	if err != nil {
		return "", err
	}

	body, err := doc.ToMarkdown(x.frontMatter)
	if err != nil {
		return "", &Error{Kind: KindConvert, URL: pageURL, Err: err}
	}

	exists, err := sink.Contains(doc.FileName)
	if err != nil {
		return "", &Error{Kind: KindWrite, URL: pageURL, Err: err}
	}
	if exists {
		x.log.Debug().Str("url", pageURL).Str("file", doc.FileName).Msg("Overwriting existing file")
	}

	if err := sink.Store(doc.FileName, bytes.NewReader(body)); err != nil {
		return "", &Error{Kind: KindWrite, URL: pageURL, Err: err}
	}

	x.log.Debug().Str("url", pageURL).Str("file", doc.FileName).Int("bytes", len(body)).Msg("Page saved")

	return doc.FileName, nil
}

// Document fetches pageURL and converts it without writing anything.
func (x *Extractor) Document(ctx context.Context, pageURL string) (*document.Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: pageURL, Err: errors.Wrap(err, "invalid URL")}
	}

	resp, err := x.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: pageURL, Err: err}
	}

	if !resp.IsHTML() {
		return nil, &Error{Kind: KindDecode, URL: pageURL, Err: errors.Errorf("unsupported content type: %s", resp.MediaType())}
	}

	r, err := resp.Reader()
	if err != nil {
		return nil, &Error{Kind: KindDecode, URL: pageURL, Err: err}
	}

	page, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &Error{Kind: KindDecode, URL: pageURL, Err: errors.Wrap(err, "failed to parse HTML")}
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	page.Find("script, style, noscript, template").Remove()

	markup, err := x.mainContent(page)
	if err != nil {
		return nil, &Error{Kind: KindConvert, URL: pageURL, Err: err}
	}

	markdown, err := md.ConvertString(markup, converter.WithDomain(u.Scheme+"://"+u.Host))
	if err != nil {
		return nil, &Error{Kind: KindConvert, URL: pageURL, Err: errors.Wrap(err, "failed to convert HTML to Markdown")}
	}

	doc := document.New(u, title, markdown)
	if !doc.HasTitle() {
		doc.Metadata.Title = doc.FindTitle()
	}

	return doc, nil
}

// mainContent serializes the first matching main content container, or the whole
// document if none matches.
func (x *Extractor) mainContent(page *goquery.Document) (string, error) {
	for _, sel := range x.selectors {
		if node := page.Find(sel).First(); node.Length() > 0 {
			return goquery.OuterHtml(node)
		}
	}

	x.log.Trace().Msg("No main content container, using whole document")

	return page.Html()
}

func splitSelector(selector string) []string {
	var out []string
	for _, s := range strings.Split(selector, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
