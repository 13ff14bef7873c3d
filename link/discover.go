// Package link discovers crawlable same-site links on a page.
package link

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/docscrape/fetch"
	"github.com/mempirate/docscrape/log"
)

// Discoverer extracts eligible links from a single seed page.
type Discoverer struct {
	log     zerolog.Logger
	fetcher fetch.Fetcher
	filter  *Filter
}

func NewDiscoverer(fetcher fetch.Fetcher, filter *Filter) *Discoverer {
	if filter == nil {
		filter = defaultFilter
	}

	return &Discoverer{
		log:     log.NewLogger("discover"),
		fetcher: fetcher,
		filter:  filter,
	}
}

// Discover fetches baseURL and returns the eligible links found on it that were not yet in
// visited, in document order. Returned links are added to visited. If the page cannot be
// fetched or parsed, no links are returned together with the error.
func (d *Discoverer) Discover(ctx context.Context, baseURL string, visited *VisitedSet) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base URL")
	}

	resp, err := d.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", baseURL)
	}

	r, err := resp.Reader()
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse HTML")
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")

		abs, ok := Normalize(base, href)
		if !ok || !d.filter.IsEligible(abs, baseURL) {
			return
		}

		if visited.Add(abs) {
			links = append(links, abs)
		}
	})

	d.log.Debug().Str("base_url", baseURL).Int("count", len(links)).Msg("Link discovery finished")

	return links, nil
}

// Normalize resolves href against base, strips the fragment, lowercases scheme and host and
// drops a default port. Empty and fragment-only hrefs are rejected.
func Normalize(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	abs.Scheme = strings.ToLower(abs.Scheme)
	if abs.Host != "" {
		abs.Host = canonicalHost(abs.Scheme, abs)
	}
	if abs.Path == "" && abs.Opaque == "" && abs.Host != "" {
		abs.Path = "/"
	}

	return abs.String(), true
}
