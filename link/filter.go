package link

import (
	"net"
	"net/url"
	"strings"
)

// DefaultIgnoreExtensions are path suffixes of assets that are never crawled as documents.
var DefaultIgnoreExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico", ".bmp",
	".css", ".js", ".mjs", ".map",
	".woff", ".woff2", ".ttf", ".eot",
	".pdf", ".zip", ".gz", ".tar", ".tgz", ".rar",
	".mp3", ".mp4", ".avi", ".mov", ".webm",
	".xml", ".json",
}

// Filter decides whether a discovered link should be crawled.
type Filter struct {
	ignoreExtensions []string
	pathPrefix       string
}

// NewFilter returns a Filter rejecting the given extensions. An empty list falls back to
// DefaultIgnoreExtensions. A non-empty pathPrefix additionally restricts eligible paths.
func NewFilter(ignoreExtensions []string, pathPrefix string) *Filter {
	if len(ignoreExtensions) == 0 {
		ignoreExtensions = DefaultIgnoreExtensions
	}

	exts := make([]string, 0, len(ignoreExtensions))
	for _, ext := range ignoreExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}

	return &Filter{
		ignoreExtensions: exts,
		pathPrefix:       pathPrefix,
	}
}

var defaultFilter = NewFilter(nil, "")

// IsEligible reports whether candidate is crawlable from base with the default filter.
func IsEligible(candidate, base string) bool {
	return defaultFilter.IsEligible(candidate, base)
}

// IsEligible reports whether candidate belongs to the same origin as base (or has no host
// at all) and does not point at a static asset. Unparseable input is never eligible.
func (f *Filter) IsEligible(candidate, base string) bool {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" || !isHTTP(b.Scheme) {
		return false
	}

	c, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return false
	}

	if c.Scheme != "" && !isHTTP(c.Scheme) {
		return false
	}

	if c.Scheme != "" || c.Host != "" {
		if c.Host == "" {
			return false
		}

		bScheme, cScheme := strings.ToLower(b.Scheme), strings.ToLower(c.Scheme)
		if cScheme == "" {
			cScheme = bScheme
		}
		if cScheme != bScheme || canonicalHost(cScheme, c) != canonicalHost(bScheme, b) {
			return false
		}
	}

	if f.isAsset(c.Path) {
		return false
	}

	if f.pathPrefix != "" {
		path := b.ResolveReference(c).Path
		if path == "" {
			path = "/"
		}
		if !strings.HasPrefix(path, f.pathPrefix) {
			return false
		}
	}

	return true
}

func (f *Filter) isAsset(path string) bool {
	path = strings.ToLower(path)
	for _, ext := range f.ignoreExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}

func isHTTP(scheme string) bool {
	return strings.EqualFold(scheme, "http") || strings.EqualFold(scheme, "https")
}

// canonicalHost lowercases the host and drops the scheme's default port.
func canonicalHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}

	return host
}
