package document

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultName is used for pages whose path is empty (the site root).
	DefaultName = "index"
	Extension   = ".md"
)

// Metadata is rendered as YAML front matter. It must stay free of timestamps so that
// re-scraping an unchanged page produces identical bytes.
type Metadata struct {
	Title  string `yaml:"title,omitempty"`
	Source string `yaml:"source"`
}

// Document is a page converted to Markdown, ready to be written.
type Document struct {
	// The markdown content of the page's main content region.
	Content string
	// FileName is the flat name the document is stored under.
	FileName string
	Metadata Metadata
}

// New creates a Document for the page at source.
func New(source *url.URL, title, content string) *Document {
	return &Document{
		Content:  content,
		FileName: FileName(source),
		Metadata: Metadata{
			Title:  strings.TrimSpace(title),
			Source: source.String(),
		},
	}
}

func (d *Document) HasTitle() bool {
	return d.Metadata.Title != ""
}

// FindTitle returns the metadata title, or else the text of the first level 1 heading.
func (d *Document) FindTitle() string {
	if d.Metadata.Title != "" {
		return d.Metadata.Title
	}

	content := []byte(d.Content)
	doc := goldmark.New().Parser().Parse(text.NewReader(content))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		heading, ok := n.(*ast.Heading)
		if !ok || !entering || heading.Level != 1 {
			return ast.WalkContinue, nil
		}

		var b strings.Builder
		for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				b.Write(t.Segment.Value(content))
			}
		}
		title = strings.TrimSpace(b.String())

		return ast.WalkStop, nil
	})

	return title
}

// ToMarkdown renders the document. With frontMatter set, the metadata is prepended as
// YAML front matter.
func (d *Document) ToMarkdown(frontMatter bool) ([]byte, error) {
	var b strings.Builder

	if frontMatter {
		meta := d.Metadata
		meta.Title = d.FindTitle()

		fm, err := yaml.Marshal(meta)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal metadata to YAML")
		}

		b.WriteString("---\n")
		b.Write(fm)
		b.WriteString("---\n\n")
	}

	b.WriteString(d.Content)
	if !strings.HasSuffix(d.Content, "\n") {
		b.WriteString("\n")
	}

	return []byte(b.String()), nil
}

var unsafeChars = regexp.MustCompile(`[\\:\*\?"<>\|\p{C}]`)

// FileName derives a flat file name from the URL path: surrounding slashes are trimmed,
// inner slashes become underscores and ".md" is appended. The root path maps to index.md.
//
// Distinct paths can collide: /a/b and /a_b both map to a_b.md.
func FileName(u *url.URL) string {
	name := strings.Trim(u.Path, "/")
	name = strings.ReplaceAll(name, "/", "_")
	name = unsafeChars.ReplaceAllString(name, "_")

	if name == "" || name == "." || name == ".." {
		name = DefaultName
	}

	return name + Extension
}
