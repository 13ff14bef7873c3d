package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mempirate/docscrape/scraper"
)

// renderReport prints the per-page results as a table followed by the summary line.
func renderReport(w io.Writer, r *scraper.Report) {
	if len(r.Results) > 0 {
		results := slices.Clone(r.Results)
		slices.SortFunc(results, func(a, b scraper.Result) int {
			return strings.Compare(a.URL, b.URL)
		})

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.Style().Format.Header = text.FormatDefault
		t.Style().Format.Footer = text.FormatDefault
		t.AppendHeader(table.Row{"URL", "Status", "File", "Took", "Error"})

		for _, res := range results {
			t.AppendRow(table.Row{
				res.URL,
				res.Status,
				res.FileName,
				res.Duration.Round(time.Millisecond),
				res.Reason,
			})
		}

		t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d saved", r.Saved, r.Attempted), "", r.Duration.Round(time.Millisecond), ""})
		t.Render()
	}

	fmt.Fprintln(w, r.Summary())
}

func writeJSON(w io.Writer, r *scraper.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
