package scraper

import (
	"fmt"
	"time"

	"github.com/mempirate/docscrape/content"
)

// WarningNothingFound is set on a Report when discovery yields no candidates.
const WarningNothingFound = "nothing found"

type Status string

const (
	StatusSaved  Status = "saved"
	StatusFailed Status = "failed"
)

// Result is the outcome of a single page.
type Result struct {
	URL      string        `json:"url"`
	Status   Status        `json:"status"`
	FileName string        `json:"file_name,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Kind     content.Kind  `json:"kind,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run. Results are in completion order.
type Report struct {
	RunID     string `json:"run_id"`
	BaseURL   string `json:"base_url"`
	OutputDir string `json:"output_dir"`

	Attempted int `json:"attempted"`
	Saved     int `json:"saved"`
	Failed    int `json:"failed"`

	// Warning is WarningNothingFound when there was nothing to scrape.
	Warning string `json:"warning,omitempty"`
	// DiscoveryError explains why the base page yielded no links, if it failed.
	DiscoveryError string `json:"discovery_error,omitempty"`
	// Canceled is set when the run was stopped before all candidates were attempted.
	Canceled bool `json:"canceled,omitempty"`

	Results []Result `json:"results"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (r *Report) add(res Result) {
	r.Attempted++
	switch res.Status {
	case StatusSaved:
		r.Saved++
	case StatusFailed:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

// Summary is a one line, human readable description of the report.
func (r *Report) Summary() string {
	if r.Warning != "" {
		msg := fmt.Sprintf("No pages scraped from %s: %s", r.BaseURL, r.Warning)
		if r.DiscoveryError != "" {
			msg += fmt.Sprintf(" (%s)", r.DiscoveryError)
		}
		return msg
	}

	msg := fmt.Sprintf("Saved %d of %d pages from %s to %s", r.Saved, r.Attempted, r.BaseURL, r.OutputDir)
	if r.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", r.Failed)
	}
	if r.Canceled {
		msg += " (canceled)"
	}

	return msg
}
