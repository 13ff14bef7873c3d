package main

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var (
		outputDir   string
		concurrency int
		selector    string
		prefix      string
		frontMatter bool
		asJSON      bool
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "scrape <base-url>",
		Short: "Scrape every page linked from base-url into Markdown files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg
			flags := cmd.Flags()
			if flags.Changed("output") {
				c.OutputDir = outputDir
			}
			if flags.Changed("concurrency") {
				c.Concurrency = concurrency
			}
			if flags.Changed("selector") {
				c.ContentSelector = selector
			}
			if flags.Changed("prefix") {
				c.PathPrefix = prefix
			}
			if flags.Changed("front-matter") {
				c.FrontMatter = frontMatter
			}

			if err := c.Validate(); err != nil {
				return err
			}

			baseURL := args[0]

			var spin *spinner.Spinner
			if !noProgress && !asJSON {
				spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				spin.Suffix = " Scraping " + baseURL
				spin.Start()
			}

			report, err := newScraper(c).Run(cmd.Context(), baseURL, c.OutputDir)
			if spin != nil {
				spin.Stop()
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}

			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outputDir, "output", "o", "documentation", "output directory")
	flags.IntVarP(&concurrency, "concurrency", "c", 4, "number of pages scraped in parallel")
	flags.StringVar(&selector, "selector", "", "comma separated main content selectors, in order of preference")
	flags.StringVar(&prefix, "prefix", "", "only scrape links whose path starts with this prefix")
	flags.BoolVar(&frontMatter, "front-matter", false, "prepend YAML front matter with title and source URL")
	flags.BoolVar(&asJSON, "json", false, "print the report as JSON")
	flags.BoolVar(&noProgress, "no-progress", false, "disable the progress spinner")

	return cmd
}
