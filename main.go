package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mempirate/docscrape/config"
	"github.com/mempirate/docscrape/content"
	"github.com/mempirate/docscrape/fetch"
	"github.com/mempirate/docscrape/link"
	"github.com/mempirate/docscrape/log"
	"github.com/mempirate/docscrape/metrics"
	"github.com/mempirate/docscrape/scraper"
)

var (
	configFile  string
	logLevel    string
	metricsAddr string

	// cfg is loaded before any subcommand runs.
	cfg config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docscrape",
		Short:         "Scrape a documentation site into Markdown files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configFile)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel = logLevel
			}
			if cmd.Flags().Changed("metrics-addr") {
				loaded.MetricsAddr = metricsAddr
			}

			if err := log.Setup(log.Options{Level: loaded.LogLevel, File: loaded.LogFile, JSON: loaded.LogJSON}); err != nil {
				return err
			}

			if loaded.MetricsAddr != "" {
				go metrics.ExposeMetrics(cmd.Context(), loaded.MetricsAddr)
			}

			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./docscrape.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on, e.g. :9090")

	root.AddCommand(newScrapeCmd(), newSlackCmd())

	return root
}

// newScraper wires the fetch, discovery and extraction stages from the configuration.
func newScraper(c config.Config) *scraper.Scraper {
	fetcher := fetch.NewHTTPFetcher(
		fetch.WithTimeout(c.FetchTimeout),
		fetch.WithUserAgent(c.UserAgent),
		fetch.WithMaxBodyBytes(c.MaxBodyBytes),
	)

	discoverer := link.NewDiscoverer(fetcher, link.NewFilter(c.IgnoreExtensions, c.PathPrefix))
	extractor := content.NewExtractor(fetcher,
		content.WithSelector(c.ContentSelector),
		content.WithFrontMatter(c.FrontMatter),
	)

	return scraper.New(discoverer, extractor, scraper.WithConcurrency(c.Concurrency))
}
