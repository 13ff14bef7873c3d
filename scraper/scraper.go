// Package scraper drives a full run: discover links on a base page, then extract every
// discovered page into a Markdown file.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mempirate/docscrape/content"
	"github.com/mempirate/docscrape/link"
	"github.com/mempirate/docscrape/log"
	"github.com/mempirate/docscrape/metrics"
	"github.com/mempirate/docscrape/store"
)

const DefaultConcurrency = 4

// ErrCreateOutputDir aborts a run before any page is fetched.
var ErrCreateOutputDir = errors.New("failed to create output directory")

// LinkDiscoverer finds candidate pages on the base page.
type LinkDiscoverer interface {
	Discover(ctx context.Context, baseURL string, visited *link.VisitedSet) ([]string, error)
}

// PageExtractor converts one page and writes it to sink, returning the file name.
type PageExtractor interface {
	Extract(ctx context.Context, pageURL string, sink store.LocalStore) (string, error)
}

type Scraper struct {
	log         zerolog.Logger
	discoverer  LinkDiscoverer
	extractor   PageExtractor
	concurrency int
	newStore    func(dir string) store.LocalStore
}

type Option func(*Scraper)

// WithConcurrency bounds the number of pages processed at once.
func WithConcurrency(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStoreFactory replaces the file store used for the output directory.
func WithStoreFactory(f func(dir string) store.LocalStore) Option {
	return func(s *Scraper) { s.newStore = f }
}

func New(discoverer LinkDiscoverer, extractor PageExtractor, opts ...Option) *Scraper {
	s := &Scraper{
		log:         log.NewLogger("scraper"),
		discoverer:  discoverer,
		extractor:   extractor,
		concurrency: DefaultConcurrency,
		newStore: func(dir string) store.LocalStore {
			return store.NewFileStore(dir)
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run scrapes every page linked from baseURL into outputDir. Per-page failures are recorded
// in the report; only a failure to create outputDir is returned as an error.
//
// Cancelling ctx stops new pages from being started; pages already in flight finish
// (or fail) and are reported.
func (s *Scraper) Run(ctx context.Context, baseURL, outputDir string) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		BaseURL:   baseURL,
		OutputDir: outputDir,
		Results:   []Result{},
		StartedAt: time.Now(),
	}
	logger := s.log.With().Str("run_id", report.RunID).Str("base_url", baseURL).Logger()

	sink := s.newStore(outputDir)
	if err := sink.EnsureDir(); err != nil {
		metrics.Runs.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrCreateOutputDir, err)
	}

	logger.Info().Str("output_dir", outputDir).Msg("Discovering pages")
	candidates, err := s.discoverer.Discover(ctx, baseURL, link.NewVisitedSet())
	if err != nil {
		logger.Warn().Err(err).Msg("Discovery failed")
		report.DiscoveryError = err.Error()
	}
	metrics.DiscoveredLinks.Add(float64(len(candidates)))

	if len(candidates) == 0 {
		report.Warning = WarningNothingFound
		report.Duration = time.Since(report.StartedAt)
		metrics.Runs.WithLabelValues("empty").Inc()
		logger.Warn().Msg("No pages found to scrape")
		return report, nil
	}

	logger.Info().Int("candidates", len(candidates)).Int("concurrency", s.concurrency).Msg("Scraping pages")

	results := make(chan Result)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			report.add(res)
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, pageURL := range candidates {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			results <- s.scrapePage(gCtx, pageURL, sink)
			// Never fail the group, so one page cannot cancel its siblings.
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	<-done

	report.Canceled = ctx.Err() != nil && report.Attempted < len(candidates)
	report.Duration = time.Since(report.StartedAt)
	metrics.Runs.WithLabelValues("completed").Inc()

	logger.Info().
		Int("attempted", report.Attempted).
		Int("saved", report.Saved).
		Int("failed", report.Failed).
		Dur("took", report.Duration).
		Msg("Scrape finished")

	return report, nil
}

func (s *Scraper) scrapePage(ctx context.Context, pageURL string, sink store.LocalStore) Result {
	start := time.Now()
	fileName, err := s.extractor.Extract(ctx, pageURL, sink)

	res := Result{URL: pageURL, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusFailed
		res.Reason = err.Error()
		res.Kind = content.KindOf(err)
		s.log.Error().Err(err).Str("url", pageURL).Msg("Failed to scrape page")
	} else {
		res.Status = StatusSaved
		res.FileName = fileName
		s.log.Info().Str("url", pageURL).Str("file", fileName).Msg("Page saved")
	}

	metrics.ObservePage(string(res.Status), res.Duration)

	return res
}
