// Package cmd defines and implements the CLI commands for the crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/config"
	"github.com/JakeFAU/registry-crawler/internal/dedup"
	"github.com/JakeFAU/registry-crawler/internal/discover"
	"github.com/JakeFAU/registry-crawler/internal/extract"
	"github.com/JakeFAU/registry-crawler/internal/fetch"
	"github.com/JakeFAU/registry-crawler/internal/pager"
	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/scheduler"
	"github.com/JakeFAU/registry-crawler/internal/source"
	"github.com/JakeFAU/registry-crawler/internal/validate"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. It discovers
// the per-year partitions of every configured category and drains them on
// the worker pool.
func newCrawlCmd() *cobra.Command {
	var (
		sequential bool
		categories []string
		year       int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured registry categories",
		Long: `Discovers every (category, year) partition the registry reports, then
fetches each partition page by page through the enrichment, validation, and
deduplication pipeline. Accepted records flow to the configured store and
publisher.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), crawlOptions{
				sequential: sequential,
				categories: categories,
				year:       year,
			})
		},
	}
	cmd.Flags().BoolVar(&sequential, "sequential", false, "run partitions one at a time on a single session")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "category codes to crawl (default: configured or all)")
	cmd.Flags().IntVar(&year, "year", 0, "restrict the crawl to a single target year")
	return cmd
}

type crawlOptions struct {
	sequential bool
	categories []string
	year       int
}

func runCrawl(ctx context.Context, opts crawlOptions) error {
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	log := appInstance.Logger()

	site := source.Site{BaseURL: cfg.Crawler.BaseURL, UserAgent: cfg.Crawler.UserAgent}

	parts, err := discoverPartitions(ctx, appInstance, site, opts)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		log.Warn("No partitions discovered; nothing to crawl")
		return nil
	}
	log.Info("Discovery finished", zap.Int("partitions", len(parts)))

	sink := scheduler.NewRecordSink(appInstance.Records(), appInstance.Publisher(), log)
	index := dedup.NewIndex()
	stop := func() bool { return ctx.Err() != nil }

	sched := &scheduler.Scheduler{
		Workers:  cfg.Crawler.Workers,
		Sessions: sessionFactory(ctx, appInstance, cfg),
		NewPager: func(fetcher registry.Fetcher) *pager.Pager {
			return &pager.Pager{
				Fetcher: fetcher,
				Site:    site,
				Lists:   &extract.ListParser{Site: site, Level: "provincial government", Log: log},
				Enricher: &extract.Enricher{
					Fetcher:          fetcher,
					Site:             site,
					Monitor:          appInstance.Monitor(),
					MinContentLength: cfg.Crawler.MinContentLength,
					Log:              log,
				},
				Validator: &validate.YearValidator{Log: log},
				Index:     index,
				Monitor:   appInstance.Monitor(),
				Sink:      sink,
				Stop:      stop,
				Archive:   appInstance.Archive(),
				Retry: fetch.NewRetryPolicy(
					cfg.HTTP.MaxRetries,
					cfg.HTTP.BackoffInitial(),
					cfg.HTTP.BackoffMax(),
				),
				Cfg: pager.Config{
					MaxPages:               cfg.Crawler.MaxPages,
					EmptyPageThreshold:     cfg.Crawler.EmptyPageThreshold,
					ExpectedCountTolerance: cfg.Crawler.CountTolerance,
				},
				Log: log,
			}
		},
		Stop: stop,
		Log:  log,
	}

	var sum scheduler.Summary
	if opts.sequential || cfg.Crawler.Sequential {
		sum = sched.RunSequential(ctx, parts)
	} else {
		sum = sched.Run(ctx, parts)
	}

	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	if sum.FailedPartitions == sum.Partitions && sum.Partitions > 0 {
		return fmt.Errorf("all %d partitions failed", sum.Partitions)
	}
	return nil
}

// discoverPartitions expands the requested categories into (category, year)
// partitions. A category whose discovery fails is reported and skipped; it
// never masquerades as an empty category.
func discoverPartitions(ctx context.Context, appInstance App, site source.Site, opts crawlOptions) ([]registry.Partition, error) {
	cfg := appInstance.Config()
	log := appInstance.Logger()

	session, err := newSession(ctx, appInstance, cfg, "")
	if err != nil {
		return nil, fmt.Errorf("discovery session: %w", err)
	}

	d := &discover.Discoverer{Fetcher: session, Site: site, Log: log}

	var parts []registry.Partition
	var failed []string
	for _, cat := range resolveCategories(opts.categories, cfg, log) {
		catParts, err := d.Partitions(ctx, cat)
		if err != nil {
			failed = append(failed, cat.Code)
			log.Error("Partition discovery failed",
				zap.String("category", cat.Code),
				zap.Error(err),
			)
			continue
		}
		for _, p := range catParts {
			if opts.year != 0 && p.TargetYear != opts.year {
				continue
			}
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && len(failed) > 0 {
		return nil, fmt.Errorf("discovery failed for all categories: %v", failed)
	}
	return parts, nil
}

func resolveCategories(requested []string, cfg config.Config, log *zap.Logger) []source.Category {
	codes := requested
	if len(codes) == 0 {
		codes = cfg.Crawler.Categories
	}
	if len(codes) == 0 {
		return source.Categories()
	}
	cats := make([]source.Category, 0, len(codes))
	for _, code := range codes {
		cat, ok := source.CategoryByCode(code)
		if !ok {
			log.Warn("Category code not in catalogue; crawling it anyway", zap.String("category", code))
			cat = source.Category{Name: code, Code: code}
		}
		cats = append(cats, cat)
	}
	return cats
}

// sessionFactory builds per-worker sessions, each with its own cookie jar
// and, when the pool has any, its own proxy. The proxy lease is returned
// through the release func on every exit path, including session
// construction failure.
func sessionFactory(ctx context.Context, appInstance App, cfg config.Config) scheduler.SessionFactory {
	return func() (registry.Fetcher, scheduler.ReleaseFunc, error) {
		proxyURL := ""
		pool := appInstance.Proxies()
		if pool != nil && !pool.Empty() {
			url, err := pool.Checkout(ctx)
			if err != nil {
				appInstance.Logger().Warn("Proxy checkout failed; continuing without proxy", zap.Error(err))
			} else {
				proxyURL = url
			}
		}
		session, err := newSession(ctx, appInstance, cfg, proxyURL)
		if err != nil {
			if proxyURL != "" {
				pool.Checkin(proxyURL, true)
			}
			return nil, nil, err
		}
		release := func() {}
		if proxyURL != "" {
			release = func() { pool.Checkin(proxyURL, true) }
		}
		return session, release, nil
	}
}

func newSession(_ context.Context, appInstance App, cfg config.Config, proxyURL string) (*fetch.Session, error) {
	session, err := fetch.NewSession(fetch.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.RequestTimeout(),
		MinDelay:  cfg.Crawler.MinDelay(),
		MaxDelay:  cfg.Crawler.MaxDelay(),
		ProxyURL:  proxyURL,
	}, appInstance.Logger())
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	return session, nil
}
