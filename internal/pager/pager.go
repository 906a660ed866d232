// Package pager runs the two-phase request protocol for one partition:
// first a context-refresh that pins the server-side clustering to the
// partition's category and year, then paged fetches until a termination
// condition fires.
package pager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/dedup"
	"github.com/JakeFAU/registry-crawler/internal/extract"
	"github.com/JakeFAU/registry-crawler/internal/fetch"
	"github.com/JakeFAU/registry-crawler/internal/metrics"
	"github.com/JakeFAU/registry-crawler/internal/monitor"
	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/source"
	"github.com/JakeFAU/registry-crawler/internal/validate"
)

// Config bounds a partition crawl.
type Config struct {
	// MaxPages caps the page index; zero means unbounded.
	MaxPages int
	// EmptyPageThreshold is the number of consecutive pages with zero raw
	// candidates that terminates the partition.
	EmptyPageThreshold int
	// ExpectedCountTolerance is the accepted relative shortfall against the
	// discovery count before an anomaly is logged.
	ExpectedCountTolerance float64
}

func (c Config) emptyThreshold() int {
	if c.EmptyPageThreshold <= 0 {
		return 3
	}
	return c.EmptyPageThreshold
}

var errAccessLimited = errors.New("access limited")

// rotator is implemented by sessions that can swap cookies when the server
// answers with an access-limit interstitial.
type rotator interface {
	Rotate(ctx context.Context, landingURL string, headers http.Header) error
}

// warmer is implemented by sessions that acquire cookies from a landing page
// before their first search POST.
type warmer interface {
	Warm(ctx context.Context, landingURL string, headers http.Header) error
}

// Pager drives one partition through the full pipeline. The same Pager
// value serves both the sequential and the concurrent drivers; all shared
// state it touches (Index, Monitor, Sink) is internally synchronized.
type Pager struct {
	Fetcher   registry.Fetcher
	Site      source.Site
	Lists     *extract.ListParser
	Enricher  *extract.Enricher
	Validator *validate.YearValidator
	Index     *dedup.Index
	Monitor   *monitor.Monitor
	Sink      registry.Sink
	Stop      registry.StopFunc
	Archive   registry.BlobStore
	Retry     *fetch.ExponentialRetryPolicy
	Cfg       Config
	Log       *zap.Logger

	warmed map[string]bool
}

// Crawl runs the partition to termination. A failed partition still returns
// every record collected before the failure.
func (p *Pager) Crawl(ctx context.Context, part registry.Partition) registry.PartitionResult {
	res := registry.PartitionResult{Partition: part}

	lib, mapped := source.LibraryFor(part.CategoryCode)
	if !mapped {
		p.Log.Warn("No library mapping for partition; using default",
			zap.String("partition", part.Label()),
			zap.String("library", lib.Name),
		)
	}
	pageSize := part.PageSize
	if pageSize <= 0 {
		pageSize = lib.PageSize
	}

	p.progress(fmt.Sprintf("partition %s: starting (expected %d records)", part.Label(), part.ExpectedCount))

	p.warmSession(ctx, lib)

	// Phase 1. Proceeding to paged fetches after an unrecovered refresh
	// failure would silently pull the wrong year's rows, so the partition
	// aborts instead.
	if err := p.refreshContext(ctx, lib, part); err != nil {
		res.Failed = true
		res.Err = fmt.Errorf("context refresh for %s: %w", part.Label(), err)
		p.Log.Error("Context refresh exhausted retries; aborting partition",
			zap.String("partition", part.Label()),
			zap.Error(err),
		)
		return res
	}

	// Phase 2. The empty-page counter is fresh for this partition and counts
	// raw candidates per page, before any filtering.
	consecutiveEmpty := 0
	threshold := p.Cfg.emptyThreshold()

	for page := 1; ; page++ {
		if p.stopped() {
			p.progress(fmt.Sprintf("partition %s: stop requested at page %d", part.Label(), page))
			break
		}
		if p.Cfg.MaxPages > 0 && page > p.Cfg.MaxPages {
			p.progress(fmt.Sprintf("partition %s: page bound %d reached", part.Label(), p.Cfg.MaxPages))
			break
		}
		if page > 1 {
			p.verifyPageTurn(ctx, lib)
		}

		body, err := p.fetchPage(ctx, lib, part, page, pageSize)
		if err != nil {
			res.Failed = true
			res.Err = fmt.Errorf("page %d of %s: %w", page, part.Label(), err)
			p.Log.Error("Unrecoverable page fetch; keeping partial results",
				zap.String("partition", part.Label()),
				zap.Int("page", page),
				zap.Int("collected", len(res.Records)),
				zap.Error(err),
			)
			break
		}
		res.Pages++
		metrics.ObservePage(part.CategoryCode)
		p.archivePage(ctx, part, page, body)

		raw, err := p.Lists.Parse(body, lib, part.CategoryName)
		if err != nil {
			p.Log.Warn("Listing parse failed; treating page as empty",
				zap.String("partition", part.Label()),
				zap.Int("page", page),
				zap.Error(err),
			)
			raw = nil
		}
		res.RawCount += len(raw)

		if len(raw) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= threshold {
				metrics.ObserveEmptyPageStop()
				p.progress(fmt.Sprintf("partition %s: %d consecutive empty pages, stopping at page %d",
					part.Label(), consecutiveEmpty, page))
				break
			}
			continue
		}
		consecutiveEmpty = 0

		p.processPage(ctx, part, raw, &res)
		p.progress(fmt.Sprintf("partition %s: page %d yielded %d candidates (%d accepted so far)",
			part.Label(), page, len(raw), res.Accepted))
	}

	p.reportAnomaly(part, &res)
	return res
}

// warmSession visits the library's landing page so a fresh session carries
// cookies into its first search POST. One warm-up per library lasts for the
// session's lifetime; a failed warm-up is retried on the next partition.
func (p *Pager) warmSession(ctx context.Context, lib source.Library) {
	w, ok := p.Fetcher.(warmer)
	if !ok {
		return
	}
	if p.warmed[lib.Menu] {
		return
	}
	if err := w.Warm(ctx, p.Site.AdvURL(lib), p.Site.PageHeaders(lib)); err != nil {
		p.Log.Warn("Session warm-up failed",
			zap.String("library", lib.Menu),
			zap.Error(err),
		)
		return
	}
	if p.warmed == nil {
		p.warmed = make(map[string]bool)
	}
	p.warmed[lib.Menu] = true
}

// refreshContext posts the grouped search that scopes the server session to
// (category, year), with bounded retries and backoff.
func (p *Pager) refreshContext(ctx context.Context, lib source.Library, part registry.Partition) error {
	req := registry.FetchRequest{
		Method:  http.MethodPost,
		URL:     p.Site.SearchURL(lib),
		Form:    source.RefreshForm(lib, part.CategoryCode, part.TargetYear),
		Headers: p.Site.SearchHeaders(lib),
	}
	_, err := p.fetchWithRetry(ctx, lib, req)
	return err
}

func (p *Pager) fetchPage(ctx context.Context, lib source.Library, part registry.Partition, page, pageSize int) ([]byte, error) {
	req := registry.FetchRequest{
		Method:  http.MethodPost,
		URL:     p.Site.SearchURL(lib),
		Form:    source.PageForm(lib, part.CategoryCode, part.TargetYear, page, pageSize),
		Headers: p.Site.SearchHeaders(lib),
	}
	resp, err := p.fetchWithRetry(ctx, lib, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// fetchWithRetry is the request-level transient-failure loop shared by both
// phases. Access-limit interstitials rotate the session before retrying.
func (p *Pager) fetchWithRetry(ctx context.Context, lib source.Library, req registry.FetchRequest) (registry.FetchResponse, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, err := p.Fetcher.Do(ctx, req)
		switch {
		case err != nil:
			lastErr = err
			p.Monitor.RecordRequest(false, "fetch error")
		case resp.StatusCode != http.StatusOK:
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			p.Monitor.RecordRequest(false, lastErr.Error())
		case fetch.IsAccessLimited(resp.Body):
			lastErr = errAccessLimited
			p.Monitor.RecordRequest(false, "access limited")
			p.rotateSession(ctx, lib)
		default:
			p.Monitor.RecordRequest(true, "")
			return resp, nil
		}

		if !p.Retry.ShouldRetry(lastErr, attempt) {
			return registry.FetchResponse{}, lastErr
		}
		if err := p.wait(ctx, p.Retry.Backoff(attempt)); err != nil {
			return registry.FetchResponse{}, err
		}
	}
}

// processPage runs the candidates of one page through enrichment,
// validation, and deduplication. The stop signal is polled between items;
// a failing item never aborts the page.
func (p *Pager) processPage(ctx context.Context, part registry.Partition, raw []registry.Record, res *registry.PartitionResult) {
	for i := range raw {
		if p.stopped() {
			return
		}
		rec := raw[i]
		if rec.NeedsDetailFetch {
			p.Enricher.Enrich(ctx, &rec)
		} else {
			rec.Status = registry.StatusEnriched
		}
		if !p.Validator.Validate(&rec, part) {
			res.Rejected++
			metrics.ObserveRecord(string(registry.StatusRejected))
			continue
		}
		if !p.Index.Admit(&rec) {
			res.Duplicates++
			metrics.ObserveRecord(string(registry.StatusDuplicate))
			continue
		}
		res.Accepted++
		metrics.ObserveRecord(string(registry.StatusAccepted))
		res.Records = append(res.Records, rec)
		p.Sink.OnRecord(rec)
	}
}

// verifyPageTurn is the server's pre-turn check. It is best effort: a
// failure is logged and the page fetch proceeds regardless.
func (p *Pager) verifyPageTurn(ctx context.Context, lib source.Library) {
	_, err := p.Fetcher.Do(ctx, registry.FetchRequest{
		Method:  http.MethodGet,
		URL:     p.Site.TurningLimitURL(),
		Headers: p.Site.PageHeaders(lib),
	})
	if err != nil {
		p.Log.Debug("Page-turn verification failed", zap.Error(err))
	}
}

func (p *Pager) rotateSession(ctx context.Context, lib source.Library) {
	rot, ok := p.Fetcher.(rotator)
	if !ok {
		return
	}
	if err := rot.Rotate(ctx, p.Site.AdvURL(lib), p.Site.PageHeaders(lib)); err != nil {
		p.Log.Warn("Session rotation failed", zap.Error(err))
	}
}

func (p *Pager) archivePage(ctx context.Context, part registry.Partition, page int, body []byte) {
	if p.Archive == nil {
		return
	}
	key := fmt.Sprintf("pages/%s/%d/page-%04d.html", part.CategoryCode, part.TargetYear, page)
	if _, err := p.Archive.Save(ctx, key, body); err != nil {
		p.Log.Warn("Page archive failed", zap.String("key", key), zap.Error(err))
	}
}

// reportAnomaly compares the raw yield against the discovery count. The
// expected count is advisory; a shortfall is logged, never acted on.
func (p *Pager) reportAnomaly(part registry.Partition, res *registry.PartitionResult) {
	if part.ExpectedCount <= 0 || res.Failed {
		return
	}
	tolerance := p.Cfg.ExpectedCountTolerance
	if tolerance <= 0 {
		tolerance = 0.1
	}
	floor := float64(part.ExpectedCount) * (1 - tolerance)
	if float64(res.RawCount) < floor {
		p.Log.Warn("Partition yield below expected count",
			zap.String("partition", part.Label()),
			zap.Int("expected", part.ExpectedCount),
			zap.Int("raw", res.RawCount),
		)
	}
}

func (p *Pager) stopped() bool {
	return p.Stop != nil && p.Stop()
}

func (p *Pager) progress(msg string) {
	if p.Sink != nil {
		p.Sink.OnProgress(msg)
	}
}

func (p *Pager) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
