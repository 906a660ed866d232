package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/monitor"
	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/source"
)

// Content containers tried in order. The first whose text clears the length
// threshold wins.
var contentSelectors = []string{
	"div.content",
	"div.article-content",
	"div.text",
	"div.article",
	"div.main-content",
	"div.detail-content",
	"div.policy-content",
	"div.law-content",
}

// Markers of statute body text, used when no known container matches.
var bodyKeywords = []string{"第一条", "第一章", "总则"}

var whitespaceExpr = regexp.MustCompile(`\s+`)

// Enricher fetches a draft record's detail page and fills in content and
// corrected metadata. Total extraction failure yields empty content, never
// an error: the record proceeds through the pipeline marked enriched.
type Enricher struct {
	Fetcher          registry.Fetcher
	Site             source.Site
	Monitor          *monitor.Monitor
	MinContentLength int
	Log              *zap.Logger
}

// Enrich mutates rec in place and always leaves it in StatusEnriched.
func (e *Enricher) Enrich(ctx context.Context, rec *registry.Record) {
	rec.Status = registry.StatusEnriched
	if rec.DetailURL == "" {
		return
	}

	resp, err := e.Fetcher.Do(ctx, registry.FetchRequest{
		Method:  http.MethodGet,
		URL:     rec.DetailURL,
		Headers: e.Site.DetailHeaders(rec.DetailURL),
	})
	if err != nil {
		e.recordRequest(false, "fetch error")
		e.Log.Warn("Detail fetch failed",
			zap.String("url", rec.DetailURL),
			zap.Error(err),
		)
		return
	}
	if resp.StatusCode != http.StatusOK {
		e.recordRequest(false, fmt.Sprintf("HTTP %d", resp.StatusCode))
		e.Log.Warn("Detail fetch returned non-OK status",
			zap.String("url", rec.DetailURL),
			zap.Int("status", resp.StatusCode),
		)
		return
	}
	e.recordRequest(true, "")

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		e.Log.Warn("Detail parse failed", zap.String("url", rec.DetailURL), zap.Error(err))
		return
	}

	rec.Content = e.extractContent(doc)
	e.applyCorrectedMetadata(doc, rec)
}

func (e *Enricher) extractContent(doc *goquery.Document) string {
	minLen := e.MinContentLength
	if minLen <= 0 {
		minLen = 100
	}

	for _, selector := range contentSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if len([]rune(text)) >= minLen {
			return text
		}
	}

	var matched string
	doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len([]rune(text)) < 200 {
			return true
		}
		for _, kw := range bodyKeywords {
			if strings.Contains(text, kw) {
				matched = text
				return false
			}
		}
		return true
	})
	if matched != "" {
		return matched
	}

	doc.Find("nav, header, footer, script, style").Remove()
	return whitespaceExpr.ReplaceAllString(strings.TrimSpace(doc.Text()), " ")
}

// applyCorrectedMetadata prefers the detail view's title and publication
// date when the two layers disagree, and records the detail-declared year
// for cross-layer validation.
func (e *Enricher) applyCorrectedMetadata(doc *goquery.Document, rec *registry.Record) {
	if title := strings.TrimSpace(doc.Find("h2.title, h1.title, div.title h2, h1").First().Text()); title != "" {
		rec.Title = title
	}

	fields := doc.Find("div.fields, div.related-info, div.info").Text()
	if date := normalizeDate(fields); date != "" {
		rec.DeclaredYearDetail = yearOf(date)
		rec.PublicationDate = date
	}
}

func (e *Enricher) recordRequest(success bool, errorType string) {
	if e.Monitor != nil {
		e.Monitor.RecordRequest(success, errorType)
	}
}
