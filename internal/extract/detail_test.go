package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/extract"
	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/source"
)

type fakeFetcher struct {
	status   int
	body     string
	err      error
	lastReq  registry.FetchRequest
	requests int
}

func (f *fakeFetcher) Do(_ context.Context, req registry.FetchRequest) (registry.FetchResponse, error) {
	f.lastReq = req
	f.requests++
	if f.err != nil {
		return registry.FetchResponse{}, f.err
	}
	status := f.status
	if status == 0 {
		status = 200
	}
	return registry.FetchResponse{URL: req.URL, StatusCode: status, Body: []byte(f.body)}, nil
}

func newEnricher(f *fakeFetcher) *extract.Enricher {
	return &extract.Enricher{
		Fetcher:          f,
		Site:             source.Site{BaseURL: "https://registry.example.com"},
		MinContentLength: 20,
		Log:              zap.NewNop(),
	}
}

func TestEnrichFillsContentFromKnownContainer(t *testing.T) {
	body := `<html><body>
<h2 class="title">Corrected Title</h2>
<div class="related-info">2020.03.15 公布</div>
<div class="content">` + strings.Repeat("正文内容 ", 20) + `</div>
</body></html>`
	f := &fakeFetcher{body: body}
	rec := registry.Record{
		Title:            "List Title",
		DetailURL:        "https://registry.example.com/gddifang/abc.html",
		NeedsDetailFetch: true,
		Status:           registry.StatusDraft,
	}

	newEnricher(f).Enrich(context.Background(), &rec)

	assert.Equal(t, registry.StatusEnriched, rec.Status)
	assert.NotEmpty(t, rec.Content)
	assert.Equal(t, "Corrected Title", rec.Title)
	assert.Equal(t, "2020", rec.DeclaredYearDetail)
	assert.Equal(t, "2020-03-15", rec.PublicationDate)
}

func TestEnrichSetsRefererBySubPath(t *testing.T) {
	f := &fakeFetcher{body: "<html></html>"}
	rec := registry.Record{DetailURL: "https://registry.example.com/gdnormativedoc/x.html"}

	newEnricher(f).Enrich(context.Background(), &rec)

	require.Equal(t, 1, f.requests)
	assert.Equal(t, "https://registry.example.com/fljs/adv", f.lastReq.Headers.Get("Referer"))
}

func TestEnrichKeywordFallback(t *testing.T) {
	body := `<html><body>
<div class="unknown-container">第一条 为了规范管理，制定本条例。` + strings.Repeat("本条例适用于全省。", 30) + `</div>
</body></html>`
	f := &fakeFetcher{body: body}
	rec := registry.Record{DetailURL: "https://registry.example.com/gddigui/x.html"}

	newEnricher(f).Enrich(context.Background(), &rec)
	assert.Contains(t, rec.Content, "第一条")
}

func TestEnrichTotalFailureLeavesEmptyContent(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	rec := registry.Record{
		Title:     "Still Here",
		DetailURL: "https://registry.example.com/gddifang/x.html",
		Status:    registry.StatusDraft,
	}

	newEnricher(f).Enrich(context.Background(), &rec)

	assert.Equal(t, registry.StatusEnriched, rec.Status, "failure must not stop the record")
	assert.Empty(t, rec.Content)
	assert.Equal(t, "Still Here", rec.Title)
}

func TestEnrichNonOKStatusLeavesEmptyContent(t *testing.T) {
	f := &fakeFetcher{status: 503, body: "busy"}
	rec := registry.Record{DetailURL: "https://registry.example.com/gddifang/x.html"}

	newEnricher(f).Enrich(context.Background(), &rec)
	assert.Equal(t, registry.StatusEnriched, rec.Status)
	assert.Empty(t, rec.Content)
}

func TestEnrichWithoutDetailURLIsANoop(t *testing.T) {
	f := &fakeFetcher{}
	rec := registry.Record{Title: "no detail"}

	newEnricher(f).Enrich(context.Background(), &rec)
	assert.Equal(t, 0, f.requests)
	assert.Equal(t, registry.StatusEnriched, rec.Status)
}
