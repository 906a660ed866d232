// Package discover determines which (year, expectedCount) partitions a
// category offers by reading the registry's year facet view.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/source"
)

var yearLinkExpr = regexp.MustCompile(`(\d{4})\s*\((\d+)\)`)

// YearCount is one entry of the facet: a publication year and the number of
// records the source reports for it.
type YearCount struct {
	Year  int
	Count int
}

// Discoverer reads a category's year facet and emits its partitions.
type Discoverer struct {
	Fetcher registry.Fetcher
	Site    source.Site
	Log     *zap.Logger
}

// Partitions returns every year the source reports for the category, newest
// first, with no recency cutoff. A failed discovery request returns an
// error so the caller reports it; it is never treated as "category empty".
func (d *Discoverer) Partitions(ctx context.Context, cat source.Category) ([]registry.Partition, error) {
	lib, mapped := source.LibraryFor(cat.Code)
	if !mapped {
		d.Log.Warn("No library mapping for category; using default",
			zap.String("category", cat.Code),
			zap.String("library", lib.Name),
		)
	}

	facetURL := d.Site.AdvURL(lib) + "?" + source.DiscoveryQuery(cat.Code).Encode()
	resp, err := d.Fetcher.Do(ctx, registry.FetchRequest{
		Method:  http.MethodGet,
		URL:     facetURL,
		Headers: d.Site.PageHeaders(lib),
	})
	if err != nil {
		return nil, fmt.Errorf("discover partitions for %s: %w", cat.Code, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discover partitions for %s: HTTP %d", cat.Code, resp.StatusCode)
	}

	years, err := ExtractYears(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discover partitions for %s: %w", cat.Code, err)
	}
	if len(years) == 0 {
		d.Log.Warn("Year facet yielded no partitions", zap.String("category", cat.Code))
	}

	partitions := make([]registry.Partition, 0, len(years))
	for _, yc := range years {
		partitions = append(partitions, registry.Partition{
			CategoryCode:  cat.Code,
			CategoryName:  cat.Name,
			TargetYear:    yc.Year,
			ExpectedCount: yc.Count,
			PageSize:      lib.PageSize,
		})
	}
	d.Log.Info("Discovered partitions",
		zap.String("category", cat.Code),
		zap.Int("years", len(partitions)),
	)
	return partitions, nil
}

// ExtractYears parses the facet markup. The year cluster block is looked up
// by cluster index, then by any year-shaped cluster link as a fallback.
func ExtractYears(body []byte) ([]YearCount, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse facet page: %w", err)
	}

	var years []YearCount
	for _, index := range []string{"6", "3"} {
		block := doc.Find(fmt.Sprintf(`div.block[cluster_index="%s"]`, index)).First()
		if block.Length() == 0 {
			continue
		}
		years = parseYearLinks(block.Find("a[cluster_code]"))
		if len(years) > 0 {
			break
		}
	}

	if len(years) == 0 {
		links := doc.Find("a[cluster_code]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			code := sel.AttrOr("cluster_code", "")
			return len(code) == 4 && isDigits(code)
		})
		years = parseYearLinks(links)
	}

	sort.Slice(years, func(a, b int) bool { return years[a].Year > years[b].Year })
	return years, nil
}

func parseYearLinks(links *goquery.Selection) []YearCount {
	var years []YearCount
	links.Each(func(_ int, sel *goquery.Selection) {
		m := yearLinkExpr.FindStringSubmatch(strings.TrimSpace(sel.Text()))
		if m == nil {
			return
		}
		year, _ := strconv.Atoi(m[1])
		count, _ := strconv.Atoi(m[2])
		years = append(years, YearCount{Year: year, Count: count})
	})
	return years
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
