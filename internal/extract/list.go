// Package extract turns fetched registry pages into records: listing pages
// into drafts, detail pages into enriched content.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/source"
)

var dateExpr = regexp.MustCompile(`(\d{4})[.\-](\d{1,2})[.\-](\d{1,2})`)

// ListParser extracts draft records from one listing page. It knows two
// structural shapes of the same page format: checkbox rows (the primary
// markup) and generic title containers (the fallback). The fallback is tried
// before a page is declared empty.
type ListParser struct {
	Site  source.Site
	Level string
	Log   *zap.Logger
}

// Parse returns the page's draft records in listing order. The raw length of
// the returned slice is what the pager's empty-page counter observes.
func (p *ListParser) Parse(body []byte, lib source.Library, categoryName string) ([]registry.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	records := p.fromCheckboxRows(doc, lib, categoryName)
	if len(records) == 0 {
		records = p.fromFallbackContainers(doc, categoryName)
	}
	return records, nil
}

func (p *ListParser) fromCheckboxRows(doc *goquery.Document, lib source.Library, categoryName string) []registry.Record {
	var records []registry.Record
	doc.Find(`input.checkbox[name='recordList']`).Each(func(_ int, sel *goquery.Selection) {
		block := sel.ParentsFiltered("div.block").First()
		if block.Length() == 0 {
			return
		}
		link := block.Find("div.list-title a").First()
		title := strings.TrimSpace(link.Text())

		detailURL := ""
		if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
			detailURL = p.Site.AbsoluteURL(strings.TrimSpace(href))
		} else if id := strings.TrimSpace(sel.AttrOr("value", "")); len(id) > 10 {
			detailURL = p.Site.DetailURL(lib, id)
		}

		if title == "" && detailURL == "" {
			p.Log.Debug("Skipping unparsable listing row", zap.String("category", categoryName))
			return
		}

		docNumber, pubDate := splitRelatedInfo(block.Find("div.related-info").First().Text())
		if pubDate == "" {
			pubDate = normalizeDate(block.Text())
		}
		records = append(records, p.newDraft(title, detailURL, docNumber, pubDate, categoryName, registry.OriginCheckbox))
	})
	return records
}

func (p *ListParser) fromFallbackContainers(doc *goquery.Document, categoryName string) []registry.Record {
	var records []registry.Record
	doc.Find("div.list-title").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		title := strings.TrimSpace(link.Text())
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if title == "" || href == "" {
			return
		}
		detailURL := p.Site.AbsoluteURL(href)
		if !source.IsDetailURL(detailURL) {
			return
		}
		pubDate := normalizeDate(sel.Parent().Text())
		records = append(records, p.newDraft(title, detailURL, "", pubDate, categoryName, registry.OriginFallback))
	})
	return records
}

// newDraft is the single constructor both extraction shapes converge on.
func (p *ListParser) newDraft(title, detailURL, docNumber, pubDate, categoryName string, origin registry.Origin) registry.Record {
	return registry.Record{
		Title:            title,
		DocumentNumber:   docNumber,
		PublicationDate:  pubDate,
		SourceLevel:      p.Level,
		Category:         categoryName,
		DetailURL:        detailURL,
		DeclaredYearList: yearOf(pubDate),
		NeedsDetailFetch: detailURL != "",
		Origin:           origin,
		Status:           registry.StatusDraft,
	}
}

// splitRelatedInfo parses the " / "-separated metadata line under a listing
// row, e.g. "valid / Decree No. 123 / 2020.03.15".
func splitRelatedInfo(info string) (docNumber, pubDate string) {
	for _, part := range strings.Split(strings.TrimSpace(info), " / ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if d := normalizeDate(part); d != "" {
			pubDate = d
			continue
		}
		if strings.Contains(part, "号") || strings.Contains(part, "No.") {
			docNumber = part
		}
	}
	return docNumber, pubDate
}

// normalizeDate finds the first dotted or dashed date in text and returns it
// as YYYY-MM-DD, or "" when no date is present.
func normalizeDate(text string) string {
	m := dateExpr.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	month := m[2]
	if len(month) == 1 {
		month = "0" + month
	}
	day := m[3]
	if len(day) == 1 {
		day = "0" + day
	}
	return m[1] + "-" + month + "-" + day
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
