// Package source owns the registry-specific request vocabulary: category
// tables, library routing, endpoint URLs, and form payloads. The engine
// itself only ever interprets category code, target year, page index, and
// page size; everything else lives here.
package source

import (
	"net/http"
	"net/url"
	"strings"
)

// Library is one search backend of the registry site. Menu doubles as the
// URL path segment and the Menu form field.
type Library struct {
	Menu     string
	Name     string
	PageSize int
}

// The normative-document library pages at 100 rows so deep categories stay
// inside the server's 500-page result window.
var libraries = map[string]Library{
	"dfxfg":  {Menu: "dfxfg", Name: "gddifang", PageSize: 20},
	"sfjs":   {Menu: "sfjs", Name: "regularation", PageSize: 20},
	"dfzfgz": {Menu: "dfzfgz", Name: "gddigui", PageSize: 20},
	"fljs":   {Menu: "fljs", Name: "gdnormativedoc", PageSize: 100},
}

// DefaultMenu is the documented fallback for category codes with no mapping.
const DefaultMenu = "dfzfgz"

var categoryMenuPrefixes = []struct {
	prefix string
	menu   string
}{
	{"XM07", "dfxfg"},
	{"XU13", "sfjs"},
	{"XO08", "dfzfgz"},
	{"XP08", "fljs"},
}

// LibraryFor resolves the library serving a category code by prefix match.
// The second return is false when the code had no mapping and the default
// library was substituted; callers log that degradation.
func LibraryFor(categoryCode string) (Library, bool) {
	for _, m := range categoryMenuPrefixes {
		if strings.HasPrefix(categoryCode, m.prefix) {
			return libraries[m.menu], true
		}
	}
	return libraries[DefaultMenu], false
}

// Category is one crawlable registry category. ExpectedCount is the
// historically observed corpus size, used only for anomaly reporting.
type Category struct {
	Name          string `json:"name"`
	Code          string `json:"code"`
	ExpectedCount int    `json:"expected_count"`
}

// Categories returns the full crawl catalogue in a stable order.
func Categories() []Category {
	return []Category{
		{Name: "provincial local regulations", Code: "XM0701", ExpectedCount: 859},
		{Name: "municipal local regulations", Code: "XM0702", ExpectedCount: 816},
		{Name: "special economic zone regulations", Code: "XM0703", ExpectedCount: 951},
		{Name: "autonomous and separate ordinances", Code: "XU13", ExpectedCount: 37},
		{Name: "provincial government rules", Code: "XO0802", ExpectedCount: 764},
		{Name: "municipal government rules", Code: "XO0803", ExpectedCount: 2077},
		{Name: "local normative documents", Code: "XP08", ExpectedCount: 40231},
	}
}

// CategoryByCode looks a category up in the catalogue.
func CategoryByCode(code string) (Category, bool) {
	for _, c := range Categories() {
		if c.Code == code {
			return c, true
		}
	}
	return Category{}, false
}

// Site holds the endpoints and framing headers of one registry deployment.
type Site struct {
	BaseURL   string
	UserAgent string
}

// SearchURL is the paged-search endpoint of a library.
func (s Site) SearchURL(lib Library) string {
	return s.BaseURL + "/" + lib.Menu + "/search/RecordSearch"
}

// AdvURL is the advanced-search landing page of a library. It seeds session
// cookies and serves the year facet view used by discovery.
func (s Site) AdvURL(lib Library) string {
	return s.BaseURL + "/" + lib.Menu + "/adv"
}

// TurningLimitURL is the page-turn verification endpoint consulted before
// requesting any page past the first.
func (s Site) TurningLimitURL() string {
	return s.BaseURL + "/VerificationCode/GetRecordListTurningLimit"
}

// SearchHeaders frames a search POST for a library.
func (s Site) SearchHeaders(lib Library) http.Header {
	h := s.commonHeaders()
	h.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Origin", s.BaseURL)
	h.Set("Referer", s.AdvURL(lib))
	return h
}

// PageHeaders frames a plain GET against a library page, such as the year
// facet view or the session warm-up.
func (s Site) PageHeaders(lib Library) http.Header {
	h := s.commonHeaders()
	h.Set("Referer", s.AdvURL(lib))
	return h
}

// DetailHeaders frames a detail GET. The referer depends on the detail
// URL's library sub-path because each sub-source expects its own framing.
func (s Site) DetailHeaders(detailURL string) http.Header {
	h := s.commonHeaders()
	h.Set("Referer", s.refererFor(detailURL))
	return h
}

func (s Site) refererFor(detailURL string) string {
	u, err := url.Parse(detailURL)
	if err != nil {
		return s.BaseURL + "/china/adv"
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) > 0 {
		for menu, lib := range libraries {
			if segments[0] == lib.Name {
				return s.BaseURL + "/" + menu + "/adv"
			}
		}
	}
	return s.BaseURL + "/china/adv"
}

func (s Site) commonHeaders() http.Header {
	h := http.Header{}
	if s.UserAgent != "" {
		h.Set("User-Agent", s.UserAgent)
	}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.Set("Connection", "keep-alive")
	return h
}

// DetailURL builds a detail page URL from a listing row's record identifier.
func (s Site) DetailURL(lib Library, recordID string) string {
	return s.BaseURL + "/" + lib.Name + "/" + recordID + ".html"
}

// AbsoluteURL resolves a listing href against the site base.
func (s Site) AbsoluteURL(href string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return s.BaseURL + href
	default:
		return s.BaseURL + "/" + href
	}
}

var validDetailPaths = []string{
	"/gddigui/", "/gdchinalaw/", "/gdfgwj/", "/gddifang/", "/regularation/", "/gdnormativedoc/",
}

// IsDetailURL reports whether a URL points at a record detail page rather
// than site chrome.
func IsDetailURL(raw string) bool {
	for _, p := range validDetailPaths {
		if strings.Contains(raw, p) {
			return true
		}
	}
	return false
}
