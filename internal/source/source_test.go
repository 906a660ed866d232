package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/registry-crawler/internal/source"
)

func TestLibraryForPrefixMapping(t *testing.T) {
	cases := []struct {
		code    string
		library string
		mapped  bool
	}{
		{"XM0701", "gddifang", true},
		{"XM0703", "gddifang", true},
		{"XU13", "regularation", true},
		{"XO0802", "gddigui", true},
		{"XO0803", "gddigui", true},
		{"XP08", "gdnormativedoc", true},
		{"ZZ99", "gddigui", false},
		{"", "gddigui", false},
	}
	for _, tc := range cases {
		lib, mapped := source.LibraryFor(tc.code)
		assert.Equal(t, tc.library, lib.Name, "code %q", tc.code)
		assert.Equal(t, tc.mapped, mapped, "code %q", tc.code)
	}
}

func TestNormativeLibraryUsesLargePages(t *testing.T) {
	lib, mapped := source.LibraryFor("XP08")
	require.True(t, mapped)
	assert.Equal(t, 100, lib.PageSize)

	lib, mapped = source.LibraryFor("XM0702")
	require.True(t, mapped)
	assert.Equal(t, 20, lib.PageSize)
}

func TestRefreshFormScopesCategoryAndYear(t *testing.T) {
	lib, _ := source.LibraryFor("XM0701")
	form := source.RefreshForm(lib, "XM0701", 2018)

	assert.Equal(t, ",,,XM0701,,,2018", form.Get("ClassCodeKey"))
	assert.Equal(t, "2018", form.Get("GroupValue"))
	assert.Equal(t, "3", form.Get("GroupByIndex"))
	assert.Equal(t, "Group", form.Get("ShowType"))
	assert.Equal(t, "gddifang", form.Get("Library"))
	assert.Equal(t, "dfxfg", form.Get("Menu"))
}

func TestPageFormTracksPreviousIndex(t *testing.T) {
	lib, _ := source.LibraryFor("XO0802")

	first := source.PageForm(lib, "XO0802", 2020, 1, lib.PageSize)
	assert.Equal(t, "1", first.Get("Pager.PageIndex"))
	assert.Equal(t, "", first.Get("OldPageIndex"))
	assert.Equal(t, "", first.Get("newPageIndex"))

	third := source.PageForm(lib, "XO0802", 2020, 3, lib.PageSize)
	assert.Equal(t, "3", third.Get("Pager.PageIndex"))
	assert.Equal(t, "2", third.Get("OldPageIndex"))
	assert.Equal(t, "3", third.Get("newPageIndex"))
	assert.Equal(t, ",,,XO0802,,,2020", third.Get("ClassCodeKey"))
}

func TestSiteURLs(t *testing.T) {
	site := source.Site{BaseURL: "https://registry.example.com"}
	lib, _ := source.LibraryFor("XU13")

	assert.Equal(t, "https://registry.example.com/sfjs/search/RecordSearch", site.SearchURL(lib))
	assert.Equal(t, "https://registry.example.com/sfjs/adv", site.AdvURL(lib))
	assert.Equal(t,
		"https://registry.example.com/regularation/abc123.html",
		site.DetailURL(lib, "abc123"))
}

func TestDetailHeadersRefererFollowsSubPath(t *testing.T) {
	site := source.Site{BaseURL: "https://registry.example.com", UserAgent: "ua"}

	h := site.DetailHeaders("https://registry.example.com/gddifang/abc.html")
	assert.Equal(t, "https://registry.example.com/dfxfg/adv", h.Get("Referer"))

	h = site.DetailHeaders("https://registry.example.com/gdnormativedoc/xyz.html")
	assert.Equal(t, "https://registry.example.com/fljs/adv", h.Get("Referer"))

	// Unknown sub-paths fall back to the generic advanced-search referer.
	h = site.DetailHeaders("https://registry.example.com/whatever/xyz.html")
	assert.Equal(t, "https://registry.example.com/china/adv", h.Get("Referer"))
}

func TestAbsoluteURL(t *testing.T) {
	site := source.Site{BaseURL: "https://registry.example.com"}
	assert.Equal(t, "https://x.test/a", site.AbsoluteURL("https://x.test/a"))
	assert.Equal(t, "https://registry.example.com/a/b", site.AbsoluteURL("/a/b"))
	assert.Equal(t, "https://registry.example.com/a/b", site.AbsoluteURL("a/b"))
}

func TestIsDetailURL(t *testing.T) {
	assert.True(t, source.IsDetailURL("https://registry.example.com/gddigui/id.html"))
	assert.False(t, source.IsDetailURL("https://registry.example.com/static/site.css"))
}

func TestCategoriesCatalogue(t *testing.T) {
	cats := source.Categories()
	require.Len(t, cats, 7)

	got, ok := source.CategoryByCode("XO0803")
	require.True(t, ok)
	assert.Equal(t, 2077, got.ExpectedCount)

	_, ok = source.CategoryByCode("nope")
	assert.False(t, ok)
}
