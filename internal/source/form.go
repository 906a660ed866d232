package source

import (
	"fmt"
	"net/url"
	"strconv"
)

// The grouped view clusters results by publication year when GroupByIndex
// is the year facet.
const yearGroupIndex = "3"

func baseForm(lib Library) url.Values {
	v := url.Values{}
	v.Set("Menu", lib.Menu)
	v.Set("Keywords", "")
	v.Set("SearchKeywordType", "Title")
	v.Set("MatchType", "Exact")
	v.Set("RangeType", "Piece")
	v.Set("Library", lib.Name)
	v.Set("ClassFlag", lib.Name)
	v.Set("GroupLibraries", "")
	v.Set("QueryOnClick", "False")
	v.Set("AfterSearch", "False")
	v.Set("pdfStr", "")
	v.Set("pdfTitle", "")
	v.Set("IsAdv", "True")
	v.Set("OrderByIndex", "0")
	v.Set("AdvSearchDic.Title", "")
	v.Set("AdvSearchDic.CheckFullText", "")
	v.Set("AdvSearchDic.IssueDepartment", "")
	v.Set("AdvSearchDic.DocumentNO", "")
	v.Set("AdvSearchDic.IssueDate", "")
	v.Set("AdvSearchDic.ImplementDate", "")
	v.Set("AdvSearchDic.TimelinessDic", "")
	v.Set("AdvSearchDic.EffectivenessDic", "")
	v.Set("TitleKeywords", "")
	v.Set("FullTextKeywords", "")
	v.Set("QueryBase64Request", "")
	v.Set("VerifyCodeResult", "")
	v.Set("isEng", "chinese")
	return v
}

// classCodeKey scopes the search to a category and year. The server reads
// the category from segment 4 and the year from segment 7.
func classCodeKey(categoryCode string, year int) string {
	return fmt.Sprintf(",,,%s,,,%d", categoryCode, year)
}

// RefreshForm is the phase-1 payload. Posting it pins the server-side
// clustering context to (categoryCode, year) so subsequent page fetches
// return only that year's rows.
func RefreshForm(lib Library, categoryCode string, year int) url.Values {
	v := baseForm(lib)
	v.Set("ClassCodeKey", classCodeKey(categoryCode, year))
	v.Set("GroupByIndex", yearGroupIndex)
	v.Set("GroupValue", strconv.Itoa(year))
	v.Set("ShowType", "Group")
	v.Set("Pager.PageIndex", "1")
	v.Set("Pager.PageSize", strconv.Itoa(lib.PageSize))
	v.Set("OldPageIndex", "")
	v.Set("newPageIndex", "")
	return v
}

// PageForm is the phase-2 payload for one page. Pages are 1-based; for the
// first page the old/new index pair is left empty, matching the site's own
// pager widget.
func PageForm(lib Library, categoryCode string, year, pageIndex, pageSize int) url.Values {
	v := baseForm(lib)
	v.Set("ClassCodeKey", classCodeKey(categoryCode, year))
	v.Set("GroupByIndex", yearGroupIndex)
	v.Set("GroupValue", strconv.Itoa(year))
	v.Set("ShowType", "Group")
	v.Set("Pager.PageIndex", strconv.Itoa(pageIndex))
	v.Set("Pager.PageSize", strconv.Itoa(pageSize))
	if pageIndex > 1 {
		v.Set("OldPageIndex", strconv.Itoa(pageIndex-1))
		v.Set("newPageIndex", strconv.Itoa(pageIndex))
	} else {
		v.Set("OldPageIndex", "")
		v.Set("newPageIndex", "")
	}
	return v
}

// DiscoveryQuery is the query string for the year facet view of a category.
func DiscoveryQuery(categoryCode string) url.Values {
	v := url.Values{}
	v.Set("ClassCodeKey", categoryCode+",,,")
	return v
}
