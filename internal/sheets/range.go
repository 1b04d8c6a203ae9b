package sheets

import "strings"

// TitleFromRange extracts the tab title from an A1 range such as
// "DailyTop!A1" or "'Top Picks'!A1:Z".
func TitleFromRange(range_ string) string {
	title := strings.TrimSpace(range_)
	if i := strings.LastIndex(title, "!"); i >= 0 {
		title = title[:i]
	}
	if len(title) >= 2 && strings.HasPrefix(title, "'") && strings.HasSuffix(title, "'") {
		title = strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	return title
}

// QuoteTitle quotes a tab title for use in an A1 range.
func QuoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// CellRange returns the A1 range for cell inside the titled tab.
func CellRange(title, cell string) string {
	return QuoteTitle(title) + "!" + cell
}
