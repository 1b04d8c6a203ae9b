package rows

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/ranking"
	"affiliate_sheets/internal/resolution"
	"affiliate_sheets/internal/sheets"
)

const (
	DefaultSummaryTop = 1
	DefaultTabTop     = 20
)

var (
	MasterHeader = []string{
		"Run Timestamp",
		"Product Name",
		"Commission Rate (%)",
		"Seller Commission (%)",
		"Shopee Commission (%)",
		"Commission (THB)",
		"Price (THB)",
		"Price Min",
		"Price Max",
		"Sales",
		"Rating",
		"Shop Name",
		"Product Link",
		"Categories",
	}

	SummaryHeader = []string{
		"Category ID",
		"Rank",
		"Product Name",
		"Commission Rate (%)",
		"Commission (THB)",
		"Price (THB)",
		"Sales",
		"Rating",
		"Product Link",
	}

	TabHeader = []string{
		"Rank",
		"Product Name",
		"Commission Rate (%)",
		"Commission (THB)",
		"Price (THB)",
		"Sales",
		"Rating",
		"Shop Name",
		"Product Link",
	}
)

// Percent renders a fractional rate as a percentage with two decimals.
func Percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 2, 64)
}

// Master builds one row per listing, every row stamped with runAt.
func Master(listings []affiliate.Listing, runAt time.Time, namer resolution.Namer) sheets.Table {
	stamp := runAt.Format(time.RFC3339)
	body := make([][]interface{}, 0, len(listings))
	for _, l := range listings {
		body = append(body, []interface{}{
			stamp,
			l.Name,
			Percent(l.CommissionRate),
			Percent(l.SellerCommissionRate),
			Percent(l.ShopeeCommissionRate),
			l.Commission,
			l.Price,
			l.PriceMin,
			l.PriceMax,
			l.Sales,
			l.RatingStar,
			l.ShopName,
			l.ProductLink,
			strings.Join(resolution.NameList(namer, l.CategoryIDs), ", "),
		})
	}
	return sheets.Table{Header: MasterHeader, Body: body}
}

// CategorySummary lists the top k listings of every category a listing
// belongs to, categories in ascending id order.
func CategorySummary(listings []affiliate.Listing, k int) sheets.Table {
	if k <= 0 {
		k = DefaultSummaryTop
	}

	groups := groupBy(listings, func(l affiliate.Listing) []string { return l.CategoryIDs })

	var body [][]interface{}
	for _, id := range sortedKeys(groups) {
		for i, l := range topOf(groups[id], k) {
			body = append(body, []interface{}{
				id,
				i + 1,
				l.Name,
				Percent(l.CommissionRate),
				l.Commission,
				l.Price,
				l.Sales,
				l.RatingStar,
				l.ProductLink,
			})
		}
	}
	return sheets.Table{Header: SummaryHeader, Body: body}
}

// CategoryTabs builds one tab per main category, titled by the category
// id and holding its top m listings.
func CategoryTabs(listings []affiliate.Listing, m int) []sheets.Tab {
	if m <= 0 {
		m = DefaultTabTop
	}

	groups := groupBy(listings, func(l affiliate.Listing) []string {
		if main := l.MainCategory(); main != "" {
			return []string{main}
		}
		return nil
	})

	tabs := make([]sheets.Tab, 0, len(groups))
	for _, id := range sortedKeys(groups) {
		top := topOf(groups[id], m)
		body := make([][]interface{}, 0, len(top))
		for i, l := range top {
			body = append(body, []interface{}{
				i + 1,
				l.Name,
				Percent(l.CommissionRate),
				l.Commission,
				l.Price,
				l.Sales,
				l.RatingStar,
				l.ShopName,
				l.ProductLink,
			})
		}
		tabs = append(tabs, sheets.Tab{
			Range: id + "!A1",
			Table: sheets.Table{Header: TabHeader, Body: body},
		})
	}
	return tabs
}

// groupBy files each listing under every key returned for it, once per
// distinct key.
func groupBy(listings []affiliate.Listing, keys func(affiliate.Listing) []string) map[string][]affiliate.Listing {
	groups := make(map[string][]affiliate.Listing)
	for _, l := range listings {
		seen := make(map[string]bool)
		for _, raw := range keys(l) {
			id := affiliate.NormalizeID(raw)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			groups[id] = append(groups[id], l)
		}
	}
	return groups
}

func sortedKeys(groups map[string][]affiliate.Listing) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func topOf(listings []affiliate.Listing, n int) []affiliate.Listing {
	sorted := slices.Clone(listings)
	ranking.SortByRate(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
