package ranking

import (
	"math"
	"slices"

	"affiliate_sheets/internal/affiliate"
)

const DefaultTopN = 20

// Criteria are the numeric bounds a listing must satisfy. Rates are
// percentages, so MinRate 10 means a commission rate of at least 0.10.
type Criteria struct {
	MinRate       float64
	MaxRate       float64
	MinPrice      float64
	MaxPrice      float64
	MinCommission float64
	TopN          int
}

// DefaultCriteria keeps everything and returns the top 20.
func DefaultCriteria() Criteria {
	return Criteria{
		MaxRate:  math.Inf(1),
		MaxPrice: math.Inf(1),
		TopN:     DefaultTopN,
	}
}

func (c Criteria) withDefaults() Criteria {
	if c.MaxRate == 0 {
		c.MaxRate = math.Inf(1)
	}
	if c.MaxPrice == 0 {
		c.MaxPrice = math.Inf(1)
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	return c
}

// Match reports whether l satisfies every bound in c.
func (c Criteria) Match(l affiliate.Listing) bool {
	c = c.withDefaults()
	rate := l.RatePercent()
	return rate >= c.MinRate && rate <= c.MaxRate &&
		l.Price >= c.MinPrice && l.Price <= c.MaxPrice &&
		l.Commission >= c.MinCommission
}

// Filter returns every listing matching c, sorted by commission rate
// descending. Ties keep their input order. The input is not modified.
func Filter(listings []affiliate.Listing, c Criteria) []affiliate.Listing {
	c = c.withDefaults()
	matched := make([]affiliate.Listing, 0, len(listings))
	for _, l := range listings {
		if c.Match(l) {
			matched = append(matched, l)
		}
	}
	SortByRate(matched)
	return matched
}

// Rank filters listings and truncates the result to c.TopN.
func Rank(listings []affiliate.Listing, c Criteria) []affiliate.Listing {
	c = c.withDefaults()
	matched := Filter(listings, c)
	if len(matched) > c.TopN {
		matched = matched[:c.TopN]
	}
	return matched
}

// SortByRate sorts in place by commission rate, highest first, stable.
func SortByRate(listings []affiliate.Listing) {
	slices.SortStableFunc(listings, func(a, b affiliate.Listing) int {
		switch {
		case a.CommissionRate > b.CommissionRate:
			return -1
		case a.CommissionRate < b.CommissionRate:
			return 1
		}
		return 0
	})
}

// Stats summarizes a set of matches.
type Stats struct {
	Total          int     `json:"total"`
	AverageRatePct float64 `json:"averageCommissionRate"`
	HighestRatePct float64 `json:"highestCommissionRate"`
	AveragePrice   float64 `json:"averagePrice"`
}

func Summarize(listings []affiliate.Listing) Stats {
	s := Stats{Total: len(listings)}
	if len(listings) == 0 {
		return s
	}
	var rateSum, priceSum float64
	for _, l := range listings {
		rate := l.RatePercent()
		rateSum += rate
		priceSum += l.Price
		if rate > s.HighestRatePct {
			s.HighestRatePct = rate
		}
	}
	n := float64(len(listings))
	s.AverageRatePct = rateSum / n
	s.AveragePrice = priceSum / n
	return s
}
