package affiliate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Listing is one affiliate product offer as returned by productOfferV2.
// Missing numeric fields are already zero by the time a Listing exists.
type Listing struct {
	ItemID               string    `json:"itemId"`
	Name                 string    `json:"name"`
	CommissionRate       float64   `json:"commissionRate"`
	SellerCommissionRate float64   `json:"sellerCommissionRate"`
	ShopeeCommissionRate float64   `json:"shopeeCommissionRate"`
	Commission           float64   `json:"commission"`
	Price                float64   `json:"price"`
	PriceMin             float64   `json:"priceMin"`
	PriceMax             float64   `json:"priceMax"`
	Sales                int64     `json:"sales"`
	RatingStar           float64   `json:"ratingStar"`
	ImageURL             string    `json:"imageUrl"`
	ShopID               string    `json:"shopId"`
	ShopName             string    `json:"shopName"`
	ProductLink          string    `json:"productLink"`
	OfferLink            string    `json:"offerLink"`
	CategoryIDs          []string  `json:"categoryIds"`
	FetchPage            int       `json:"fetchPage,omitempty"`
	FetchedAt            time.Time `json:"fetchedAt,omitempty"`
}

// RatePercent returns the commission rate as a percentage.
func (l Listing) RatePercent() float64 {
	return l.CommissionRate * 100
}

// MainCategory returns the first category id, or "" if the listing has none.
func (l Listing) MainCategory() string {
	if len(l.CategoryIDs) == 0 {
		return ""
	}
	return l.CategoryIDs[0]
}

// HasCategory reports whether the listing belongs to the given category.
// Both sides are normalized, so "100629" and 100629 compare equal.
func (l Listing) HasCategory(id string) bool {
	want := NormalizeID(id)
	if want == "" {
		return false
	}
	for _, c := range l.CategoryIDs {
		if c == want {
			return true
		}
	}
	return false
}

// NormalizeID renders numeric ids in canonical decimal form and trims
// everything else. It returns "" for blank input.
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// flexFloat accepts a JSON number, a numeric string, or null. Anything
// unparsable decodes to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid numeric value %s: %w", string(data), err)
	}
	*f = flexFloat(v)
	return nil
}

// flexID accepts an id encoded as a JSON string or number.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(NormalizeID(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = flexID(NormalizeID(n.String()))
	return nil
}

// offerNode is the wire shape of a productOfferV2 node. Every field is
// optional upstream; defaults are applied here and nowhere else.
type offerNode struct {
	ItemID               flexID    `json:"itemId"`
	ProductName          string    `json:"productName"`
	CommissionRate       flexFloat `json:"commissionRate"`
	SellerCommissionRate flexFloat `json:"sellerCommissionRate"`
	ShopeeCommissionRate flexFloat `json:"shopeeCommissionRate"`
	Commission           flexFloat `json:"commission"`
	Price                flexFloat `json:"price"`
	PriceMin             flexFloat `json:"priceMin"`
	PriceMax             flexFloat `json:"priceMax"`
	Sales                flexFloat `json:"sales"`
	RatingStar           flexFloat `json:"ratingStar"`
	ImageURL             string    `json:"imageUrl"`
	ShopID               flexID    `json:"shopId"`
	ShopName             string    `json:"shopName"`
	ProductLink          string    `json:"productLink"`
	OfferLink            string    `json:"offerLink"`
	ProductCatIDs        []flexID  `json:"productCatIds"`
}

func (n offerNode) toListing() Listing {
	var cats []string
	for _, c := range n.ProductCatIDs {
		if c != "" {
			cats = append(cats, string(c))
		}
	}
	return Listing{
		ItemID:               string(n.ItemID),
		Name:                 n.ProductName,
		CommissionRate:       float64(n.CommissionRate),
		SellerCommissionRate: float64(n.SellerCommissionRate),
		ShopeeCommissionRate: float64(n.ShopeeCommissionRate),
		Commission:           float64(n.Commission),
		Price:                float64(n.Price),
		PriceMin:             float64(n.PriceMin),
		PriceMax:             float64(n.PriceMax),
		Sales:                int64(n.Sales),
		RatingStar:           float64(n.RatingStar),
		ImageURL:             n.ImageURL,
		ShopID:               string(n.ShopID),
		ShopName:             n.ShopName,
		ProductLink:          n.ProductLink,
		OfferLink:            n.OfferLink,
		CategoryIDs:          cats,
	}
}

type PageInfo struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
}

type productOfferConnection struct {
	Nodes    []offerNode `json:"nodes"`
	PageInfo *PageInfo   `json:"pageInfo"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// envelope is the top-level GraphQL response.
type envelope struct {
	Data *struct {
		ProductOfferV2 *productOfferConnection `json:"productOfferV2"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Page is one decoded productOfferV2 page. Valid is false when the
// response lacked the data envelope, which callers treat as end-of-data.
type Page struct {
	Valid       bool
	Listings    []Listing
	HasNextPage bool
	Errors      []string
}

func (e envelope) toPage() *Page {
	page := &Page{}
	for _, ge := range e.Errors {
		page.Errors = append(page.Errors, ge.Message)
	}
	// partial data next to errors is still treated as end of data
	if len(page.Errors) > 0 || e.Data == nil || e.Data.ProductOfferV2 == nil {
		return page
	}
	conn := e.Data.ProductOfferV2
	page.Valid = true
	if conn.PageInfo != nil {
		page.HasNextPage = conn.PageInfo.HasNextPage
	}
	for _, n := range conn.Nodes {
		page.Listings = append(page.Listings, n.toListing())
	}
	return page
}
