package affiliate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const DefaultEndpoint = "https://open-api.affiliate.shopee.co.th/graphql"

// ErrOfferNotFound is returned by GetOffer when the API has no offer for
// the requested shop/item pair.
var ErrOfferNotFound = errors.New("offer not found")

var ErrInvalidID = errors.New("shop id and item id must be numeric")

const offerFields = `
      nodes {
        itemId
        productName
        commissionRate
        sellerCommissionRate
        shopeeCommissionRate
        commission
        price
        priceMax
        priceMin
        productCatIds
        sales
        ratingStar
        imageUrl
        shopId
        shopName
        productLink
        offerLink
      }
      pageInfo {
        page
        limit
        hasNextPage
      }`

type Client struct {
	endpoint     string
	signer       *Signer
	http         *resty.Client
	apiCallCount int64
	apiCallMutex sync.Mutex
}

func NewClient(endpoint, appID, secret string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		signer:   NewSigner(appID, secret),
		http:     resty.New().SetHeader("Content-Type", "application/json"),
	}
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// ResetAPICallCount resets the API call counter to zero
func (c *Client) ResetAPICallCount() {
	c.apiCallMutex.Lock()
	c.apiCallCount = 0
	c.apiCallMutex.Unlock()
}

// FetchPage requests one page of the product offer listing.
func (c *Client) FetchPage(ctx context.Context, page, limit int) (*Page, error) {
	query := fmt.Sprintf("{\n  productOfferV2(limit: %d, page: %d) {%s\n  }\n}", limit, page, offerFields)
	return c.query(ctx, query)
}

// GetOffer looks up a single product offer by shop and item id.
func (c *Client) GetOffer(ctx context.Context, shopID, itemID string) (*Listing, error) {
	shopID, itemID = NormalizeID(shopID), NormalizeID(itemID)
	if !isDigits(shopID) || !isDigits(itemID) {
		return nil, fmt.Errorf("%w, got %q and %q", ErrInvalidID, shopID, itemID)
	}

	query := fmt.Sprintf("{\n  productOfferV2(shopId: %s, itemId: %s, limit: 1) {%s\n  }\n}", shopID, itemID, offerFields)
	page, err := c.query(ctx, query)
	if err != nil {
		return nil, err
	}
	if !page.Valid {
		if len(page.Errors) > 0 {
			return nil, fmt.Errorf("offer lookup failed: %s", strings.Join(page.Errors, "; "))
		}
		return nil, ErrOfferNotFound
	}
	if len(page.Listings) == 0 {
		return nil, ErrOfferNotFound
	}
	return &page.Listings[0], nil
}

func (c *Client) query(ctx context.Context, query string) (*Page, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	c.IncrementAPICall()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", c.signer.Authorization(payload)).
		SetBody(payload).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	log.Debug().
		Int("status_code", resp.StatusCode()).
		Dur("elapsed", resp.Time()).
		Int("body_length", len(resp.Body())).
		Msg("Received affiliate API response")

	if resp.IsError() {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.toPage(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
