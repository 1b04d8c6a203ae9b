package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/pipeline"
	"affiliate_sheets/internal/ranking"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type FetchRequest struct {
	CategoryID string `json:"categoryId"`
	Limit      *int   `json:"limit"`
	MaxPages   *int   `json:"maxPages"`
}

func (r FetchRequest) apply(opts affiliate.FetchOptions) affiliate.FetchOptions {
	if r.CategoryID != "" {
		opts.CategoryID = r.CategoryID
	}
	if r.Limit != nil {
		opts.PageSize = *r.Limit
	}
	if r.MaxPages != nil {
		opts.MaxPages = *r.MaxPages
	}
	return opts
}

type FilterRequest struct {
	MinCommissionRate *float64 `json:"minCommissionRate"`
	MaxCommissionRate *float64 `json:"maxCommissionRate"`
	MinPrice          *float64 `json:"minPrice"`
	MaxPrice          *float64 `json:"maxPrice"`
	MinCommission     *float64 `json:"minCommission"`
	Limit             *int     `json:"limit"`
}

func (r FilterRequest) apply(c ranking.Criteria) ranking.Criteria {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.MinRate, r.MinCommissionRate)
	set(&c.MaxRate, r.MaxCommissionRate)
	set(&c.MinPrice, r.MinPrice)
	set(&c.MaxPrice, r.MaxPrice)
	set(&c.MinCommission, r.MinCommission)
	if r.Limit != nil {
		c.TopN = *r.Limit
	}
	return c
}

type RunRequest struct {
	FetchRequest
	FilterRequest
}

// OfferRequest asks for the affiliate offer of one product page.
type OfferRequest struct {
	ShopID string `json:"shopId" binding:"required"`
	ItemID string `json:"itemId" binding:"required"`
}

// OfferResponse carries either the offer or an error message.
type OfferResponse struct {
	Offer *affiliate.Listing `json:"offer,omitempty"`
	Error string             `json:"error,omitempty"`
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) Products(c *gin.Context) {
	entry, hit, err := s.svc.Listings(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load products")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, gin.H{
		"products":  nonNil(entry.Listings),
		"count":     len(entry.Listings),
		"fetchedAt": entry.FetchedAt,
	})
}

func (s *Server) FetchProducts(c *gin.Context) {
	var req FetchRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	start := s.now()
	listings, err := s.svc.Fetch(c.Request.Context(), req.apply(s.svc.Defaults().Fetch))
	if err != nil {
		log.Error().Err(err).Msg("Fetch request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Products fetched successfully",
		"count":       len(listings),
		"elapsedTime": fmt.Sprintf("%.2fs", s.now().Sub(start).Seconds()),
	})
}

func (s *Server) FilterProducts(c *gin.Context) {
	var req FilterRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	res, err := s.svc.Filter(c.Request.Context(), req.apply(ranking.DefaultCriteria()))
	if err != nil {
		log.Error().Err(err).Msg("Filter request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	res.Products = nonNil(res.Products)
	c.JSON(http.StatusOK, res)
}

func (s *Server) RunPipeline(c *gin.Context) {
	var req RunRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	opts := s.svc.Defaults()
	opts.Fetch = req.FetchRequest.apply(opts.Fetch)
	opts.Criteria = req.FilterRequest.apply(opts.Criteria)
	s.run(c, opts)
}

func (s *Server) Cron(c *gin.Context) {
	s.run(c, s.svc.Defaults())
}

func (s *Server) run(c *gin.Context, opts pipeline.Options) {
	res, err := s.svc.Run(c.Request.Context(), opts)
	if err != nil {
		c.JSON(runErrorStatus(err), gin.H{"error": err.Error(), "result": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message(), "result": res})
}

func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return http.StatusConflict
	case pipeline.FailedStage(err) == pipeline.StageFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cronSecret == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token != s.cronSecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) Offer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, OfferResponse{Error: "shopId and itemId are required"})
		return
	}

	offer, err := s.offers.GetOffer(c.Request.Context(), req.ShopID, req.ItemID)
	switch {
	case errors.Is(err, affiliate.ErrOfferNotFound):
		c.JSON(http.StatusNotFound, OfferResponse{Error: err.Error()})
	case errors.Is(err, affiliate.ErrInvalidID):
		c.JSON(http.StatusBadRequest, OfferResponse{Error: err.Error()})
	case err != nil:
		log.Error().Err(err).Str("shop_id", req.ShopID).Str("item_id", req.ItemID).Msg("Offer lookup failed")
		c.JSON(http.StatusBadGateway, OfferResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, OfferResponse{Offer: offer})
	}
}

func nonNil(listings []affiliate.Listing) []affiliate.Listing {
	if listings == nil {
		return []affiliate.Listing{}
	}
	return listings
}
