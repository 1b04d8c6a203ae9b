package server

import (
	"context"
	"time"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/cache"
	"affiliate_sheets/internal/pipeline"
	"affiliate_sheets/internal/ranking"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Service is the pipeline surface the HTTP handlers drive.
type Service interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
	Defaults() pipeline.Options
	Fetch(ctx context.Context, opts affiliate.FetchOptions) ([]affiliate.Listing, error)
	Listings(ctx context.Context) (cache.Entry, bool, error)
	Filter(ctx context.Context, c ranking.Criteria) (*pipeline.FilterResult, error)
}

type OfferLookup interface {
	GetOffer(ctx context.Context, shopID, itemID string) (*affiliate.Listing, error)
}

type Server struct {
	svc        Service
	offers     OfferLookup
	cronSecret string
	now        func() time.Time
}

func New(svc Service, offers OfferLookup, cronSecret string) *Server {
	return &Server{svc: svc, offers: offers, cronSecret: cronSecret, now: time.Now}
}

// Router registers every route on a new gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.Health)

	api := r.Group("/api")
	{
		api.GET("/products", s.Products)
		api.POST("/fetch", s.FetchProducts)
		api.POST("/filter", s.FilterProducts)
		api.POST("/run", s.RunPipeline)
		api.GET("/cron", s.requireCronSecret(), s.Cron)
		api.POST("/offer", s.Offer)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Handled request")
	}
}
