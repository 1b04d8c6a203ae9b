package affiliate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// PageSource is anything that can return one page of listings.
type PageSource interface {
	FetchPage(ctx context.Context, page, limit int) (*Page, error)
}

type FetchOptions struct {
	// CategoryID keeps only listings in this category; "" keeps everything.
	CategoryID string
	PageSize   int
	MaxPages   int
}

const (
	DefaultPageSize = 50
	DefaultMaxPages = 5
)

func (o FetchOptions) withDefaults() FetchOptions {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	o.CategoryID = NormalizeID(o.CategoryID)
	return o
}

type Paginator struct {
	source  PageSource
	limiter *rate.Limiter
	now     func() time.Time
}

// NewPaginator paces page requests to at most perSecond; a non-positive
// value disables pacing.
func NewPaginator(source PageSource, perSecond float64) *Paginator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Paginator{source: source, limiter: limiter, now: time.Now}
}

// FetchAll walks pages starting at 1 until the source reports the last
// page, returns an empty or malformed page, or MaxPages is reached. A
// request error aborts the walk and discards what was accumulated.
func (p *Paginator) FetchAll(ctx context.Context, opts FetchOptions) ([]Listing, error) {
	opts = opts.withDefaults()

	log.Debug().
		Str("category_id", opts.CategoryID).
		Int("page_size", opts.PageSize).
		Int("max_pages", opts.MaxPages).
		Msg("Starting paginated fetch")

	var all []Listing
	for page := 1; page <= opts.MaxPages; page++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := p.now()
		resp, err := p.source.FetchPage(ctx, page, opts.PageSize)
		if err != nil {
			log.Error().Err(err).Int("page", page).Msg("Failed to fetch page")
			return nil, err
		}

		if resp == nil || !resp.Valid {
			ev := log.Warn().Int("page", page)
			if resp != nil && len(resp.Errors) > 0 {
				ev = ev.Str("errors", strings.Join(resp.Errors, "; "))
			}
			ev.Msg("Invalid listing response, treating as end of data")
			break
		}

		if len(resp.Listings) == 0 {
			log.Debug().Int("page", page).Msg("No listings on page")
			break
		}

		fetchedAt := p.now()
		kept := 0
		for _, l := range resp.Listings {
			if opts.CategoryID != "" && !l.HasCategory(opts.CategoryID) {
				continue
			}
			l.FetchPage = page
			l.FetchedAt = fetchedAt
			all = append(all, l)
			kept++
		}

		log.Debug().
			Int("page", page).
			Int("listings", len(resp.Listings)).
			Int("kept", kept).
			Bool("has_next_page", resp.HasNextPage).
			Dur("elapsed", fetchedAt.Sub(start)).
			Msg("Fetched page")

		if !resp.HasNextPage {
			break
		}
	}

	log.Info().
		Int("total", len(all)).
		Str("category_id", opts.CategoryID).
		Msg("Finished paginated fetch")
	return all, nil
}
