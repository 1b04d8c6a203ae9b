package app

import (
	"context"
	"fmt"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/cache"
	"affiliate_sheets/internal/config"
	"affiliate_sheets/internal/notifications"
	"affiliate_sheets/internal/pipeline"
	"affiliate_sheets/internal/resolution"
	"affiliate_sheets/internal/retry"
	"affiliate_sheets/internal/sheets"

	"github.com/rs/zerolog/log"
)

// App holds the clients built from one configuration.
type App struct {
	Config       *config.Config
	Affiliate    *affiliate.Client
	Paginator    *affiliate.Paginator
	Orchestrator *pipeline.Orchestrator
	Cache        cache.Store
}

// New builds every client the commands need. The Sheets client is only
// created when publish is true, so fetch-only commands work without
// Google credentials.
func New(ctx context.Context, cfg *config.Config, publish bool) (*App, error) {
	log.Debug().Msg("Initializing clients")

	client := affiliate.NewClient(cfg.Affiliate.Endpoint, cfg.Affiliate.AppID, cfg.Affiliate.Secret)
	paginator := affiliate.NewPaginator(client, cfg.Affiliate.RequestsPerSecond)

	store, err := InitializeCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher pipeline.Publisher = unconfiguredPublisher{}
	if publish {
		sheetsClient, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsJSON, cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, err
		}
		publisher = sheets.NewPublisher(sheetsClient)
	}

	orch := pipeline.New(
		paginator,
		publisher,
		store,
		resolution.DefaultCategories,
		pipeline.OptionsFromConfig(cfg),
		pipeline.WithCacheMaxAge(cfg.Cache.MaxAge),
		pipeline.WithNotifier(InitializeNotificationClient(cfg)),
	)

	log.Debug().Msg("Clients initialized successfully")
	return &App{
		Config:       cfg,
		Affiliate:    client,
		Paginator:    paginator,
		Orchestrator: orch,
		Cache:        store,
	}, nil
}

// InitializeCache returns a Redis store when REDIS_URL is set and an
// in-memory store otherwise.
func InitializeCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.RedisURL == "" {
		log.Debug().Msg("Using in-memory listing cache")
		return cache.NewMemory(), nil
	}
	store, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.MaxAge)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(cfg *config.Config) *notifications.Client {
	n := cfg.Notify

	log.Debug().
		Bool("enabled", n.Enabled).
		Str("base_url", n.URL).
		Str("topic", n.Topic).
		Msg("Initializing notification client")

	client := notifications.NewClient(n.URL, n.Topic, n.Enabled, n.Priority, retry.Notification)

	if n.Enabled {
		log.Info().Str("topic", n.Topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}
	return client
}

// unconfiguredPublisher stands in for Sheets in commands that never
// publish.
type unconfiguredPublisher struct{}

func (unconfiguredPublisher) Publish(context.Context, sheets.Request) ([]sheets.TabResult, error) {
	return nil, fmt.Errorf("publishing is not configured for this command")
}
