package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"fitsync/internal/auth"
	"fitsync/internal/config"
	"fitsync/internal/domain"
	"fitsync/internal/publisher"
	"fitsync/internal/ratelimit"
	"fitsync/internal/service"
	"fitsync/internal/source/garmin"
	"fitsync/internal/source/strava"
	"fitsync/internal/storage/sqlstore"
	"fitsync/internal/transport"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	activities *sqlstore.ActivityStore
	cursors    *sqlstore.SyncStateStore
	tokens     *auth.Supply
	tokenStore *sqlstore.TokenStore
	limiter    *ratelimit.Limiter
	engine     *service.Engine
	publisher  *publisher.RabbitMQ
}

type appOptions struct {
	publisher bool
}

func newApp(configPath string, opts appOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	logger.Debug("connected to database", "driver", cfg.Database.Driver)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		activities: sqlstore.NewActivityStore(db),
		cursors:    sqlstore.NewSyncStateStore(db),
	}

	var pub service.Publisher
	if opts.publisher && cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.publisher = rabbitMQ
		pub = rabbitMQ
	}

	limits := make(map[domain.Provider]ratelimit.Limits)
	refreshers := make(map[domain.Provider]auth.Refresher)
	adapters := make(map[domain.Provider]service.ProviderAdapter)

	for _, p := range cfg.EnabledProviders() {
		pc, _ := cfg.Provider(p)

		limits[p] = ratelimit.Limits{
			ShortTermLimit:  pc.RateLimit.ShortTermLimit,
			ShortTermWindow: pc.RateLimit.ShortTermWindow,
			DailyLimit:      pc.RateLimit.DailyLimit,
			DailyWindow:     pc.RateLimit.DailyWindow,
		}

		clientCfg := transport.ClientConfig{
			Retry: transport.RetryConfig{
				MaxRetries:     pc.Retry.MaxRetries,
				BaseDelay:      pc.Retry.BaseDelay,
				MaxDelay:       pc.Retry.MaxDelay,
				AttemptTimeout: pc.Timeout,
			},
			Breaker: transport.BreakerConfig{
				ConsecutiveFailures: pc.CircuitBreaker.ConsecutiveFailures,
				OpenTimeout:         pc.CircuitBreaker.OpenTimeout,
				HalfOpenRequests:    pc.CircuitBreaker.HalfOpenRequests,
			},
		}

		refreshers[p] = auth.NewOAuthRefresher(auth.OAuthConfig{
			TokenURL:     pc.TokenURL,
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
		}, transport.NewClient(p.String()+"_oauth", nil, clientCfg, logger))

		httpClient := transport.NewClient(p.String(), nil, clientCfg, logger)

		switch p {
		case domain.ProviderStrava:
			adapters[p] = strava.New(strava.Config{BaseURL: pc.APIBaseURL}, httpClient, logger)
		case domain.ProviderGarmin:
			adapters[p] = garmin.New(garmin.Config{BaseURL: pc.APIBaseURL}, httpClient, logger)
		}
	}

	a.tokenStore = sqlstore.NewTokenStore(db)
	a.tokens = auth.NewSupply(a.tokenStore, refreshers, logger)
	a.limiter = ratelimit.New(limits, logger)

	txManager := sqlstore.NewTransactionManager(db)
	var services []*service.SyncService
	for _, p := range cfg.EnabledProviders() {
		pc, _ := cfg.Provider(p)
		services = append(services, service.NewSyncService(
			adapters[p],
			a.tokens,
			a.activities,
			a.cursors,
			a.limiter,
			txManager,
			pub,
			logger,
			pc.Sync,
		))
	}
	a.engine = service.NewEngine(a.tokens, a.cursors, a.activities, logger, services...)

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
