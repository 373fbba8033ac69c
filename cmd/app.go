package cmd

import (
	"context"
	"fmt"

	"wagerledger/config"
	"wagerledger/database"
	"wagerledger/events"
	"wagerledger/games"
	"wagerledger/infrastructure"
	"wagerledger/infrastructure/observability"
	"wagerledger/lock"
	"wagerledger/repository"
	"wagerledger/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// App holds the wired services and the resources behind them
type App struct {
	Ledger    service.LedgerService
	Wagering  service.WageringService
	Blackjack service.BlackjackService
	Seeds     service.SeedService
	History   service.HistoryService

	db      *database.DB
	stores  []*lock.RedisStore
	nats    *infrastructure.NATSClient
	discord *discordgo.Session
	metrics *observability.MetricsProvider
}

// lockSettings maps lock configuration onto the service envelope
func lockSettings(cfg *config.Config) service.LockSettings {
	return service.LockSettings{
		TTL: cfg.LockTTL,
		Policy: lock.RetryPolicy{
			RetryCount: cfg.LockRetryCount,
			RetryDelay: cfg.LockRetryDelay,
			Timeout:    cfg.LockTimeout,
		},
	}
}

// NewApp connects every backing store and wires the services. Close must be
// called even when an error is returned.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	// Metrics first so every service records from the start
	app.metrics = observability.NewMetricsProvider(cfg)
	if err := app.metrics.Initialize(ctx); err != nil {
		return app, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), cfg.GetDatabasePoolOptions())
	if err != nil {
		return app, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db
	log.Info("Database connection established successfully")

	log.WithField("stores", len(cfg.RedisAddrs)).Info("Connecting to lock stores...")
	stores := make([]lock.Store, 0, len(cfg.RedisAddrs))
	for _, addr := range cfg.RedisAddrs {
		store, err := lock.DialRedisStore(ctx, addr, cfg.RedisPassword)
		if err != nil {
			return app, err
		}
		app.stores = append(app.stores, store)
		stores = append(stores, store)
	}
	locker, err := lock.NewCoordinator(stores, lock.WithStoreTimeout(cfg.LockStoreTimeout))
	if err != nil {
		return app, fmt.Errorf("failed to create lock coordinator: %w", err)
	}
	log.WithField("quorum", locker.Quorum()).Info("Lock coordinator ready")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	if cfg.NATSEnabled {
		if err := app.connectNATS(ctx, cfg, eventBus); err != nil {
			return app, err
		}
	}
	if cfg.DiscordToken != "" {
		if err := app.connectDiscord(cfg, eventBus); err != nil {
			return app, err
		}
	}

	settings := lockSettings(cfg)
	limits := service.StakeLimits{Min: cfg.MinStake, Max: cfg.MaxStake}

	log.Info("Initializing services...")
	app.Ledger = service.NewLedgerService(uowFactory, app.metrics)
	registry := games.NewRegistry(cfg.HouseEdges)
	app.Wagering = service.NewWageringService(uowFactory, locker, settings, registry, limits, app.metrics)
	app.Blackjack = service.NewBlackjackService(uowFactory, locker, settings, cfg.HouseEdges, limits, app.metrics)
	app.Seeds = service.NewSeedService(uowFactory, locker, settings, registry, app.metrics)
	app.History = service.NewHistoryService(uowFactory, service.HistoryLimits{
		Default: cfg.HistoryDefaultLimit,
		Max:     cfg.HistoryMaxLimit,
	}, nil)
	log.Info("Services initialized successfully")

	return app, nil
}

func (a *App) connectNATS(ctx context.Context, cfg *config.Config, bus *events.Bus) error {
	client := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	a.nats = client

	mapper := infrastructure.NewEventSubjectMapper()
	if err := infrastructure.EnsureEventStream(client, mapper); err != nil {
		return err
	}

	infrastructure.NewNATSEventPublisher(client, mapper, a.metrics.RecordNATSMessagePublished).Register(bus)
	log.Info("Forwarding events to NATS")
	return nil
}

func (a *App) connectDiscord(cfg *config.Config, bus *events.Bus) error {
	if cfg.DiscordAnnounceChannelID == "" {
		log.Warn("DISCORD_TOKEN set without DISCORD_ANNOUNCE_CHANNEL_ID, big-win announcements disabled")
		return nil
	}

	session, err := infrastructure.OpenDiscordSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	a.discord = session

	infrastructure.NewDiscordAnnouncer(session, cfg.DiscordAnnounceChannelID, cfg.BigWinMultiplier).Register(bus)
	log.WithField("channelID", cfg.DiscordAnnounceChannelID).Info("Announcing big wins to Discord")
	return nil
}

// Close releases everything NewApp opened
func (a *App) Close(ctx context.Context) {
	if a.discord != nil {
		if err := a.discord.Close(); err != nil {
			log.WithError(err).Error("Error closing Discord session")
		}
	}
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	for _, store := range a.stores {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("Error closing lock store")
		}
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Error shutting down metrics")
		}
	}
}
