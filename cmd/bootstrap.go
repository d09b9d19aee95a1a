package cmd

import (
	"fmt"

	"example.com/backstage/services/rental/internal/core"
	"example.com/backstage/services/rental/internal/infrastructure"
)

// runtime is the infrastructure a command runs against.
type runtime struct {
	db        *infrastructure.Database
	cache     *infrastructure.Cache
	messaging *infrastructure.Messaging
	services  *core.ServiceRegistry
}

type runtimeOptions struct {
	cache     bool
	messaging bool
}

// openRuntime connects to the database and, when asked, to Redis and
// Service Bus. Redis and Service Bus are optional: failures are logged and
// the services run without them.
func openRuntime(opts runtimeOptions) (*runtime, error) {
	logger.Info("Connecting to database...")
	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &runtime{db: db}

	deps := core.Dependencies{
		Store:  core.NewRepository(db.DB),
		Logger: logger,
		Settings: core.Settings{
			CommissionRate:         cfg.Pricing.CommissionRate,
			CancellationWindowDays: cfg.Booking.CancellationWindowDays,
			Tenancy: core.TenancySettings{
				DefaultRentDueDay:      cfg.Tenancy.DefaultRentDueDay,
				DefaultGracePeriodDays: cfg.Tenancy.DefaultGracePeriodDays,
				StatsCacheTTL:          cfg.Tenancy.StatsCacheTTL,
				DefaultCountryCode:     cfg.Tenancy.DefaultCountryCode,
			},
			TokenTTL:   cfg.Auth.TokenTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		},
	}

	if opts.cache && cfg.Redis.Addr != "" {
		logger.Info("Connecting to cache...")
		cache, err := infrastructure.NewCache(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Cache unavailable, continuing without it")
		} else {
			rt.cache = cache
			deps.Cache = cache
		}
	}

	if opts.messaging && cfg.ServiceBus.ConnectionString != "" {
		logger.Info("Connecting to messaging service...")
		messaging, err := infrastructure.NewMessaging(cfg.ServiceBus)
		if err != nil {
			logger.WithError(err).Warn("Messaging service unavailable, events stay in the outbox")
		} else {
			rt.messaging = messaging
			deps.Publisher = messaging
		}
	}

	rt.services = core.NewServiceRegistry(deps)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.messaging != nil {
		if err := rt.messaging.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close messaging client")
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close cache")
		}
	}
	if err := rt.db.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close database")
	}
}
