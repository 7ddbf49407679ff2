package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/relaycrm/relaycrm/internal/api"
	"github.com/relaycrm/relaycrm/internal/api/cron"
	v1 "github.com/relaycrm/relaycrm/internal/api/v1"
	"github.com/relaycrm/relaycrm/internal/billing"
	"github.com/relaycrm/relaycrm/internal/config"
	"github.com/relaycrm/relaycrm/internal/gateway"
	"github.com/relaycrm/relaycrm/internal/idempotency"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"
	"github.com/relaycrm/relaycrm/internal/repository"
	"github.com/relaycrm/relaycrm/internal/scheduler"
	"github.com/relaycrm/relaycrm/internal/service"
)

// @title RelayCRM Billing API
// @version 1.0
// @description Subscription billing lifecycle service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// Billing clock and idempotency ledger
			provideClock,
			provideLedger,

			// Repositories
			repository.NewClientRepository,
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,

			// Gateway adapters
			provideGatewayAdapters,

			// Services
			service.NewServiceParams,
			service.NewSubscriptionService,
			service.NewPaymentReconciler,

			// Scheduler
			scheduler.NewScheduler,

			// API
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func provideClock(cfg *config.Configuration) (*billing.Clock, error) {
	return billing.NewClockFromTimezone(cfg.Billing.Timezone)
}

func provideLedger(cfg *config.Configuration, log *logger.Logger) idempotency.Ledger {
	if cfg.Idempotency.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Infow("using redis idempotency ledger", "address", cfg.Redis.Address)
		return idempotency.NewRedisLedger(client, cfg.Idempotency.TTL)
	}

	log.Infow("using in-memory idempotency ledger", "ttl", cfg.Idempotency.TTL)
	return idempotency.NewMemoryLedger(cfg.Idempotency.TTL)
}

func provideGatewayAdapters(cfg *config.Configuration) []gateway.Adapter {
	return []gateway.Adapter{
		gateway.NewAsaasAdapter(cfg.Webhook.AsaasAccessToken),
		gateway.NewAbacatePayAdapter(cfg.Webhook.AbacatePaySecret),
	}
}

func provideHandlers(
	logger *logger.Logger,
	subscriptionService service.SubscriptionService,
	reconciler service.PaymentReconciler,
	adapters []gateway.Adapter,
	sched *scheduler.Scheduler,
) api.Handlers {
	return api.Handlers{
		Health:           v1.NewHealthHandler(logger),
		Subscription:     v1.NewSubscriptionHandler(subscriptionService, logger),
		Webhook:          v1.NewWebhookHandler(adapters, reconciler, logger),
		SubscriptionCron: cron.NewSubscriptionCronHandler(sched, logger),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	sched *scheduler.Scheduler,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return sched.Stop(ctx)
		},
	})
}
