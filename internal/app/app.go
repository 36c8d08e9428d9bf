// Package app wires configuration, storage, providers and HTTP together.
package app

import (
	"context"
	"log/slog"
	"time"

	"course-ledger/config"
	"course-ledger/database"
	adminapi "course-ledger/internal/api/admin"
	billingapi "course-ledger/internal/api/billing"
	checkoutapi "course-ledger/internal/api/checkout"
	"course-ledger/internal/api/earnings"
	stripewebhooks "course-ledger/internal/api/stripewebhook"
	usersapi "course-ledger/internal/api/users"
	routes "course-ledger/internal/app/http"
	"course-ledger/internal/app/http/middleware"
	"course-ledger/internal/infra/cache"
	"course-ledger/internal/infra/events"
	"course-ledger/internal/infra/payments"
	"course-ledger/internal/jobs"
	"course-ledger/internal/logging"
	"course-ledger/internal/services/checkout"
	"course-ledger/internal/services/ledger"
	"course-ledger/internal/services/payouts"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type App struct {
	Config  *config.Config
	DB      *gorm.DB
	Router  *gin.Engine
	Ledger  *ledger.Ledger
	Payouts *payouts.Workflow
	Gate    *checkout.Gate
	Jobs    *jobs.Manager
	Log     *slog.Logger

	closers []func() error
}

// PaymentsConfig picks the keys of the configured provider.
func PaymentsConfig(cfg *config.Config) payments.Config {
	pc := payments.Config{
		Provider: cfg.PaymentProvider,
		MockMode: cfg.PaymentMockMode,
		Timeout:  cfg.PaymentTimeout,
	}
	switch cfg.PaymentProvider {
	case payments.ProviderStripe:
		pc.KeySecret = cfg.StripeSecretKey
		pc.PublicKey = cfg.StripePublishableKey
	default:
		pc.KeyID = cfg.RazorpayKeyID
		pc.KeySecret = cfg.RazorpayKeySecret
		pc.PublicKey = cfg.RazorpayKeyID
		pc.BaseURL = cfg.RazorpayBaseURL
	}
	return pc
}

// Build opens the database and assembles every service. Redis and RabbitMQ
// are optional: when absent or unreachable the app runs without them.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.Init("course-ledger", cfg.LogFile, cfg.LogLevel)

	db, err := database.Open(cfg.DBURL, cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, Log: log}
	a.closers = append(a.closers, func() error { return database.Close(db) })

	if err := database.Migrate(db); err != nil {
		a.Close()
		return nil, err
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.RabbitMQURL != "" {
		rp, err := events.DialRabbit(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, finance events disabled", "error", err)
		} else {
			publisher = rp
			a.closers = append(a.closers, rp.Close)
		}
	}

	pc := PaymentsConfig(cfg)
	provider := payments.NewProvider(pc)
	if !provider.Configured() {
		log.Warn("payment provider keys not configured", "provider", provider.Name(), "mock_mode", pc.MockMode)
	}

	a.Ledger = ledger.New(db)
	a.Payouts = payouts.New(db, a.Ledger, publisher)

	opts := []checkout.Option{checkout.WithEvents(publisher), checkout.WithLogger(logging.New("checkout"))}
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		rdb, err := cache.Connect(pingCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, verification replay cache disabled", "error", err)
		} else {
			opts = append(opts, checkout.WithReplayCache(cache.NewVerifyStore(rdb, cfg.VerifyCacheTTL)))
			a.closers = append(a.closers, rdb.Close)
		}
	}
	a.Gate = checkout.NewGate(db, provider, pc, a.Ledger, opts...)
	a.Jobs = jobs.NewManager(a.Ledger, cfg.ReconcileCron)

	a.Router = a.router()
	return a, nil
}

func (a *App) router() *gin.Engine {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(a.Log))
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{a.Config.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Checkout: checkoutapi.NewHandler(a.Gate),
		Payments: billingapi.NewHandler(a.DB),
		Earnings: earnings.NewHandler(a.Ledger, a.Payouts),
		Admin:    adminapi.NewHandler(a.DB, a.Ledger, a.Payouts),
		Stripe:   stripewebhooks.NewHandler(a.Gate, a.Config.StripeWebhookSecret),
		Users:    usersapi.NewHandler(a.DB),
	}, a.Config.JWTSecret)
	return r
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
