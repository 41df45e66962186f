package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletd/internal/auth"
	"github.com/congo-pay/walletd/internal/config"
	"github.com/congo-pay/walletd/internal/identity"
	"github.com/congo-pay/walletd/internal/ledger"
	"github.com/congo-pay/walletd/internal/middleware"
	"github.com/congo-pay/walletd/internal/notification"
	"github.com/congo-pay/walletd/internal/payments"
	"github.com/congo-pay/walletd/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers
	var store ledger.Store
	var identityRepo identity.Repository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, ledger.PostgresConfig{
			UnitTimeout: d.Cfg.UnitTimeout,
			LockTimeout: d.Cfg.LockTimeout,
		})
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache, "")
	}

	walletSvc := wallet.NewService(store, nil)
	identitySvc := identity.NewService(identityRepo, func(ctx context.Context, userID string) error {
		w, err := walletSvc.Provision(ctx, userID)
		if err != nil {
			return err
		}
		d.Logger.Info("wallet provisioned", slog.String("user_id", userID), slog.String("wallet_id", w.ID))
		return nil
	})
	walletSvc.SetDirectory(identitySvc)
	paymentSvc := payments.NewService(store, walletSvc, notifier, d.Logger)
	authSvc := auth.NewService(d.Cfg, identityRepo)

	authHandler := auth.NewHandler(identitySvc, authSvc, walletSvc)
	identityHandler := identity.NewHandler(identitySvc)
	paymentHandler := payments.NewHandler(paymentSvc)
	walletHandler := wallet.NewHandler(walletSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	RegisterSessionRoutes(protected, authHandler)
	RegisterWalletRoutes(protected, walletHandler)

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterPaymentRoutes(protected, paymentHandler, idempotency)

	return nil
}
