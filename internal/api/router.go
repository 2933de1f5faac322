package api

import (
	"net/http"

	"github.com/afripay/wallet-core/internal/api/handler"
	"github.com/afripay/wallet-core/internal/api/middleware"
	"github.com/afripay/wallet-core/internal/api/spec"
	"github.com/afripay/wallet-core/internal/config"
	"github.com/afripay/wallet-core/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *pgxpool.Pool
	redis  redis.Cmdable
	wallet *service.WalletService
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, wallet *service.WalletService) *Router {
	return &Router{
		cfg:    cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
		wallet: wallet,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	accountHandler := handler.NewAccountHandler(api.wallet)
	walletHandler := handler.NewWalletHandler(api.wallet)
	purchaseHandler := handler.NewPurchaseHandler(api.wallet)
	cardHandler := handler.NewCardHandler(api.wallet)
	transactionHandler := handler.NewTransactionHandler(api.wallet)

	// Operational surface
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.IdempotencyKeyMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Post("/v1/accounts", accountHandler.CreateAccount)
		r.Get("/v1/accounts/me", accountHandler.GetAccount)
		r.Put("/v1/accounts/me/device", accountHandler.RegisterDevice)

		r.Post("/v1/wallet/topup", walletHandler.TopUp)
		r.Post("/v1/wallet/transfer", walletHandler.Transfer)
		r.Post("/v1/wallet/loyalty/redeem", walletHandler.RedeemLoyalty)

		r.Post("/v1/purchases", purchaseHandler.Purchase)

		r.Post("/v1/cards", cardHandler.OrderCard)
		r.Post("/v1/cards/{id}/freeze", cardHandler.Freeze)
		r.Post("/v1/cards/{id}/unfreeze", cardHandler.Unfreeze)

		r.Get("/v1/transactions", transactionHandler.List)
		r.Get("/v1/transactions/{id}", transactionHandler.Get)
	})

	return r
}
