package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vox-be/internal/address"
	"vox-be/internal/catalog"
	"vox-be/internal/config"
	"vox-be/internal/db"
	"vox-be/internal/logger"
	"vox-be/internal/metrics"
	"vox-be/internal/middleware"
	"vox-be/internal/notify"
	"vox-be/internal/order"
	"vox-be/internal/payment"
	"vox-be/internal/payment/webhook"
	"vox-be/internal/sequence"
	"vox-be/internal/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Overridable for tests.
var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

type routes struct {
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	orders  *order.Handler
	address *address.Handler
	webhook http.HandlerFunc
	health  http.HandlerFunc
}

func setupRouter(rt routes, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(rt.auth.Optional)
	r.Use(rt.limiter.Middleware)

	r.Get("/health", rt.health)
	r.Handle("/metrics", metrics.Handler())

	// guest checkout is allowed; a signed-in user is attached when present
	r.Post("/payment/intent", rt.orders.CreateIntent)
	r.Post("/order/create", rt.orders.Create)

	// raw body, signature checked by the handler
	r.Post("/payment/webhook", rt.webhook)

	r.Group(func(r chi.Router) {
		r.Use(rt.auth.Required)

		r.Get("/order/list", rt.orders.List)
		r.Get("/order/{sequentialId}", rt.orders.Get)

		r.Get("/user/address", rt.address.List)
		r.Post("/user/address", rt.address.Create)
	})

	return r
}

// healthHandler reports 503 when any dependency fails its ping.
func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}

		if len(failed) > 0 {
			logger.FromCtx(ctx).Warn("health check failed", zap.Any("failed", failed))
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "DEGRADED",
				"failed": failed,
			})
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}

type app struct {
	handler http.Handler
	closers []io.Closer
	stop    chan struct{}
}

func (a *app) Close() {
	close(a.stop)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}

func newServer(cfg *config.Config, database *sql.DB) *app {
	a := &app{stop: make(chan struct{})}
	checks := map[string]func(context.Context) error{
		"postgres": database.PingContext,
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		a.closers = append(a.closers, rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var lookup catalog.Lookup = catalog.NewRepository(database)
	if rdb != nil {
		lookup = catalog.NewCachedLookup(lookup, catalog.NewRedisCache(rdb, cfg.CatalogCacheTTL))
	}

	var seq sequence.Allocator = sequence.NewPostgresAllocator(sequence.OrderName, sequence.DefaultBase)
	if cfg.SequenceBackend == "redis" && rdb != nil {
		seq = sequence.NewRedisAllocator(rdb, sequence.OrderName, sequence.DefaultBase)
	}

	var publisher notify.Publisher = notify.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = notify.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
	}
	a.closers = append(a.closers, publisher)

	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		logger.L().Warn("razorpay credentials missing, online checkout will fail")
	}
	gateway := payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL, cfg.RazorpayTimeout)
	payments := payment.NewRepository(database)

	orderSvc := order.NewService(
		order.NewRepository(database, seq),
		payments,
		gateway,
		catalog.NewPricer(lookup),
		publisher,
		cfg.RazorpayKeySecret,
	)
	addressSvc := address.NewService(address.NewRepository(database))

	limiter := middleware.NewRateLimiter()
	go limiter.RunCleanup(time.Minute, a.stop)

	a.handler = setupRouter(routes{
		auth:    middleware.NewAuthenticator(cfg.JWTSecret),
		limiter: limiter,
		orders:  order.NewHandler(orderSvc),
		address: address.NewHandler(addressSvc),
		webhook: webhook.NewWebhookHandler(orderSvc, payments, cfg.RazorpayWebhookSecret).PaymentWebhookHandler,
		health:  healthHandler(checks),
	}, cfg.RequestTimeout)

	return a
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	a := newServer(cfg, database)
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server running", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
