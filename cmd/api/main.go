package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/cart"
	"github.com/blessed234640/snake-shop/internal/catalog"
	"github.com/blessed234640/snake-shop/internal/config"
	"github.com/blessed234640/snake-shop/internal/coupon"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/health"
	"github.com/blessed234640/snake-shop/internal/obs"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/payment"
	"github.com/blessed234640/snake-shop/internal/pricing"
	"github.com/blessed234640/snake-shop/internal/queue"
	"github.com/blessed234640/snake-shop/internal/recommender"
	"github.com/blessed234640/snake-shop/internal/resilience"
	"github.com/blessed234640/snake-shop/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "snake-shop-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.OTLPSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool := mustInitDatabase(ctx, cfg, logger, "snake-shop-api")
	defer pool.Close()

	runMigrations(cfg, logger)

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	table := currency.NewTable()
	engine := pricing.Engine{Table: table}
	validate := validator.New()

	catalogRepo := &catalog.Repo{Pool: pool}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Repo:         catalogRepo,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Table:        table,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	suggestions := recommender.Engine{R: redisClient, Prefix: cfg.QueueRedisPrefix}
	catalogHandler := &catalog.Handler{Service: catalogSvc, Suggest: suggestions}

	couponRepo := &coupon.Repo{Pool: pool}
	cartSvc := &cart.Service{
		Catalog: catalogRepo,
		Coupons: couponRepo,
		Engine:  engine,
		Logger:  logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	jobs := queue.Enqueuer{R: redisClient, Prefix: cfg.QueueRedisPrefix, DedupTTL: cfg.QueueDedupTTL, MaxAttempts: cfg.QueueMaxAttempts}
	orderRepo := &order.Repo{Pool: pool}
	orderSvc := &order.Service{
		Repo:        orderRepo,
		Cart:        cartSvc,
		Engine:      engine,
		Recommender: suggestions,
		Jobs:        jobs,
		Logger:      logger,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Table: table, Validate: validate}

	stripe := payment.Stripe{
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{},
			Breaker:     resilience.NewBreaker(5, 30*time.Second, "stripe", logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: cfg.OutboundAttempts,
			Jitter:      0.2,
			Timeout:     cfg.OutboundTimeout,
		},
		APIBase:    cfg.StripeAPIBase,
		SecretKey:  cfg.StripeSecretKey,
		SuccessURL: cfg.PublicBaseURL + "/api/v1/payment/completed",
		CancelURL:  cfg.PublicBaseURL + "/api/v1/payment/canceled",
	}
	paymentSvc := &payment.Service{
		Orders:   orderRepo,
		Products: catalogRepo,
		Provider: stripe,
		Table:    table,
		Logger:   logger,
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc}
	paymentWebhook := payment.Webhook{
		Orders: orderRepo,
		Secret: cfg.StripeWebhookSecret,
		Jobs:   jobs,
		Logger: logger,
	}

	sessions := session.NewStore(redisClient, cfg.SessionTTL, cfg.QueueRedisPrefix+":session")

	buckets := obs.ParseBucketsCSV(cfg.MetricsBuckets)
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(currency.LocaleMiddleware(table, cfg.DefaultLocale))
	r.Use(session.Middleware(sessions, cfg.SessionCookieName, cfg.SessionTTL, logger))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.PprofUser != "" {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	healthHandler := health.Handler{
		Checker: health.Probes{Pool: pool, Redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)
		v.Get("/products/{slug}/related", catalogHandler.Related)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.AddItem)
			c.Delete("/items/{productID}", cartHandler.RemoveItem)
			c.Delete("/", cartHandler.Clear)
			c.Post("/coupon", cartHandler.ApplyCoupon)
			c.Delete("/coupon", cartHandler.RemoveCoupon)
		})

		v.Post("/orders", orderHandler.Create)
		v.Get("/orders/{orderID}", orderHandler.Get)

		v.Route("/payment", func(p chi.Router) {
			p.Post("/process/{orderID}", paymentHandler.Process)
			p.Get("/completed", paymentHandler.Completed)
			p.Get("/canceled", paymentHandler.Canceled)
			p.Post("/webhook", paymentWebhook.Handle)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-runCtx.Done()
	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("server shutdown complete")
}

func runMigrations(cfg *config.Config, logger zerolog.Logger) {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrations")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Error().Err(srcErr).Msg("close migration source")
	}
	if dbErr != nil {
		logger.Error().Err(dbErr).Msg("close migration db")
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
