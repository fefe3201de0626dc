package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/common"
	"github.com/blessed234640/snake-shop/internal/config"
	"github.com/blessed234640/snake-shop/internal/currency"
	"github.com/blessed234640/snake-shop/internal/notify"
	"github.com/blessed234640/snake-shop/internal/obs"
	"github.com/blessed234640/snake-shop/internal/order"
	"github.com/blessed234640/snake-shop/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	mailer := notify.Mailer{
		Orders: &order.Repo{Pool: pool},
		Mail:   common.ConsoleEmail{Out: os.Stdout, From: cfg.NotifyEmailFrom},
		Table:  currency.NewTable(),
		Logger: logger,
	}

	invoiceWorker := queue.Worker{
		R:           redisClient,
		Prefix:      cfg.QueueRedisPrefix,
		Kind:        order.KindInvoiceEmail,
		Concurrency: cfg.QueueConcurrency,
		Visibility:  cfg.QueueVisibility,
		RetryBase:   cfg.QueueBackoffBase,
		RetryJitter: cfg.QueueJitterRatio,
		Handler:     mailer.HandleInvoice,
		Logger:      logger,
	}
	receiptWorker := queue.Worker{
		R:           redisClient,
		Prefix:      cfg.QueueRedisPrefix,
		Kind:        order.KindReceiptEmail,
		Concurrency: cfg.QueueConcurrency,
		Visibility:  cfg.QueueVisibility,
		RetryBase:   cfg.QueueBackoffBase,
		RetryJitter: cfg.QueueJitterRatio,
		Handler:     mailer.HandleReceipt,
		Logger:      logger,
	}

	logger.Info().Msg("worker starting")
	var wg sync.WaitGroup
	for _, w := range []queue.Worker{invoiceWorker, receiptWorker} {
		wg.Add(1)
		go func(w queue.Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("kind", w.Kind).Msg("worker stopped with error")
			}
		}(w)
	}
	wg.Wait()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "snake-shop-worker"

	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(initCtx); err != nil {
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
