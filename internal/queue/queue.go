// Package queue is a small Redis-backed delayed job queue. Jobs live in a
// sorted set scored by the time they become due; running jobs are parked in a
// processing set so a crashed worker's jobs are redelivered after the
// visibility timeout. Jobs that exhaust their attempts land in a DLQ list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/blessed234640/snake-shop/internal/resilience"
)

// Job is a unit of asynchronous work.
type Job struct {
	Kind        string
	Payload     []byte
	DedupKey    string
	MaxAttempts int
	Delay       time.Duration
}

type envelope struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
}

// Enqueuer publishes jobs. MaxAttempts is the default budget for jobs that
// do not carry their own.
type Enqueuer struct {
	R           *redis.Client
	Prefix      string
	DedupTTL    time.Duration
	MaxAttempts int
}

// Enqueue adds the job to its kind's queue. With a DedupKey the job is
// enqueued at most once per deduplication window; a duplicate enqueue is a
// silent no-op.
func (e Enqueuer) Enqueue(ctx context.Context, job Job) error {
	if e.R == nil {
		return errors.New("queue: redis client not configured")
	}
	if job.Kind == "" {
		return errors.New("queue: job kind is required")
	}
	env := envelope{
		Kind:        job.Kind,
		Key:         job.DedupKey,
		Payload:     job.Payload,
		MaxAttempts: job.MaxAttempts,
		AvailableAt: time.Now().Add(job.Delay).UnixNano(),
	}
	if env.MaxAttempts <= 0 {
		env.MaxAttempts = e.MaxAttempts
	}
	if env.MaxAttempts <= 0 {
		env.MaxAttempts = 5
	}

	if env.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, dedupKey(e.Prefix, job.Kind, env.Key), "1", ttl).Result()
		if err != nil {
			return fmt.Errorf("queue dedup: %w", err)
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return e.R.ZAdd(ctx, readyKey(e.Prefix, job.Kind), redis.Z{
		Score:  float64(env.AvailableAt),
		Member: raw,
	}).Err()
}

// Worker consumes jobs of one kind until its context is cancelled.
type Worker struct {
	R           *redis.Client
	Prefix      string
	Kind        string
	Concurrency int
	Visibility  time.Duration
	RetryBase   time.Duration
	RetryJitter float64
	Handler     func(context.Context, Job) error
	Logger      zerolog.Logger
}

// Run blocks, polling the ready set and dispatching due jobs to the handler.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	if w.Kind == "" {
		return errors.New("queue: worker kind is required")
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	visibility := w.Visibility
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	retryBase := w.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}

	ready := readyKey(w.Prefix, w.Kind)
	processing := processingKey(w.Prefix, w.Kind)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	reaper := time.NewTicker(time.Second)
	defer reaper.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-reaper.C:
			if err := w.redeliverExpired(ctx, processing, ready); err != nil {
				return err
			}
		default:
		}

		popped, err := w.R.ZPopMin(ctx, ready, 1).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if err == redis.Nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return err
		}
		if len(popped) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		raw, ok := popped[0].Member.(string)
		if !ok {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			w.Logger.Error().Err(err).Str("kind", w.Kind).Msg("drop undecodable job")
			continue
		}

		now := time.Now().UnixNano()
		if env.AvailableAt > now {
			// Not due yet. Put it back and nap until it is, capped so
			// shutdown stays responsive.
			_ = w.R.ZAdd(ctx, ready, redis.Z{Score: float64(env.AvailableAt), Member: raw}).Err()
			nap := time.Duration(env.AvailableAt - now)
			if nap > time.Second {
				nap = time.Second
			}
			time.Sleep(nap)
			continue
		}

		env.Attempt++
		claimed, err := json.Marshal(env)
		if err != nil {
			continue
		}
		deadline := time.Now().Add(visibility).UnixNano()
		if err := w.R.ZAdd(ctx, processing, redis.Z{Score: float64(deadline), Member: claimed}).Err(); err != nil {
			return err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(claimed string, env envelope) {
			defer wg.Done()
			defer func() { <-sem }()
			job := Job{Kind: env.Kind, Payload: env.Payload, DedupKey: env.Key}
			if err := w.Handler(ctx, job); err != nil {
				w.Logger.Warn().Err(err).Str("kind", env.Kind).Int("attempt", env.Attempt).Msg("job failed")
				w.retryOrBury(ctx, ready, processing, claimed, env, retryBase)
				return
			}
			w.ack(ctx, processing, claimed, env)
			ProcessedTotal.WithLabelValues(env.Kind, "ok").Inc()
		}(string(claimed), env)
	}
}

func (w Worker) retryOrBury(ctx context.Context, ready, processing, claimed string, env envelope, base time.Duration) {
	_ = w.R.ZRem(ctx, processing, claimed).Err()
	if env.Attempt >= env.MaxAttempts {
		buried, err := json.Marshal(env)
		if err != nil {
			return
		}
		_ = w.R.LPush(ctx, dlqKey(w.Prefix, env.Kind), buried).Err()
		if env.Key != "" {
			_ = w.R.Del(ctx, dedupKey(w.Prefix, env.Kind, env.Key)).Err()
		}
		ProcessedTotal.WithLabelValues(env.Kind, "dead").Inc()
		w.Logger.Error().Str("kind", env.Kind).Int("attempt", env.Attempt).Msg("job moved to dlq")
		return
	}
	env.AvailableAt = time.Now().Add(resilience.Backoff(base, env.Attempt, w.RetryJitter)).UnixNano()
	requeued, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = w.R.ZAdd(ctx, ready, redis.Z{Score: float64(env.AvailableAt), Member: requeued}).Err()
	ProcessedTotal.WithLabelValues(env.Kind, "retry").Inc()
}

func (w Worker) ack(ctx context.Context, processing, claimed string, env envelope) {
	_ = w.R.ZRem(ctx, processing, claimed).Err()
	if env.Key != "" {
		_ = w.R.Del(ctx, dedupKey(w.Prefix, env.Kind, env.Key)).Err()
	}
}

func (w Worker) redeliverExpired(ctx context.Context, processing, ready string) error {
	now := fmt.Sprintf("%f", float64(time.Now().UnixNano()))
	expired, err := w.R.ZRangeByScore(ctx, processing, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, raw := range expired {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			_ = w.R.ZRem(ctx, processing, raw).Err()
			continue
		}
		_ = w.R.ZRem(ctx, processing, raw).Err()
		env.AvailableAt = time.Now().UnixNano()
		requeued, err := json.Marshal(env)
		if err != nil {
			continue
		}
		_ = w.R.ZAdd(ctx, ready, redis.Z{Score: float64(env.AvailableAt), Member: requeued}).Err()
	}
	return nil
}

// DLQLen reports the number of buried jobs for a kind.
func DLQLen(ctx context.Context, r *redis.Client, prefix, kind string) (int64, error) {
	return r.LLen(ctx, dlqKey(prefix, kind)).Result()
}

func readyKey(prefix, kind string) string {
	if prefix == "" {
		return "queue:" + kind
	}
	return prefix + ":queue:" + kind
}

func processingKey(prefix, kind string) string {
	if prefix == "" {
		return "queue:" + kind + ":processing"
	}
	return prefix + ":queue:" + kind + ":processing"
}

func dlqKey(prefix, kind string) string {
	if prefix == "" {
		return "queue:" + kind + ":dlq"
	}
	return prefix + ":queue:" + kind + ":dlq"
}

func dedupKey(prefix, kind, key string) string {
	if prefix == "" {
		return "queue:dedup:" + kind + ":" + key
	}
	return prefix + ":dedup:" + kind + ":" + key
}
