package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/queue"
)

func setup(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEnqueueAndProcess(t *testing.T) {
	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte(`{"orderId":1}`), DedupKey: "1"}))

	done := make(chan []byte, 1)
	worker := queue.Worker{
		R:       client,
		Prefix:  "test",
		Kind:    "invoice",
		Logger:  zerolog.Nop(),
		Handler: func(_ context.Context, job queue.Job) error { done <- job.Payload; return nil },
	}
	go func() { _ = worker.Run(ctx) }()

	select {
	case payload := <-done:
		assert.JSONEq(t, `{"orderId":1}`, string(payload))
	case <-time.After(3 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestDedupSuppressesDuplicates(t *testing.T) {
	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte("a"), DedupKey: "order-7"}))
	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte("b"), DedupKey: "order-7"}))

	n, err := client.ZCard(ctx, "test:queue:invoice").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRetriesThenDLQ(t *testing.T) {
	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte("x"), DedupKey: "9", MaxAttempts: 2}))

	var attempts atomic.Int32
	worker := queue.Worker{
		R:           client,
		Prefix:      "test",
		Kind:        "invoice",
		RetryBase:   time.Millisecond,
		Logger:      zerolog.Nop(),
		Handler:     func(context.Context, queue.Job) error { attempts.Add(1); return errors.New("boom") },
		Concurrency: 1,
	}
	go func() { _ = worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := queue.DLQLen(ctx, client, "test", "invoice")
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())

	// Burial releases the dedup key so the order can be enqueued again.
	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte("x"), DedupKey: "9", MaxAttempts: 2}))
	n, err := client.ZCard(ctx, "test:queue:invoice").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEnqueuerDefaultAttemptBudget(t *testing.T) {
	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test", MaxAttempts: 1}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The job carries no budget of its own, so the enqueuer's applies.
	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte("x")}))

	var attempts atomic.Int32
	worker := queue.Worker{
		R:         client,
		Prefix:    "test",
		Kind:      "invoice",
		RetryBase: time.Millisecond,
		Logger:    zerolog.Nop(),
		Handler:   func(context.Context, queue.Job) error { attempts.Add(1); return errors.New("boom") },
	}
	go func() { _ = worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := queue.DLQLen(ctx, client, "test", "invoice")
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDelayedJobNotDeliveredEarly(t *testing.T) {
	client := setup(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, enq.Enqueue(ctx, queue.Job{Kind: "invoice", Payload: []byte("later"), Delay: 300 * time.Millisecond}))

	var handled atomic.Int32
	worker := queue.Worker{
		R:       client,
		Prefix:  "test",
		Kind:    "invoice",
		Logger:  zerolog.Nop(),
		Handler: func(context.Context, queue.Job) error { handled.Add(1); return nil },
	}
	go func() { _ = worker.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, handled.Load(), "delayed job must not run before it is due")

	require.Eventually(t, func() bool { return handled.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
}
