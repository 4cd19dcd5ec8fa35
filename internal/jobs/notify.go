package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// WakeChannel is the Redis pub/sub channel announcing new tasks.
const WakeChannel = "leadscout:jobs"

// Notifier tells workers that a task was enqueued. Workers also poll, so a
// lost notification only delays pickup.
type Notifier interface {
	Notify(ctx context.Context) error
}

// LocalNotifier wakes an in-process pool.
type LocalNotifier struct {
	pool *WorkerPool
}

func NewLocalNotifier(pool *WorkerPool) *LocalNotifier {
	return &LocalNotifier{pool: pool}
}

func (n *LocalNotifier) Notify(context.Context) error {
	if n.pool != nil {
		n.pool.Wake()
	}
	return nil
}

// NopNotifier is used when no worker runs in this process and Redis is not
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context) error { return nil }

// RedisNotifier publishes wake-ups for pools in other processes.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context) error {
	if err := n.client.Publish(ctx, WakeChannel, "1").Err(); err != nil {
		return fmt.Errorf("publish job wake-up: %w", err)
	}
	return nil
}

// Listen wakes pool on every message published to WakeChannel until ctx is
// done.
func Listen(ctx context.Context, client *redis.Client, pool *WorkerPool, logger *slog.Logger) error {
	sub := client.Subscribe(ctx, WakeChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", WakeChannel, err)
	}
	logger.Info("jobs: listening for wake-ups", "channel", WakeChannel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			pool.Wake()
		}
	}
}

// MultiNotifier fans out to several notifiers and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ Notifier = (*LocalNotifier)(nil)
	_ Notifier = (*RedisNotifier)(nil)
	_ Notifier = NopNotifier{}
	_ Notifier = MultiNotifier(nil)
)
