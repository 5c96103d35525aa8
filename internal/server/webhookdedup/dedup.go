// Package webhookdedup remembers which processor webhook events have been
// handled so redeliveries are acknowledged without reprocessing.
package webhookdedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateProcessing = "processing"
	stateDone       = "done"
)

// ErrInFlight means another worker is handling the same event right now.
var ErrInFlight = errors.New("webhook event is in-flight")

// RedisDeduper claims event ids with SETNX. A failed handler releases its
// claim so the processor's retry gets a fresh attempt.
type RedisDeduper struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	inFlightTTL time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{
		client:      client,
		prefix:      "stripe:event:",
		ttl:         ttl,
		inFlightTTL: 5 * time.Minute,
	}
}

// NewRedisClient connects and pings, failing fast on a bad address.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (d *RedisDeduper) key(eventID string) string {
	return d.prefix + eventID
}

// Do runs fn once per eventID. already is true when the event was handled
// before; fn is not called then.
func (d *RedisDeduper) Do(ctx context.Context, eventID string, fn func() error) (already bool, err error) {
	key := d.key(eventID)

	claimed, err := d.client.SetNX(ctx, key, stateProcessing, d.inFlightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if !claimed {
		state, err := d.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// claim expired between the two calls
			return d.Do(ctx, eventID, fn)
		}
		if err != nil {
			return false, fmt.Errorf("redis get: %w", err)
		}
		if state == stateDone {
			return true, nil
		}
		return false, ErrInFlight
	}

	if err := fn(); err != nil {
		if delErr := d.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			return false, errors.Join(err, fmt.Errorf("redis del: %w", delErr))
		}
		return false, err
	}

	if err := d.client.Set(context.WithoutCancel(ctx), key, stateDone, d.ttl).Err(); err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return false, nil
}

// Passthrough runs every event. Used when no Redis is configured; the
// credit ledger still keeps grants exactly-once.
type Passthrough struct{}

func (Passthrough) Do(_ context.Context, _ string, fn func() error) (bool, error) {
	return false, fn()
}
