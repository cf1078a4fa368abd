// Package redislock implements the reservation slot guard as a Redis lease,
// for deployments whose MongoDB does not support transactions.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/tavola/services/table/internal/tables"
	"github.com/aquamarinepk/aqm"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "tavola:slot:"

// releaseScript deletes the lease only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Options struct {
	// TTL bounds how long a crashed holder can keep a branch locked.
	TTL time.Duration
	// Wait bounds how long a claim waits for the lease before giving up.
	Wait time.Duration
	Poll time.Duration
}

type Guard struct {
	client *redis.Client
	opts   Options
	logger aqm.Logger
}

func NewGuard(client *redis.Client, opts Options, logger aqm.Logger) *Guard {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 3 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = 25 * time.Millisecond
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Guard{client: client, opts: opts, logger: logger}
}

func (g *Guard) WithSlot(ctx context.Context, branchID uuid.UUID, fn func(ctx context.Context) error) error {
	key := keyPrefix + branchID.String()
	token := uuid.NewString()

	if err := g.acquire(ctx, key, token); err != nil {
		return err
	}
	defer g.release(key, token)

	return fn(ctx)
}

func (g *Guard) acquire(ctx context.Context, key, token string) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.opts.Wait)
	defer cancel()

	ticker := time.NewTicker(g.opts.Poll)
	defer ticker.Stop()

	for {
		ok, err := g.client.SetNX(waitCtx, key, token, g.opts.TTL).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return tables.ErrSlotBusy
			}
			return fmt.Errorf("cannot acquire slot lease: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return tables.ErrSlotBusy
		case <-ticker.C:
		}
	}
}

func (g *Guard) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, g.client, []string{key}, token).Err(); err != nil {
		g.logger.Error("cannot release slot lease", "key", key, "error", err)
	}
}
