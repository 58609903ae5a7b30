// Package sequence allocates the human-facing order number. Numbers are
// unique and strictly increasing across every server process; gaps are
// allowed, duplicates are not.
package sequence

import (
	"context"
	"fmt"

	"vox-be/internal/apperr"
	"vox-be/internal/db"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultBase = int64(13000)
	OrderName   = "order"
)

// Allocator hands out the next number. The querier lets the Postgres
// allocator run inside the caller's transaction; other backends ignore it.
type Allocator interface {
	Next(ctx context.Context, q db.Querier) (int64, error)
}

type PostgresAllocator struct {
	name string
	base int64
}

func NewPostgresAllocator(name string, base int64) *PostgresAllocator {
	return &PostgresAllocator{name: name, base: base}
}

// Next seeds the counter row if absent and increments it in one statement
// each. The UPDATE takes a row lock held until the caller's transaction ends,
// so concurrent finalizers serialise on the counter.
func (a *PostgresAllocator) Next(ctx context.Context, q db.Querier) (int64, error) {
	const seed = `
		INSERT INTO counters (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := q.ExecContext(ctx, seed, a.name, a.base-1); err != nil {
		return 0, apperr.Storage("seed sequence", err)
	}

	const incr = `
		UPDATE counters
		SET value = value + 1
		WHERE name = $1
		RETURNING value
	`
	var next int64
	if err := q.QueryRowContext(ctx, incr, a.name).Scan(&next); err != nil {
		return 0, apperr.Storage("increment sequence", err)
	}

	return next, nil
}

type RedisAllocator struct {
	client redis.Cmdable
	key    string
	base   int64
}

func NewRedisAllocator(client redis.Cmdable, name string, base int64) *RedisAllocator {
	return &RedisAllocator{client: client, key: fmt.Sprintf("seq:%s", name), base: base}
}

// Next uses SETNX for the first-ever seed and INCR for allocation; both are
// atomic on the server.
func (a *RedisAllocator) Next(ctx context.Context, _ db.Querier) (int64, error) {
	if err := a.client.SetNX(ctx, a.key, a.base-1, 0).Err(); err != nil {
		return 0, apperr.Storage("seed sequence", err)
	}

	next, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, apperr.Storage("increment sequence", err)
	}

	return next, nil
}
