// Package health aggregates dependency liveness checks for /healthz.
package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"roadbook/internal/platform/redis"
)

// Checker reports whether one dependency is reachable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

type PostgresChecker struct {
	pool *pgxpool.Pool
}

func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

func (c *PostgresChecker) Name() string { return "postgres" }

func (c *PostgresChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return c.pool.Ping(ctx)
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return c.client.Health(ctx)
}

// Status runs every checker and returns per-dependency results plus overall
// health.
func Status(ctx context.Context, checkers ...Checker) (map[string]string, bool) {
	results := make(map[string]string, len(checkers))
	healthy := true
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			results[c.Name()] = err.Error()
			healthy = false
			continue
		}
		results[c.Name()] = "ok"
	}
	return results, healthy
}
