// Package ledger records files whose records the sink has durably
// accepted but whose move to the processed directory is still pending.
//
// The file-move state transition is not crash-atomic with sink
// durability: a crash between the final flush and the move leaves the
// file in unprocessed and its records would be inserted again on
// restart. The ledger closes that window: a file is marked after the
// sink accepts its last record and before the move, and the mark is
// cleared once the move completes. A file still marked on re-encounter
// is moved straight to processed without touching the sink. Optional;
// the pipeline runs without one.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger tracks files whose records the sink has accepted but whose
// directory move is still pending.
type Ledger interface {
	// Seen reports whether the file carries a pending mark.
	Seen(ctx context.Context, file string) (bool, error)

	// Mark records that every record of the file reached the sink.
	Mark(ctx context.Context, file string) error

	// Clear removes the mark once the file has reached its terminal
	// directory.
	Clear(ctx context.Context, file string) error

	// Close releases resources.
	Close() error
}

// RedisConfig configures the Redis ledger backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all ledger keys
	Prefix string

	// TTL is the time-to-live for ledger keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "logsift:ledger:",
		TTL:      7 * 24 * time.Hour,
		Timeout:  5 * time.Second,
		PoolSize: 10,
	}
}

// RedisLedger stores the processed-file set in Redis.
type RedisLedger struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(cfg RedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ledger: connecting to redis: %w", err)
	}

	return &RedisLedger{cfg: cfg, client: client}, nil
}

func (l *RedisLedger) key(file string) string {
	return l.cfg.Prefix + file
}

// Seen implements Ledger.
func (l *RedisLedger) Seen(ctx context.Context, file string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	n, err := l.client.Exists(ctx, l.key(file)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: checking %s: %w", file, err)
	}
	return n > 0, nil
}

// Mark implements Ledger.
func (l *RedisLedger) Mark(ctx context.Context, file string) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	if err := l.client.Set(ctx, l.key(file), time.Now().UTC().Format(time.RFC3339), l.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("ledger: marking %s: %w", file, err)
	}
	return nil
}

// Clear implements Ledger.
func (l *RedisLedger) Clear(ctx context.Context, file string) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	if err := l.client.Del(ctx, l.key(file)).Err(); err != nil {
		return fmt.Errorf("ledger: clearing %s: %w", file, err)
	}
	return nil
}

// Close implements Ledger.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
