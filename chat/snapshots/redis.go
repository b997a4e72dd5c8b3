// Package snapshots implements engine.SnapshotStore on Redis and in memory.
package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/logger"
)

const component = "snapshots"

// Config holds Redis connection settings.
type Config struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool { return c.Addr != "" }

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Error(ctx, component, "redis.connect.fail",
			slog.String("host", cfg.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, component, "redis.connect", slog.String("host", cfg.Addr), slog.Int("db", cfg.DB))
	return client, nil
}

// Redis stores one JSON document per user under prefix+id with a TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis builds a store; every write expires after ttl.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "tandem:session:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(id engine.UserID) string {
	return r.prefix + strconv.FormatInt(int64(id), 10)
}

// SaveSnapshot stores s as JSON under the user's key.
func (r *Redis) SaveSnapshot(ctx context.Context, s engine.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", s.User, err)
	}
	if err := r.client.Set(ctx, r.key(s.User), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %d: %w", s.User, err)
	}
	return nil
}

// DeleteSnapshot removes the user's key; a missing key is not an error.
func (r *Redis) DeleteSnapshot(ctx context.Context, id engine.UserID) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	return nil
}

// LoadSnapshots scans every key under the prefix. Undecodable entries are
// logged and skipped.
func (r *Redis) LoadSnapshots(ctx context.Context) ([]engine.Snapshot, error) {
	var out []engine.Snapshot
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var s engine.Snapshot
		if err := json.Unmarshal(b, &s); err != nil {
			logger.Warn(ctx, component, "snapshot.decode.fail",
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
			continue
		}
		out = append(out, s)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return out, nil
}
