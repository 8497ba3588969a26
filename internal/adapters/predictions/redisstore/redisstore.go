// Package redisstore reads published predictions from Redis.
//
// Layout: one hash per model variant and gameweek under
// predictions:{variant}:{gameweek} mapping player id to points, plus the set
// prediction_variants naming every variant that has a model.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/redis/go-redis/v9"
)

// VariantsKey is the set of variants with a trained model.
const VariantsKey = "prediction_variants"

// HashKey returns the hash holding the points of one variant and gameweek.
func HashKey(variant string, gameweek int) string {
	return fmt.Sprintf("predictions:%s:%d", variant, gameweek)
}

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements prediction.Provider on top of a Redis client.
type Store struct {
	rdb *redis.Client
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Predict returns the points stored for the player.
func (s *Store) Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error) {
	raw, err := s.rdb.HGet(ctx, HashKey(variant, gameweek), strconv.Itoa(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, s.missing(ctx, playerID, gameweek, variant)
	}
	if err != nil {
		return 0, fmt.Errorf("redis predict player %d: %w", playerID, err)
	}

	pts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("redis predict player %d: bad value %q: %w", playerID, raw, err)
	}
	return pts, nil
}

// missing decides whether an absent field means the player or the whole
// model is missing.
func (s *Store) missing(ctx context.Context, playerID, gameweek int, variant string) error {
	ok, err := s.rdb.SIsMember(ctx, VariantsKey, variant).Result()
	if err != nil {
		return fmt.Errorf("redis check variant %q: %w", variant, err)
	}
	if !ok {
		return fmt.Errorf("%w: variant %q", prediction.ErrModelUnavailable, variant)
	}
	return fmt.Errorf("%w: player %d gameweek %d", prediction.ErrPlayerNotFound, playerID, gameweek)
}

// Publish writes points for one variant and gameweek and registers the
// variant. The smoke tool and tests use it to seed data.
func (s *Store) Publish(ctx context.Context, variant string, gameweek int, points map[int]float64) error {
	fields := make(map[string]interface{}, len(points))
	for id, p := range points {
		fields[strconv.Itoa(id)] = strconv.FormatFloat(p, 'f', -1, 64)
	}
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, VariantsKey, variant)
	if len(fields) > 0 {
		pipe.HSet(ctx, HashKey(variant, gameweek), fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", HashKey(variant, gameweek), err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
