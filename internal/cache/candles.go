package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// DefaultCandleTTL is used when NewCandleCache receives a non-positive ttl.
const DefaultCandleTTL = time.Hour

// CandleCache is a read-through Redis cache in front of a storage.CandleSeriesProvider.
// Any Redis failure falls through to the provider; cache errors are never returned.
type CandleCache struct {
	client   *redis.Client
	provider storage.CandleSeriesProvider
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCandleCache wraps provider. client may be nil, in which case every call goes to provider.
func NewCandleCache(client *redis.Client, provider storage.CandleSeriesProvider, ttl time.Duration, logger *zap.Logger) *CandleCache {
	if ttl <= 0 {
		ttl = DefaultCandleTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandleCache{
		client:   client,
		provider: provider,
		ttl:      ttl,
		logger:   logger,
	}
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func candleKey(instrumentID string, from, to time.Time) string {
	return fmt.Sprintf("candles:%s:%s:%s", instrumentID,
		domain.DateOf(from).Format("20060102"), domain.DateOf(to).Format("20060102"))
}

// GetCandles implements storage.CandleSeriesProvider.
func (c *CandleCache) GetCandles(ctx context.Context, instrumentID string, from, to time.Time) ([]*domain.Candle, error) {
	if c.client == nil {
		return c.provider.GetCandles(ctx, instrumentID, from, to)
	}

	key := candleKey(instrumentID, from, to)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []*domain.Candle
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		c.logger.Warn("discarding malformed cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Debug("candle cache read failed", zap.String("key", key), zap.Error(err))
	}

	candles, err := c.provider.GetCandles(ctx, instrumentID, from, to)
	if err != nil {
		return nil, err
	}

	// Empty windows are not cached.
	if len(candles) > 0 {
		if payload, jsonErr := json.Marshal(candles); jsonErr == nil {
			if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
				c.logger.Debug("candle cache write failed", zap.String("key", key), zap.Error(setErr))
			}
		}
	}
	return candles, nil
}

// Invalidate removes every cached window of instrumentID.
func (c *CandleCache) Invalidate(ctx context.Context, instrumentID string) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, "candles:"+instrumentID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

var _ storage.CandleSeriesProvider = (*CandleCache)(nil)
