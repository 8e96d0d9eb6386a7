package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bond-reversion-lab/internal/api"
	"bond-reversion-lab/internal/cache"
	"bond-reversion-lab/internal/config"
	"bond-reversion-lab/internal/params"
	"bond-reversion-lab/internal/storage"
	chstore "bond-reversion-lab/internal/storage/clickhouse"
	"bond-reversion-lab/internal/storage/memory"
	"bond-reversion-lab/internal/storage/migrations"
	pgstore "bond-reversion-lab/internal/storage/postgres"
)

// Backend names accepted in storage.backend and storage.candle_backend.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// PaperAccountID is the account seeded into the in-memory parameter store.
const PaperAccountID = "paper"

// Stores holds every store the commands use, plus the connections behind them.
type Stores struct {
	Bonds   storage.BondStore
	Candles storage.CandleStore
	Params  storage.ParameterStore
	Orders  storage.OrderStore
	Targets storage.SellTargetStore
	Trades  storage.TradeStore

	Pool       *pgstore.Pool
	ClickHouse *chstore.Conn
	Redis      *redis.Client

	cfg     config.Config
	closers []func()
}

// OpenStores connects the configured backends and runs migrations when enabled.
// Redis is optional: a connection failure is logged and the candle cache is disabled.
func OpenStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{cfg: cfg}

	switch cfg.Storage.Backend {
	case BackendMemory, "":
		s.Bonds = memory.NewBondStore()
		s.Params = memory.NewParameterStore(map[string]string{params.KeyAccountID: PaperAccountID})
		s.Orders = memory.NewOrderStore()
		s.Targets = memory.NewSellTargetStore()
		s.Trades = memory.NewTradeStore()
	case BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		s.Pool = pool
		s.closers = append(s.closers, pool.Close)

		if cfg.Storage.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				s.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		s.Bonds = pgstore.NewBondStore(pool)
		s.Params = pgstore.NewParameterStore(pool)
		s.Orders = pgstore.NewOrderStore(pool)
		s.Targets = pgstore.NewSellTargetStore(pool)
		s.Trades = pgstore.NewTradeStore(pool)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	switch cfg.Storage.CandleBackend {
	case BackendMemory, "":
		s.Candles = memory.NewCandleStore()
	case BackendClickHouse:
		conn, err := openClickHouse(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.ClickHouse = conn
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Candles = chstore.NewCandleStore(conn)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown candle backend %q", cfg.Storage.CandleBackend)
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, candle cache disabled", zap.Error(err))
		} else {
			s.Redis = client
			s.closers = append(s.closers, func() { _ = client.Close() })
		}
	}

	return s, nil
}

func openClickHouse(ctx context.Context, cfg config.Config) (*chstore.Conn, error) {
	if cfg.Storage.Migrate {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return conn, nil
	}
	return chstore.NewConn(ctx, cfg.ClickHouse.DSN)
}

// CandleProvider returns the candle store behind the Redis read-through cache.
// Without a Redis client the cache passes every call through.
func (s *Stores) CandleProvider(logger *zap.Logger) *cache.CandleCache {
	return cache.NewCandleCache(s.Redis, s.Candles, s.cfg.Redis.CandleTTL, logger)
}

// BondProvider returns the bond store behind the in-process TTL cache.
func (s *Stores) BondProvider() *cache.BondCache {
	return cache.NewBondCache(s.Bonds, s.cfg.Cache.BondTTL)
}

// Health returns a pinger per connected backend.
func (s *Stores) Health() map[string]api.Pinger {
	deps := make(map[string]api.Pinger)
	if s.Pool != nil {
		deps["postgres"] = s.Pool
	}
	if s.ClickHouse != nil {
		deps["clickhouse"] = s.ClickHouse
	}
	if s.Redis != nil {
		client := s.Redis
		deps["redis"] = api.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return deps
}

// Close releases every connection in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
