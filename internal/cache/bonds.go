package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

const universeKey = "universe"

// BondCache memoizes the bond universe in process.
// Returned values are copies; callers may mutate them freely.
type BondCache struct {
	provider storage.BondUniverseProvider
	cache    *gocache.Cache
}

// NewBondCache wraps provider with an expiring in-memory cache.
func NewBondCache(provider storage.BondUniverseProvider, ttl time.Duration) *BondCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BondCache{
		provider: provider,
		cache:    gocache.New(ttl, 2*ttl),
	}
}

// ListBonds implements storage.BondUniverseProvider.
func (c *BondCache) ListBonds(ctx context.Context) ([]domain.BondMetadata, error) {
	if v, ok := c.cache.Get(universeKey); ok {
		return copyBonds(v.([]domain.BondMetadata)), nil
	}

	bonds, err := c.provider.ListBonds(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(universeKey, copyBonds(bonds), gocache.DefaultExpiration)
	return bonds, nil
}

// GetBond implements storage.BondUniverseProvider.
func (c *BondCache) GetBond(ctx context.Context, instrumentID string) (*domain.BondMetadata, error) {
	key := "bond:" + instrumentID
	if v, ok := c.cache.Get(key); ok {
		b := copyBond(v.(domain.BondMetadata))
		return &b, nil
	}

	b, err := c.provider.GetBond(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, copyBond(*b), gocache.DefaultExpiration)
	return b, nil
}

// Flush drops every cached entry.
func (c *BondCache) Flush() {
	c.cache.Flush()
}

func copyBonds(in []domain.BondMetadata) []domain.BondMetadata {
	out := make([]domain.BondMetadata, len(in))
	for i := range in {
		out[i] = copyBond(in[i])
	}
	return out
}

func copyBond(b domain.BondMetadata) domain.BondMetadata {
	if b.MaturityDate != nil {
		m := *b.MaturityDate
		b.MaturityDate = &m
	}
	return b
}

var _ storage.BondUniverseProvider = (*BondCache)(nil)
