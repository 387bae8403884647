package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/google/uuid"
	goCache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// DefaultCacheTTL is used when the provider is built with a non-positive TTL.
const DefaultCacheTTL = 5 * time.Minute

// Store defines the DB methods needed to read the catalog.
// Satisfied by *database.Queries.
type Store interface {
	ListSpareParts(ctx context.Context, garageID uuid.UUID) ([]database.SparePart, error)
	ListLaborTypes(ctx context.Context, garageID uuid.UUID) ([]database.LaborType, error)
}

// Provider serves catalog snapshots per garage, cached in memory.
type Provider struct {
	store Store
	cache *goCache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewProvider creates a Provider.
func NewProvider(store Store, ttl time.Duration, log *logger.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Provider{
		store: store,
		cache: goCache.New(ttl, 2*ttl),
		ttl:   ttl,
		log:   log,
	}
}

func cacheKey(garageID uuid.UUID) string {
	return "catalog:" + garageID.String()
}

// Snapshot returns the garage's catalog, loading spare parts and labor types
// concurrently on a cache miss.
func (p *Provider) Snapshot(ctx context.Context, garageID uuid.UUID) (*Snapshot, error) {
	if v, ok := p.cache.Get(cacheKey(garageID)); ok {
		return v.(*Snapshot), nil
	}

	var (
		parts []database.SparePart
		labor []database.LaborType
	)
	wg := pool.New().WithContext(ctx).WithCancelOnError()
	wg.Go(func(ctx context.Context) error {
		var err error
		parts, err = p.store.ListSpareParts(ctx, garageID)
		if err != nil {
			return fmt.Errorf("list spare parts: %w", err)
		}
		return nil
	})
	wg.Go(func(ctx context.Context) error {
		var err error
		labor, err = p.store.ListLaborTypes(ctx, garageID)
		if err != nil {
			return fmt.Errorf("list labor types: %w", err)
		}
		return nil
	})
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	snap := NewSnapshot(
		lo.Map(parts, func(sp database.SparePart, _ int) SparePart {
			return SparePart{ID: sp.ID.String(), Name: sp.Name, Price: database.NumericToDecimal(sp.Price)}
		}),
		lo.Map(labor, func(lt database.LaborType, _ int) LaborType {
			return LaborType{ID: lt.ID.String(), Name: lt.Name, Cost: database.NumericToDecimal(lt.Cost)}
		}),
	)
	p.cache.Set(cacheKey(garageID), snap, p.ttl)
	p.log.Debugw("catalog loaded", "garage_id", garageID, "spare_parts", len(parts), "labor_types", len(labor))
	return snap, nil
}

// Invalidate drops the cached catalog of a garage.
func (p *Provider) Invalidate(garageID uuid.UUID) {
	p.cache.Delete(cacheKey(garageID))
}
