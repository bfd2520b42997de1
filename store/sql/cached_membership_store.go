package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/classpilot/billing/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const membershipCacheKeyPrefix = "billing::membership::v1"

// CachedMembershipStore wraps a membership store with a read-through cache.
// Memberships are effectively immutable after launch and every webhook event
// resolves one by price id, which makes them the hottest read in the system.
type CachedMembershipStore struct {
	base  core.MembershipStore
	cache repositorycache.CacheService
}

func NewCachedMembershipStore(
	base core.MembershipStore,
	cacheService repositorycache.CacheService,
) (*CachedMembershipStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base membership store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: membership cache service is required")
	}
	return &CachedMembershipStore{base: base, cache: cacheService}, nil
}

// MembershipCacheKey returns the deterministic cache key contract for
// membership reads: billing::membership::v1::<field>::<value> with the value
// URL-path escaped.
func MembershipCacheKey(field, value string) (string, error) {
	field = strings.TrimSpace(strings.ToLower(field))
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return "", fmt.Errorf("sqlstore: membership cache key requires field and value")
	}
	return strings.Join([]string{membershipCacheKeyPrefix, field, url.PathEscape(value)}, "::"), nil
}

func (s *CachedMembershipStore) Create(ctx context.Context, membership core.Membership) (core.Membership, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	created, err := s.base.Create(ctx, membership)
	if err != nil {
		return core.Membership{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Membership{}, err
	}
	return created, nil
}

func (s *CachedMembershipStore) GetByID(ctx context.Context, id string) (core.Membership, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	cacheKey, err := MembershipCacheKey("id", id)
	if err != nil {
		return core.Membership{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Membership, error) {
		return s.base.GetByID(ctx, id)
	})
}

func (s *CachedMembershipStore) GetByPriceID(ctx context.Context, priceID string) (core.Membership, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	cacheKey, err := MembershipCacheKey("price_id", priceID)
	if err != nil {
		return core.Membership{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Membership, error) {
		return s.base.GetByPriceID(ctx, priceID)
	})
}

func (s *CachedMembershipStore) List(ctx context.Context, limit, offset int) ([]core.Membership, int, error) {
	if s == nil || s.base == nil {
		return nil, 0, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	return s.base.List(ctx, limit, offset)
}

func (s *CachedMembershipStore) invalidate(ctx context.Context, membership core.Membership) error {
	keys := make([]string, 0, 2)
	if key, err := MembershipCacheKey("id", membership.ID); err == nil {
		keys = append(keys, key)
	}
	if key, err := MembershipCacheKey("price_id", membership.PriceID); err == nil {
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ core.MembershipStore = (*CachedMembershipStore)(nil)
