package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rentescrow/internal/models"
)

type memoryEntry struct {
	listing   *models.ResolvedListing
	expiresAt time.Time
}

const maxRateLimitKeys = 4096

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCacheRepository is the in-process fallback of RedisCacheRepository.
type MemoryCacheRepository struct {
	mu         sync.Mutex
	listings   map[string]memoryEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	return &MemoryCacheRepository{
		listings:   make(map[string]memoryEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryCacheRepository) GetListing(_ context.Context, listingType string, id int64) (*models.ResolvedListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := listingKey(listingType, id)
	entry, ok := r.listings[key]
	if !ok {
		return nil, nil
	}
	if r.now().After(entry.expiresAt) {
		delete(r.listings, key)
		return nil, nil
	}
	copied := *entry.listing
	return &copied, nil
}

func (r *MemoryCacheRepository) SetListing(_ context.Context, listing *models.ResolvedListing) error {
	if listing == nil {
		return fmt.Errorf("listing is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *listing
	r.listings[listingKey(listing.Type, listing.ID)] = memoryEntry{
		listing:   &copied,
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

func (r *MemoryCacheRepository) InvalidateListing(_ context.Context, listingType string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listings, listingKey(listingType, id))
	return nil
}

func (r *MemoryCacheRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		if len(r.rateLimits) >= maxRateLimitKeys {
			r.pruneRateLimits(now)
		}
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// pruneRateLimits drops finished windows; caller holds mu.
func (r *MemoryCacheRepository) pruneRateLimits(now time.Time) {
	for key, entry := range r.rateLimits {
		if now.After(entry.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
}
