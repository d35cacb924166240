package repository

import (
	"context"
	"sync"
	"time"

	"rentescrow/internal/domain"
	"rentescrow/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCacheRepository serves from primary until it fails, then from
// fallback, probing primary again once per recoveryInterval.
type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverCacheRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isDown {
		return true
	}
	if r.now().Sub(r.lastCheck) > recoveryInterval {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverCacheRepository) report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if r.isDown {
			r.logger.Info().Msg("Primary cache repository recovered")
		}
		r.isDown = false
		return
	}
	if !r.isDown {
		r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
	}
	r.isDown = true
	r.lastCheck = r.now()
}

// Down reports whether the fallback is currently in use.
func (r *FailoverCacheRepository) Down() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverCacheRepository) GetListing(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error) {
	if r.usePrimary() {
		listing, err := r.primary.GetListing(ctx, listingType, id)
		r.report(err)
		if err == nil {
			return listing, nil
		}
	}
	return r.fallback.GetListing(ctx, listingType, id)
}

func (r *FailoverCacheRepository) SetListing(ctx context.Context, listing *models.ResolvedListing) error {
	if r.usePrimary() {
		err := r.primary.SetListing(ctx, listing)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SetListing(ctx, listing)
}

// InvalidateListing clears both layers.
func (r *FailoverCacheRepository) InvalidateListing(ctx context.Context, listingType string, id int64) error {
	_ = r.fallback.InvalidateListing(ctx, listingType, id)
	if r.usePrimary() {
		err := r.primary.InvalidateListing(ctx, listingType, id)
		r.report(err)
		return err
	}
	return nil
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.report(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
