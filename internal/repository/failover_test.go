package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"rentescrow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetListing(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error) {
	args := m.Called(ctx, listingType, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResolvedListing), args.Error(1)
}

func (m *mockCache) SetListing(ctx context.Context, listing *models.ResolvedListing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *mockCache) InvalidateListing(ctx context.Context, listingType string, id int64) error {
	args := m.Called(ctx, listingType, id)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCacheRepository(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCacheRepository(primary, fallback, &logger)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		listing := &models.ResolvedListing{Type: models.ListingLandlord, ID: 1}
		primary.On("GetListing", ctx, models.ListingLandlord, int64(1)).Return(listing, nil).Once()

		got, err := repo.GetListing(ctx, models.ListingLandlord, 1)
		assert.NoError(t, err)
		assert.Equal(t, listing, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		listing := &models.ResolvedListing{Type: models.ListingAgent, ID: 2}
		primary.On("GetListing", ctx, models.ListingAgent, int64(2)).Return(nil, errors.New("fail")).Once()
		fallback.On("GetListing", ctx, models.ListingAgent, int64(2)).Return(listing, nil).Once()

		got, err := repo.GetListing(ctx, models.ListingAgent, 2)
		assert.NoError(t, err)
		assert.Equal(t, listing, got)
		assert.True(t, repo.Down())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackUntilRecoveryInterval", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "k", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "k", 10, time.Minute)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		listing := &models.ResolvedListing{Type: models.ListingHotel, ID: 3}
		primary.On("SetListing", ctx, listing).Return(errors.New("still fail")).Once()
		fallback.On("SetListing", ctx, listing).Return(nil).Once()

		assert.NoError(t, repo.SetListing(ctx, listing))
		assert.True(t, repo.Down())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("Recovery", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("CheckRateLimit", ctx, "k", 10, time.Minute).Return(false, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k", 10, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		assert.False(t, repo.Down())
		primary.AssertExpectations(t)
	})

	t.Run("InvalidateClearsBoth", func(t *testing.T) {
		fallback.On("InvalidateListing", ctx, models.ListingLandlord, int64(5)).Return(nil).Once()
		primary.On("InvalidateListing", ctx, models.ListingLandlord, int64(5)).Return(nil).Once()

		assert.NoError(t, repo.InvalidateListing(ctx, models.ListingLandlord, 5))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
