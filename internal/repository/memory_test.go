package repository

import (
	"context"
	"testing"
	"time"

	"rentescrow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRepository(t *testing.T) {
	repo := NewMemoryCacheRepository(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SetAndGetListing", func(t *testing.T) {
		listing := testListing()
		require.NoError(t, repo.SetListing(ctx, listing))

		got, err := repo.GetListing(ctx, models.ListingLandlord, 7)
		require.NoError(t, err)
		assert.Equal(t, listing, got)

		// возвращается копия
		got.Title = "changed"
		again, _ := repo.GetListing(ctx, models.ListingLandlord, 7)
		assert.Equal(t, "Studio, Lekki", again.Title)
	})

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		got, err := repo.GetListing(ctx, models.ListingLandlord, 7)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, repo.SetListing(ctx, testListing()))
		require.NoError(t, repo.InvalidateListing(ctx, models.ListingLandlord, 7))
		got, _ := repo.GetListing(ctx, models.ListingLandlord, 7)
		assert.Nil(t, got)
	})

	t.Run("NilListing", func(t *testing.T) {
		assert.Error(t, repo.SetListing(ctx, nil))
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := repo.CheckRateLimit(ctx, "u:1", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "u:1", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "u:1", 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, "u:1", 2, time.Second)
		assert.True(t, allowed)
	})
}
