package listing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"rentescrow/internal/database"
	"rentescrow/internal/models"
	"rentescrow/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *database.DB
	registry *Registry
	cache    *repository.MemoryCacheRepository
	landlord *models.Listing
	agent    *models.Listing
	hotel    *models.Listing
	draft    *models.Listing
	room     *models.RoomType
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f := &fixture{db: db}

	f.landlord = &models.Listing{Kind: models.ListingLandlord, OwnerID: 10, Title: "Flat, Yaba", MonthlyRent: 50_000_00, LeaseTerm: "1_year", Status: models.ListingPublished,
		Bank: models.BankDetails{BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Landlord", Verified: true}}
	f.agent = &models.Listing{Kind: models.ListingAgent, OwnerID: 11, Title: "Duplex, Ikeja", MonthlyRent: 120_000_00, LeaseTerm: "6_months", Status: models.ListingPublished}
	f.hotel = &models.Listing{Kind: models.ListingHotel, OwnerID: 12, Title: "Lagoon Hotel", Status: models.ListingPublished}
	f.draft = &models.Listing{Kind: models.ListingLandlord, OwnerID: 10, Title: "Unfinished", MonthlyRent: 1}
	for _, l := range []*models.Listing{f.landlord, f.agent, f.hotel, f.draft} {
		require.NoError(t, db.CreateListing(ctx, l))
	}
	f.room = &models.RoomType{HotelID: f.hotel.ID, Name: "Deluxe", PricePerNight: 30_000_00}
	require.NoError(t, db.CreateRoomType(ctx, f.room))

	f.cache = repository.NewMemoryCacheRepository(time.Minute)
	f.registry = NewDefaultRegistry(db, f.cache, &logger)
	return f
}

func TestRegistryResolve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("Landlord", func(t *testing.T) {
		got, err := f.registry.Resolve(ctx, models.ListingLandlord, f.landlord.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), got.BeneficiaryID)
		assert.Equal(t, int64(50_000_00), got.MonthlyRent)
		assert.True(t, got.Bank.Payable())
	})

	t.Run("Agent", func(t *testing.T) {
		got, err := f.registry.Resolve(ctx, models.ListingAgent, f.agent.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(11), got.BeneficiaryID)
		assert.False(t, got.Bank.Complete())
	})

	t.Run("WrongKind", func(t *testing.T) {
		_, err := f.registry.Resolve(ctx, models.ListingAgent, f.landlord.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Unpublished", func(t *testing.T) {
		_, err := f.registry.Resolve(ctx, models.ListingLandlord, f.draft.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InvalidType", func(t *testing.T) {
		_, err := f.registry.Resolve(ctx, "castle_listing", 1)
		assert.ErrorIs(t, err, ErrInvalidListingType)
	})
}

func TestRegistryCaching(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.registry.Resolve(ctx, models.ListingLandlord, f.landlord.ID)
	require.NoError(t, err)

	// меняем банковские данные в обход кэша
	require.NoError(t, f.db.UpdateListingBank(ctx, f.landlord.ID, models.BankDetails{BankName: "Kuda", AccountNumber: "1", AccountName: "L"}))

	cached, err := f.registry.Resolve(ctx, models.ListingLandlord, f.landlord.ID)
	require.NoError(t, err)
	assert.Equal(t, "GTBank", cached.Bank.BankName)

	fresh, err := f.registry.ResolveFresh(ctx, models.ListingLandlord, f.landlord.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kuda", fresh.Bank.BankName)

	require.NoError(t, f.registry.Invalidate(ctx, models.ListingLandlord, f.landlord.ID))
	got, err := f.cache.GetListing(ctx, models.ListingLandlord, f.landlord.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistryRoomType(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rt, err := f.registry.RoomType(ctx, models.ListingHotel, f.hotel.ID, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_00), rt.PricePerNight)

	_, err = f.registry.RoomType(ctx, models.ListingHotel, f.hotel.ID+100, f.room.ID)
	assert.ErrorIs(t, err, ErrRoomTypeNotFound)

	_, err = f.registry.RoomType(ctx, models.ListingLandlord, f.landlord.ID, f.room.ID)
	assert.ErrorIs(t, err, ErrNoRoomTypes)
}

type failingCache struct {
	*repository.MemoryCacheRepository
}

func (failingCache) GetListing(context.Context, string, int64) (*models.ResolvedListing, error) {
	return nil, errors.New("cache down")
}

func TestRegistryCacheFailureIsBypassed(t *testing.T) {
	f := setup(t)
	logger := zerolog.New(io.Discard)
	reg := NewDefaultRegistry(f.db, failingCache{repository.NewMemoryCacheRepository(time.Minute)}, &logger)

	got, err := reg.Resolve(context.Background(), models.ListingHotel, f.hotel.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lagoon Hotel", got.Title)
}
