package service

import (
	"context"
	"testing"
	"time"

	"rentescrow/internal/database"
	"rentescrow/internal/listing"
	"rentescrow/internal/models"
	"rentescrow/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingService(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	flat := &models.Listing{
		Kind:        models.ListingAgent,
		OwnerID:     3,
		Title:       "Mini flat, Surulere",
		MonthlyRent: 40_000,
		LeaseTerm:   "1_year",
		Status:      models.ListingPublished,
		Bank:        models.BankDetails{BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Agent Ltd", Verified: true},
	}
	require.NoError(t, db.CreateListing(ctx, flat))

	registry := listing.NewDefaultRegistry(db, repository.NewMemoryCacheRepository(time.Hour), &logger)
	svc := NewListingService(db, registry, &logger)

	warm := func(t *testing.T) *models.ResolvedListing {
		t.Helper()
		resolved, err := registry.Resolve(ctx, models.ListingAgent, flat.ID)
		require.NoError(t, err)
		return resolved
	}

	t.Run("BankDetailsReachCachedReads", func(t *testing.T) {
		warm(t)

		updated, err := svc.SetBankDetails(ctx, flat.ID, models.BankDetails{
			BankName: " Access Bank ", AccountNumber: "9876543210", AccountName: "Agent Ltd",
		})
		require.NoError(t, err)
		assert.Equal(t, "Access Bank", updated.Bank.BankName)
		assert.False(t, updated.Bank.Verified)

		resolved := warm(t)
		assert.Equal(t, "9876543210", resolved.Bank.AccountNumber)
		assert.False(t, resolved.Bank.Payable())
	})

	t.Run("UnpublishReachesCachedReads", func(t *testing.T) {
		warm(t)

		updated, err := svc.SetStatus(ctx, flat.ID, models.ListingDraft)
		require.NoError(t, err)
		assert.Equal(t, models.ListingDraft, updated.Status)

		_, err = registry.Resolve(ctx, models.ListingAgent, flat.ID)
		assert.ErrorIs(t, err, listing.ErrNotFound)

		_, err = svc.SetStatus(ctx, flat.ID, models.ListingPublished)
		require.NoError(t, err)
		warm(t)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, flat.ID, "archived")
		assert.Equal(t, KindValidation, KindOf(err))

		_, err = svc.SetBankDetails(ctx, flat.ID, models.BankDetails{BankName: "GTBank", AccountNumber: "12AB", AccountName: "X"})
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Contains(t, err.Error(), "invalid account_number")

		_, err = svc.SetBankDetails(ctx, flat.ID, models.BankDetails{AccountNumber: "0123456789", AccountName: "X"})
		assert.Contains(t, err.Error(), "invalid bank_name")
	})

	t.Run("UnknownListing", func(t *testing.T) {
		_, err := svc.SetStatus(ctx, 4040, models.ListingDraft)
		assert.Equal(t, CodeListingNotFound, CodeOf(err))

		_, err = svc.SetBankDetails(ctx, 4040, flat.Bank)
		assert.Equal(t, CodeListingNotFound, CodeOf(err))
	})
}
