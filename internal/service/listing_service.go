package service

import (
	"context"
	"errors"
	"strings"

	"rentescrow/internal/database"
	"rentescrow/internal/domain"
	"rentescrow/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// bankDetailsInput is what the fronting layer may send; NUBAN account numbers are 10 digits.
type bankDetailsInput struct {
	BankName      string `json:"bank_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,numeric,len=10"`
	AccountName   string `json:"account_name" validate:"required,max=150"`
}

// ListingService applies publication and payout-detail changes to listings and
// keeps the resolver cache in step with them.
type ListingService struct {
	store    domain.ListingWriter
	cache    domain.ListingInvalidator
	validate *validator.Validate
	logger   *zerolog.Logger
}

func NewListingService(store domain.ListingWriter, cache domain.ListingInvalidator, logger *zerolog.Logger) *ListingService {
	return &ListingService{
		store:    store,
		cache:    cache,
		validate: newValidator(),
		logger:   logger,
	}
}

// SetStatus publishes or withdraws a listing.
func (s *ListingService) SetStatus(ctx context.Context, id int64, status string) (*models.Listing, error) {
	status = strings.TrimSpace(status)
	if status != models.ListingDraft && status != models.ListingPublished {
		return nil, validationError(CodeValidation, "invalid listing status %q", status)
	}

	if err := s.store.UpdateListingStatus(ctx, id, status); err != nil {
		return nil, s.storeError("update listing status", id, err)
	}
	return s.reload(ctx, id)
}

// SetBankDetails replaces the payout coordinates. Verification is set by the
// caller, never inferred.
func (s *ListingService) SetBankDetails(ctx context.Context, id int64, bank models.BankDetails) (*models.Listing, error) {
	bank.BankName = strings.TrimSpace(bank.BankName)
	bank.AccountNumber = strings.TrimSpace(bank.AccountNumber)
	bank.AccountName = strings.TrimSpace(bank.AccountName)

	err := s.validate.Struct(bankDetailsInput{
		BankName:      bank.BankName,
		AccountNumber: bank.AccountNumber,
		AccountName:   bank.AccountName,
	})
	if err != nil {
		return nil, fieldError(err, "bank details")
	}

	if err := s.store.UpdateListingBank(ctx, id, bank); err != nil {
		return nil, s.storeError("update listing bank", id, err)
	}
	return s.reload(ctx, id)
}

// reload reads the updated listing back and drops its cached resolution.
func (s *ListingService) reload(ctx context.Context, id int64) (*models.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, s.storeError("reload listing", id, err)
	}

	if s.cache != nil {
		// Запись в кэше всё равно истечёт по TTL
		if err := s.cache.Invalidate(ctx, l.Kind, l.ID); err != nil {
			s.logger.Warn().Err(err).Str("listing_type", l.Kind).Int64("listing_id", l.ID).Msg("listing cache invalidation failed")
		}
	}

	s.logger.Info().
		Int64("listing_id", l.ID).
		Str("listing_type", l.Kind).
		Str("status", l.Status).
		Bool("bank_verified", l.Bank.Verified).
		Msg("Listing updated")
	return l, nil
}

func (s *ListingService) storeError(op string, id int64, err error) error {
	if errors.Is(err, database.ErrListingNotFound) {
		return notFound(CodeListingNotFound, "listing not found")
	}
	s.logger.Error().Err(err).Str("op", op).Int64("listing_id", id).Msg("listing service error")
	return internal(op, err)
}
