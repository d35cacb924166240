package service

import (
	"context"
	"errors"

	"rentescrow/internal/database"
	"rentescrow/internal/domain"
	"rentescrow/internal/metrics"
	"rentescrow/internal/models"

	"github.com/rs/zerolog"
)

// Gateway notification values that confirm a charge.
const (
	EventChargeSuccessful = "charge_successful"
	TransactionSuccess    = "Success"
)

// Webhook outcomes, also used as metric labels.
const (
	WebhookOK        = "ok"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookError     = "error"
)

// Reconciler applies gateway notifications to payment records. Every
// notification for the same reference after the first is a no-op.
type Reconciler struct {
	bookings domain.BookingService
	repo     domain.Repository
	listings domain.ListingResolver
	logger   *zerolog.Logger
}

func NewReconciler(bookings domain.BookingService, repo domain.Repository, listings domain.ListingResolver, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		bookings: bookings,
		repo:     repo,
		listings: listings,
		logger:   logger,
	}
}

// HandleWebhook confirms the referenced payment when the notification reports
// a successful charge and returns the outcome: WebhookOK for the first
// delivery, WebhookDuplicate for redeliveries, WebhookIgnored otherwise.
func (r *Reconciler) HandleWebhook(ctx context.Context, event, transactionStatus, transactionRef string) (string, error) {
	log := r.logger.With().
		Str("event", event).
		Str("transaction_status", transactionStatus).
		Str("transaction_ref", transactionRef).
		Logger()

	if event != EventChargeSuccessful || transactionStatus != TransactionSuccess || transactionRef == "" {
		log.Info().Msg("webhook ignored")
		metrics.IncWebhook(WebhookIgnored)
		return WebhookIgnored, nil
	}

	rec, processed, err := r.bookings.ConfirmPayment(ctx, transactionRef)
	if err != nil {
		if KindOf(err) == KindNotFound {
			log.Warn().Msg("webhook for unknown transaction reference")
			metrics.IncWebhook(WebhookIgnored)
			return WebhookIgnored, nil
		}
		log.Error().Err(err).Msg("webhook processing failed")
		metrics.IncWebhook(WebhookError)
		return WebhookError, err
	}

	if !processed {
		log.Info().Int64("payment_record_id", rec.ID).Msg("payment already confirmed")
		metrics.IncWebhook(WebhookDuplicate)
		return WebhookDuplicate, nil
	}

	log.Info().Int64("payment_record_id", rec.ID).Msg("payment confirmed by webhook")
	metrics.IncWebhook(WebhookOK)
	return WebhookOK, nil
}

// LookupReference describes a transaction reference for the page the gateway
// redirects the payer to. It never changes state.
func (r *Reconciler) LookupReference(ctx context.Context, ref string) (*models.ReferenceStatus, error) {
	if ref == "" {
		return nil, validationError(CodeValidation, "reference is required")
	}

	rec, err := r.repo.GetPaymentByReference(ctx, ref)
	if errors.Is(err, database.ErrPaymentNotFound) {
		return nil, notFound(CodeNotFound, "payment record not found")
	}
	if err != nil {
		r.logger.Error().Err(err).Str("transaction_ref", ref).Msg("reference lookup failed")
		return nil, internal("lookup reference", err)
	}

	status := &models.ReferenceStatus{
		Reference:     ref,
		Payment:       rec,
		PaymentStatus: rec.Status,
	}

	b, err := r.repo.GetBookingByPaymentRecord(ctx, rec.ID)
	switch {
	case err == nil:
		status.Booking = b
	case !errors.Is(err, database.ErrBookingNotFound):
		r.logger.Warn().Err(err).Int64("payment_record_id", rec.ID).Msg("failed to load booking for reference")
	}

	if resolved, err := r.listings.Resolve(ctx, rec.ListingType, rec.ListingID); err == nil {
		status.ListingTitle = resolved.Title
	}
	return status, nil
}
