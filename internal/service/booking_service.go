package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/database"
	"rentescrow/internal/domain"
	"rentescrow/internal/events"
	"rentescrow/internal/gateway"
	"rentescrow/internal/listing"
	"rentescrow/internal/metrics"
	"rentescrow/internal/models"

	"github.com/rs/zerolog"
)

const defaultSweepBatch = 100

type BookingService struct {
	repo               domain.Repository
	listings           domain.ListingResolver
	gateway            domain.PaymentGateway
	eventBus           domain.EventPublisher
	ledger             domain.SyncWorker
	cancellationWindow time.Duration
	confirmationWindow time.Duration
	bookingFee         int64
	sweepBatch         int
	now                func() time.Time
	releasing          sync.Map
	logger             *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	listings domain.ListingResolver,
	gw domain.PaymentGateway,
	eventBus domain.EventPublisher,
	ledger domain.SyncWorker,
	cfg config.EscrowConfig,
	logger *zerolog.Logger,
) *BookingService {
	s := &BookingService{
		repo:               repo,
		listings:           listings,
		gateway:            gw,
		eventBus:           eventBus,
		ledger:             ledger,
		cancellationWindow: cfg.CancellationWindow,
		confirmationWindow: cfg.ConfirmationWindow,
		bookingFee:         cfg.BookingFee,
		sweepBatch:         cfg.SweepBatchSize,
		now:                func() time.Time { return time.Now().UTC() },
		logger:             logger,
	}
	if s.cancellationWindow <= 0 {
		s.cancellationWindow = models.DefaultCancellationWindowHours * time.Hour
	}
	if s.confirmationWindow <= 0 {
		s.confirmationWindow = models.DefaultConfirmationWindowHours * time.Hour
	}
	if s.bookingFee <= 0 {
		s.bookingFee = models.DefaultBookingFee
	}
	if s.sweepBatch <= 0 {
		s.sweepBatch = defaultSweepBatch
	}
	return s
}

// SetClock replaces the time source used for windows and timestamps.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// SaveIntent records a user's interest in a listing.
func (s *BookingService) SaveIntent(ctx context.Context, req models.SaveIntentRequest) (*models.Booking, error) {
	if !models.ValidListingType(req.ListingType) {
		return nil, validationError(CodeInvalidListingType, "invalid listing type %q", req.ListingType)
	}
	if (req.CheckIn == nil) != (req.CheckOut == nil) {
		return nil, validationError(CodeValidation, "check_in and check_out must be given together")
	}
	if req.CheckIn != nil && !req.CheckOut.After(*req.CheckIn) {
		return nil, validationError(CodeInvalidDateRange, "check-out date must be after check-in date")
	}

	// Публикация проверяется по базе, а не по кэшу
	resolved, err := s.listings.ResolveFresh(ctx, req.ListingType, req.ListingID)
	if err != nil {
		return nil, s.listingError(err, req.ListingType, req.ListingID)
	}

	now := s.now()
	b := &models.Booking{
		UserID:          req.UserID,
		ListingType:     req.ListingType,
		ListingID:       req.ListingID,
		Status:          models.StatusSaved,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		StatusChangedAt: now,
		CreatedAt:       now,
	}
	if err := s.repo.CreateBookingIfNoActive(ctx, b); err != nil {
		if errors.Is(err, database.ErrDuplicateBooking) {
			return nil, stateConflict(CodeDuplicateBooking, "you already have an active booking for this %s",
				strings.ReplaceAll(req.ListingType, "_", " "))
		}
		return nil, s.internalError("save booking intent", err)
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("user_id", b.UserID).
		Str("listing_type", b.ListingType).
		Int64("listing_id", b.ListingID).
		Msg("Booking intent saved")
	s.publishEvent(events.EventBookingCreated, b, "", eventDetails{Title: resolved.Title, ChangedBy: "user", ChangedByID: b.UserID})
	s.enqueueSync(ctx, b, models.SyncTaskUpsert)
	return b, nil
}

// InitiatePayment prices the payment, stores a pending record, advances or
// creates the booking and asks the gateway for a checkout URL.
func (s *BookingService) InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error) {
	if !models.ValidListingType(req.ListingType) {
		return nil, validationError(CodeInvalidListingType, "invalid listing type %q", req.ListingType)
	}
	if !models.ValidPaymentType(req.PaymentType) {
		return nil, validationError(CodeInvalidPaymentType, "invalid payment type %q", req.PaymentType)
	}

	// Цена берётся из текущего объявления
	resolved, err := s.listings.ResolveFresh(ctx, req.ListingType, req.ListingID)
	if err != nil {
		return nil, s.listingError(err, req.ListingType, req.ListingID)
	}

	amount, err := s.price(ctx, req, resolved)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, notFound(CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, s.internalError("load payer", err)
	}

	existing, err := s.repo.GetActiveBooking(ctx, req.UserID, req.ListingType, req.ListingID)
	if err != nil && !errors.Is(err, database.ErrBookingNotFound) {
		return nil, s.internalError("load active booking", err)
	}
	if existing != nil && existing.Status != models.StatusSaved && !s.chargeFailed(ctx, existing) {
		return nil, stateConflict(CodeDuplicateBooking, "booking %d is already awaiting confirmation", existing.ID)
	}

	now := s.now()
	rec := &models.PaymentRecord{
		ListingType:    req.ListingType,
		ListingID:      req.ListingID,
		PayerID:        req.UserID,
		PayeeID:        resolved.BeneficiaryID,
		Amount:         amount,
		PaymentType:    req.PaymentType,
		Status:         models.PaymentPending,
		TransactionRef: s.gateway.NewChargeReference(),
		CreatedAt:      now,
	}

	// Бронь переходит в paid_pending_confirmation сразу при создании платежа
	var b *models.Booking
	fromStatus := ""
	if existing != nil {
		next := *existing
		b = &next
		fromStatus = existing.Status
	} else {
		b = &models.Booking{
			UserID:      req.UserID,
			ListingType: req.ListingType,
			ListingID:   req.ListingID,
			CreatedAt:   now,
		}
	}
	paymentType := req.PaymentType
	b.Status = models.StatusPaidPendingConfirmation
	b.AmountPaid = &amount
	b.PaymentType = &paymentType
	b.StatusChangedAt = now
	b.UpdatedAt = now
	if req.ListingType == models.ListingHotel {
		b.CheckIn = req.CheckIn
		b.CheckOut = req.CheckOut
		b.RoomTypeID = req.RoomTypeID
	}

	if err := s.repo.CreatePaymentWithBooking(ctx, rec, b, fromStatus); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateBooking):
			return nil, stateConflict(CodeDuplicateBooking, "you already have an active booking for this listing")
		case errors.Is(err, database.ErrConcurrentModification):
			return nil, stateConflict(CodeConcurrentModification, "booking %d was modified concurrently", b.ID)
		}
		return nil, s.internalError("create payment record", err)
	}
	if fromStatus != b.Status {
		metrics.IncTransition(statusLabel(fromStatus), b.Status)
	}

	s.logger.Info().
		Int64("payment_record_id", rec.ID).
		Int64("booking_id", b.ID).
		Str("transaction_ref", rec.TransactionRef).
		Int64("amount", amount).
		Msg("Payment record created")
	s.publishEvent(events.EventPaymentInitiated, b, fromStatus, eventDetails{
		Title:            resolved.Title,
		PaymentReference: rec.TransactionRef,
		ChangedBy:        "user",
		ChangedByID:      req.UserID,
	})
	s.enqueueSync(ctx, b, models.SyncTaskUpsert)

	checkoutURL, err := s.gateway.InitiateCharge(ctx, models.ChargeRequest{
		Amount:         amount,
		Email:          user.Email,
		CustomerName:   user.DisplayName(),
		TransactionRef: rec.TransactionRef,
		Metadata: map[string]interface{}{
			"payment_record_id": rec.ID,
			"listing_type":      req.ListingType,
			"listing_id":        req.ListingID,
		},
	})
	if err != nil {
		// Бронь не откатывается: пользователь может повторить оплату позже
		if uerr := s.repo.UpdatePaymentStatus(ctx, rec.ID, models.PaymentPending, models.PaymentFailed, s.now()); uerr != nil {
			s.logger.Error().Err(uerr).Int64("payment_record_id", rec.ID).Msg("failed to mark payment record failed")
		} else {
			rec.Status = models.PaymentFailed
		}
		s.logger.Error().Err(err).Str("transaction_ref", rec.TransactionRef).Msg("charge initiation failed")
		return nil, gatewayError(err)
	}

	if err := s.repo.SetPaymentCheckoutURL(ctx, rec.ID, checkoutURL); err != nil {
		s.logger.Warn().Err(err).Int64("payment_record_id", rec.ID).Msg("failed to store checkout url")
	}
	rec.CheckoutURL = checkoutURL

	return &models.PaymentResult{Booking: b, Payment: rec, CheckoutURL: checkoutURL}, nil
}

// chargeFailed reports whether the booking's last charge was rejected, in which
// case the tenant may start a new one.
func (s *BookingService) chargeFailed(ctx context.Context, b *models.Booking) bool {
	if b.PaymentRecordID == nil {
		return false
	}
	rec, err := s.repo.GetPaymentRecord(ctx, *b.PaymentRecordID)
	return err == nil && rec.Status == models.PaymentFailed
}

// price computes the charge amount. A non-positive amount is rejected here so
// nothing is stored for a charge the gateway would refuse.
func (s *BookingService) price(ctx context.Context, req models.PaymentRequest, resolved *models.ResolvedListing) (int64, error) {
	amount, err := s.baseAmount(ctx, req, resolved)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, validationError(CodeInvalidAmount, "%s %d has no price set for %s",
			strings.ReplaceAll(req.ListingType, "_", " "), req.ListingID, req.PaymentType)
	}
	return amount, nil
}

func (s *BookingService) baseAmount(ctx context.Context, req models.PaymentRequest, resolved *models.ResolvedListing) (int64, error) {
	if req.ListingType != models.ListingHotel {
		if req.PaymentType == models.PaymentHotelStay {
			return 0, validationError(CodeInvalidPaymentType, "hotel_stay is only valid for hotel listings")
		}
		return LeaseAmount(req.PaymentType, resolved.MonthlyRent, resolved.LeaseTerm, s.bookingFee)
	}

	if req.PaymentType != models.PaymentHotelStay {
		return 0, validationError(CodeInvalidPaymentType, "hotel listings are paid with hotel_stay")
	}
	var missing []string
	if req.CheckIn == nil {
		missing = append(missing, "check_in_date")
	}
	if req.CheckOut == nil {
		missing = append(missing, "check_out_date")
	}
	if req.RoomTypeID == nil {
		missing = append(missing, "room_type_id")
	}
	if len(missing) > 0 {
		return 0, validationError(CodeValidation,
			"check-in date, check-out date and room type are required for hotel bookings, missing: %s",
			strings.Join(missing, ", "))
	}

	rt, err := s.listings.RoomType(ctx, req.ListingType, req.ListingID, *req.RoomTypeID)
	if errors.Is(err, listing.ErrRoomTypeNotFound) {
		return 0, notFound(CodeNotFound, fmt.Sprintf("room type %d not found for the specified hotel", *req.RoomTypeID))
	}
	if err != nil {
		return 0, s.internalError("load room type", err)
	}

	amount, _, err := StayAmount(rt.PricePerNight, *req.CheckIn, *req.CheckOut)
	return amount, err
}

// ConfirmPayment marks the payment record paid. It reports false when the
// record was already paid. The booking status is left alone.
func (s *BookingService) ConfirmPayment(ctx context.Context, transactionRef string) (*models.PaymentRecord, bool, error) {
	rec, err := s.repo.GetPaymentByReference(ctx, transactionRef)
	if errors.Is(err, database.ErrPaymentNotFound) {
		return nil, false, notFound(CodeNotFound, "payment record not found")
	}
	if err != nil {
		return nil, false, s.internalError("load payment record", err)
	}
	if rec.Status == models.PaymentPaid {
		return rec, false, nil
	}

	now := s.now()
	if err := s.repo.UpdatePaymentStatus(ctx, rec.ID, rec.Status, models.PaymentPaid, now); err != nil {
		if !errors.Is(err, database.ErrConcurrentModification) {
			return nil, false, s.internalError("mark payment paid", err)
		}
		// Параллельный вебхук успел раньше
		current, gerr := s.repo.GetPaymentRecord(ctx, rec.ID)
		if gerr != nil {
			return nil, false, s.internalError("reload payment record", gerr)
		}
		if current.Status == models.PaymentPaid {
			return current, false, nil
		}
		return nil, false, stateConflict(CodeConcurrentModification, "payment record %d was modified concurrently", rec.ID)
	}
	rec.Status = models.PaymentPaid
	rec.UpdatedAt = now

	s.logger.Info().
		Int64("payment_record_id", rec.ID).
		Str("transaction_ref", rec.TransactionRef).
		Msg("Payment confirmed")

	if b, err := s.repo.GetBookingByPaymentRecord(ctx, rec.ID); err == nil {
		s.publishEvent(events.EventPaymentConfirmed, b, "", eventDetails{PaymentReference: rec.TransactionRef, ChangedBy: "gateway"})
		s.enqueueSync(ctx, b, models.SyncTaskUpsert)
	} else if !errors.Is(err, database.ErrBookingNotFound) {
		s.logger.Warn().Err(err).Int64("payment_record_id", rec.ID).Msg("failed to load booking for confirmed payment")
	}
	return rec, true, nil
}

// ConfirmBooking is the tenant's acknowledgement of the booking. Funds are
// released right away when the charge is paid and the beneficiary can be paid;
// otherwise the result carries a warning.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, userID int64) (*models.ConfirmResult, error) {
	b, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusPaidPendingConfirmation {
		return nil, stateConflict(CodeInvalidState,
			"cannot confirm booking with status '%s', it must be '%s'", b.Status, models.StatusPaidPendingConfirmation)
	}
	if !b.InConfirmationWindow(s.now(), s.confirmationWindow) {
		return nil, windowExpired(CodeConfirmationWindowExpired,
			"confirmation window has expired, automatic cancellation and refund will apply")
	}

	confirmed, err := s.transition(ctx, b, func(next *models.Booking) {
		next.Status = models.StatusConfirmed
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingConfirmed, confirmed, b.Status, eventDetails{ChangedBy: "user", ChangedByID: userID})
	s.enqueueSync(ctx, confirmed, models.SyncTaskStatus)

	result := &models.ConfirmResult{Booking: confirmed}
	if confirmed.Amount() <= 0 || confirmed.FundsReleased {
		return result, nil
	}

	resolved, err := s.listings.ResolveFresh(ctx, confirmed.ListingType, confirmed.ListingID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", confirmed.ID).Msg("listing unavailable for automatic release")
		result.Warning = "Funds cannot be released yet: listing is no longer available."
		s.publishEvent(events.EventReleasePending, confirmed, "", eventDetails{Reason: result.Warning})
		return result, nil
	}
	if !resolved.Bank.Payable() {
		result.Warning = "Funds cannot be released yet: missing or unverified beneficiary bank details."
		s.publishEvent(events.EventReleasePending, confirmed, "", eventDetails{Title: resolved.Title, Reason: result.Warning})
		return result, nil
	}
	bankCode, err := s.gateway.BankCode(resolved.Bank.BankName)
	if err != nil {
		result.Warning = fmt.Sprintf("Funds cannot be released yet: bank code not configured for '%s'.", resolved.Bank.BankName)
		s.publishEvent(events.EventReleasePending, confirmed, "", eventDetails{Title: resolved.Title, Reason: result.Warning})
		return result, nil
	}

	collected, err := s.paymentCollected(ctx, confirmed)
	if err != nil {
		return nil, err
	}
	if !collected {
		result.Warning = "Funds cannot be released yet: the payment has not been confirmed by the gateway."
		s.publishEvent(events.EventReleasePending, confirmed, "", eventDetails{Title: resolved.Title, Reason: result.Warning})
		return result, nil
	}

	released, err := s.release(ctx, confirmed, resolved, bankCode)
	if err != nil {
		result.Warning = "Funds release failed: " + errorMessage(err)
		return result, nil
	}
	result.Booking = released
	return result, nil
}

// CancelBooking cancels a saved or pending booking within the cancellation window.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	b, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.StatusConfirmed, models.StatusCancelled, models.StatusRefunded, models.StatusReleased:
		return nil, stateConflict(CodeInvalidState, "cannot cancel booking with status '%s'", b.Status)
	}
	if !b.InCancellationWindow(s.now(), s.cancellationWindow) {
		return nil, windowExpired(CodeCancellationWindowExpired, "cancellation window has expired")
	}

	cancelled, err := s.transition(ctx, b, markRefundRequested)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("booking_id", cancelled.ID).Int64("user_id", userID).Msg("Booking cancelled, refund requested")
	s.publishEvent(events.EventBookingCancelled, cancelled, b.Status, eventDetails{ChangedBy: "user", ChangedByID: userID})
	s.enqueueSync(ctx, cancelled, models.SyncTaskStatus)
	return cancelled, nil
}

// RequestRefund cancels a paid booking on the tenant's request.
func (s *BookingService) RequestRefund(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	b, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusPaidPendingConfirmation {
		return nil, stateConflict(CodeInvalidState, "cannot request manual refund for booking with status '%s'", b.Status)
	}
	now := s.now()
	if !b.InCancellationWindow(now, s.cancellationWindow) {
		return nil, windowExpired(CodeCancellationWindowExpired, "refund window has expired")
	}
	if !b.InConfirmationWindow(now, s.confirmationWindow) {
		return nil, windowExpired(CodeAutomaticProcessExpected,
			"confirmation window has expired, the automatic refund process will handle this booking")
	}

	refunded, err := s.transition(ctx, b, markRefundRequested)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("booking_id", refunded.ID).Int64("user_id", userID).Msg("Manual refund requested")
	s.publishEvent(events.EventRefundRequested, refunded, b.Status, eventDetails{ChangedBy: "user", ChangedByID: userID})
	s.enqueueSync(ctx, refunded, models.SyncTaskStatus)
	return refunded, nil
}

// ReleaseFunds pays the booking amount out to the listing's beneficiary.
// Only the beneficiary may ask for it.
func (s *BookingService) ReleaseFunds(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil && !errors.Is(err, database.ErrBookingNotFound) {
		return nil, s.internalError("load booking", err)
	}
	var resolved *models.ResolvedListing
	if b != nil {
		resolved, err = s.listings.ResolveFresh(ctx, b.ListingType, b.ListingID)
		if err != nil && !errors.Is(err, listing.ErrNotFound) {
			return nil, s.internalError("resolve listing", err)
		}
	}
	if b == nil || resolved == nil || resolved.BeneficiaryID != userID {
		return nil, notAuthorized("not authorized to release funds for this booking")
	}

	collected, err := s.paymentCollected(ctx, b)
	if err != nil {
		return nil, err
	}
	if reasons := releaseBlockers(b, collected); len(reasons) > 0 {
		return nil, stateConflict(CodeReleaseNotEligible,
			"funds cannot be released because: %s", strings.Join(reasons, "; "))
	}
	if !resolved.Bank.Payable() {
		return nil, newError(KindValidation, CodeMissingBankDetails,
			"beneficiary bank details are missing, incomplete or unverified", nil)
	}
	bankCode, err := s.gateway.BankCode(resolved.Bank.BankName)
	if err != nil {
		return nil, gatewayError(err)
	}

	return s.release(ctx, b, resolved, bankCode)
}

// paymentCollected reports whether the gateway confirmed the booking's charge.
func (s *BookingService) paymentCollected(ctx context.Context, b *models.Booking) (bool, error) {
	if b.PaymentRecordID == nil {
		return false, nil
	}
	rec, err := s.repo.GetPaymentRecord(ctx, *b.PaymentRecordID)
	if errors.Is(err, database.ErrPaymentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.internalError("load payment record", err)
	}
	return rec.Status == models.PaymentPaid, nil
}

func releaseBlockers(b *models.Booking, collected bool) []string {
	var reasons []string
	if b.Status != models.StatusConfirmed {
		reasons = append(reasons, "booking is not confirmed")
	}
	if b.FundsReleased {
		reasons = append(reasons, "funds already released")
	}
	if b.Amount() <= 0 {
		reasons = append(reasons, "no amount paid")
	}
	if !collected {
		reasons = append(reasons, "payment not confirmed by the gateway")
	}
	return reasons
}

// release disburses the booking amount. Only one payout per booking may be in
// flight in this process; the stored row is the final guard.
func (s *BookingService) release(ctx context.Context, b *models.Booking, resolved *models.ResolvedListing, bankCode string) (*models.Booking, error) {
	if _, busy := s.releasing.LoadOrStore(b.ID, struct{}{}); busy {
		return nil, stateConflict(CodeReleaseNotEligible, "funds release for booking %d is already in progress", b.ID)
	}
	defer s.releasing.Delete(b.ID)

	// Перечитываем бронь под защитой, чтобы не выплатить дважды
	current, err := s.repo.GetBooking(ctx, b.ID)
	if err != nil {
		return nil, s.internalError("reload booking", err)
	}
	collected, err := s.paymentCollected(ctx, current)
	if err != nil {
		return nil, err
	}
	if reasons := releaseBlockers(current, collected); len(reasons) > 0 {
		return nil, stateConflict(CodeReleaseNotEligible,
			"funds cannot be released because: %s", strings.Join(reasons, "; "))
	}

	payoutRef, err := s.gateway.Disburse(ctx, models.PayoutRequest{
		Amount:         current.Amount(),
		BankCode:       bankCode,
		AccountNumber:  resolved.Bank.AccountNumber,
		AccountName:    resolved.Bank.AccountName,
		TransactionRef: s.gateway.NewPayoutReference(current.ID),
		Remark:         fmt.Sprintf("Payment for booking %d at %s", current.ID, resolved.Title),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", current.ID).Msg("funds release failed")
		s.publishEvent(events.EventReleaseFailed, current, "", eventDetails{Title: resolved.Title, Reason: err.Error()})
		return nil, gatewayError(err)
	}

	released, err := s.transition(ctx, current, func(next *models.Booking) {
		now := s.now()
		next.FundsReleased = true
		next.ReleaseStatus = models.ReleaseReleased
		next.ReleasedAt = &now
		next.PayoutReference = &payoutRef
	})
	if err != nil {
		s.logger.Error().Err(err).
			Int64("booking_id", current.ID).
			Str("payout_reference", payoutRef).
			Msg("payout sent but booking not updated")
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", released.ID).
		Str("payout_reference", payoutRef).
		Int64("amount", released.Amount()).
		Msg("Funds released")
	s.publishEvent(events.EventFundsReleased, released, "", eventDetails{Title: resolved.Title, PayoutReference: payoutRef})
	s.enqueueSync(ctx, released, models.SyncTaskUpsert)
	return released, nil
}

// ListBookings returns the user's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, userID int64) ([]*models.BookingView, error) {
	bookings, err := s.repo.GetUserBookings(ctx, userID)
	if err != nil {
		return nil, s.internalError("list bookings", err)
	}

	now := s.now()
	views := make([]*models.BookingView, 0, len(bookings))
	for _, b := range bookings {
		view := &models.BookingView{
			Booking:              b,
			InConfirmationWindow: b.InConfirmationWindow(now, s.confirmationWindow),
			CanCancel:            b.IsActive() && b.InCancellationWindow(now, s.cancellationWindow),
		}

		if resolved, err := s.listings.Resolve(ctx, b.ListingType, b.ListingID); err == nil {
			view.ListingTitle = resolved.Title
			view.ListingPrice = resolved.MonthlyRent
		} else {
			s.logger.Debug().Err(err).Int64("booking_id", b.ID).Msg("listing not resolved for booking view")
		}
		if b.ListingType == models.ListingHotel && b.RoomTypeID != nil {
			if rt, err := s.listings.RoomType(ctx, b.ListingType, b.ListingID, *b.RoomTypeID); err == nil {
				view.ListingPrice = rt.PricePerNight
			}
		}
		if b.PaymentRecordID != nil {
			if rec, err := s.repo.GetPaymentRecord(ctx, *b.PaymentRecordID); err == nil {
				view.PaymentStatus = rec.Status
				view.PaymentReference = rec.TransactionRef
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// ExpireStale cancels bookings whose confirmation window elapsed and requests
// their refund. It returns how many bookings were expired.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	pending, err := s.repo.GetBookingsByStatus(ctx, models.StatusPaidPendingConfirmation, s.sweepBatch)
	if err != nil {
		return 0, s.internalError("load pending bookings", err)
	}

	expired, failed := 0, 0
	now := s.now()
	for _, b := range pending {
		if ctx.Err() != nil {
			break
		}
		if b.InConfirmationWindow(now, s.confirmationWindow) {
			continue
		}

		// Одна сбойная строка не останавливает весь проход
		cancelled, err := s.transition(ctx, b, markRefundRequested)
		if err != nil {
			if CodeOf(err) != CodeConcurrentModification {
				failed++
				s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to expire booking")
			}
			continue
		}
		expired++
		s.logger.Info().Int64("booking_id", cancelled.ID).Msg("Booking expired, refund requested")
		s.publishEvent(events.EventBookingExpired, cancelled, b.Status, eventDetails{
			ChangedBy: "system",
			Reason:    "confirmation window expired",
		})
		s.enqueueSync(ctx, cancelled, models.SyncTaskStatus)
	}

	if failed > 0 {
		s.logger.Warn().Int("expired", expired).Int("failed", failed).Msg("expiry sweep finished with failures")
	}
	metrics.AddExpired(expired)
	return expired, nil
}

func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.repo.GetBookingsByDateRange(ctx, start, end)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// ownedBooking loads a booking the user owns. A booking of another user is
// reported exactly like a missing one.
func (s *BookingService) ownedBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil && !errors.Is(err, database.ErrBookingNotFound) {
		return nil, s.internalError("load booking", err)
	}
	if b == nil || b.UserID != userID {
		return nil, notFound(CodeNotFound, "booking not found or you don't have permission to access it")
	}
	return b, nil
}

func markRefundRequested(next *models.Booking) {
	now := next.UpdatedAt
	next.Status = models.StatusCancelled
	next.RefundStatus = models.RefundRequested
	next.RefundProcessedAt = &now
}

// transition applies mutate to a copy of b and stores it only if nobody else
// changed the row since b was read.
func (s *BookingService) transition(ctx context.Context, b *models.Booking, mutate func(next *models.Booking)) (*models.Booking, error) {
	next := *b
	now := s.now()
	next.UpdatedAt = now
	mutate(&next)
	if next.Status != b.Status {
		next.StatusChangedAt = now
	}

	if err := s.repo.UpdateBookingWithVersion(ctx, &next, b.Status); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, stateConflict(CodeConcurrentModification, "booking %d was modified concurrently", b.ID)
		}
		return nil, s.internalError("update booking", err)
	}
	if next.Status != b.Status {
		metrics.IncTransition(b.Status, next.Status)
	}
	return &next, nil
}

func (s *BookingService) listingError(err error, listingType string, id int64) error {
	switch {
	case errors.Is(err, listing.ErrInvalidListingType):
		return validationError(CodeInvalidListingType, "invalid listing type %q", listingType)
	case errors.Is(err, listing.ErrNotFound):
		return notFound(CodeListingNotFound, fmt.Sprintf("%s %d not found", strings.ReplaceAll(listingType, "_", " "), id))
	}
	return s.internalError("resolve listing", err)
}

func (s *BookingService) internalError(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("booking service error")
	return internal(op, err)
}

// gatewayError converts a gateway failure into a service error.
func gatewayError(err error) error {
	var rejected *gateway.RejectedError
	switch {
	case errors.Is(err, gateway.ErrUnmappedBankCode):
		return newError(KindUnmappedBank, CodeUnmappedBankCode, "bank code not configured for the beneficiary's bank", err)
	case errors.Is(err, gateway.ErrMisconfigured):
		return newError(KindGateway, CodeGatewayMisconfigured, "payment gateway not configured", err)
	case errors.Is(err, gateway.ErrUnavailable):
		return newError(KindGateway, CodeGatewayUnavailable, "error connecting to payment gateway", err)
	case gateway.IsRetryable(err):
		return newError(KindGateway, CodeGatewayUnavailable, "payment gateway is temporarily unavailable, try again later", err)
	case errors.As(err, &rejected):
		msg := rejected.Message
		if msg == "" {
			msg = "payment gateway rejected the request"
		}
		return newError(KindGateway, CodeGatewayRejected, msg, err)
	}
	return internal("payment gateway", err)
}

func errorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func statusLabel(status string) string {
	if status == "" {
		return "new"
	}
	return status
}

type eventDetails struct {
	Title            string
	PaymentReference string
	PayoutReference  string
	Reason           string
	ChangedBy        string
	ChangedByID      int64
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, previousStatus string, d eventDetails) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:        b.ID,
		UserID:           b.UserID,
		ListingType:      b.ListingType,
		ListingID:        b.ListingID,
		ListingTitle:     d.Title,
		Status:           b.Status,
		PreviousStatus:   previousStatus,
		Amount:           b.Amount(),
		PaymentReference: d.PaymentReference,
		PayoutReference:  d.PayoutReference,
		Reason:           d.Reason,
		ChangedBy:        d.ChangedBy,
		ChangedByID:      d.ChangedByID,
		At:               s.now(),
	}
	if b.PaymentType != nil {
		payload.PaymentType = *b.PaymentType
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, b *models.Booking, taskType string) {
	if s.ledger == nil {
		return
	}

	var status string
	if taskType == models.SyncTaskStatus {
		status = b.Status
	}

	if err := s.ledger.EnqueueTask(ctx, taskType, b.ID, b, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Str("task", taskType).Msg("ledger enqueue error")
	}
}
