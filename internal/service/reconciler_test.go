package service

import (
	"context"
	"testing"

	"rentescrow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(f *fixture) *Reconciler {
	logger := zerolog.Nop()
	return NewReconciler(f.svc, f.db, f.registry, &logger)
}

func TestHandleWebhook(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	f.expectCharge()
	res := f.payFlat(t, models.PaymentSecurityDeposit)
	r := newTestReconciler(f)

	tests := []struct {
		name    string
		event   string
		status  string
		ref     string
		outcome string
	}{
		{"other event", "charge_failed", TransactionSuccess, res.Payment.TransactionRef, WebhookIgnored},
		{"not successful", EventChargeSuccessful, "Failed", res.Payment.TransactionRef, WebhookIgnored},
		{"missing reference", EventChargeSuccessful, TransactionSuccess, "", WebhookIgnored},
		{"unknown reference", EventChargeSuccessful, TransactionSuccess, "LEASEPAY_NOPE", WebhookIgnored},
		{"first delivery", EventChargeSuccessful, TransactionSuccess, res.Payment.TransactionRef, WebhookOK},
		{"redelivery", EventChargeSuccessful, TransactionSuccess, res.Payment.TransactionRef, WebhookDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := r.HandleWebhook(ctx, tt.event, tt.status, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)
		})
	}

	rec, err := f.db.GetPaymentRecord(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, rec.Status)
}

func TestHandleWebhookThenConfirm(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	f.expectCharge()
	f.gw.On("Disburse", mock.Anything, mock.Anything).Return("SQ_PAYOUT", nil).Once()

	checkIn, checkOut := dateptr("2024-01-01"), dateptr("2024-01-04")
	saved, err := f.svc.SaveIntent(ctx, models.SaveIntentRequest{
		UserID:      f.tenant.ID,
		ListingType: models.ListingHotel,
		ListingID:   f.hotel.ID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
	})
	require.NoError(t, err)

	res, err := f.svc.InitiatePayment(ctx, models.PaymentRequest{
		UserID:      f.tenant.ID,
		ListingType: models.ListingHotel,
		ListingID:   f.hotel.ID,
		PaymentType: models.PaymentHotelStay,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		RoomTypeID:  int64ptr(f.room.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, res.Booking.ID)
	assert.Equal(t, int64(75_000), res.Payment.Amount)

	r := newTestReconciler(f)
	outcome, err := r.HandleWebhook(ctx, EventChargeSuccessful, TransactionSuccess, res.Payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, WebhookOK, outcome)

	out, err := f.svc.ConfirmBooking(ctx, saved.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, out.Warning)
	assert.True(t, out.Booking.FundsReleased)

	views, err := f.svc.ListBookings(ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.PaymentPaid, views[0].PaymentStatus)
	assert.Equal(t, int64(25_000), views[0].ListingPrice)
	assert.Equal(t, models.ReleaseReleased, views[0].ReleaseStatus)
}

func TestLookupReference(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	f.expectCharge()
	res := f.payFlat(t, models.PaymentBookingFee)
	r := newTestReconciler(f)

	status, err := r.LookupReference(ctx, res.Payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, status.PaymentStatus)
	assert.Equal(t, "2 bed flat, Yaba", status.ListingTitle)
	require.NotNil(t, status.Booking)
	assert.Equal(t, res.Booking.ID, status.Booking.ID)

	// Страница подтверждения ничего не меняет
	rec, err := f.db.GetPaymentRecord(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, rec.Status)

	_, err = r.LookupReference(ctx, "LEASEPAY_NOPE")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = r.LookupReference(ctx, "")
	assert.Equal(t, KindValidation, KindOf(err))
}
