package models

import "time"

// Booking is a user's escrow booking against a single listing.
// Amounts are kept in minor currency units (kobo).
type Booking struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	ListingType       string     `json:"listing_type"`
	ListingID         int64      `json:"listing_id"`
	Status            string     `json:"status"` // saved, paid_pending_confirmation, confirmed, cancelled, refunded, released
	AmountPaid        *int64     `json:"amount_paid,omitempty"`
	PaymentType       *string    `json:"payment_type,omitempty"`
	RefundStatus      string     `json:"refund_status"`
	ReleaseStatus     string     `json:"release_status"`
	RefundProcessedAt *time.Time `json:"refund_processed_at,omitempty"`
	ReleasedAt        *time.Time `json:"released_at,omitempty"`
	PayoutReference   *string    `json:"payout_reference,omitempty"`
	FundsReleased     bool       `json:"funds_released"`
	CheckIn           *time.Time `json:"check_in,omitempty"`
	CheckOut          *time.Time `json:"check_out,omitempty"`
	RoomTypeID        *int64     `json:"room_type_id,omitempty"`
	PaymentRecordID   *int64     `json:"payment_record_id,omitempty"`
	StatusChangedAt   time.Time  `json:"status_changed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Version           int64      `json:"version"`
}

// IsActive reports whether the booking still blocks a new intent for the same listing.
func (b *Booking) IsActive() bool {
	return b.Status == StatusSaved || b.Status == StatusPaidPendingConfirmation
}

// Amount returns the paid amount or zero when nothing has been paid.
func (b *Booking) Amount() int64 {
	if b.AmountPaid == nil {
		return 0
	}
	return *b.AmountPaid
}

// InCancellationWindow is measured from creation.
func (b *Booking) InCancellationWindow(now time.Time, window time.Duration) bool {
	return now.Sub(b.CreatedAt) <= window
}

// InConfirmationWindow is measured from the last status change and only
// applies to bookings awaiting confirmation.
func (b *Booking) InConfirmationWindow(now time.Time, window time.Duration) bool {
	if b.Status != StatusPaidPendingConfirmation {
		return false
	}
	return now.Sub(b.StatusChangedAt) <= window
}

// Nights returns the number of nights between check-in and check-out, or 0.
func (b *Booking) Nights() int {
	if b.CheckIn == nil || b.CheckOut == nil {
		return 0
	}
	return NightsBetween(*b.CheckIn, *b.CheckOut)
}
