package models

import "time"

// SaveIntentRequest asks to save interest in a listing.
type SaveIntentRequest struct {
	UserID      int64
	ListingType string
	ListingID   int64
	CheckIn     *time.Time
	CheckOut    *time.Time
}

// PaymentRequest asks to start a payment for a listing.
type PaymentRequest struct {
	UserID      int64
	ListingType string
	ListingID   int64
	PaymentType string
	CheckIn     *time.Time
	CheckOut    *time.Time
	RoomTypeID  *int64
}

type PaymentResult struct {
	Booking     *Booking       `json:"booking"`
	Payment     *PaymentRecord `json:"payment"`
	CheckoutURL string         `json:"checkout_url"`
}

// ConfirmResult carries the confirmed booking and, when funds could not be
// released automatically, the reason why.
type ConfirmResult struct {
	Booking *Booking `json:"booking"`
	Warning string   `json:"warning,omitempty"`
}

// BookingView is a booking as listed to its owner.
type BookingView struct {
	*Booking
	ListingTitle         string `json:"listing_title"`
	ListingPrice         int64  `json:"listing_price"`
	PaymentStatus        string `json:"payment_status,omitempty"`
	PaymentReference     string `json:"payment_reference,omitempty"`
	CanCancel            bool   `json:"can_cancel"`
	InConfirmationWindow bool   `json:"in_confirmation_window"`
}

// ChargeRequest is a hosted-checkout charge sent to the payment gateway.
type ChargeRequest struct {
	Amount         int64
	Email          string
	CustomerName   string
	TransactionRef string
	Metadata       map[string]interface{}
}

// PayoutRequest is a bank transfer sent to the payment gateway.
type PayoutRequest struct {
	Amount         int64
	BankCode       string
	AccountNumber  string
	AccountName    string
	TransactionRef string
	Remark         string
}

// ReferenceStatus describes a transaction reference for the confirmation page.
type ReferenceStatus struct {
	Reference     string         `json:"reference"`
	Payment       *PaymentRecord `json:"payment"`
	Booking       *Booking       `json:"booking,omitempty"`
	ListingTitle  string         `json:"listing_title,omitempty"`
	PaymentStatus string         `json:"payment_status"`
}
