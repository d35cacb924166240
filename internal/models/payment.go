package models

import "time"

// PaymentRecord is one charge attempt. Hotel and lease payments share this
// table; ListingType discriminates them.
type PaymentRecord struct {
	ID             int64     `json:"id"`
	ListingType    string    `json:"listing_type"`
	ListingID      int64     `json:"listing_id"`
	PayerID        int64     `json:"payer_id"`
	PayeeID        int64     `json:"payee_id"`
	Amount         int64     `json:"amount"`
	PaymentType    string    `json:"payment_type"`
	Status         string    `json:"status"` // pending, paid, failed
	TransactionRef string    `json:"transaction_ref"`
	CheckoutURL    string    `json:"checkout_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

