package models

import (
	"strings"
	"time"
)

// BankDetails are the beneficiary's payout coordinates.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Verified      bool   `json:"bank_verified"`
}

// Complete reports whether every payout field is filled in.
func (b BankDetails) Complete() bool {
	return strings.TrimSpace(b.BankName) != "" &&
		strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.AccountName) != ""
}

// Payable reports whether funds may be sent to these details.
func (b BankDetails) Payable() bool {
	return b.Complete() && b.Verified
}

// Listing is a landlord property, an agent property or a hotel.
type Listing struct {
	ID          int64       `json:"id"`
	Kind        string      `json:"kind"`
	OwnerID     int64       `json:"owner_id"`
	Title       string      `json:"title"`
	MonthlyRent int64       `json:"monthly_rent"`
	LeaseTerm   string      `json:"lease_term"`
	Status      string      `json:"status"`
	Bank        BankDetails `json:"bank"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RoomType is a bookable room category of a hotel listing.
type RoomType struct {
	ID             int64  `json:"id"`
	HotelID        int64  `json:"hotel_id"`
	Name           string `json:"name"`
	PricePerNight  int64  `json:"price_per_night"`
	AvailableCount int    `json:"available_count"`
}

// ResolvedListing is what the booking flow needs to know about a published listing.
type ResolvedListing struct {
	Type          string      `json:"type"`
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	MonthlyRent   int64       `json:"monthly_rent"`
	LeaseTerm     string      `json:"lease_term"`
	BeneficiaryID int64       `json:"beneficiary_id"`
	Bank          BankDetails `json:"bank"`
}
