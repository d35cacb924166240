package models

// Listing kinds accepted by the booking flow.
const (
	ListingLandlord = "landlord_listing"
	ListingAgent    = "agent_listing"
	ListingHotel    = "hotel_listing"
)

// Booking lifecycle statuses.
const (
	StatusSaved                   = "saved"
	StatusPaidPendingConfirmation = "paid_pending_confirmation"
	StatusConfirmed               = "confirmed"
	StatusCancelled               = "cancelled"
	StatusRefunded                = "refunded"
	StatusReleased                = "released"
)

const (
	RefundNone      = "none"
	RefundRequested = "requested"
	RefundProcessed = "processed"
)

const (
	ReleasePending  = "pending"
	ReleaseReleased = "released"
)

// Payment record statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

const (
	PaymentSecurityDeposit = "security_deposit"
	PaymentFirstMonthRent  = "first_month_rent"
	PaymentLastMonthRent   = "last_month_rent"
	PaymentBookingFee      = "booking_fee"
	PaymentFullLease       = "full_lease_payment"
	PaymentHotelStay       = "hotel_stay"
)

// Listing publication statuses.
const (
	ListingDraft     = "draft"
	ListingPublished = "published"
)

const (
	// DefaultCancellationWindowHours окно отмены с момента создания брони
	DefaultCancellationWindowHours = 24

	// DefaultConfirmationWindowHours окно подтверждения после перехода в paid_pending_confirmation
	DefaultConfirmationWindowHours = 48

	// DefaultBookingFee фиксированный сбор за бронирование в минорных единицах (10 000 NGN)
	DefaultBookingFee = 10_000_00

	// DefaultListingCacheTTL время жизни кэша разрешённых объявлений в секундах
	DefaultListingCacheTTL = 5 * 60
)

// LeaseTermMonths maps a listing's lease term preference to a number of months.
var LeaseTermMonths = map[string]int{
	"monthly":  1,
	"6_months": 6,
	"1_year":   12,
	"2_years":  24,
}

// ValidListingType reports whether t is a recognised listing kind.
func ValidListingType(t string) bool {
	switch t {
	case ListingLandlord, ListingAgent, ListingHotel:
		return true
	default:
		return false
	}
}

// ValidPaymentType reports whether t is a payment type the booking flow can price.
func ValidPaymentType(t string) bool {
	switch t {
	case PaymentSecurityDeposit, PaymentFirstMonthRent, PaymentLastMonthRent,
		PaymentBookingFee, PaymentFullLease, PaymentHotelStay:
		return true
	default:
		return false
	}
}

// Telegram parse modes for operator notifications.
const (
	ParseModeMarkdown = "Markdown"
)
