package domain

import (
	"context"
	"time"

	"rentescrow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Repository is the persistent store of bookings and payment records.
type Repository interface {
	CreateBookingIfNoActive(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetActiveBooking(ctx context.Context, userID int64, listingType string, listingID int64) (*models.Booking, error)
	GetBookingByPaymentRecord(ctx context.Context, paymentRecordID int64) (*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetBookingsByStatus(ctx context.Context, status string, limit int) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	UpdateBookingWithVersion(ctx context.Context, b *models.Booking, fromStatus string) error
	CreatePaymentWithBooking(ctx context.Context, rec *models.PaymentRecord, b *models.Booking, fromStatus string) error
	GetPaymentRecord(ctx context.Context, id int64) (*models.PaymentRecord, error)
	GetPaymentByReference(ctx context.Context, ref string) (*models.PaymentRecord, error)
	UpdatePaymentStatus(ctx context.Context, id int64, fromStatus, toStatus string, at time.Time) error
	SetPaymentCheckoutURL(ctx context.Context, id int64, url string) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// UserRepository stores payer profiles synced from the fronting API layer.
type UserRepository interface {
	CreateOrUpdateUser(ctx context.Context, user *models.User) error
}

// ListingStore is the read-only listing lookup behind the resolvers.
type ListingStore interface {
	GetPublishedListing(ctx context.Context, kind string, id int64) (*models.Listing, error)
	GetHotelRoomType(ctx context.Context, hotelID, roomTypeID int64) (*models.RoomType, error)
}

// ListingWriter applies listing changes made in the fronting API layer.
type ListingWriter interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	UpdateListingStatus(ctx context.Context, id int64, status string) error
	UpdateListingBank(ctx context.Context, id int64, bank models.BankDetails) error
}

// ListingInvalidator drops a resolved listing from the cache.
type ListingInvalidator interface {
	Invalidate(ctx context.Context, listingType string, id int64) error
}

type CacheRepository interface {
	GetListing(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error)
	SetListing(ctx context.Context, listing *models.ResolvedListing) error
	InvalidateListing(ctx context.Context, listingType string, id int64) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ListingResolver resolves a listing-type tag and id into the booking context.
type ListingResolver interface {
	Resolve(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error)
	ResolveFresh(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error)
	RoomType(ctx context.Context, listingType string, listingID, roomTypeID int64) (*models.RoomType, error)
}

type PaymentGateway interface {
	InitiateCharge(ctx context.Context, req models.ChargeRequest) (string, error)
	Disburse(ctx context.Context, req models.PayoutRequest) (string, error)
	BankCode(bankName string) (string, error)
	NewChargeReference() string
	NewPayoutReference(bookingID int64) string
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

type BookingService interface {
	SaveIntent(ctx context.Context, req models.SaveIntentRequest) (*models.Booking, error)
	InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error)
	ConfirmPayment(ctx context.Context, transactionRef string) (*models.PaymentRecord, bool, error)
	ConfirmBooking(ctx context.Context, bookingID, userID int64) (*models.ConfirmResult, error)
	CancelBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error)
	RequestRefund(ctx context.Context, bookingID, userID int64) (*models.Booking, error)
	ReleaseFunds(ctx context.Context, bookingID, userID int64) (*models.Booking, error)
	ListBookings(ctx context.Context, userID int64) ([]*models.BookingView, error)
	ExpireStale(ctx context.Context) (int, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
}

// Reconciler turns gateway notifications into payment confirmations.
type Reconciler interface {
	HandleWebhook(ctx context.Context, event, transactionStatus, transactionRef string) (string, error)
	LookupReference(ctx context.Context, ref string) (*models.ReferenceStatus, error)
}
