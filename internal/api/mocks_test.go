package api

import (
	"context"
	"io"
	"time"

	"rentescrow/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) SaveIntent(ctx context.Context, req models.SaveIntentRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockBookingService) ConfirmPayment(ctx context.Context, transactionRef string) (*models.PaymentRecord, bool, error) {
	args := m.Called(ctx, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.PaymentRecord), args.Bool(1), args.Error(2)
}

func (m *MockBookingService) ConfirmBooking(ctx context.Context, bookingID, userID int64) (*models.ConfirmResult, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmResult), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	return m.bookingResult(m.Called(ctx, bookingID, userID))
}

func (m *MockBookingService) RequestRefund(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	return m.bookingResult(m.Called(ctx, bookingID, userID))
}

func (m *MockBookingService) ReleaseFunds(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	return m.bookingResult(m.Called(ctx, bookingID, userID))
}

func (m *MockBookingService) bookingResult(args mock.Arguments) (*models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) ListBookings(ctx context.Context, userID int64) ([]*models.BookingView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BookingView), args.Error(1)
}

func (m *MockBookingService) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockBookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) HandleWebhook(ctx context.Context, event, transactionStatus, transactionRef string) (string, error) {
	args := m.Called(ctx, event, transactionStatus, transactionRef)
	return args.String(0), args.Error(1)
}

func (m *MockReconciler) LookupReference(ctx context.Context, ref string) (*models.ReferenceStatus, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferenceStatus), args.Error(1)
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) HealthCheck(context.Context) error { return f.err }

type fakeUsers struct {
	saved *models.User
	err   error
}

func (f *fakeUsers) SaveUser(_ context.Context, user *models.User) error {
	if f.err != nil {
		return f.err
	}
	user.ID = 7
	f.saved = user
	return nil
}

type fakeListings struct {
	id     int64
	status string
	bank   models.BankDetails
	err    error
}

func (f *fakeListings) SetStatus(_ context.Context, id int64, status string) (*models.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.id, f.status = id, status
	return &models.Listing{ID: id, Kind: models.ListingLandlord, Status: status}, nil
}

func (f *fakeListings) SetBankDetails(_ context.Context, id int64, bank models.BankDetails) (*models.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.id, f.bank = id, bank
	return &models.Listing{ID: id, Kind: models.ListingLandlord, Status: models.ListingPublished, Bank: bank}, nil
}

type fakeExporter struct {
	start, end time.Time
	err        error
}

func (f *fakeExporter) Export(_ context.Context, w io.Writer, start, end time.Time) error {
	f.start, f.end = start, end
	if f.err != nil {
		return f.err
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}
