package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentescrow/internal/models"
)

const bookingColumns = `id, user_id, listing_type, listing_id, status, amount_paid, payment_type,
	refund_status, release_status, refund_processed_at, released_at, payout_reference,
	funds_released, check_in, check_out, room_type_id, payment_record_id,
	status_changed_at, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.ListingType, &b.ListingID, &b.Status, &b.AmountPaid, &b.PaymentType,
		&b.RefundStatus, &b.ReleaseStatus, &b.RefundProcessedAt, &b.ReleasedAt, &b.PayoutReference,
		&b.FundsReleased, &b.CheckIn, &b.CheckOut, &b.RoomTypeID, &b.PaymentRecordID,
		&b.StatusChangedAt, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertBooking(ctx context.Context, ex execer, b *models.Booking) error {
	now := b.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if b.StatusChangedAt.IsZero() {
		b.StatusChangedAt = now
	}
	if b.RefundStatus == "" {
		b.RefundStatus = models.RefundNone
	}
	if b.ReleaseStatus == "" {
		b.ReleaseStatus = models.ReleasePending
	}

	query := `INSERT INTO bookings (
				user_id, listing_type, listing_id, status, amount_paid, payment_type,
				refund_status, release_status, funds_released, check_in, check_out,
				room_type_id, payment_record_id, status_changed_at, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`
	result, err := ex.ExecContext(ctx, query,
		b.UserID,
		b.ListingType,
		b.ListingID,
		b.Status,
		b.AmountPaid,
		b.PaymentType,
		b.RefundStatus,
		b.ReleaseStatus,
		b.FundsReleased,
		b.CheckIn,
		b.CheckOut,
		b.RoomTypeID,
		b.PaymentRecordID,
		b.StatusChangedAt,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	return nil
}

// CreateBookingIfNoActive inserts b unless the user already holds an active
// booking for the same listing.
func (db *DB) CreateBookingIfNoActive(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var active int
	queryCount := `SELECT COUNT(*) FROM bookings
	               WHERE user_id = ? AND listing_type = ? AND listing_id = ? AND status IN (?, ?)`
	err = tx.QueryRowContext(ctx, queryCount, b.UserID, b.ListingType, b.ListingID,
		models.StatusSaved, models.StatusPaidPendingConfirmation).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to check active bookings in tx: %w", err)
	}
	if active > 0 {
		return ErrDuplicateBooking
	}

	if err := insertBooking(ctx, tx, b); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetActiveBooking returns the user's saved or pending booking for a listing.
func (db *DB) GetActiveBooking(ctx context.Context, userID int64, listingType string, listingID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE user_id = ? AND listing_type = ? AND listing_id = ? AND status IN (?, ?)
	          ORDER BY id DESC LIMIT 1`
	b, err := scanBooking(db.QueryRowContext(ctx, query, userID, listingType, listingID,
		models.StatusSaved, models.StatusPaidPendingConfirmation))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingByPaymentRecord(ctx context.Context, paymentRecordID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_record_id = ? ORDER BY id DESC LIMIT 1`
	b, err := scanBooking(db.QueryRowContext(ctx, query, paymentRecordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by payment record: %w", err)
	}
	return b, nil
}

// GetUserBookings returns every booking of the user, newest first.
func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	return scanBookings(rows)
}

func (db *DB) GetBookingsByStatus(ctx context.Context, status string, limit int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY status_changed_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by status: %w", err)
	}
	return scanBookings(rows)
}

// GetBookingsByDateRange returns bookings created within [start, end].
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return scanBookings(rows)
}

func updateBookingWithVersion(ctx context.Context, ex execer, b *models.Booking, fromStatus string) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	query := `UPDATE bookings SET
				status = ?, amount_paid = ?, payment_type = ?, refund_status = ?, release_status = ?,
				refund_processed_at = ?, released_at = ?, payout_reference = ?, funds_released = ?,
				check_in = ?, check_out = ?, room_type_id = ?, payment_record_id = ?,
				status_changed_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND version = ?`
	result, err := ex.ExecContext(ctx, query,
		b.Status, b.AmountPaid, b.PaymentType, b.RefundStatus, b.ReleaseStatus,
		b.RefundProcessedAt, b.ReleasedAt, b.PayoutReference, b.FundsReleased,
		b.CheckIn, b.CheckOut, b.RoomTypeID, b.PaymentRecordID,
		b.StatusChangedAt, b.UpdatedAt,
		b.ID, fromStatus, b.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if err := affectedOne(result); err != nil {
		return err
	}
	b.Version++
	return nil
}

// UpdateBookingWithVersion persists b's mutable fields only if the stored row
// still has fromStatus and b.Version. On success b.Version is advanced.
func (db *DB) UpdateBookingWithVersion(ctx context.Context, b *models.Booking, fromStatus string) error {
	return updateBookingWithVersion(ctx, db, b, fromStatus)
}

// CreatePaymentWithBooking stores a pending payment record and, in the same
// transaction, either advances the existing booking (b.ID != 0, guarded by
// fromStatus and version) or inserts b as a new booking.
func (db *DB) CreatePaymentWithBooking(ctx context.Context, rec *models.PaymentRecord, b *models.Booking, fromStatus string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertPaymentRecord(ctx, tx, rec); err != nil {
		return err
	}
	b.PaymentRecordID = &rec.ID

	if b.ID == 0 {
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
	} else if err := updateBookingWithVersion(ctx, tx, b, fromStatus); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}
	return nil
}
