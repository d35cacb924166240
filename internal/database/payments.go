package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentescrow/internal/models"
)

const paymentColumns = `id, listing_type, listing_id, payer_id, payee_id, amount, payment_type,
	status, transaction_ref, checkout_url, created_at, updated_at`

func scanPayment(row rowScanner) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := row.Scan(
		&p.ID, &p.ListingType, &p.ListingID, &p.PayerID, &p.PayeeID, &p.Amount, &p.PaymentType,
		&p.Status, &p.TransactionRef, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertPaymentRecord(ctx context.Context, ex execer, p *models.PaymentRecord) error {
	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = models.PaymentPending
	}

	query := `INSERT INTO payment_records (
				listing_type, listing_id, payer_id, payee_id, amount, payment_type,
				status, transaction_ref, checkout_url, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := ex.ExecContext(ctx, query,
		p.ListingType,
		p.ListingID,
		p.PayerID,
		p.PayeeID,
		p.Amount,
		p.PaymentType,
		p.Status,
		p.TransactionRef,
		p.CheckoutURL,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert payment record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (db *DB) GetPaymentRecord(ctx context.Context, id int64) (*models.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE id = ?`
	p, err := scanPayment(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return p, nil
}

// GetPaymentByReference looks a record up by its gateway transaction reference.
func (db *DB) GetPaymentByReference(ctx context.Context, ref string) (*models.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE transaction_ref = ?`
	p, err := scanPayment(db.QueryRowContext(ctx, query, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by reference: %w", err)
	}
	return p, nil
}

// UpdatePaymentStatus moves a record from one status to another. It returns
// ErrConcurrentModification when the record is no longer in fromStatus.
func (db *DB) UpdatePaymentStatus(ctx context.Context, id int64, fromStatus, toStatus string, at time.Time) error {
	query := `UPDATE payment_records SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, toStatus, at.UTC(), id, fromStatus)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return affectedOne(result)
}

func (db *DB) SetPaymentCheckoutURL(ctx context.Context, id int64, url string) error {
	query := `UPDATE payment_records SET checkout_url = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, url, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set checkout url: %w", err)
	}
	return nil
}
