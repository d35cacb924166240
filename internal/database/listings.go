package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentescrow/internal/models"
)

const listingColumns = `id, kind, owner_id, title, monthly_rent, lease_term, status,
	bank_name, account_number, account_name, bank_verified, created_at, updated_at`

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.Kind, &l.OwnerID, &l.Title, &l.MonthlyRent, &l.LeaseTerm, &l.Status,
		&l.Bank.BankName, &l.Bank.AccountNumber, &l.Bank.AccountName, &l.Bank.Verified,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (db *DB) CreateListing(ctx context.Context, l *models.Listing) error {
	if l.Status == "" {
		l.Status = models.ListingDraft
	}
	query := `INSERT INTO listings (
				kind, owner_id, title, monthly_rent, lease_term, status,
				bank_name, account_number, account_name, bank_verified, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		l.Kind,
		l.OwnerID,
		l.Title,
		l.MonthlyRent,
		l.LeaseTerm,
		l.Status,
		l.Bank.BankName,
		l.Bank.AccountNumber,
		l.Bank.AccountName,
		l.Bank.Verified,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	l.ID = id
	l.CreatedAt = now
	l.UpdatedAt = now
	return nil
}

func (db *DB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	l, err := scanListing(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// GetPublishedListing returns the listing only if it has the given kind and is published.
func (db *DB) GetPublishedListing(ctx context.Context, kind string, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ? AND kind = ? AND status = ?`
	l, err := scanListing(db.QueryRowContext(ctx, query, id, kind, models.ListingPublished))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published listing: %w", err)
	}
	return l, nil
}

func (db *DB) UpdateListingStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (db *DB) UpdateListingBank(ctx context.Context, id int64, bank models.BankDetails) error {
	query := `UPDATE listings SET bank_name = ?, account_number = ?, account_name = ?, bank_verified = ?, updated_at = ?
	          WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		bank.BankName, bank.AccountNumber, bank.AccountName, bank.Verified, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update listing bank details: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (db *DB) CreateRoomType(ctx context.Context, rt *models.RoomType) error {
	query := `INSERT INTO room_types (hotel_id, name, price_per_night, available_count) VALUES (?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query, rt.HotelID, rt.Name, rt.PricePerNight, rt.AvailableCount)
	if err != nil {
		return fmt.Errorf("failed to create room type: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rt.ID = id
	return nil
}

// GetHotelRoomType returns the room type only if it belongs to the hotel.
func (db *DB) GetHotelRoomType(ctx context.Context, hotelID, roomTypeID int64) (*models.RoomType, error) {
	var rt models.RoomType
	query := `SELECT id, hotel_id, name, price_per_night, available_count FROM room_types WHERE id = ? AND hotel_id = ?`
	err := db.QueryRowContext(ctx, query, roomTypeID, hotelID).Scan(
		&rt.ID, &rt.HotelID, &rt.Name, &rt.PricePerNight, &rt.AvailableCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room type: %w", err)
	}
	return &rt, nil
}

func (db *DB) GetRoomTypes(ctx context.Context, hotelID int64) ([]*models.RoomType, error) {
	query := `SELECT id, hotel_id, name, price_per_night, available_count FROM room_types WHERE hotel_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, hotelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room types: %w", err)
	}
	defer rows.Close()

	var types []*models.RoomType
	for rows.Next() {
		rt := &models.RoomType{}
		if err := rows.Scan(&rt.ID, &rt.HotelID, &rt.Name, &rt.PricePerNight, &rt.AvailableCount); err != nil {
			return nil, fmt.Errorf("failed to scan room type: %w", err)
		}
		types = append(types, rt)
	}
	return types, rows.Err()
}
