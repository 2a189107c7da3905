package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
	"trip-booking/pkg/database"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByCode(ctx context.Context, code string) (*entity.Booking, error)
	FindByLockGroupID(ctx context.Context, groupID string) (*entity.Booking, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.Booking, error)
	Count(ctx context.Context) (int64, error)

	// State machine queries
	UpdateStatusFrom(ctx context.Context, bookingID uuid.UUID, from, to entity.BookingStatus) (bool, error)
	FindExpiredAwaitingPayment(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error)
	CountExpiredAwaitingPayment(ctx context.Context, now time.Time) (int64, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, code, trip_id, lock_group_id, quantity, total_amount, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.Code,
		booking.TripID,
		booking.LockGroupID,
		booking.Quantity,
		booking.TotalAmount,
		booking.Status,
		booking.ExpiresAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("code", booking.Code),
			zap.Int64("trip_id", booking.TripID),
		)
		return fmt.Errorf("create booking %s: %w", booking.Code, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `
		SELECT id, code, trip_id, lock_group_id, quantity, total_amount, status, expires_at, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`

	booking, err := r.scanOne(r.db.QueryRow(ctx, query, id))
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByCode(ctx context.Context, code string) (*entity.Booking, error) {
	query := `
		SELECT id, code, trip_id, lock_group_id, quantity, total_amount, status, expires_at, created_at, updated_at
		FROM bookings
		WHERE code = $1
	`

	booking, err := r.scanOne(r.db.QueryRow(ctx, query, code))
	if err != nil {
		r.log.Error("Failed to find booking by code",
			zap.Error(err),
			zap.String("code", code),
		)
		return nil, fmt.Errorf("find booking by code %s: %w", code, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByLockGroupID(ctx context.Context, groupID string) (*entity.Booking, error) {
	query := `
		SELECT id, code, trip_id, lock_group_id, quantity, total_amount, status, expires_at, created_at, updated_at
		FROM bookings
		WHERE lock_group_id = $1
	`

	booking, err := r.scanOne(r.db.QueryRow(ctx, query, groupID))
	if err != nil {
		r.log.Error("Failed to find booking by lock group",
			zap.Error(err),
			zap.String("lock_group_id", groupID),
		)
		return nil, fmt.Errorf("find booking by lock group %s: %w", groupID, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT id, code, trip_id, lock_group_id, quantity, total_amount, status, expires_at, created_at, updated_at
		FROM bookings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list bookings",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *bookingRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings`

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

// UpdateStatusFrom moves a booking from one status to another only when it
// still is in the expected source status. The compare-and-set makes
// concurrent confirm, cancel and expiry attempts settle on exactly one
// winner; false means the booking was no longer in the source status.
func (r *bookingRepository) UpdateStatusFrom(ctx context.Context, bookingID uuid.UUID, from, to entity.BookingStatus) (bool, error) {
	query := `UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := r.db.Exec(ctx, query, bookingID, from, to)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update booking %s status %s -> %s: %w", bookingID.String(), string(from), string(to), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) FindExpiredAwaitingPayment(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	query := `
		SELECT id, code, trip_id, lock_group_id, quantity, total_amount, status, expires_at, created_at, updated_at
		FROM bookings
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, entity.BookingStatusAwaitingPayment, now, limit)
	if err != nil {
		r.log.Error("Failed to find expired bookings", zap.Error(err))
		return nil, fmt.Errorf("find expired bookings: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *bookingRepository) CountExpiredAwaitingPayment(ctx context.Context, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE status = $1 AND expires_at <= $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, entity.BookingStatusAwaitingPayment, now).Scan(&count); err != nil {
		r.log.Error("Failed to count expired bookings", zap.Error(err))
		return 0, fmt.Errorf("count expired bookings: %w", err)
	}

	return count, nil
}

func (r *bookingRepository) scanOne(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.Code,
		&booking.TripID,
		&booking.LockGroupID,
		&booking.Quantity,
		&booking.TotalAmount,
		&booking.Status,
		&booking.ExpiresAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) scanRows(rows pgx.Rows) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	for rows.Next() {
		var booking entity.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.Code,
			&booking.TripID,
			&booking.LockGroupID,
			&booking.Quantity,
			&booking.TotalAmount,
			&booking.Status,
			&booking.ExpiresAt,
			&booking.CreatedAt,
			&booking.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, &booking)
	}
	return bookings, nil
}
