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

type PaymentTransactionRepository interface {
	Create(ctx context.Context, txn *entity.PaymentTransaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.PaymentTransaction, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus, note string) error

	// Reconciliation queries
	FindPendingSince(ctx context.Context, createdAfter, updatedBefore time.Time, maxAttempts, limit int) ([]*entity.PaymentTransaction, error)
	IncrementPollAttempts(ctx context.Context, id uuid.UUID) error
}

type paymentTransactionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentTransactionRepository(db database.PgxIface, log *zap.Logger) PaymentTransactionRepository {
	return &paymentTransactionRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_transaction")),
	}
}

func (r *paymentTransactionRepository) Create(ctx context.Context, txn *entity.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (id, transaction_id, booking_id, order_ref, method, status, amount, gateway_note, poll_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		txn.ID,
		txn.TransactionID,
		txn.BookingID,
		txn.OrderRef,
		txn.Method,
		txn.Status,
		txn.Amount,
		txn.GatewayNote,
		txn.PollAttempts,
		txn.CreatedAt,
		txn.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payment transaction",
			zap.Error(err),
			zap.String("transaction_id", txn.TransactionID),
			zap.String("booking_id", txn.BookingID.String()),
		)
		return fmt.Errorf("create payment transaction %s: %w", txn.TransactionID, err)
	}

	return nil
}

func (r *paymentTransactionRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.PaymentTransaction, error) {
	query := `
		SELECT id, transaction_id, booking_id, order_ref, method, status, amount, gateway_note, poll_attempts, created_at, updated_at
		FROM payment_transactions
		WHERE transaction_id = $1
	`

	var txn entity.PaymentTransaction
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&txn.ID,
		&txn.TransactionID,
		&txn.BookingID,
		&txn.OrderRef,
		&txn.Method,
		&txn.Status,
		&txn.Amount,
		&txn.GatewayNote,
		&txn.PollAttempts,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment transaction",
			zap.Error(err),
			zap.String("transaction_id", transactionID),
		)
		return nil, fmt.Errorf("find payment transaction %s: %w", transactionID, err)
	}

	return &txn, nil
}

func (r *paymentTransactionRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentTransaction, error) {
	query := `
		SELECT id, transaction_id, booking_id, order_ref, method, status, amount, gateway_note, poll_attempts, created_at, updated_at
		FROM payment_transactions
		WHERE booking_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find payment transactions by booking",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find payment transactions by booking %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var txns []*entity.PaymentTransaction
	for rows.Next() {
		var txn entity.PaymentTransaction
		err := rows.Scan(
			&txn.ID,
			&txn.TransactionID,
			&txn.BookingID,
			&txn.OrderRef,
			&txn.Method,
			&txn.Status,
			&txn.Amount,
			&txn.GatewayNote,
			&txn.PollAttempts,
			&txn.CreatedAt,
			&txn.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan payment transaction row", zap.Error(err))
			return nil, fmt.Errorf("scan payment transaction row: %w", err)
		}
		txns = append(txns, &txn)
	}

	return txns, nil
}

// UpdateStatus sets the transaction status and appends the note to the
// gateway note trail instead of replacing it, so the record keeps the full
// reconciliation history.
func (r *paymentTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus, note string) error {
	query := `
		UPDATE payment_transactions
		SET status = $2,
		    gateway_note = CASE WHEN $3 = '' THEN gateway_note
		                        WHEN gateway_note = '' THEN $3
		                        ELSE gateway_note || '; ' || $3 END,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status, note)
	if err != nil {
		r.log.Error("Failed to update payment transaction status",
			zap.Error(err),
			zap.String("id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update payment transaction %s status to %s: %w", id.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment transaction %s not found", id.String())
	}

	return nil
}

// FindPendingSince returns in-flight transactions worth polling: created
// after the lookback cutoff, last touched before the re-poll floor, and
// still under the attempt budget.
func (r *paymentTransactionRepository) FindPendingSince(ctx context.Context, createdAfter, updatedBefore time.Time, maxAttempts, limit int) ([]*entity.PaymentTransaction, error) {
	query := `
		SELECT id, transaction_id, booking_id, order_ref, method, status, amount, gateway_note, poll_attempts, created_at, updated_at
		FROM payment_transactions
		WHERE status = ANY($1) AND created_at >= $2 AND updated_at <= $3 AND poll_attempts < $4
		ORDER BY updated_at
		LIMIT $5
	`

	pending := []entity.PaymentStatus{entity.PaymentStatusInitiated, entity.PaymentStatusProcessing}

	rows, err := r.db.Query(ctx, query, pending, createdAfter, updatedBefore, maxAttempts, limit)
	if err != nil {
		r.log.Error("Failed to find pending payment transactions", zap.Error(err))
		return nil, fmt.Errorf("find pending payment transactions: %w", err)
	}
	defer rows.Close()

	var txns []*entity.PaymentTransaction
	for rows.Next() {
		var txn entity.PaymentTransaction
		err := rows.Scan(
			&txn.ID,
			&txn.TransactionID,
			&txn.BookingID,
			&txn.OrderRef,
			&txn.Method,
			&txn.Status,
			&txn.Amount,
			&txn.GatewayNote,
			&txn.PollAttempts,
			&txn.CreatedAt,
			&txn.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan payment transaction row", zap.Error(err))
			return nil, fmt.Errorf("scan payment transaction row: %w", err)
		}
		txns = append(txns, &txn)
	}

	return txns, nil
}

// IncrementPollAttempts bumps the attempt counter and touches updated_at,
// which pushes the transaction past the re-poll floor for the next run.
func (r *paymentTransactionRepository) IncrementPollAttempts(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payment_transactions SET poll_attempts = poll_attempts + 1, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to increment poll attempts",
			zap.Error(err),
			zap.String("id", id.String()),
		)
		return fmt.Errorf("increment poll attempts for %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment transaction %s not found", id.String())
	}

	return nil
}
