package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
	"trip-booking/internal/data/repository"
	"trip-booking/pkg/clock"
	"trip-booking/pkg/gateway"
	"trip-booking/pkg/utils"
)

// pollBatchSize bounds one polling pass over pending transactions.
const pollBatchSize = 100

// Reconciler periodically asks the gateway for the outcome of in-flight
// payment transactions, covering customers who paid but never came back
// through the callback redirect. All state changes go through
// PaymentService.ApplyResult, so the poller and the callback share one
// set of rules.
type Reconciler struct {
	repo    *repository.Repository
	payment PaymentService
	gw      gateway.PaymentGateway
	clk     clock.Clock
	cfg     utils.GatewayConfig
	log     *zap.Logger
}

func NewReconciler(repo *repository.Repository, payment PaymentService, gw gateway.PaymentGateway, clk clock.Clock, cfg utils.GatewayConfig, log *zap.Logger) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.RepollFloor <= 0 {
		cfg.RepollFloor = 90 * time.Second
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &Reconciler{
		repo:    repo,
		payment: payment,
		gw:      gw,
		clk:     clk,
		cfg:     cfg,
		log:     log.With(zap.String("worker", "payment_reconciler")),
	}
}

// Start runs the polling loop until the context is canceled.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()

		r.log.Info("Payment reconciler started",
			zap.Duration("interval", r.cfg.PollInterval),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
		)

		for {
			select {
			case <-ctx.Done():
				r.log.Info("Payment reconciler stopped")
				return
			case <-ticker.C:
				if n, err := r.PollAllPending(ctx); err != nil {
					r.log.Error("Polling pass failed", zap.Error(err))
				} else if n > 0 {
					r.log.Info("Polling pass finished", zap.Int("polled", n))
				}
			}
		}
	}()
}

// PollAllPending polls every transaction still worth asking about: pending,
// created within the lookback window, not touched within the re-poll floor
// and under the attempt budget.
func (r *Reconciler) PollAllPending(ctx context.Context) (int, error) {
	now := r.clk.Now()
	createdAfter := now.Add(-r.cfg.Lookback)
	updatedBefore := now.Add(-r.cfg.RepollFloor)

	txns, err := r.repo.Payment.FindPendingSince(ctx, createdAfter, updatedBefore, r.cfg.MaxAttempts, pollBatchSize)
	if err != nil {
		return 0, err
	}

	polled := 0
	for _, txn := range txns {
		if err := r.poll(ctx, txn); err != nil {
			r.log.Warn("Failed to poll transaction",
				zap.Error(err),
				zap.String("transaction_id", txn.TransactionID),
			)
			continue
		}
		polled++
	}
	return polled, nil
}

// PollTransaction polls a single transaction by its gateway reference,
// backing the manual admin endpoint.
func (r *Reconciler) PollTransaction(ctx context.Context, transactionID string) error {
	txn, err := r.repo.Payment.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("payment transaction %s: %w", transactionID, entity.ErrNotFound)
	}
	if !txn.Status.IsPending() {
		return nil
	}
	return r.poll(ctx, txn)
}

func (r *Reconciler) poll(ctx context.Context, txn *entity.PaymentTransaction) error {
	if err := r.repo.Payment.IncrementPollAttempts(ctx, txn.ID); err != nil {
		return err
	}
	attempts := txn.PollAttempts + 1

	result, err := r.gw.QueryTransaction(ctx, txn.TransactionID)
	if err != nil {
		// Transaction state stays untouched on transport trouble; the
		// next pass retries.
		return fmt.Errorf("query transaction %s: %w: %w", txn.TransactionID, entity.ErrGateway, err)
	}

	if err := r.payment.ApplyResult(ctx, txn, result.Code, result.Message); err != nil {
		return err
	}

	// A transaction that is still settling after the whole attempt budget
	// is written off and left for manual follow-up.
	if mapGatewayStatus(result.Code) == entity.PaymentStatusProcessing && attempts >= r.cfg.MaxAttempts {
		note := fmt.Sprintf("poll budget exhausted after %d attempts, last gateway code %s", attempts, result.Code)
		r.log.Warn("Transaction written off after poll budget",
			zap.String("transaction_id", txn.TransactionID),
			zap.Int("attempts", attempts),
		)
		return r.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusFailed, note)
	}

	return nil
}
