package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-booking/internal/data/entity"
	"trip-booking/internal/inventory"
	"trip-booking/pkg/gateway"
)

func TestPollAllPending(t *testing.T) {
	ctx := context.Background()

	t.Run("settles a paid transaction the callback missed", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.holdAndBook(t, 7, "A1")
		txnID := env.initiatePayment(t, booking.ID)
		env.gw.SetResult(txnID, gateway.CodeSuccess, "paid at counter")

		// Too fresh to poll.
		polled, err := env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, polled)

		env.clk.Advance(2 * time.Minute)

		polled, err = env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, polled)

		txn, err := env.payment.GetTransaction(ctx, txnID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusSuccess, txn.Status)

		detail, err := env.booking.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusConfirmed, detail.Status)
	})

	t.Run("expiry is checked before confirm", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.holdAndBook(t, 7, "A1")
		txnID := env.initiatePayment(t, booking.ID)
		env.gw.SetResult(txnID, gateway.CodeSuccess, "paid late")

		env.clk.Advance(inventory.DefaultHoldTTL + time.Second)
		_, _, err := env.scheduler.TriggerCleanup(ctx)
		require.NoError(t, err)

		polled, err := env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, polled)

		txn, err := env.payment.GetTransaction(ctx, txnID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusFailed, txn.Status)
		assert.Contains(t, txn.GatewayNote, "refund required")

		detail, err := env.booking.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusExpired, detail.Status)
	})

	t.Run("respects the re-poll floor between passes", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.holdAndBook(t, 7, "A1")
		txnID := env.initiatePayment(t, booking.ID)
		env.gw.SetResult(txnID, gateway.CodeProcessing, "settling")

		env.clk.Advance(2 * time.Minute)

		polled, err := env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, polled)

		// Polled a moment ago; not again until the floor passes.
		polled, err = env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, polled)

		env.clk.Advance(2 * time.Minute)
		polled, err = env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, polled)
	})

	t.Run("writes off a transaction after the attempt budget", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.holdAndBook(t, 7, "A1")
		txnID := env.initiatePayment(t, booking.ID)
		env.gw.SetResult(txnID, gateway.CodeProcessing, "stuck")

		// MaxAttempts is 3 in the test config.
		for i := 0; i < 3; i++ {
			env.clk.Advance(2 * time.Minute)
			polled, err := env.reconciler.PollAllPending(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, polled)
		}

		txn, err := env.payment.GetTransaction(ctx, txnID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusFailed, txn.Status)
		assert.Contains(t, txn.GatewayNote, "poll budget exhausted")

		// Nothing left to poll.
		env.clk.Advance(2 * time.Minute)
		polled, err := env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, polled)

		detail, err := env.booking.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusAwaitingPayment, detail.Status)
	})

	t.Run("older than the lookback window is left alone", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.holdAndBook(t, 7, "A1")
		txnID := env.initiatePayment(t, booking.ID)
		env.gw.SetResult(txnID, gateway.CodeSuccess, "paid")

		env.clk.Advance(25 * time.Hour)

		polled, err := env.reconciler.PollAllPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, polled)
	})
}

func TestPollTransactionGatewayError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	booking := env.holdAndBook(t, 7, "A1")
	txnID := env.initiatePayment(t, booking.ID)

	// The sandbox forgets the transaction, simulating a gateway outage.
	err := env.reconciler.PollTransaction(ctx, "TXN-UNKNOWN-TO-GATEWAY")
	require.ErrorIs(t, err, entity.ErrNotFound)

	env.gw.SetResult(txnID, gateway.CodeProcessing, "settling")
	require.NoError(t, env.reconciler.PollTransaction(ctx, txnID))

	txn, err := env.payment.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusProcessing, txn.Status)
}

func TestPollTransactionSkipsSettled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	booking := env.holdAndBook(t, 7, "A1")
	txnID := env.initiatePayment(t, booking.ID)
	env.gw.SetResult(txnID, gateway.CodeSuccess, "paid")

	require.NoError(t, env.reconciler.PollTransaction(ctx, txnID))

	// Flip the scripted result; a settled transaction is not re-queried.
	env.gw.SetResult(txnID, "99", "late failure")
	require.NoError(t, env.reconciler.PollTransaction(ctx, txnID))

	txn, err := env.payment.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusSuccess, txn.Status)
}
