package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trip-booking/internal/data/repository"
	"trip-booking/internal/dto/request"
	"trip-booking/internal/dto/response"
	"trip-booking/internal/inventory"
	"trip-booking/internal/lockstore"
	"trip-booking/pkg/clock"
	"trip-booking/pkg/gateway"
	"trip-booking/pkg/pricing"
	"trip-booking/pkg/utils"
)

const testSeatPrice = 150000

// testEnv wires the full service stack against in-memory backends.
type testEnv struct {
	clk        *clock.Manual
	inv        inventory.Service
	repo       *repository.Repository
	gw         *gateway.Sandbox
	booking    BookingService
	payment    PaymentService
	scheduler  *Scheduler
	reconciler *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zap.NewNop()
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := lockstore.NewMemoryStore(clk)
	inv := inventory.NewService(store, clk, log)
	repo := &repository.Repository{
		Booking: newFakeBookingRepo(clk),
		Payment: newFakePaymentRepo(clk),
	}
	gw := gateway.NewSandbox()

	booking := NewBookingService(repo, inv, pricing.FlatPricer{PerSeat: testSeatPrice}, nil, clk, log)
	payment := NewPaymentService(repo, booking, inv, gw, clk, log)
	scheduler := NewScheduler(repo, inv, booking, clk, 30*time.Second, log)
	reconciler := NewReconciler(repo, payment, gw, clk, utils.GatewayConfig{
		PollInterval: time.Minute,
		MaxAttempts:  3,
		RepollFloor:  90 * time.Second,
		Lookback:     24 * time.Hour,
	}, log)

	return &testEnv{
		clk:        clk,
		inv:        inv,
		repo:       repo,
		gw:         gw,
		booking:    booking,
		payment:    payment,
		scheduler:  scheduler,
		reconciler: reconciler,
	}
}

// holdAndBook places a hold and creates a booking on it.
func (e *testEnv) holdAndBook(t *testing.T, tripID int64, seats ...string) *response.BookingResponse {
	t.Helper()

	locks, err := e.inv.Hold(context.Background(), tripID, seats, 0, "")
	require.NoError(t, err)

	booking, err := e.booking.CreateBooking(context.Background(), &request.CreateBookingRequest{
		LockGroupID: locks[0].GroupID,
	})
	require.NoError(t, err)
	return booking
}

// initiatePayment starts a payment for a booking and returns the gateway
// transaction reference.
func (e *testEnv) initiatePayment(t *testing.T, bookingID string) string {
	t.Helper()

	resp, err := e.payment.InitiatePayment(context.Background(), &request.InitiatePaymentRequest{
		BookingID: bookingID,
		Method:    "CARD",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.PayURL)
	return resp.TransactionID
}
