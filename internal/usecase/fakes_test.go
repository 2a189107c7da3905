package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trip-booking/internal/data/entity"
	"trip-booking/pkg/clock"
)

// In-memory repositories backing the service tests. They mirror the SQL
// semantics the real ones rely on: compare-and-set status updates and
// appended gateway notes.

type fakeBookingRepo struct {
	mu       sync.Mutex
	clk      clock.Clock
	bookings map[uuid.UUID]entity.Booking
}

func newFakeBookingRepo(clk clock.Clock) *fakeBookingRepo {
	return &fakeBookingRepo{clk: clk, bookings: make(map[uuid.UUID]entity.Booking)}
}

func (r *fakeBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (r *fakeBookingRepo) FindByCode(ctx context.Context, code string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, booking := range r.bookings {
		if booking.Code == code {
			b := booking
			return &b, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) FindByLockGroupID(ctx context.Context, groupID string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, booking := range r.bookings {
		if booking.LockGroupID == groupID {
			b := booking
			return &b, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) FindAll(ctx context.Context, limit, offset int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.Booking
	for _, booking := range r.bookings {
		b := booking
		all = append(all, &b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeBookingRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.bookings)), nil
}

func (r *fakeBookingRepo) UpdateStatusFrom(ctx context.Context, bookingID uuid.UUID, from, to entity.BookingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[bookingID]
	if !ok || booking.Status != from {
		return false, nil
	}
	booking.Status = to
	booking.UpdatedAt = r.clk.Now()
	r.bookings[bookingID] = booking
	return true, nil
}

func (r *fakeBookingRepo) FindExpiredAwaitingPayment(ctx context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, booking := range r.bookings {
		if booking.Status == entity.BookingStatusAwaitingPayment && !booking.ExpiresAt.After(now) {
			b := booking
			out = append(out, &b)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CountExpiredAwaitingPayment(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, booking := range r.bookings {
		if booking.Status == entity.BookingStatusAwaitingPayment && !booking.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

type fakePaymentRepo struct {
	mu   sync.Mutex
	clk  clock.Clock
	txns map[uuid.UUID]entity.PaymentTransaction
}

func newFakePaymentRepo(clk clock.Clock) *fakePaymentRepo {
	return &fakePaymentRepo{clk: clk, txns: make(map[uuid.UUID]entity.PaymentTransaction)}
}

func (r *fakePaymentRepo) Create(ctx context.Context, txn *entity.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[txn.ID] = *txn
	return nil
}

func (r *fakePaymentRepo) FindByTransactionID(ctx context.Context, transactionID string) (*entity.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.TransactionID == transactionID {
			t := txn
			return &t, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PaymentTransaction
	for _, txn := range r.txns {
		if txn.BookingID == bookingID {
			t := txn
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakePaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.PaymentStatus, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil
	}
	txn.Status = status
	switch {
	case note == "":
	case txn.GatewayNote == "":
		txn.GatewayNote = note
	default:
		txn.GatewayNote = txn.GatewayNote + "; " + note
	}
	txn.UpdatedAt = r.clk.Now()
	r.txns[id] = txn
	return nil
}

func (r *fakePaymentRepo) FindPendingSince(ctx context.Context, createdAfter, updatedBefore time.Time, maxAttempts, limit int) ([]*entity.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PaymentTransaction
	for _, txn := range r.txns {
		if !txn.Status.IsPending() {
			continue
		}
		if txn.CreatedAt.Before(createdAfter) || txn.UpdatedAt.After(updatedBefore) {
			continue
		}
		if txn.PollAttempts >= maxAttempts {
			continue
		}
		t := txn
		out = append(out, &t)
		if len(out) == limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakePaymentRepo) IncrementPollAttempts(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil
	}
	txn.PollAttempts++
	txn.UpdatedAt = r.clk.Now()
	r.txns[id] = txn
	return nil
}
