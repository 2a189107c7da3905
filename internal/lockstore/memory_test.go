package lockstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-booking/internal/data/entity"
	"trip-booking/pkg/clock"
)

func newTestStore(t *testing.T) (*MemoryStore, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return NewMemoryStore(clk), clk
}

func makeLocks(tripID int64, groupID, idemKey string, expiresAt time.Time, seats ...string) []entity.SeatLock {
	locks := make([]entity.SeatLock, 0, len(seats))
	for _, seat := range seats {
		locks = append(locks, entity.SeatLock{
			TripID:         tripID,
			SeatNo:         seat,
			GroupID:        groupID,
			State:          entity.LockStateHeld,
			ExpiresAt:      expiresAt,
			IdempotencyKey: idemKey,
		})
	}
	return locks
}

func TestMemoryStorePutIfAbsent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		preHeld       []string
		request       []string
		wantConflicts []string
	}{
		{
			name:    "all seats free",
			request: []string{"A1", "A2", "A3"},
		},
		{
			name:          "one seat taken blocks the whole batch",
			preHeld:       []string{"A2"},
			request:       []string{"A1", "A2", "A3"},
			wantConflicts: []string{"A2"},
		},
		{
			name:          "all seats taken",
			preHeld:       []string{"B1", "B2"},
			request:       []string{"B1", "B2"},
			wantConflicts: []string{"B1", "B2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, clk := newTestStore(t)
			expiresAt := clk.Now().Add(3 * time.Minute)

			if len(tt.preHeld) > 0 {
				conflicts, err := store.PutIfAbsent(ctx, makeLocks(7, "g-pre", "idem-pre", expiresAt, tt.preHeld...), 3*time.Minute)
				require.NoError(t, err)
				require.Empty(t, conflicts)
			}

			conflicts, err := store.PutIfAbsent(ctx, makeLocks(7, "g-new", "idem-new", expiresAt, tt.request...), 3*time.Minute)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantConflicts, conflicts)

			if len(tt.wantConflicts) > 0 {
				// A failed batch must not leave partial locks behind.
				group, err := store.GetGroup(ctx, "g-new")
				require.NoError(t, err)
				assert.Empty(t, group)
			} else {
				group, err := store.GetGroup(ctx, "g-new")
				require.NoError(t, err)
				assert.Len(t, group, len(tt.request))
			}
		})
	}
}

func TestMemoryStoreSeatsOnDifferentTripsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	expiresAt := clk.Now().Add(3 * time.Minute)

	conflicts, err := store.PutIfAbsent(ctx, makeLocks(1, "g1", "k1", expiresAt, "A1"), 3*time.Minute)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	conflicts, err = store.PutIfAbsent(ctx, makeLocks(2, "g2", "k2", expiresAt, "A1"), 3*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestMemoryStoreExpiredLockFreesSeat(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	expiresAt := clk.Now().Add(3 * time.Minute)

	conflicts, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", expiresAt, "A1"), 3*time.Minute)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	clk.Advance(3*time.Minute + time.Second)

	lock, err := store.Get(ctx, 7, "A1")
	require.NoError(t, err)
	assert.Nil(t, lock, "expired lock should be invisible")

	conflicts, err = store.PutIfAbsent(ctx, makeLocks(7, "g2", "k2", clk.Now().Add(3*time.Minute), "A1"), 3*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, conflicts, "expired seat should be free for a new hold")
}

func TestMemoryStoreIdempotencyIndex(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	expiresAt := clk.Now().Add(3 * time.Minute)

	_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "key-1", expiresAt, "A1", "A2"), 3*time.Minute)
	require.NoError(t, err)

	locks, err := store.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, "g1", locks[0].GroupID)

	locks, err = store.GetByIdempotencyKey(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, locks)

	// Once the hold lapses the key resolves to nothing and a retry is a
	// fresh hold.
	clk.Advance(4 * time.Minute)
	locks, err = store.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestMemoryStoreAttachBooking(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	expiresAt := clk.Now().Add(3 * time.Minute)

	_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", expiresAt, "A1", "A2"), 3*time.Minute)
	require.NoError(t, err)

	n, err := store.AttachBooking(ctx, "g1", "bk-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	locks, err := store.GetByBooking(ctx, "bk-1")
	require.NoError(t, err)
	require.Len(t, locks, 2)
	for _, l := range locks {
		assert.Equal(t, "bk-1", l.BookingID)
		assert.Equal(t, entity.LockStateHeld, l.State)
	}

	n, err = store.AttachBooking(ctx, "missing-group", "bk-2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreConfirmGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm flips held locks and clears expiry", func(t *testing.T) {
		store, clk := newTestStore(t)
		_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1", "A2"), 3*time.Minute)
		require.NoError(t, err)

		n, err := store.ConfirmGroup(ctx, "g1", "bk-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		locks, err := store.GetGroup(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, locks, 2)
		for _, l := range locks {
			assert.Equal(t, entity.LockStateConfirmed, l.State)
			assert.Equal(t, "bk-1", l.BookingID)
			assert.True(t, l.ExpiresAt.IsZero())
		}
	})

	t.Run("confirm is idempotent", func(t *testing.T) {
		store, clk := newTestStore(t)
		_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1", "A2"), 3*time.Minute)
		require.NoError(t, err)

		n, err := store.ConfirmGroup(ctx, "g1", "bk-1")
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = store.ConfirmGroup(ctx, "g1", "bk-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n, "second confirm counts the already confirmed locks")
	})

	t.Run("confirm after expiry finds nothing", func(t *testing.T) {
		store, clk := newTestStore(t)
		_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1", "A2"), 3*time.Minute)
		require.NoError(t, err)

		clk.Advance(4 * time.Minute)

		n, err := store.ConfirmGroup(ctx, "g1", "bk-1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("confirmed locks survive the clock", func(t *testing.T) {
		store, clk := newTestStore(t)
		_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1"), 3*time.Minute)
		require.NoError(t, err)

		_, err = store.ConfirmGroup(ctx, "g1", "bk-1")
		require.NoError(t, err)

		clk.Advance(48 * time.Hour)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, entity.LockStateConfirmed, lock.State)
	})
}

func TestMemoryStoreReleaseGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("release frees held seats", func(t *testing.T) {
		store, clk := newTestStore(t)
		_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1", "A2"), 3*time.Minute)
		require.NoError(t, err)

		released, err := store.ReleaseGroup(ctx, "g1")
		require.NoError(t, err)
		assert.Len(t, released, 2)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("release works on confirmed locks too", func(t *testing.T) {
		store, clk := newTestStore(t)
		_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1"), 3*time.Minute)
		require.NoError(t, err)
		_, err = store.ConfirmGroup(ctx, "g1", "bk-1")
		require.NoError(t, err)

		released, err := store.ReleaseGroup(ctx, "g1")
		require.NoError(t, err)
		assert.Len(t, released, 1)

		locks, err := store.GetByBooking(ctx, "bk-1")
		require.NoError(t, err)
		assert.Empty(t, locks, "booking index is cleaned on release")
	})

	t.Run("release of unknown group is a no-op", func(t *testing.T) {
		store, _ := newTestStore(t)
		released, err := store.ReleaseGroup(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, released)
	})
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)

	// Three groups: one lapsing, one still live, one confirmed.
	_, err := store.PutIfAbsent(ctx, makeLocks(7, "g-old", "k1", clk.Now().Add(1*time.Minute), "A1", "A2"), 1*time.Minute)
	require.NoError(t, err)
	_, err = store.PutIfAbsent(ctx, makeLocks(7, "g-live", "k2", clk.Now().Add(10*time.Minute), "B1"), 10*time.Minute)
	require.NoError(t, err)
	_, err = store.PutIfAbsent(ctx, makeLocks(7, "g-paid", "k3", clk.Now().Add(1*time.Minute), "C1"), 1*time.Minute)
	require.NoError(t, err)
	_, err = store.ConfirmGroup(ctx, "g-paid", "bk-paid")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	swept, err := store.SweepExpired(ctx, clk.Now())
	require.NoError(t, err)
	require.Len(t, swept, 2)
	for _, l := range swept {
		assert.Equal(t, "g-old", l.GroupID)
	}

	// Live and confirmed locks must be untouched.
	live, err := store.Get(ctx, 7, "B1")
	require.NoError(t, err)
	assert.NotNil(t, live)

	paid, err := store.Get(ctx, 7, "C1")
	require.NoError(t, err)
	require.NotNil(t, paid)
	assert.Equal(t, entity.LockStateConfirmed, paid.State)

	// A second sweep finds nothing new.
	swept, err = store.SweepExpired(ctx, clk.Now())
	require.NoError(t, err)
	assert.Empty(t, swept)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	_, err := store.PutIfAbsent(ctx, makeLocks(7, "g1", "k1", clk.Now().Add(3*time.Minute), "A1"), 3*time.Minute)
	require.NoError(t, err)

	lock, err := store.Get(ctx, 7, "A1")
	require.NoError(t, err)
	require.NotNil(t, lock)
	lock.State = entity.LockStateConfirmed

	again, err := store.Get(ctx, 7, "A1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, entity.LockStateHeld, again.State, "callers must not be able to mutate store state")
}
