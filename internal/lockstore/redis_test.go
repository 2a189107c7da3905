package lockstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, zap.NewNop()), mr
}

func TestRedisStoreHoldConfirmRelease(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("overlapping hold reports the taken seats", func(t *testing.T) {
		store, _ := newRedisTestStore(t)

		conflicts, err := store.PutIfAbsent(ctx, makeLocks(7, "G1", "idem-1", base.Add(time.Minute), "A1", "A2"), time.Minute)
		require.NoError(t, err)
		assert.Empty(t, conflicts)

		conflicts, err = store.PutIfAbsent(ctx, makeLocks(7, "G2", "idem-2", base.Add(time.Minute), "A2", "A3"), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, []string{"A2"}, conflicts)

		// The rejected batch must leave nothing behind.
		lock, err := store.Get(ctx, 7, "A3")
		require.NoError(t, err)
		assert.Nil(t, lock)
	})

	t.Run("confirm persists locks and release frees them", func(t *testing.T) {
		store, _ := newRedisTestStore(t)

		_, err := store.PutIfAbsent(ctx, makeLocks(7, "G1", "idem-1", base.Add(time.Minute), "A1", "A2"), time.Minute)
		require.NoError(t, err)

		n, err := store.ConfirmGroup(ctx, "G1", "booking-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, entity.LockStateConfirmed, lock.State)
		assert.Equal(t, "booking-1", lock.BookingID)

		released, err := store.ReleaseGroup(ctx, "G1")
		require.NoError(t, err)
		assert.Len(t, released, 2)

		lock, err = store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		assert.Nil(t, lock)

		locks, err := store.GetByBooking(ctx, "booking-1")
		require.NoError(t, err)
		assert.Empty(t, locks)
	})
}

// The group and meta hashes carry no TTL, so once a hold's seat keys lapse
// another group can re-hold the same seats while the dead group's records
// linger. No operation addressed to the dead group may then touch the new
// group's locks.
func TestRedisStoreStaleGroup(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 200 * time.Millisecond

	// lapseAndRehold lets G1's hold on A1 lapse by native TTL, then
	// re-holds the seat under G2.
	lapseAndRehold := func(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
		t.Helper()
		store, mr := newRedisTestStore(t)

		_, err := store.PutIfAbsent(ctx, makeLocks(7, "G1", "idem-1", base.Add(ttl), "A1"), ttl)
		require.NoError(t, err)
		mr.FastForward(ttl + 50*time.Millisecond)

		conflicts, err := store.PutIfAbsent(ctx, makeLocks(7, "G2", "idem-2", base.Add(time.Hour), "A1"), time.Hour)
		require.NoError(t, err)
		require.Empty(t, conflicts)
		return store, mr
	}

	t.Run("confirm of the dead group leaves the new hold alone", func(t *testing.T) {
		store, _ := lapseAndRehold(t)

		n, err := store.ConfirmGroup(ctx, "G1", "booking-of-g1")
		require.NoError(t, err)
		assert.Zero(t, n)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "G2", lock.GroupID)
		assert.Equal(t, entity.LockStateHeld, lock.State)
		assert.Empty(t, lock.BookingID)
	})

	t.Run("attach to the dead group leaves the new hold alone", func(t *testing.T) {
		store, _ := lapseAndRehold(t)

		n, err := store.AttachBooking(ctx, "G1", "booking-of-g1")
		require.NoError(t, err)
		assert.Zero(t, n)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Empty(t, lock.BookingID)
	})

	t.Run("release of the dead group leaves the new hold alone", func(t *testing.T) {
		store, _ := lapseAndRehold(t)

		released, err := store.ReleaseGroup(ctx, "G1")
		require.NoError(t, err)
		assert.Empty(t, released)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "G2", lock.GroupID)
	})

	t.Run("dead group reads never surface the new hold", func(t *testing.T) {
		store, _ := lapseAndRehold(t)

		locks, err := store.GetGroup(ctx, "G1")
		require.NoError(t, err)
		assert.Empty(t, locks)
	})
}

func TestRedisStoreSweepExpired(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 200 * time.Millisecond

	t.Run("reports lapsed holds and clears their records", func(t *testing.T) {
		store, mr := newRedisTestStore(t)

		_, err := store.PutIfAbsent(ctx, makeLocks(7, "G1", "idem-1", base.Add(ttl), "A1", "A2"), ttl)
		require.NoError(t, err)
		mr.FastForward(ttl + 50*time.Millisecond)

		swept, err := store.SweepExpired(ctx, base.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, swept, 2)
		for _, lock := range swept {
			assert.Equal(t, "G1", lock.GroupID)
		}

		// Gone for good, including the metadata.
		swept, err = store.SweepExpired(ctx, base.Add(time.Second))
		require.NoError(t, err)
		assert.Empty(t, swept)
	})

	t.Run("never touches a confirmed group", func(t *testing.T) {
		store, _ := newRedisTestStore(t)

		_, err := store.PutIfAbsent(ctx, makeLocks(7, "G1", "idem-1", base.Add(ttl), "A1"), ttl)
		require.NoError(t, err)
		n, err := store.ConfirmGroup(ctx, "G1", "booking-1")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		swept, err := store.SweepExpired(ctx, base.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, swept)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, entity.LockStateConfirmed, lock.State)
	})

	t.Run("sweeping a dead group leaves a re-held seat alive", func(t *testing.T) {
		store, mr := newRedisTestStore(t)

		_, err := store.PutIfAbsent(ctx, makeLocks(7, "G1", "idem-1", base.Add(ttl), "A1"), ttl)
		require.NoError(t, err)
		mr.FastForward(ttl + 50*time.Millisecond)

		conflicts, err := store.PutIfAbsent(ctx, makeLocks(7, "G2", "idem-2", base.Add(time.Hour), "A1"), time.Hour)
		require.NoError(t, err)
		require.Empty(t, conflicts)

		// G1 is reported as swept so its booking can be expired, but G2's
		// live lock on the same seat must survive.
		swept, err := store.SweepExpired(ctx, base.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, swept, 1)
		assert.Equal(t, "G1", swept[0].GroupID)

		lock, err := store.Get(ctx, 7, "A1")
		require.NoError(t, err)
		require.NotNil(t, lock)
		assert.Equal(t, "G2", lock.GroupID)
		assert.Equal(t, entity.LockStateHeld, lock.State)
	})
}
