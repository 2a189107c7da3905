package lockstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trip-booking/internal/data/entity"
	"trip-booking/pkg/clock"
)

// MemoryStore is the in-process Store implementation. It is the default
// backing medium for single-node deployments and the vehicle for tests.
// A single mutex spans every operation, which makes the batch check-and-set
// trivially atomic; lock volume is bounded by seats-per-trip so contention
// is not a concern at this granularity.
//
// TTL handling mirrors a store with native per-key expiry: a HELD lock past
// its deadline is invisible to reads and overwritable by new holds, and is
// physically removed (and reported) by SweepExpired.
type MemoryStore struct {
	mu    sync.Mutex
	clk   clock.Clock
	seats map[string]*entity.SeatLock // (trip, seat) -> live lock
	group map[string]map[string]bool  // groupID -> seat keys
	idem  map[string]string           // idempotency key -> groupID
	book  map[string]string           // bookingID -> groupID
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clk:   clk,
		seats: make(map[string]*entity.SeatLock),
		group: make(map[string]map[string]bool),
		idem:  make(map[string]string),
		book:  make(map[string]string),
	}
}

func seatKey(tripID int64, seatNo string) string {
	return fmt.Sprintf("%d:%s", tripID, seatNo)
}

// live returns the lock under key if it has not lapsed, dropping a lapsed
// record from all indexes as a side effect.
func (s *MemoryStore) live(key string) *entity.SeatLock {
	lock, ok := s.seats[key]
	if !ok {
		return nil
	}
	if lock.Expired(s.clk.Now()) {
		s.removeLocked(key, lock)
		return nil
	}
	return lock
}

// removeLocked deletes a lock and cleans its secondary indexes. Caller
// holds the mutex.
func (s *MemoryStore) removeLocked(key string, lock *entity.SeatLock) {
	delete(s.seats, key)
	if members, ok := s.group[lock.GroupID]; ok {
		delete(members, key)
		if len(members) == 0 {
			delete(s.group, lock.GroupID)
			delete(s.idem, lock.IdempotencyKey)
			if lock.BookingID != "" {
				delete(s.book, lock.BookingID)
			}
		}
	}
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, locks []entity.SeatLock, ttl time.Duration) ([]string, error) {
	if len(locks) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var conflicts []string
	for i := range locks {
		if s.live(seatKey(locks[i].TripID, locks[i].SeatNo)) != nil {
			conflicts = append(conflicts, locks[i].SeatNo)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	now := s.clk.Now()
	groupID := locks[0].GroupID
	members := make(map[string]bool, len(locks))
	for i := range locks {
		lock := locks[i]
		lock.State = entity.LockStateHeld
		lock.CreatedAt = now
		lock.ExpiresAt = now.Add(ttl)
		key := seatKey(lock.TripID, lock.SeatNo)
		s.seats[key] = &lock
		members[key] = true
	}
	s.group[groupID] = members
	s.idem[locks[0].IdempotencyKey] = groupID
	return nil, nil
}

func (s *MemoryStore) Get(ctx context.Context, tripID int64, seatNo string) (*entity.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.live(seatKey(tripID, seatNo))
	if lock == nil {
		return nil, nil
	}
	cp := *lock
	return &cp, nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, groupID string) ([]entity.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupLocked(groupID), nil
}

func (s *MemoryStore) groupLocked(groupID string) []entity.SeatLock {
	var out []entity.SeatLock
	for key := range s.group[groupID] {
		if lock := s.live(key); lock != nil {
			out = append(out, *lock)
		}
	}
	return out
}

func (s *MemoryStore) GetByIdempotencyKey(ctx context.Context, key string) ([]entity.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groupID, ok := s.idem[key]
	if !ok {
		return nil, nil
	}
	return s.groupLocked(groupID), nil
}

func (s *MemoryStore) GetByBooking(ctx context.Context, bookingID string) ([]entity.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groupID, ok := s.book[bookingID]
	if !ok {
		return nil, nil
	}
	return s.groupLocked(groupID), nil
}

func (s *MemoryStore) AttachBooking(ctx context.Context, groupID, bookingID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attached := 0
	for key := range s.group[groupID] {
		if lock := s.live(key); lock != nil {
			lock.BookingID = bookingID
			attached++
		}
	}
	if attached > 0 {
		s.book[bookingID] = groupID
	}
	return attached, nil
}

func (s *MemoryStore) ConfirmGroup(ctx context.Context, groupID, bookingID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	confirmed := 0
	// Presence is re-validated here, under the lock: a seat swept or lapsed
	// between the caller's read and this call is simply not counted, which
	// surfaces upstream as a conflict rather than a stale success.
	for key := range s.group[groupID] {
		lock := s.live(key)
		if lock == nil {
			continue
		}
		switch lock.State {
		case entity.LockStateHeld:
			lock.State = entity.LockStateConfirmed
			lock.BookingID = bookingID
			lock.ExpiresAt = time.Time{}
			confirmed++
		case entity.LockStateConfirmed:
			confirmed++
		}
	}
	if confirmed > 0 {
		s.book[bookingID] = groupID
	}
	return confirmed, nil
}

func (s *MemoryStore) ReleaseGroup(ctx context.Context, groupID string) ([]entity.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []entity.SeatLock
	for key := range s.group[groupID] {
		if lock, ok := s.seats[key]; ok {
			released = append(released, *lock)
			delete(s.seats, key)
		}
	}
	if len(released) > 0 {
		sample := released[0]
		delete(s.idem, sample.IdempotencyKey)
		if sample.BookingID != "" {
			delete(s.book, sample.BookingID)
		}
	}
	delete(s.group, groupID)
	return released, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) ([]entity.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []entity.SeatLock
	for key, lock := range s.seats {
		if lock.Expired(now) {
			swept = append(swept, *lock)
			s.removeLocked(key, lock)
		}
	}
	return swept, nil
}
