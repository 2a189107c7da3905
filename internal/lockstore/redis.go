package lockstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
)

// RedisStore keeps seat locks in Redis so multiple booking nodes share one
// inventory. Layout:
//
//	seatlock:seat:{trip}:{seat}  JSON lock, PX TTL while HELD, persisted on confirm
//	seatlock:group:{group}       hash seatNo -> seat key (group membership index)
//	seatlock:meta:{group}        hash trip_id/booking_id/idem_key/state/expires_at
//	seatlock:idem:{key}          idempotency key -> group id, same TTL as the hold
//	seatlock:booking:{booking}   booking id -> group id
//
// The native key TTL frees seats even if the sweep stops running; the sweep
// garbage-collects group metadata and reports which bookings lost their
// holds. Every multi-key mutation runs as a Lua script so the check and the
// write are a single atomic step on the server. The group and meta hashes
// outlive the seat keys, so each script verifies a seat key still carries
// this group's lock before touching it; a seat re-held by another group
// after the TTL lapsed belongs to that group alone.
type RedisStore struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisStore(rdb *redis.Client, log *zap.Logger) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		log: log.With(zap.String("store", "seatlock-redis")),
	}
}

func redisSeatKey(tripID int64, seatNo string) string {
	return fmt.Sprintf("seatlock:seat:%d:%s", tripID, seatNo)
}

func redisGroupKey(groupID string) string { return "seatlock:group:" + groupID }
func redisMetaKey(groupID string) string  { return "seatlock:meta:" + groupID }
func redisIdemKey(key string) string      { return "seatlock:idem:" + key }
func redisBookingKey(id string) string    { return "seatlock:booking:" + id }

// holdScript checks every seat key and inserts the whole batch only when
// none exist. KEYS: group hash, meta hash, idem key, then one key per seat.
// ARGV: ttl millis, group id, trip id, idem key, expires_at RFC3339, then
// (seatNo, lockJSON) pairs aligned with the seat keys.
var holdScript = redis.NewScript(`
local conflicts = {}
for i = 4, #KEYS do
  if redis.call('EXISTS', KEYS[i]) == 1 then
    table.insert(conflicts, ARGV[6 + 2*(i-4)])
  end
end
if #conflicts > 0 then
  return conflicts
end
for i = 4, #KEYS do
  local seatNo = ARGV[6 + 2*(i-4)]
  local lockJSON = ARGV[7 + 2*(i-4)]
  redis.call('SET', KEYS[i], lockJSON, 'PX', ARGV[1])
  redis.call('HSET', KEYS[1], seatNo, KEYS[i])
end
redis.call('HSET', KEYS[2],
  'group_id', ARGV[2], 'trip_id', ARGV[3], 'idem_key', ARGV[4],
  'state', 'HELD', 'expires_at', ARGV[5], 'booking_id', '')
redis.call('SET', KEYS[3], ARGV[2], 'PX', ARGV[1])
return {}
`)

// attachScript stamps a booking id on every surviving lock in a group,
// keeping each key's remaining TTL. The group hash carries no TTL, so a
// seat key it points at may by now belong to a different group that
// re-held the seat after this one lapsed; such a lock must never be
// touched, and its stale hash entry is dropped. KEYS: group hash, meta
// hash, booking index key. ARGV: booking id, group id.
var attachScript = redis.NewScript(`
local attached = 0
local members = redis.call('HGETALL', KEYS[1])
for i = 1, #members, 2 do
  local seatKey = members[i+1]
  local raw = redis.call('GET', seatKey)
  if raw then
    local lock = cjson.decode(raw)
    if lock['group_id'] == ARGV[2] then
      lock['booking_id'] = ARGV[1]
      redis.call('SET', seatKey, cjson.encode(lock), 'KEEPTTL')
      attached = attached + 1
    else
      redis.call('HDEL', KEYS[1], members[i])
    end
  else
    redis.call('HDEL', KEYS[1], members[i])
  end
end
if attached > 0 then
  redis.call('HSET', KEYS[2], 'booking_id', ARGV[1])
  redis.call('SET', KEYS[3], ARGV[2])
end
return attached
`)

// confirmScript re-validates presence and ownership at the moment of the
// flip: a lock the TTL already removed is not counted, and a seat key that
// now holds another group's lock is left alone, so a racing sweep or
// re-hold surfaces as a conflict upstream instead of a stale success.
// KEYS: group hash, meta hash, booking index key. ARGV: booking id,
// group id.
var confirmScript = redis.NewScript(`
local confirmed = 0
local members = redis.call('HGETALL', KEYS[1])
for i = 1, #members, 2 do
  local seatKey = members[i+1]
  local raw = redis.call('GET', seatKey)
  if raw then
    local lock = cjson.decode(raw)
    if lock['group_id'] ~= ARGV[2] then
      redis.call('HDEL', KEYS[1], members[i])
    elseif lock['state'] == 'HELD' then
      lock['state'] = 'CONFIRMED'
      lock['booking_id'] = ARGV[1]
      lock['expires_at'] = '0001-01-01T00:00:00Z'
      redis.call('SET', seatKey, cjson.encode(lock))
      redis.call('PERSIST', seatKey)
      confirmed = confirmed + 1
    elseif lock['state'] == 'CONFIRMED' then
      confirmed = confirmed + 1
    end
  else
    redis.call('HDEL', KEYS[1], members[i])
  end
end
if confirmed > 0 then
  redis.call('HSET', KEYS[2], 'state', 'CONFIRMED', 'booking_id', ARGV[1])
  redis.call('PERSIST', KEYS[1])
  redis.call('PERSIST', KEYS[2])
  redis.call('SET', KEYS[3], ARGV[2])
end
return confirmed
`)

// releaseScript deletes a group's locks and every index record in one
// atomic step. Only seat keys still carrying this group's lock are
// deleted; a seat another group re-held after this one lapsed stays put.
// Returns the raw lock JSON of every seat actually released. KEYS: group
// hash, meta hash. ARGV: group id.
var releaseScript = redis.NewScript(`
local released = {}
local idem = redis.call('HGET', KEYS[2], 'idem_key')
local booking = redis.call('HGET', KEYS[2], 'booking_id')
local members = redis.call('HGETALL', KEYS[1])
for i = 1, #members, 2 do
  local seatKey = members[i+1]
  local raw = redis.call('GET', seatKey)
  if raw then
    local lock = cjson.decode(raw)
    if lock['group_id'] == ARGV[1] then
      table.insert(released, raw)
      redis.call('DEL', seatKey)
    end
  end
end
redis.call('DEL', KEYS[1], KEYS[2])
if idem and idem ~= '' then
  redis.call('DEL', 'seatlock:idem:' .. idem)
end
if booking and booking ~= '' then
  redis.call('DEL', 'seatlock:booking:' .. booking)
end
return released
`)

// sweepScript removes one expired group. The HELD check runs here, inside
// the script, so a confirm that lands after the caller's read wins: the
// group is skipped untouched. Seat keys are deleted only while they still
// hold this group's HELD lock. Returns the swept seat numbers, empty when
// the group was no longer sweepable. KEYS: group hash, meta hash. ARGV:
// group id.
var sweepScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], 'state') ~= 'HELD' then
  return {}
end
local idem = redis.call('HGET', KEYS[2], 'idem_key')
local booking = redis.call('HGET', KEYS[2], 'booking_id')
local seats = {}
local members = redis.call('HGETALL', KEYS[1])
for i = 1, #members, 2 do
  local seatKey = members[i+1]
  local raw = redis.call('GET', seatKey)
  if raw then
    local lock = cjson.decode(raw)
    if lock['group_id'] == ARGV[1] and lock['state'] == 'HELD' then
      redis.call('DEL', seatKey)
    end
  end
  table.insert(seats, members[i])
end
redis.call('DEL', KEYS[1], KEYS[2])
if idem and idem ~= '' then
  redis.call('DEL', 'seatlock:idem:' .. idem)
end
if booking and booking ~= '' then
  redis.call('DEL', 'seatlock:booking:' .. booking)
end
return seats
`)

func (s *RedisStore) PutIfAbsent(ctx context.Context, locks []entity.SeatLock, ttl time.Duration) ([]string, error) {
	if len(locks) == 0 {
		return nil, nil
	}
	groupID := locks[0].GroupID
	expiresAt := locks[0].ExpiresAt

	keys := []string{redisGroupKey(groupID), redisMetaKey(groupID), redisIdemKey(locks[0].IdempotencyKey)}
	argv := []interface{}{
		ttl.Milliseconds(),
		groupID,
		strconv.FormatInt(locks[0].TripID, 10),
		locks[0].IdempotencyKey,
		expiresAt.Format(time.RFC3339Nano),
	}
	for i := range locks {
		keys = append(keys, redisSeatKey(locks[i].TripID, locks[i].SeatNo))
		raw, err := json.Marshal(locks[i])
		if err != nil {
			return nil, fmt.Errorf("marshal seat lock %s: %w", locks[i].SeatNo, err)
		}
		argv = append(argv, locks[i].SeatNo, string(raw))
	}

	res, err := holdScript.Run(ctx, s.rdb, keys, argv...).Slice()
	if err != nil {
		return nil, fmt.Errorf("hold script for group %s: %w", groupID, err)
	}
	if len(res) > 0 {
		conflicts := make([]string, 0, len(res))
		for _, v := range res {
			conflicts = append(conflicts, fmt.Sprint(v))
		}
		return conflicts, nil
	}
	return nil, nil
}

func (s *RedisStore) Get(ctx context.Context, tripID int64, seatNo string) (*entity.SeatLock, error) {
	raw, err := s.rdb.Get(ctx, redisSeatKey(tripID, seatNo)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get seat lock %d/%s: %w", tripID, seatNo, err)
	}
	var lock entity.SeatLock
	if err := json.Unmarshal([]byte(raw), &lock); err != nil {
		return nil, fmt.Errorf("decode seat lock %d/%s: %w", tripID, seatNo, err)
	}
	return &lock, nil
}

func (s *RedisStore) GetGroup(ctx context.Context, groupID string) ([]entity.SeatLock, error) {
	members, err := s.rdb.HGetAll(ctx, redisGroupKey(groupID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", groupID, err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	var locks []entity.SeatLock
	for _, seatKey := range members {
		raw, err := s.rdb.Get(ctx, seatKey).Result()
		if err == redis.Nil {
			continue // lapsed under us
		}
		if err != nil {
			return nil, fmt.Errorf("get group %s member %s: %w", groupID, seatKey, err)
		}
		var lock entity.SeatLock
		if err := json.Unmarshal([]byte(raw), &lock); err != nil {
			return nil, fmt.Errorf("decode group %s member %s: %w", groupID, seatKey, err)
		}
		if lock.GroupID != groupID {
			// The seat lapsed and another group re-held it; the stale
			// hash entry does not make that lock ours.
			continue
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func (s *RedisStore) GetByIdempotencyKey(ctx context.Context, key string) ([]entity.SeatLock, error) {
	groupID, err := s.rdb.Get(ctx, redisIdemKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve idempotency key: %w", err)
	}
	return s.GetGroup(ctx, groupID)
}

func (s *RedisStore) GetByBooking(ctx context.Context, bookingID string) ([]entity.SeatLock, error) {
	groupID, err := s.rdb.Get(ctx, redisBookingKey(bookingID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve booking %s group: %w", bookingID, err)
	}
	return s.GetGroup(ctx, groupID)
}

func (s *RedisStore) AttachBooking(ctx context.Context, groupID, bookingID string) (int, error) {
	keys := []string{redisGroupKey(groupID), redisMetaKey(groupID), redisBookingKey(bookingID)}
	n, err := attachScript.Run(ctx, s.rdb, keys, bookingID, groupID).Int()
	if err != nil {
		return 0, fmt.Errorf("attach booking %s to group %s: %w", bookingID, groupID, err)
	}
	return n, nil
}

func (s *RedisStore) ConfirmGroup(ctx context.Context, groupID, bookingID string) (int, error) {
	keys := []string{redisGroupKey(groupID), redisMetaKey(groupID), redisBookingKey(bookingID)}
	n, err := confirmScript.Run(ctx, s.rdb, keys, bookingID, groupID).Int()
	if err != nil {
		return 0, fmt.Errorf("confirm group %s: %w", groupID, err)
	}
	return n, nil
}

func (s *RedisStore) ReleaseGroup(ctx context.Context, groupID string) ([]entity.SeatLock, error) {
	keys := []string{redisGroupKey(groupID), redisMetaKey(groupID)}
	res, err := releaseScript.Run(ctx, s.rdb, keys, groupID).Slice()
	if err != nil {
		return nil, fmt.Errorf("release group %s: %w", groupID, err)
	}

	var locks []entity.SeatLock
	for _, v := range res {
		var lock entity.SeatLock
		if err := json.Unmarshal([]byte(fmt.Sprint(v)), &lock); err != nil {
			return nil, fmt.Errorf("decode released lock of group %s: %w", groupID, err)
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) ([]entity.SeatLock, error) {
	var swept []entity.SeatLock
	iter := s.rdb.Scan(ctx, 0, "seatlock:meta:*", 200).Iterator()
	for iter.Next(ctx) {
		metaKey := iter.Val()
		meta, err := s.rdb.HGetAll(ctx, metaKey).Result()
		if err != nil {
			return nil, fmt.Errorf("sweep read %s: %w", metaKey, err)
		}
		if meta["state"] != string(entity.LockStateHeld) {
			continue
		}
		expiresAt, err := time.Parse(time.RFC3339Nano, meta["expires_at"])
		if err != nil || expiresAt.After(now) {
			continue
		}

		groupID := meta["group_id"]
		tripID, _ := strconv.ParseInt(meta["trip_id"], 10, 64)

		// The script repeats the HELD check so a confirm landing after the
		// read above wins and the group is skipped.
		keys := []string{redisGroupKey(groupID), metaKey}
		seats, err := sweepScript.Run(ctx, s.rdb, keys, groupID).Slice()
		if err != nil {
			s.log.Warn("Sweep script failed, group left for next pass",
				zap.String("group_id", groupID),
				zap.Error(err),
			)
			continue
		}

		for _, v := range seats {
			// The native TTL may have removed the seat key already; the
			// group record is still the authority on what the hold covered.
			swept = append(swept, entity.SeatLock{
				TripID:         tripID,
				SeatNo:         fmt.Sprint(v),
				GroupID:        groupID,
				BookingID:      meta["booking_id"],
				State:          entity.LockStateHeld,
				ExpiresAt:      expiresAt,
				IdempotencyKey: meta["idem_key"],
			})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("sweep scan: %w", err)
	}
	return swept, nil
}
