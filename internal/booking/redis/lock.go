package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

const defaultLockTTL = 30 * time.Second

// unlockScript deletes the key only while it still belongs to the caller.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis holds short-lived seat locks taken around a booking so concurrent
// submissions for the same seat fail fast. The database transaction stays
// the source of truth.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
	TTL    time.Duration
}

func NewRedis(client *redis.Client, log *logger.Logger, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{Client: client, Logger: log, TTL: ttl}
}

func seatKey(showID, sessionID string, seat models.Seat) string {
	return fmt.Sprintf("seat_lock:%s:%s:%s", showID, sessionID, seat.Label())
}

// CheckSeatAvailability reports whether nobody currently holds the lock.
func (r *Redis) CheckSeatAvailability(ctx context.Context, showID, sessionID string, seat models.Seat) (bool, error) {
	_, err := r.Client.Get(ctx, seatKey(showID, sessionID, seat)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (r *Redis) LockSeat(ctx context.Context, showID, sessionID string, seat models.Seat, owner string) (bool, error) {
	return r.Client.SetNX(ctx, seatKey(showID, sessionID, seat), owner, r.TTL).Result()
}

func (r *Redis) UnlockSeat(ctx context.Context, showID, sessionID string, seat models.Seat, owner string) error {
	return unlockScript.Run(ctx, r.Client, []string{seatKey(showID, sessionID, seat)}, owner).Err()
}

// LockSeats takes every lock or none. On a conflict it returns the seat
// that was already held.
func (r *Redis) LockSeats(ctx context.Context, showID, sessionID string, seats []models.Seat, owner string) ([]models.Seat, error) {
	locked := make([]models.Seat, 0, len(seats))
	for _, seat := range seats {
		ok, err := r.LockSeat(ctx, showID, sessionID, seat, owner)
		if err != nil || !ok {
			for _, l := range locked {
				_ = r.UnlockSeat(ctx, showID, sessionID, l, owner)
			}
			if err != nil {
				return nil, err
			}
			if r.Logger != nil {
				r.Logger.Debug("REDIS", fmt.Sprintf("Seat %s of %s/%s is locked by another booking", seat.Label(), showID, sessionID))
			}
			return []models.Seat{seat}, nil
		}
		locked = append(locked, seat)
	}
	return nil, nil
}

func (r *Redis) UnlockSeats(ctx context.Context, showID, sessionID string, seats []models.Seat, owner string) error {
	var firstErr error
	for _, seat := range seats {
		if err := r.UnlockSeat(ctx, showID, sessionID, seat, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
