package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes the key only while it still holds our token, so an
// expired lease never frees a lock another replica has since taken.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	ErrLockNotConfigured = errors.New("lock client not configured")
	ErrEmptyLockKey      = errors.New("lock key is empty")
	ErrInvalidLockTTL    = errors.New("lock ttl must be positive")
)

// Locker hands out single-holder leases on Redis keys. Replicas use it to
// keep the status sweep from running twice in one interval.
type Locker struct {
	client *redis.Client
}

// NewLocker returns nil when client is nil.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Lease is a held lock. It expires on its own after the TTL given to Acquire.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes key for ttl. A nil lease with a nil error means another
// holder has it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	switch {
	case l == nil || l.client == nil:
		return nil, ErrLockNotConfigured
	case key == "":
		return nil, ErrEmptyLockKey
	case ttl <= 0:
		return nil, ErrInvalidLockTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, err
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

// Release frees the lease if it is still ours. Releasing a nil lease is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseIfOwner.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
