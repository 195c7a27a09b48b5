package lock

import (
	"context"
	"errors"
)

var ErrLockNotAcquired = errors.New("another operation on this subscription is in progress")

// Locker serialises work on a single key. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

func SubscriptionKey(id string) string {
	return "api-subscription:" + id
}
