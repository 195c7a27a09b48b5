package service

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/access"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/gateway"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lock"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrImmutableField       = errors.New("field can not be changed")
	ErrSubscriptionNotFound = errors.New("api subscription not found")
	ErrSubscriptionDeleted  = errors.New("api subscription was deleted and can not be re-created")
	ErrSamePlan             = errors.New("api subscription is already on this plan")
	ErrDivergence           = errors.New("gateway and local store diverged")
	ErrIntegrityViolation   = errors.New("store integrity violation")
)

type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindServerError     Kind = "server_error"
	KindFatal           Kind = "fatal"
)

// KindOf classifies an error returned by the service layer. Unknown errors
// are server errors.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIntegrityViolation):
		return KindFatal
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrImmutableField),
		errors.Is(err, gateway.ErrInvalidKeyName):
		return KindBadRequest
	case errors.Is(err, access.ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, access.ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrSubscriptionNotFound):
		return KindNotFound
	case errors.Is(err, ErrSubscriptionDeleted),
		errors.Is(err, ErrSamePlan),
		errors.Is(err, lock.ErrLockNotAcquired):
		return KindConflict
	case errors.Is(err, context.Canceled):
		return KindBadRequest
	default:
		return KindServerError
	}
}
