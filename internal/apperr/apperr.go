// Package apperr classifies every failure the cart and checkout services can
// surface, so handlers never see a raw driver error.
package apperr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindRemoteUnavailable
	KindNotAuthorized
	KindCouponRejected
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindRemoteUnavailable:
		return "REMOTE_UNAVAILABLE"
	case KindNotAuthorized:
		return "NOT_AUTHORIZED"
	case KindCouponRejected:
		return "COUPON_REJECTED"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// Error carries a Kind plus an optional machine-readable Reason
// (e.g. InvalidQuantity, BelowMinimumOrderValue).
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(reason, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: "NotFound", Message: msg}
}

func CouponRejected(reason, msg string) *Error {
	return &Error{Kind: KindCouponRejected, Reason: reason, Message: msg}
}

func NotAuthorized(msg string) *Error {
	return &Error{Kind: KindNotAuthorized, Reason: "NotAuthorized", Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Reason: "Conflict", Message: msg}
}

func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindRemoteUnavailable, Reason: "RemoteUnavailable", Message: op, Err: err}
}

// Remote classifies an error returned by Postgres or Redis. Errors that are
// already classified pass through untouched.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Reason: "NotFound", Message: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", "28000", "28P01":
			return &Error{Kind: KindNotAuthorized, Reason: "NotAuthorized", Message: op, Err: err}
		case "22P02":
			// a malformed id cannot name an existing row
			return &Error{Kind: KindNotFound, Reason: "NotFound", Message: op, Err: err}
		case "23505":
			return &Error{Kind: KindConflict, Reason: "Conflict", Message: op, Err: err}
		}
	}
	return Unavailable(op, err)
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }
