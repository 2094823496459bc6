package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies service errors for HTTP mapping and recovery policy.
type Kind int

const (
	// KindValidation: malformed input, rejected before any state change.
	KindValidation Kind = iota
	// KindNotFound: referenced record does not exist.
	KindNotFound
	// KindConflict: duplicate redemption, exhausted username suffixes,
	// idempotency key re-posted with a different amount. No partial effect.
	KindConflict
	// KindExternal: payment execution unreachable or ambiguous; for
	// withdrawals the reservation stays in place.
	KindExternal
	// KindInvariant: would create or destroy value. Aborted all-or-nothing.
	KindInvariant
)

// Error carries a caller-facing message plus its kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation is shorthand for New(KindValidation, msg).
func Validation(message string) *Error { return New(KindValidation, message) }

// NotFound is shorthand for New(KindNotFound, msg).
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict is shorthand for New(KindConflict, msg).
func Conflict(message string) *Error { return New(KindConflict, message) }

// External is shorthand for New(KindExternal, msg).
func External(message string) *Error { return New(KindExternal, message) }

// Invariant is shorthand for New(KindInvariant, msg).
func Invariant(message string) *Error { return New(KindInvariant, message) }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Status maps an error to an HTTP status code (500 for unknown errors).
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return fiber.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Message returns the caller-facing message, hiding internals of unknown errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal Server Error"
}
