package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable error classification that transport layers translate
// into HTTP statuses.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindForbidden           Kind = "FORBIDDEN"
	KindInvalidState        Kind = "INVALID_STATE"
	KindEmptyCart           Kind = "EMPTY_CART"
	KindPaymentNotCompleted Kind = "PAYMENT_NOT_COMPLETED"
	KindGatewayUnavailable  Kind = "GATEWAY_UNAVAILABLE"
	KindUnsupportedStatus   Kind = "UNSUPPORTED_STATUS"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// Error carries a stable kind plus a human-readable message. Wrapped causes
// are preserved for logging but never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports that a referenced entity is absent
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden reports an ownership mismatch
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// InvalidState reports an operation that is illegal for the entity's
// current status
func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// EmptyCart reports an order attempt against an empty cart
func EmptyCart() *Error {
	return &Error{Kind: KindEmptyCart, Message: "cart is empty"}
}

// PaymentNotCompleted reports that the gateway has not confirmed the payment
// yet; the caller should retry later.
func PaymentNotCompleted(message string) *Error {
	return &Error{Kind: KindPaymentNotCompleted, Message: message}
}

// GatewayUnavailable reports a transient gateway or network fault; the
// caller should retry.
func GatewayUnavailable(err error) *Error {
	return &Error{Kind: KindGatewayUnavailable, Message: "payment gateway unavailable", Err: err}
}

// UnsupportedStatus reports a webhook carrying a status this system does
// not handle
func UnsupportedStatus(status string) *Error {
	return &Error{Kind: KindUnsupportedStatus, Message: fmt.Sprintf("unsupported payment status %q", status)}
}

// Internal wraps an unexpected failure (storage errors and the like)
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain; unknown errors classify
// as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the client-safe message from an error chain
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
