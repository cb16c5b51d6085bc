package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrRateLimited        = errors.New("too many requests")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrLockNotAcquired    = errors.New("lock not acquired")
)

// Payment error kinds. Use errors.Is against these; the concrete value is a *PaymentError.
var (
	ErrValidation         = errors.New("validation failed")
	ErrAuthentication     = errors.New("callback authentication failed")
	ErrDecoding           = errors.New("callback payload could not be decoded")
	ErrGateway            = errors.New("payment gateway error")
	ErrUnknownStatus      = errors.New("unknown payment status")
	ErrConflictingOutcome = errors.New("conflicting payment outcome")
)

// PaymentError carries one of the payment error kinds plus the operation and cause.
type PaymentError struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *PaymentError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = msg + ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason is the human readable part, safe to show to API clients.
func (e *PaymentError) Reason() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

func NewValidationError(field, format string, args ...any) error {
	return &PaymentError{Kind: ErrValidation, Msg: field + ": " + fmt.Sprintf(format, args...)}
}

func NewAuthenticationError(op, msg string) error {
	return &PaymentError{Kind: ErrAuthentication, Op: op, Msg: msg}
}

func NewDecodingError(op string, err error) error {
	return &PaymentError{Kind: ErrDecoding, Op: op, Err: err}
}

func NewGatewayError(op, msg string, err error) error {
	return &PaymentError{Kind: ErrGateway, Op: op, Msg: msg, Err: err}
}

func NewUnknownStatusError(code string) error {
	return &PaymentError{Kind: ErrUnknownStatus, Msg: fmt.Sprintf("gateway code %q", code)}
}

func NewConflictError(op, msg string) error {
	return &PaymentError{Kind: ErrConflictingOutcome, Op: op, Msg: msg}
}

// ReasonOf returns the client-facing reason of a payment error, or fallback.
func ReasonOf(err error, fallback string) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Reason()
	}
	return fallback
}
