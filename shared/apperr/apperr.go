// Package apperr defines the failure taxonomy surfaced by the ledger.
//
// Every failure carries a Kind (the category a caller branches on) and a
// Code (a stable, machine-readable reason inside that category).
package apperr

import "errors"

type Kind string

const (
	InvalidInput      Kind = "INVALID_INPUT"
	NotFound          Kind = "NOT_FOUND"
	InsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	StorageFailure    Kind = "STORAGE_FAILURE"
)

// Stable codes.
const (
	CodeInvalidOwnerName      = "invalid_owner_name"
	CodeInvalidInitialBalance = "invalid_initial_balance"
	CodeInvalidAmount         = "invalid_amount"
	CodeInvalidRequest        = "invalid_request"
	CodeAccountNotFound       = "account_not_found"
	CodeSenderNotFound        = "sender_not_found"
	CodeReceiverNotFound      = "receiver_not_found"
	CodeInsufficientFunds     = "insufficient_funds"
	CodeStorageFailure        = "storage_failure"
)

// Sentinels for errors.Is matching on Kind alone.
var (
	ErrInvalidInput      = &Error{Kind: InvalidInput}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrInsufficientFunds = &Error{Kind: InsufficientFunds}
	ErrStorageFailure    = &Error{Kind: StorageFailure}
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Storage wraps an infrastructure error.
func Storage(err error) *Error {
	return &Error{Kind: StorageFailure, Code: CodeStorageFailure, Message: "storage failure", Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind. A target with an empty Code
// matches every code of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// KindOf reports the Kind of err, treating unknown errors as storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageFailure
}

// CodeOf reports the Code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return CodeStorageFailure
}
