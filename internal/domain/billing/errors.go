package billing

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindVerificationFailed  Kind = "verification_failed"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindInvalidInput        Kind = "invalid_input"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrVerificationFailed  = errors.New("verification failed")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

var sentinels = map[Kind]error{
	KindNotFound:            ErrNotFound,
	KindConflict:            ErrConflict,
	KindInsufficientFunds:   ErrInsufficientFunds,
	KindVerificationFailed:  ErrVerificationFailed,
	KindProviderUnavailable: ErrProviderUnavailable,
	KindInvalidInput:        ErrInvalidInput,
}

// DomainError carries a user-facing message. errors.Is matches the sentinel
// of its Kind and anything in the wrapped chain.
type DomainError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func NotFound(msg string) error { return &DomainError{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) error { return &DomainError{Kind: KindConflict, Message: msg} }

func InsufficientFunds(msg string) error {
	return &DomainError{Kind: KindInsufficientFunds, Message: msg}
}

func VerificationFailed(msg string) error {
	return &DomainError{Kind: KindVerificationFailed, Message: msg}
}

func ProviderUnavailable(msg string, cause error) error {
	return &DomainError{Kind: KindProviderUnavailable, Message: msg, Err: cause}
}

func InvalidInput(msg string) error { return &DomainError{Kind: KindInvalidInput, Message: msg} }

// KindOf returns the kind of the first DomainError in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// Message returns the user-facing message of a domain error, or fallback.
func Message(err error, fallback string) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}
