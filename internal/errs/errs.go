// Package errs defines the error kinds shared by services, handlers and the CLI.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindValidation            Kind = "validation"
	KindWrongContractVersion  Kind = "wrong_contract_version"
	KindInvalidSignature      Kind = "invalid_signature"
	KindTermsHashMismatch     Kind = "terms_hash_mismatch"
	KindStaleDeliverableState Kind = "stale_deliverable_state"
	KindOnChainCallFailure    Kind = "on_chain_call_failure"
	KindStorageConflict       Kind = "storage_conflict"
	KindUnsupportedNetwork    Kind = "unsupported_network"
	KindContractNotDeployed   Kind = "contract_not_deployed"
	KindBusy                  Kind = "busy"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrValidation            = &Error{Kind: KindValidation}
	ErrWrongContractVersion  = &Error{Kind: KindWrongContractVersion}
	ErrInvalidSignature      = &Error{Kind: KindInvalidSignature}
	ErrTermsHashMismatch     = &Error{Kind: KindTermsHashMismatch}
	ErrStaleDeliverableState = &Error{Kind: KindStaleDeliverableState}
	ErrOnChainCallFailure    = &Error{Kind: KindOnChainCallFailure}
	ErrStorageConflict       = &Error{Kind: KindStorageConflict}
	ErrUnsupportedNetwork    = &Error{Kind: KindUnsupportedNetwork}
	ErrContractNotDeployed   = &Error{Kind: KindContractNotDeployed}
	ErrBusy                  = &Error{Kind: KindBusy}
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind. A forbidden error also satisfies ErrUnauthorized.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindUnauthorized && e.Kind == KindForbidden
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a validation error carrying every violated field.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// StaleDeliverable is returned when a funding attempt targets a deliverable
// other than the escrow's live currentDeliverable. Indices are zero-based.
type StaleDeliverable struct {
	Requested int
	Required  int
}

func (e *StaleDeliverable) Error() string {
	return fmt.Sprintf("Cannot fund deliverable %d. Deliverable %d must be funded first.", e.Requested+1, e.Required+1)
}

func (e *StaleDeliverable) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindStaleDeliverableState
}

// KindOf reports the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var stale *StaleDeliverable
	if errors.As(err, &stale) {
		return KindStaleDeliverableState
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldsOf returns the field violations carried by err, if any.
func FieldsOf(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Message returns the user-facing message of err without the wrapped cause.
func Message(err error) string {
	var stale *StaleDeliverable
	if errors.As(err, &stale) {
		return stale.Error()
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
