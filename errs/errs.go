// Package errs defines the error taxonomy shared across the runtime.
//
// Kinds are semantic, not Go types: callers switch on Kind() rather than
// type-asserting, so a config error and a lease error can share the same
// Kind (e.g. both may be Transient) without sharing a concrete struct.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why an operation failed, driving retry and circuit
// breaker behavior in the dispatcher.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigMissing
	KindConfigInvalid
	KindUnauthorized
	KindTimeout
	KindTransient
	KindPermanent
	KindCircuitOpen
)

func (k Kind) String() string {
	switch k {
	case KindConfigMissing:
		return "ConfigMissing"
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindUnauthorized:
		return "Unauthorized"
	case KindTimeout:
		return "Timeout"
	case KindTransient:
		return "Transient"
	case KindPermanent:
		return "Permanent"
	case KindCircuitOpen:
		return "CircuitOpen"
	default:
		return "Unknown"
	}
}

// Error is the structured error carried through the runtime and surfaced
// to observers. Message should already be redacted by the caller; Error
// itself performs no redaction.
type Error struct {
	Kind          Kind
	Message       string
	SearchedPaths []string // populated for KindConfigMissing
	Attempt       int
	ActorRef      string
	CorrelationID string
	Cause         error
}

func (e *Error) Error() string {
	if e.Kind == KindConfigMissing {
		return fmt.Sprintf("%s: %s (searched: %v)", e.Kind, e.Message, e.SearchedPaths)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// ConfigMissing builds the error raised by getConfig when no fallback
// path resolves. The message enumerates every path tried.
func ConfigMissing(key string, searched []string) *Error {
	return &Error{
		Kind:          KindConfigMissing,
		Message:       fmt.Sprintf("no value found for key %q", key),
		SearchedPaths: searched,
	}
}

func ConfigInvalid(path string, cause error) *Error {
	return &Error{Kind: KindConfigInvalid, Message: fmt.Sprintf("invalid value at %q", path), Cause: cause}
}

func Unauthorized(principal, resource, action, reason string) *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Message: fmt.Sprintf("principal %q denied %s on %s: %s", principal, action, resource, reason),
	}
}

func Timeout(op string) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s did not complete by its deadline", op)}
}

func Transient(op string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: op, Cause: cause}
}

func Permanent(op string, cause error) *Error {
	return &Error{Kind: KindPermanent, Message: op, Cause: cause}
}

func CircuitOpen(key string) *Error {
	return &Error{Kind: KindCircuitOpen, Message: fmt.Sprintf("circuit %q is open", key)}
}

// IsRetryable reports whether an error's message matches one of the
// configured retryable substrings, or whether its Kind is inherently
// retryable (Timeout, Transient, CircuitOpen). Permanent, ConfigMissing,
// ConfigInvalid and Unauthorized are never retryable; with an empty
// allow list every other error is retryable.
func IsRetryable(err error, allow []string) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTimeout, KindTransient, KindCircuitOpen:
			return true
		case KindPermanent, KindConfigMissing, KindConfigInvalid, KindUnauthorized:
			return false
		}
	}
	if len(allow) == 0 {
		return true
	}
	msg := err.Error()
	for _, sub := range allow {
		if sub != "" && strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// KindOf reports err's Kind if it is (or wraps) an *Error, or
// KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RedactedMessage returns the message safe to hand to an external
// observer: Message only, since it is documented as already redacted
// by the caller, never Cause, which may carry raw, unredacted text
// from an external dependency. Errors outside the taxonomy return a
// generic placeholder rather than their own Error() text.
func RedactedMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
