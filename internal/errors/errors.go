// Package errors provides domain-specific error types for gochat.
//
// These types carry structured context (operation, address, the
// offending line) that lets callers pick the right recovery: a
// protocol violation produces one error response and the session
// continues, a timeout or transport failure tears down that session
// only, and an accept failure is fatal to the server.
package errors

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNameTaken        = errors.New("username already taken")
	ErrUnknownRecipient = errors.New("recipient does not exist")
	ErrRoomFull         = errors.New("chat room is full")
	ErrNotConnected     = errors.New("not connected")
	ErrSessionClosed    = errors.New("session is closed")
	ErrTimeout          = errors.New("idle timeout exceeded")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "listen", "accept", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError represents a line that fails the chat grammar for the
// current phase.  Hint names the expected syntax.
type ProtocolError struct {
	Line string // the offending input line
	Hint string // what the phase accepts instead
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("invalid command %q: %s", e.Line, e.Hint)
}

// ConfigError represents an invalid configuration value.  Field is
// presented verbatim: flag-backed fields carry their "--" prefix,
// positional arguments just their name.
type ConfigError struct {
	Field   string      // flag or positional argument name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := "config: " + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// Invalid creates a ProtocolError for line with the given hint.
func Invalid(line, hint string) *ProtocolError {
	return &ProtocolError{Line: line, Hint: hint}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsProtocol reports whether err is a grammar violation, which is
// always recovered locally with a single error response.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is a read-deadline expiry, which
// forces teardown of the affected session only.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || os.IsTimeout(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	// net.OpError with Temporary() hint
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use gochat/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
