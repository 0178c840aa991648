// Package fixerrors defines the sentinel errors fixgo's codec, logon,
// and session packages return, plus stdlib errors re-exports so callers
// never need to import both "errors" and this package.
package fixerrors

import "errors"

// Re-exported standard library helpers, so call sites can do
// fixerrors.Is(err, fixerrors.ErrNotLoggedOn) without a second import.
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
	New    = errors.New
)

// Codec errors (spec.md §4.1).
var (
	ErrMissingRequiredField = errors.New("fixcodec: missing required field (35 or 34)")
	ErrInvalidSeqNum        = errors.New("fixcodec: tag 34 is not a non-negative integer")
	ErrMalformedField       = errors.New("fixcodec: field missing '='")
	ErrParseException       = errors.New("fixcodec: unexpected internal parse failure")
	ErrIllegalFieldValue    = errors.New("fixcodec: field value contains SOH or '='")
	ErrIncompleteFrame      = errors.New("fixcodec: buffer does not contain a complete frame")
)

// Logon strategy errors (spec.md §4.3).
var (
	ErrMissingCredential   = errors.New("fixlogon: required credential missing from configuration")
	ErrUnknownStrategy     = errors.New("fixlogon: no strategy registered under that name")
	ErrStrategyNameInUse   = errors.New("fixlogon: a strategy is already registered under that name")
)

// Session errors (spec.md §4.4, §6).
var (
	ErrAlreadyStarted  = errors.New("fixsession: a session is already registered under that key")
	ErrNotLoggedOn     = errors.New("fixsession: session is not in the LoggedOn phase")
	ErrSessionNotFound = errors.New("fixsession: no session registered under that key")
	ErrSessionStopped  = errors.New("fixsession: session has been stopped")
	ErrInvalidConfig   = errors.New("fixsession: configuration failed validation")
)

// TransportError wraps a transport-layer failure (connect, read, or
// write) so callers can distinguish it from protocol-level errors
// while still unwrapping to the underlying cause.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "fixsession: transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError wraps cause as a *TransportError.
func NewTransportError(cause error) *TransportError {
	return &TransportError{Cause: cause}
}
