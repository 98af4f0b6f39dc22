package protocol

import (
	"errors"
	"fmt"
)

// Kind names a failure category. Kinds double as the retry-classification
// vocabulary: transient kinds are retried by the executor, permanent kinds
// are not.
type Kind string

const (
	// Transient kinds.
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindUnavailable Kind = "unavailable"

	// Permanent kinds.
	KindNotFound         Kind = "not_found"
	KindAlreadyProcessed Kind = "already_processed"
	KindWindowExpired    Kind = "window_expired"
	KindIneligibleStatus Kind = "ineligible_status"
	KindOutOfStock       Kind = "out_of_stock"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation"
	KindInvalidOutput    Kind = "invalid_output"
	KindExhaustedRetries Kind = "exhausted_retries"
	KindConfiguration    Kind = "configuration"
)

// ErrContractViolation marks envelopes that break the protocol contract.
var ErrContractViolation = errors.New("protocol contract violation")

// TransientError wraps a failure that may succeed on retry (network blips,
// rate limits, upstream timeouts).
type TransientError struct {
	Kind Kind
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s: %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable with the given kind.
func Transient(kind Kind, err error) error {
	return &TransientError{Kind: kind, Err: err}
}

// PermanentError wraps a failure that will not succeed on retry (missing
// records, validation failures, business-rule rejections).
type PermanentError struct {
	Kind Kind
	Err  error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent %s: %v", e.Kind, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable with the given kind.
func Permanent(kind Kind, err error) error {
	return &PermanentError{Kind: kind, Err: err}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// KindOf extracts the failure kind from a classified error. Unclassified
// errors map to KindValidation so no failure ever loses its kind.
func KindOf(err error) Kind {
	var te *TransientError
	if errors.As(err, &te) {
		return te.Kind
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindValidation
}

// ConfigurationError marks a fatal misconfiguration. It is never retried and
// must abort turn processing rather than degrade silently.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// Configurationf builds a ConfigurationError with a formatted message.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is a fatal configuration error.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
