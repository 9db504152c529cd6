package resilience

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrProviderFailure matches a single failed provider attempt.
	ErrProviderFailure = errors.New("provider failure")
	// ErrAllProvidersExhausted matches a call for which every provider failed.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrNoProviders is returned when a dispatcher is built without providers.
	ErrNoProviders = errors.New("no providers configured")
)

// ProviderError is one failed attempt, recorded against the provider's health.
type ProviderError struct {
	Provider ProviderID
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// Attempt records the outcome of invoking one provider during a call.
type Attempt struct {
	Provider ProviderID
	Err      error
	Duration time.Duration
}

// ExhaustedError is returned when every provider attempted for a call failed.
// It unwraps to the last attempt's error.
type ExhaustedError struct {
	Capability string
	Operation  string
	Attempts   []Attempt
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s.%s: %s", e.Capability, e.Operation, ErrAllProvidersExhausted)
	if last := e.Last(); last != nil {
		sb.WriteString(": ")
		sb.WriteString(last.Error())
	}
	return sb.String()
}

// Last returns the error of the last provider attempted.
func (e *ExhaustedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	last := e.Attempts[len(e.Attempts)-1]
	return &ProviderError{Provider: last.Provider, Err: last.Err}
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last()
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as a definitive answer from a working provider, such
// as an invalid argument. A dispatcher returns such errors without failing
// over and without counting them against the provider.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type absentError struct {
	err error
}

func (e *absentError) Error() string { return e.err.Error() }
func (e *absentError) Unwrap() error { return e.err }

// Absent marks err as a healthy provider not holding the requested item.
// A dispatcher counts it as a success and asks the next provider, since
// another replica may hold data written while this one was down.
func Absent(err error) error {
	if err == nil {
		return nil
	}
	return &absentError{err: err}
}

// IsAbsent reports whether err was marked with Absent.
func IsAbsent(err error) bool {
	var ae *absentError
	return errors.As(err, &ae)
}
