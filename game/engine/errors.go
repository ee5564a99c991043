package engine

import (
	"errors"
	"fmt"
)

// Reason classifies why a command was rejected.
type Reason string

const (
	ReasonIllegalPhase       Reason = "illegal_phase"
	ReasonNotEntitled        Reason = "not_entitled"
	ReasonInvalidPlacement   Reason = "invalid_placement"
	ReasonInsufficientFunds  Reason = "insufficient_funds"
	ReasonResourceExhausted  Reason = "resource_exhausted"
	ReasonNoRoute            Reason = "no_route"
	ReasonMalformedPath      Reason = "malformed_path"
	ReasonInvalidCommand     Reason = "invalid_command"
	ReasonInvariantViolation Reason = "invariant_violation"
)

// RuleError is returned by every command that is rejected. A rejected
// command never mutates state.
type RuleError struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func (e *RuleError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Is matches any RuleError carrying the same reason, so errors.Is(err,
// ErrInsufficientFunds) works regardless of the message.
func (e *RuleError) Is(target error) bool {
	t, ok := target.(*RuleError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrIllegalPhase      = &RuleError{Reason: ReasonIllegalPhase}
	ErrNotEntitled       = &RuleError{Reason: ReasonNotEntitled}
	ErrInvalidPlacement  = &RuleError{Reason: ReasonInvalidPlacement}
	ErrInsufficientFunds = &RuleError{Reason: ReasonInsufficientFunds}
	ErrResourceExhausted = &RuleError{Reason: ReasonResourceExhausted}
	ErrNoRoute           = &RuleError{Reason: ReasonNoRoute}
	ErrMalformedPath     = &RuleError{Reason: ReasonMalformedPath}
	ErrInvalidCommand    = &RuleError{Reason: ReasonInvalidCommand}
)

func reject(reason Reason, format string, args ...any) *RuleError {
	return &RuleError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from err, or "" if err is not a
// RuleError.
func ReasonOf(err error) Reason {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// InvariantError signals a broken internal invariant. It is raised with
// panic and must never be swallowed.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", ReasonInvariantViolation, e.Message)
}

func invariant(format string, args ...any) {
	panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
}

// ErrInvalidSetup is returned when a game cannot be created from the given
// players or map.
var ErrInvalidSetup = errors.New("invalid game setup")
