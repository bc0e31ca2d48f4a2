// Package xerrors defines the orchestrator's error taxonomy: a fixed set of
// sentinel kinds wrapped in a single structured error type, with
// errors.Is-based classification helpers so callers can branch on category
// without string matching.
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every OrchestratorError classifies under exactly one of
// these (the sentinel for its Kind, matched by OrchestratorError.Is), so
// errors.Is(err, ErrStepTimeout) works across the wrapping boundary.
var (
	ErrPlanNotFound          = errors.New("plan not found")
	ErrPlanNotExecutable     = errors.New("plan is not in an executable status")
	ErrStepTimeout           = errors.New("step timed out")
	ErrStepExecutionError    = errors.New("step execution failed")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrToolNotFound          = errors.New("tool not found")
	ErrToolTransient         = errors.New("transient tool error")
	ErrStorageError          = errors.New("storage error")
	ErrConfigValidationError = errors.New("configuration validation error")
)

// Kind names the taxonomy entry an OrchestratorError belongs to. The string
// form is the wire/log representation and must not be renamed without a
// schema version bump (see SPEC_FULL.md, Design Notes).
type Kind string

const (
	KindPlanNotFound          Kind = "plan_not_found"
	KindPlanNotExecutable     Kind = "plan_not_executable"
	KindStepTimeout           Kind = "step_timeout"
	KindStepExecutionError    Kind = "step_execution_error"
	KindPermissionDenied      Kind = "permission_denied"
	KindToolNotFound          Kind = "tool_not_found"
	KindToolTransient         Kind = "tool_transient"
	KindStorageError          Kind = "storage_error"
	KindConfigValidationError Kind = "config_validation_error"
)

var kindSentinels = map[Kind]error{
	KindPlanNotFound:          ErrPlanNotFound,
	KindPlanNotExecutable:     ErrPlanNotExecutable,
	KindStepTimeout:           ErrStepTimeout,
	KindStepExecutionError:    ErrStepExecutionError,
	KindPermissionDenied:      ErrPermissionDenied,
	KindToolNotFound:          ErrToolNotFound,
	KindToolTransient:         ErrToolTransient,
	KindStorageError:          ErrStorageError,
	KindConfigValidationError: ErrConfigValidationError,
}

// retryable is the set named in SPEC_FULL.md §4.7: a step whose error kind is
// in this set may be retried while retryCount < maxRetries.
var retryable = map[Kind]bool{
	KindStepTimeout:   true,
	KindToolTransient: true,
}

// OrchestratorError is the structured error every component in this module
// returns. Op names the failing operation ("scheduler.dispatch",
// "store.save"), ID is the plan or step id involved (may be empty), Message
// is a human-readable detail, and Err is the wrapped sentinel.
type OrchestratorError struct {
	Op      string
	Kind    Kind
	ID      string
	Message string
	Err     error
}

func (e *OrchestratorError) Error() string {
	switch {
	case e.Message != "" && e.ID != "":
		return fmt.Sprintf("%s: %s [%s]: %s", e.Op, e.Kind, e.ID, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.ID != "":
		return fmt.Sprintf("%s: %s [%s]", e.Op, e.Kind, e.ID)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind, so an error built by Wrap classifies
// under its kind while Unwrap still reaches the original error.
func (e *OrchestratorError) Is(target error) bool {
	return target == kindSentinels[e.Kind]
}

// New builds an OrchestratorError for kind, resolving its sentinel
// automatically. message may be empty.
func New(op string, kind Kind, id, message string) *OrchestratorError {
	return &OrchestratorError{
		Op:      op,
		Kind:    kind,
		ID:      id,
		Message: message,
		Err:     kindSentinels[kind],
	}
}

// Wrap attaches op/kind/id context to an arbitrary lower-level error,
// preserving it for Unwrap while still classifying under kind.
func Wrap(op string, kind Kind, id string, err error) *OrchestratorError {
	return &OrchestratorError{Op: op, Kind: kind, ID: id, Message: err.Error(), Err: err}
}

// IsRetryable reports whether err carries a kind in the retryable set
// ({StepTimeout, ToolTransient}).
func IsRetryable(err error) bool {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return retryable[oe.Kind]
	}
	return false
}

// IsNotFound reports whether err is, or wraps, ErrPlanNotFound or ErrToolNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrToolNotFound)
}

// IsPermissionDenied reports whether err is, or wraps, ErrPermissionDenied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsStorageError reports whether err is, or wraps, ErrStorageError.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageError)
}

// IsConfigValidationError reports whether err is, or wraps, ErrConfigValidationError.
func IsConfigValidationError(err error) bool {
	return errors.Is(err, ErrConfigValidationError)
}
