// Typed errors for the risk computation pipeline
package riskcalc

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure so callers can branch on it without
// parsing messages.
type Kind string

const (
	KindInsufficientData Kind = "INSUFFICIENT_DATA"
	KindInvalidParameter Kind = "INVALID_PARAMETER"
	KindNumerical        Kind = "NUMERICAL_ERROR"
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageReturns    Stage = "returns"
	StageMetrics    Stage = "metrics"
	StageSimulation Stage = "simulation"
)

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNumerical        = errors.New("numerical error")
)

// Error is the error type returned by every operation in this package.
type Error struct {
	Kind    Kind
	Stage   Stage
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s (operation: %s)", e.Stage, e.Kind, e.Message, e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInsufficientData:
		return e.Kind == KindInsufficientData
	case ErrInvalidParameter:
		return e.Kind == KindInvalidParameter
	case ErrNumerical:
		return e.Kind == KindNumerical
	}
	return false
}

func newError(kind Kind, stage Stage, op string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the Kind of err if it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// StageOf extracts the Stage of err if it wraps an *Error.
func StageOf(err error) (Stage, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Stage, true
	}
	return "", false
}
