package batch

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for messaging. Callers never retry on it.
type Kind int

const (
	KindNone Kind = iota
	KindUserRejected
	KindSubmissionFailed
	KindReverted
	KindTimeout
	KindAlreadyInFlight
	KindInvalidJob
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUserRejected:
		return "user_rejected"
	case KindSubmissionFailed:
		return "submission_failed"
	case KindReverted:
		return "reverted"
	case KindTimeout:
		return "timeout"
	case KindAlreadyInFlight:
		return "already_in_flight"
	case KindInvalidJob:
		return "invalid_job"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

var (
	ErrUserRejected     = errors.New("user rejected the request")
	ErrSubmissionFailed = errors.New("call submission failed")
	ErrReverted         = errors.New("call reverted")
	ErrTimeout          = errors.New("confirmation not observed in time")
	ErrAlreadyInFlight  = errors.New("a job is already in flight")
	ErrEmptyJob         = errors.New("job has no calls")
	ErrNegativeValue    = errors.New("call value must not be negative")
	// ErrDetached is returned by a job whose tracking was dropped by Reset.
	// Calls already broadcast keep going on-chain.
	ErrDetached = errors.New("job detached by reset")
)

var kindSentinels = map[Kind]error{
	KindUserRejected:     ErrUserRejected,
	KindSubmissionFailed: ErrSubmissionFailed,
	KindReverted:         ErrReverted,
	KindTimeout:          ErrTimeout,
	KindAlreadyInFlight:  ErrAlreadyInFlight,
	KindInvalidJob:       ErrEmptyJob,
}

// Error is the failure of one call within a job.
type Error struct {
	Kind  Kind
	Index int // position of the failing call, -1 for job level failures
	Err   error
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("batch %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("batch %s at call %d: %v", e.Kind, e.Index, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrReverted)
// holds for every reverted call regardless of the underlying cause.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf extracts the Kind of err, or KindNone.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindNone
}
