package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeFailedPrecond     ErrorCode = "FAILED_PRECONDITION"
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	CodeUnavailable       ErrorCode = "UNAVAILABLE"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeCanceled          ErrorCode = "CANCELED"
	CodeDeadlineExceeded  ErrorCode = "DEADLINE_EXCEEDED"
)

var (
	// ErrInvalidCount indicates a machine count outside the accepted range.
	ErrInvalidCount = errors.New("invalid machine count")
	// ErrInvalidWindow indicates a window whose end is not after its start.
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrPastWindow indicates a window starting before the current time.
	ErrPastWindow = errors.New("time window starts in the past")
	// ErrPoolDisabled indicates the pool does not accept reservations.
	ErrPoolDisabled = errors.New("pool is disabled")
	// ErrInsufficientCapacity indicates the pool cannot fit the requested machines.
	ErrInsufficientCapacity = errors.New("insufficient pool capacity")
	// ErrAlreadyCancelled indicates the reservation was cancelled before.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	// ErrInvalidMode indicates an unknown series lookup mode.
	ErrInvalidMode = errors.New("invalid series mode")
	// ErrNotFound indicates a pool, user or reservation lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a pool id collision.
	ErrAlreadyExists = errors.New("already exists")
	// ErrContention indicates the pool lock could not be acquired in time.
	ErrContention = errors.New("pool is busy, retry later")
)

type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
	Meta      map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:      code,
		Op:        op,
		Message:   msg,
		Cause:     cause,
		Retryable: errors.Is(cause, ErrContention),
	}
}

// Wrap attaches op to err, keeping the code of an existing *Error.
func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
			Meta:      existing.Meta,
		}
	}
	if mapped, ok := CodeFrom(err); ok {
		code = mapped
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrInvalidCount), errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrPastWindow), errors.Is(err, ErrInvalidMode):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists, true
	case errors.Is(err, ErrPoolDisabled), errors.Is(err, ErrAlreadyCancelled):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrInsufficientCapacity):
		return CodeResourceExhausted, true
	case errors.Is(err, ErrContention):
		return CodeUnavailable, true
	default:
		return "", false
	}
}

// IsRetryable reports whether err is worth retrying unchanged.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Retryable {
		return true
	}
	return errors.Is(err, ErrContention)
}
