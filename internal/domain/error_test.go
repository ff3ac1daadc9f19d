package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := E(CodeInvalidArgument, "engine create reservation", "machine count must be positive", ErrInvalidCount)
	require.Equal(t, "engine create reservation: INVALID_ARGUMENT: machine count must be positive", err.Error())
	require.ErrorIs(t, err, ErrInvalidCount)

	bare := E(CodeNotFound, "", "", ErrNotFound)
	require.Equal(t, "NOT_FOUND: not found", bare.Error())
}

func TestCodeFromSentinels(t *testing.T) {
	cases := map[error]ErrorCode{
		ErrInvalidCount:         CodeInvalidArgument,
		ErrInvalidWindow:        CodeInvalidArgument,
		ErrPastWindow:           CodeInvalidArgument,
		ErrInvalidMode:          CodeInvalidArgument,
		ErrNotFound:             CodeNotFound,
		ErrAlreadyExists:        CodeAlreadyExists,
		ErrPoolDisabled:         CodeFailedPrecond,
		ErrAlreadyCancelled:     CodeFailedPrecond,
		ErrInsufficientCapacity: CodeResourceExhausted,
		ErrContention:           CodeUnavailable,
	}
	for sentinel, want := range cases {
		code, ok := CodeFrom(fmt.Errorf("wrapped: %w", sentinel))
		require.True(t, ok, sentinel.Error())
		require.Equal(t, want, code, sentinel.Error())
	}

	_, ok := CodeFrom(errors.New("boom"))
	require.False(t, ok)
}

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := E(CodeFailedPrecond, "", "pool is disabled", ErrPoolDisabled)
	wrapped := Wrap(CodeInternal, "engine available", inner)
	require.Equal(t, CodeFailedPrecond, wrapped.Code)
	require.Equal(t, "engine available", wrapped.Op)
	require.ErrorIs(t, wrapped, ErrPoolDisabled)

	plain := Wrap(CodeInternal, "store get", ErrNotFound)
	require.Equal(t, CodeNotFound, plain.Code)

	require.Nil(t, Wrap(CodeInternal, "noop", nil))
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(E(CodeUnavailable, "lock", "", ErrContention)))
	require.True(t, IsRetryable(fmt.Errorf("x: %w", ErrContention)))
	require.False(t, IsRetryable(E(CodeResourceExhausted, "create", "", ErrInsufficientCapacity)))
	require.False(t, IsRetryable(nil))
}

func TestReasonFromError(t *testing.T) {
	require.Equal(t, ReasonNone, ReasonFromError(nil))
	require.Equal(t, ReasonInsufficientCapacity, ReasonFromError(E(CodeResourceExhausted, "op", "", ErrInsufficientCapacity)))
	require.Equal(t, ReasonUnknown, ReasonFromError(errors.New("disk full")))
	require.Equal(t, OperationStatusRejected, StatusFromError(ErrPastWindow))
	require.Equal(t, OperationStatusError, StatusFromError(ErrContention))
	require.Equal(t, OperationStatusSuccess, StatusFromError(nil))
}
