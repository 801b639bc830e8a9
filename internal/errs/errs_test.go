package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &AuthError{Reason: "minting token", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "minting token")
	assert.Contains(t, err.Error(), "boom")
}

func TestAuthErrorWithoutWrappedErr(t *testing.T) {
	err := &AuthError{Reason: "no credentials supplied"}
	assert.Equal(t, "auth error: no credentials supplied", err.Error())
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &TransportError{Op: "graphql POST", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "graphql POST")
}

func TestRemoteQueryErrorHint(t *testing.T) {
	withHint := &RemoteQueryError{Message: "too many nodes", Hint: "consider reducing page size"}
	assert.Contains(t, withHint.Error(), "consider reducing page size")

	withoutHint := &RemoteQueryError{Message: "unknown field"}
	assert.Equal(t, "remote query error: unknown field", withoutHint.Error())
}

func TestAggregateErrorUnwrap(t *testing.T) {
	inner := errors.New("rate limited")
	err := &AggregateError{Attempts: 3, Last: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "3 attempts")
}
