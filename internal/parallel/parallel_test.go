package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunTwoRunsBothToCompletion(t *testing.T) {
	var aDone, bDone atomic.Bool

	err := RunTwo(
		func() error { aDone.Store(true); return nil },
		func() error { bDone.Store(true); return nil },
	)

	assert.NoError(t, err)
	assert.True(t, aDone.Load())
	assert.True(t, bDone.Load())
}

func TestRunTwoReturnsFirstError(t *testing.T) {
	errA := errors.New("a failed")

	err := RunTwo(
		func() error { return errA },
		func() error { return nil },
	)

	assert.ErrorIs(t, err, errA)
}

func TestRunTwoWaitsForBothEvenWhenOneFails(t *testing.T) {
	var bRan atomic.Bool
	errA := errors.New("a failed")

	err := RunTwo(
		func() error { return errA },
		func() error { bRan.Store(true); return nil },
	)

	assert.Error(t, err)
	assert.True(t, bRan.Load(), "RunTwo must not abandon the second call when the first fails")
}
