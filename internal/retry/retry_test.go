package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottluskcis/repo-stats-go/internal/errs"
	"github.com/scottluskcis/repo-stats-go/internal/logging"
)

func testConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         10 * time.Millisecond,
		BackoffFactor:    2.0,
		SuccessThreshold: 2,
	}
}

func TestDelayGrowsExponentiallyAndCapsAtMaxDelay(t *testing.T) {
	cfg := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond, BackoffFactor: 2.0}

	assert.Equal(t, 10*time.Millisecond, Delay(cfg, 1))
	assert.Equal(t, 20*time.Millisecond, Delay(cfg, 2))
	assert.Equal(t, 35*time.Millisecond, Delay(cfg, 3)) // would be 40ms uncapped
}

func TestDoReturnsResultOnFirstSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), testConfig(), &Counters{}, logging.Nop(), nil, func() (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	calls := 0
	retried := 0
	result, err := Do(context.Background(), testConfig(), &Counters{}, logging.Nop(), func(attempt int, err error) {
		retried++
	}, func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retried)
}

func TestDoExhaustsAttemptsAndWrapsInAggregateError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testConfig(), &Counters{}, logging.Nop(), nil, func() (int, error) {
		calls++
		return 0, errors.New("permanent")
	})

	require.Error(t, err)
	var aggErr *errs.AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, 3, aggErr.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDoResetsCountersAfterSuccessThreshold(t *testing.T) {
	counters := &Counters{}
	cfg := testConfig() // SuccessThreshold 2

	_, err := Do(context.Background(), cfg, counters, logging.Nop(), nil, func() (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counters.ConsecutiveSuccess)

	_, err = Do(context.Background(), cfg, counters, logging.Nop(), nil, func() (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, counters.ConsecutiveSuccess, "counter resets once consecutive successes reach the threshold")
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, testConfig(), &Counters{}, logging.Nop(), nil, func() (int, error) {
		calls++
		return 0, nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
