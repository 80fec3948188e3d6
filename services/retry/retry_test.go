package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (e statusErr) Error() string   { return "upstream status" }
func (e statusErr) StatusCode() int { return int(e) }

func fastPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Retryable: DefaultRetryable}
}

func TestDoSucceedsAfterTwoServerErrors(t *testing.T) {
	attempts := 0
	v, ok := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", statusErr(500)
		}
		return "payload", nil
	})

	require.True(t, ok)
	assert.Equal(t, "payload", v)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsToSoftFailure(t *testing.T) {
	attempts := 0
	v, ok := Do(context.Background(), fastPolicy(), func(ctx context.Context) (*int, error) {
		attempts++
		return nil, statusErr(429)
	})

	assert.False(t, ok)
	assert.Nil(t, v)
	// MaxRetries=2 means exactly 3 total attempts.
	assert.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	_, ok := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, statusErr(404)
	})

	assert.False(t, ok)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	attempts := 0
	v, ok := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})

	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, attempts)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	p := Policy{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, Retryable: DefaultRetryable}

	_, ok := Do(ctx, p, func(ctx context.Context) (int, error) {
		attempts++
		cancel()
		return 0, statusErr(503)
	})

	assert.False(t, ok)
	assert.Equal(t, 1, attempts)
}
