package clusterbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskWithRetrySucceedsFirstAttempt(t *testing.T) {
	var calls int
	result, err := AskWithRetry(context.Background(), AskConfig{Timeout: time.Second, Retries: 3, Backoff: time.Millisecond},
		func(ctx context.Context, correlationID string) (string, error) {
			calls++
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestAskWithRetryRetriesThenSucceeds(t *testing.T) {
	var calls int
	result, err := AskWithRetry(context.Background(), AskConfig{Timeout: time.Second, Retries: 3, Backoff: time.Millisecond},
		func(ctx context.Context, correlationID string) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestAskWithRetryGivesUpAfterRetries(t *testing.T) {
	var calls int
	_, err := AskWithRetry(context.Background(), AskConfig{Timeout: time.Second, Retries: 2, Backoff: time.Millisecond},
		func(ctx context.Context, correlationID string) (string, error) {
			calls++
			return "", errors.New("permanent failure")
		})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestAskWithRetryDistinctCorrelationIDsPerAttempt(t *testing.T) {
	seen := map[string]struct{}{}
	_, _ = AskWithRetry(context.Background(), AskConfig{Timeout: time.Second, Retries: 2, Backoff: time.Millisecond},
		func(ctx context.Context, correlationID string) (string, error) {
			seen[correlationID] = struct{}{}
			return "", errors.New("fail")
		})
	assert.Len(t, seen, 3)
}
