package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medisecure-go/internal/errs"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, "op", func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUpstreamErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, "op", func() error {
		calls++
		if calls < 3 {
			return errs.Upstream("api down", errors.New("timeout"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, "op", func() error {
		calls++
		return errs.Upstream("api down", errors.New("timeout"))
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryNonUpstream(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, "op", func() error {
		calls++
		return errs.Validation("bad input")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, 3, time.Hour, "op", func() error {
		calls++
		return errs.Upstream("api down", errors.New("timeout"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
