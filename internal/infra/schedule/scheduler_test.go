package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	s := New(nil, time.Second)
	var runs atomic.Int32
	require.NoError(t, s.Add("sync-calendars", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("failing", "@every 1s", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	assert.Equal(t, 2, s.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	s := New(nil, 0)
	assert.Error(t, s.Add("bad", "every now and then", func(context.Context) error { return nil }))
	assert.Zero(t, s.Len())
}
