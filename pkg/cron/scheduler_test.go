package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler()

	runs := 0
	require.NoError(t, s.Add("prices", "0 18 * * 1-5", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		runs++
		return nil
	}))

	require.NoError(t, s.RunNow("prices"))
	assert.Equal(t, 1, runs)

	boom := errors.New("boom")
	require.NoError(t, s.Add("failing", "@daily", func(context.Context) error { return boom }))
	assert.ErrorIs(t, s.RunNow("failing"), boom)

	assert.ErrorIs(t, s.RunNow("missing"), ErrJobNotFound)
}

func TestScheduler_Add(t *testing.T) {
	s := newTestScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("a", "*/5 * * * *", noop))
	assert.Error(t, s.Add("a", "@hourly", noop), "duplicate name")
	assert.Error(t, s.Add("b", "not a schedule", noop))
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Add("hourly", "@hourly", func(context.Context) error { return nil }))

	s.Start()
	var next time.Time
	require.Eventually(t, func() bool {
		next, _ = s.Next("hourly")
		return !next.IsZero()
	}, time.Second, 10*time.Millisecond)
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(time.Hour+time.Minute)))

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	_, err := s.Next("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
