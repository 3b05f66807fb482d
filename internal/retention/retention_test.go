package retention

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	removed int64
	err     error
	calls   int
}

func (f *fakePurger) PurgeExpired(context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

func TestNewJob_RejectsBadSchedule(t *testing.T) {
	_, err := NewJob(&fakePurger{}, "not a cron expression")
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	p := &fakePurger{removed: 7}
	j, err := NewJob(p, DefaultSchedule)
	require.NoError(t, err)

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, 1, p.calls)
}

func TestRun_SwallowsPurgeFailure(t *testing.T) {
	p := &fakePurger{err: errors.New("db locked")}
	j, err := NewJob(p, DefaultSchedule)
	require.NoError(t, err)

	// The scheduled callback logs and returns; it must not panic.
	j.run()
	assert.Equal(t, 1, p.calls)
}

func TestStartStop(t *testing.T) {
	j, err := NewJob(&fakePurger{}, DefaultSchedule)
	require.NoError(t, err)
	j.Start()
	j.Stop()
}
