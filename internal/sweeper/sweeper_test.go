package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/logger"
)

type counter struct {
	calls atomic.Int32
	n     int
	err   error
}

func (c *counter) CloseExpiredGroups(context.Context) (int, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func (c *counter) CompleteEndedPeriods(context.Context) (int, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func TestRunOnceRunsBothSteps(t *testing.T) {
	groups := &counter{err: errors.New("db down")}
	periods := &counter{n: 2}
	s := New(groups, periods, time.Minute, logger.Discard())

	res, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close expired groups")
	assert.Equal(t, Result{PeriodsCompleted: 2}, res)
	assert.EqualValues(t, 1, periods.calls.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	groups := &counter{n: 1}
	periods := &counter{}
	s := New(groups, periods, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return groups.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
