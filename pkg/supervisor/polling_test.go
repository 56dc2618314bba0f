package supervisor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/supervisor"
)

type fakeCursor struct {
	offset int64
}

func (c *fakeCursor) Offset() *int64            { return &c.offset }
func (c *fakeCursor) RecordPoll(time.Time, int) {}
func (c *fakeCursor) Restore() error            { return nil }
func (c *fakeCursor) Persist() error            { return nil }

func TestPollingSupervisor_ShutdownOnContextCancel(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	cursor := &fakeCursor{}
	sup := supervisor.NewPolling[*fakeCursor, int](cfg, cursor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := sup.Run(ctx, time.Millisecond, func(ctx context.Context, offset *int64) supervisor.PollOutcome[int] {
		return supervisor.PollSuccess[int](nil)
	}, func(items []int, c *fakeCursor) error { return nil })

	require.Equal(t, supervisor.OutcomeShutdown, outcome.Kind)
}

func TestPollingSupervisor_MaxFailuresReached(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	cfg.MaxConsecutiveFailures = 3
	cfg.BaseBackoffMs = 1
	cfg.MaxBackoffMs = 2
	cursor := &fakeCursor{}
	sup := supervisor.NewPolling[*fakeCursor, int](cfg, cursor, nil)

	outcome := sup.Run(context.Background(), time.Millisecond, func(ctx context.Context, offset *int64) supervisor.PollOutcome[int] {
		return supervisor.PollRecoverable[int]("boom")
	}, func(items []int, c *fakeCursor) error { return nil })

	require.Equal(t, supervisor.OutcomeMaxFailuresReached, outcome.Kind)
	require.Equal(t, 3, outcome.Failures)
}

func TestPollingSupervisor_FatalErrorStopsImmediately(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	cursor := &fakeCursor{}
	sup := supervisor.NewPolling[*fakeCursor, int](cfg, cursor, nil)

	outcome := sup.Run(context.Background(), time.Millisecond, func(ctx context.Context, offset *int64) supervisor.PollOutcome[int] {
		return supervisor.PollFatal[int]("unrecoverable")
	}, func(items []int, c *fakeCursor) error { return nil })

	require.Equal(t, supervisor.OutcomeFatalError, outcome.Kind)
	require.Equal(t, "unrecoverable", outcome.Message)
}

func TestPollingSupervisor_ProcessesSuccessfulItems(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	cursor := &fakeCursor{}
	sup := supervisor.NewPolling[*fakeCursor, int](cfg, cursor, nil)

	var processed int64
	var calls int

	ctx, cancel := context.WithCancel(context.Background())
	outcome := sup.Run(ctx, time.Millisecond, func(ctx context.Context, offset *int64) supervisor.PollOutcome[int] {
		calls++
		if calls > 1 {
			cancel()
			return supervisor.PollSuccess[int](nil)
		}
		return supervisor.PollSuccess([]int{1, 2, 3})
	}, func(items []int, c *fakeCursor) error {
		atomic.AddInt64(&processed, int64(len(items)))
		return nil
	})

	require.Equal(t, supervisor.OutcomeShutdown, outcome.Kind)
	require.Equal(t, int64(3), atomic.LoadInt64(&processed))
}
