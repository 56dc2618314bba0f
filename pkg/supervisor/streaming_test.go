package supervisor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/supervisor"
)

type fakeSession struct {
	heartbeatSeq int64
	ackSeq       int64
	timedOut     bool
}

func (s *fakeSession) Restore() error                        { return nil }
func (s *fakeSession) Persist() error                        { return nil }
func (s *fakeSession) HeartbeatSeq() int64                   { return s.heartbeatSeq }
func (s *fakeSession) AckSeq() int64                         { return s.ackSeq }
func (s *fakeSession) IsHeartbeatTimeout(time.Duration) bool { return s.timedOut }

func TestStreamingSupervisor_ShutdownOnContextCancel(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	session := &fakeSession{}
	sup := supervisor.NewStreaming[*fakeSession, int](cfg, session, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := sup.Run(ctx, func(ctx context.Context, session *fakeSession) (supervisor.StreamingConnection[int], error) {
		events := make(chan int)
		done := make(chan error)
		return supervisor.StreamingConnection[int]{Events: events, Done: done}, nil
	}, func(ctx context.Context, event int, session *fakeSession) error { return nil })

	require.Equal(t, supervisor.OutcomeShutdown, outcome.Kind)
}

func TestStreamingSupervisor_ConnectFailureMaxedOut(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	cfg.MaxConsecutiveFailures = 2
	cfg.BaseBackoffMs = 1
	cfg.MaxBackoffMs = 2
	session := &fakeSession{}
	sup := supervisor.NewStreaming[*fakeSession, int](cfg, session, nil)

	outcome := sup.Run(context.Background(), func(ctx context.Context, session *fakeSession) (supervisor.StreamingConnection[int], error) {
		return supervisor.StreamingConnection[int]{}, errors.New("refused")
	}, func(ctx context.Context, event int, session *fakeSession) error { return nil })

	require.Equal(t, supervisor.OutcomeMaxFailuresReached, outcome.Kind)
	require.Equal(t, 2, outcome.Failures)
}

func TestStreamingSupervisor_EventHandlerFatalError(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	session := &fakeSession{}
	sup := supervisor.NewStreaming[*fakeSession, int](cfg, session, nil)

	events := make(chan int, 1)
	events <- 42
	done := make(chan error)

	outcome := sup.Run(context.Background(), func(ctx context.Context, session *fakeSession) (supervisor.StreamingConnection[int], error) {
		return supervisor.StreamingConnection[int]{Events: events, Done: done}, nil
	}, func(ctx context.Context, event int, session *fakeSession) error {
		return errors.New("handler blew up")
	})

	require.Equal(t, supervisor.OutcomeFatalError, outcome.Kind)
	require.Equal(t, "handler blew up", outcome.Message)
}

func TestStreamingSupervisor_StreamEndReconnectsThenMaxesOut(t *testing.T) {
	cfg := supervisor.DefaultConfig()
	cfg.MaxConsecutiveFailures = 2
	cfg.BaseBackoffMs = 1
	cfg.MaxBackoffMs = 2
	session := &fakeSession{}
	sup := supervisor.NewStreaming[*fakeSession, int](cfg, session, nil)

	outcome := sup.Run(context.Background(), func(ctx context.Context, session *fakeSession) (supervisor.StreamingConnection[int], error) {
		events := make(chan int)
		close(events)
		done := make(chan error)
		return supervisor.StreamingConnection[int]{Events: events, Done: done}, nil
	}, func(ctx context.Context, event int, session *fakeSession) error { return nil })

	require.Equal(t, supervisor.OutcomeMaxFailuresReached, outcome.Kind)
}
