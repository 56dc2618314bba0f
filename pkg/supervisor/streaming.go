package supervisor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/flywheel-sh/fcpcore/pkg/health"
)

// StreamingSession is the host-supplied connector adapter a StreamingSupervisor
// drives: session resumption hooks plus heartbeat bookkeeping (spec §4.4.1,
// "session persistence hooks for resume support").
type StreamingSession interface {
	Restore() error
	Persist() error
	HeartbeatSeq() int64
	AckSeq() int64
	IsHeartbeatTimeout(timeout time.Duration) bool
}

// StreamingConnection is a live connection handle: an event channel plus a
// completion signal for the underlying connection's own lifecycle.
type StreamingConnection[E any] struct {
	Events <-chan E
	Done   <-chan error
}

// StreamingStats accumulates counters across a supervisor run.
type StreamingStats struct {
	ConnectionAttempts int64
	SuccessfulConns    int64
	FailedConns        int64
	EventsProcessed    int64
	BackoffTimeMs      int64
	MissedHeartbeats   int64
}

// Outcome is why a supervisor loop returned.
type Outcome struct {
	Kind     OutcomeKind
	Message  string
	Failures int
}

// OutcomeKind enumerates the terminal reasons a supervisor loop stops.
type OutcomeKind int

const (
	OutcomeShutdown OutcomeKind = iota
	OutcomeMaxFailuresReached
	OutcomeFatalError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeShutdown:
		return "shutdown"
	case OutcomeMaxFailuresReached:
		return "max_failures_reached"
	case OutcomeFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// StreamingSupervisor runs a supervised streaming connection loop: connect
// with backoff, process events, detect heartbeat timeouts, and reconnect on
// failure — up to max_consecutive_failures (spec §4.4.1).
type StreamingSupervisor[S StreamingSession, E any] struct {
	cfg     Config
	session S
	health  *health.Tracker
	stats   StreamingStats
	log     *slog.Logger
	limiter *rate.Limiter
}

// NewStreaming wraps session under cfg. Pass WithRateLimit to additionally
// cap the reconnect attempt rate.
func NewStreaming[S StreamingSession, E any](cfg Config, session S, log *slog.Logger, opts ...Option) *StreamingSupervisor[S, E] {
	if log == nil {
		log = slog.Default()
	}
	o := buildOptions(opts)
	return &StreamingSupervisor[S, E]{cfg: cfg, session: session, health: health.New(), log: log, limiter: o.limiter}
}

// Health returns the supervisor's health tracker.
func (s *StreamingSupervisor[S, E]) Health() *health.Tracker { return s.health }

// Stats returns a copy of the accumulated statistics.
func (s *StreamingSupervisor[S, E]) Stats() StreamingStats { return s.stats }

// ConnectFunc establishes a streaming connection.
type ConnectFunc[S StreamingSession, E any] func(ctx context.Context, session S) (StreamingConnection[E], error)

// HandleEventFunc processes one event.
type HandleEventFunc[S StreamingSession, E any] func(ctx context.Context, event E, session S) error

// Run drives the connect/process/reconnect loop until ctx is canceled, a
// fatal event-handler error occurs, or max_consecutive_failures is reached.
func (s *StreamingSupervisor[S, E]) Run(ctx context.Context, connect ConnectFunc[S, E], handle HandleEventFunc[S, E]) Outcome {
	consecutiveFailures := 0

	if err := s.session.Restore(); err != nil {
		s.log.Warn("failed to restore streaming session state", "error", err)
	}

	s.health.RecordSuccess()
	s.health.Evaluate(s.thresholds())

	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}

		if err := waitRateLimit(ctx, s.limiter); err != nil {
			return s.shutdown()
		}

		s.stats.ConnectionAttempts++
		conn, err := connect(ctx, s.session)
		if err != nil {
			s.stats.FailedConns++
			consecutiveFailures++
			s.health.RecordFailure(err.Error())
			s.health.Evaluate(s.thresholds())
			s.log.Warn("streaming connection attempt failed", append([]any{"error", err}, s.failureAttrs(consecutiveFailures)...)...)

			if consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
				s.persist()
				return Outcome{Kind: OutcomeMaxFailuresReached, Failures: consecutiveFailures}
			}

			delay := s.backoffDelay(consecutiveFailures - 1)
			s.stats.BackoffTimeMs += delay.Milliseconds()
			if s.sleepOrShutdown(ctx, delay) {
				return s.shutdown()
			}
			continue
		}

		s.stats.SuccessfulConns++
		consecutiveFailures = 0
		s.health.RecordSuccess()
		s.health.Evaluate(s.thresholds())

		exitMessage, exitFatal, shutdownRequested := s.drive(ctx, conn, handle)
		if shutdownRequested {
			return s.shutdown()
		}
		if exitFatal {
			s.health.Transition(health.Transition{Kind: health.ToError, Reason: exitMessage})
			s.persist()
			return Outcome{Kind: OutcomeFatalError, Message: exitMessage}
		}

		s.health.RecordFailure(exitMessage)
		s.health.Evaluate(s.thresholds())
		consecutiveFailures++
		s.log.Warn("streaming connection ended with recoverable failure", append([]any{"error", exitMessage}, s.failureAttrs(consecutiveFailures)...)...)
		if consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
			s.persist()
			return Outcome{Kind: OutcomeMaxFailuresReached, Failures: consecutiveFailures}
		}

		delay := s.backoffDelay(consecutiveFailures - 1)
		s.stats.BackoffTimeMs += delay.Milliseconds()
		if s.sleepOrShutdown(ctx, delay) {
			return s.shutdown()
		}
	}
}

// drive pumps one connection's events until it ends, the handler faults, a
// heartbeat timeout fires, or ctx is canceled.
func (s *StreamingSupervisor[S, E]) drive(ctx context.Context, conn StreamingConnection[E], handle HandleEventFunc[S, E]) (exitMessage string, fatal bool, shutdownRequested bool) {
	var heartbeatTicker *time.Ticker
	if s.cfg.HeartbeatIntervalMs > 0 {
		heartbeatTicker = time.NewTicker(s.cfg.HeartbeatInterval())
		defer heartbeatTicker.Stop()
	}
	var heartbeatC <-chan time.Time
	if heartbeatTicker != nil {
		heartbeatC = heartbeatTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return "", false, true

		case event, ok := <-conn.Events:
			if !ok {
				return "stream ended", false, false
			}
			s.stats.EventsProcessed++
			if err := handle(ctx, event, s.session); err != nil {
				s.log.Error("streaming event handler failed", append([]any{"error", err}, s.failureAttrs(0)...)...)
				return err.Error(), true, false
			}
			s.health.RecordSuccess()
			s.health.Evaluate(s.thresholds())

		case err := <-conn.Done:
			if err != nil {
				return err.Error(), false, false
			}
			return "", false, false

		case <-heartbeatC:
			timeout := s.heartbeatTimeout()
			if timeout > 0 && s.session.IsHeartbeatTimeout(timeout) {
				s.stats.MissedHeartbeats++
				s.log.Warn("streaming heartbeat timeout", s.failureAttrs(0)...)
				return "heartbeat timeout", false, false
			}
		}
	}
}

// failureAttrs builds the structured fields every streaming failure log
// carries: heartbeat/ack sequence numbers from the session, accumulated
// missed-heartbeat and reconnect counters, and the current consecutive
// failure streak.
func (s *StreamingSupervisor[S, E]) failureAttrs(consecutiveFailures int) []any {
	return []any{
		"heartbeat_seq", s.session.HeartbeatSeq(),
		"ack_seq", s.session.AckSeq(),
		"missed_heartbeats", s.stats.MissedHeartbeats,
		"reconnect_count", s.stats.ConnectionAttempts,
		"consecutive_failures", consecutiveFailures,
	}
}

func (s *StreamingSupervisor[S, E]) thresholds() health.Thresholds {
	return health.Thresholds{MaxConsecutiveFailures: s.cfg.MaxConsecutiveFailures, CooldownAfterFailure: s.cfg.CooldownDuration()}
}

func (s *StreamingSupervisor[S, E]) heartbeatTimeout() time.Duration {
	if s.cfg.HeartbeatIntervalMs <= 0 || s.cfg.HeartbeatTimeoutMultiplier <= 0 {
		return 0
	}
	return time.Duration(float64(s.cfg.HeartbeatInterval()) * s.cfg.HeartbeatTimeoutMultiplier)
}

func (s *StreamingSupervisor[S, E]) backoffDelay(attempt int) time.Duration {
	jitter := fractionalJitter(attempt)
	return Delay(s.cfg, attempt, jitter, 0)
}

// sleepOrShutdown waits for delay, returning true if ctx was canceled first.
func (s *StreamingSupervisor[S, E]) sleepOrShutdown(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func (s *StreamingSupervisor[S, E]) shutdown() Outcome {
	s.log.Info("streaming supervisor received shutdown signal")
	s.persist()
	return Outcome{Kind: OutcomeShutdown}
}

func (s *StreamingSupervisor[S, E]) persist() {
	if err := s.session.Persist(); err != nil {
		s.log.Error("failed to persist session on shutdown", "error", err)
	}
}

// fractionalJitter mirrors the reference runtime's simple (attempt*0.1).fract()
// jitter generator: deterministic, cheap, and bounded to [0,1). Callers that
// need cryptographic jitter should supply their own factor via a wrapped
// Delay call instead of this supervisor's default.
func fractionalJitter(attempt int) float64 {
	v := float64(attempt) * 0.1
	_, frac := splitFloat(v)
	return frac
}

func splitFloat(v float64) (whole, frac float64) {
	w := float64(int64(v))
	return w, v - w
}
