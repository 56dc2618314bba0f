package supervisor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/flywheel-sh/fcpcore/pkg/health"
)

// PollingCursor is the host-supplied cursor adapter a PollingSupervisor
// drives: offset tracking plus persistence hooks for exactly-once semantics
// (spec §4.4.1).
type PollingCursor interface {
	Offset() *int64
	RecordPoll(at time.Time, itemCount int)
	Restore() error
	Persist() error
}

// PollOutcome is the result of one poll attempt.
type PollOutcome[T any] struct {
	kind         pollKind
	items        []T
	message      string
	retryAfterMs int64
}

type pollKind int

const (
	pollSuccess pollKind = iota
	pollRecoverableError
	pollFatalError
)

// PollSuccess wraps a successful poll's items (possibly empty).
func PollSuccess[T any](items []T) PollOutcome[T] {
	return PollOutcome[T]{kind: pollSuccess, items: items}
}

// PollRecoverable reports a retryable poll failure.
func PollRecoverable[T any](message string) PollOutcome[T] {
	return PollOutcome[T]{kind: pollRecoverableError, message: message}
}

// PollRateLimited reports a retryable poll failure with a rate-limit
// retry-after hint in milliseconds.
func PollRateLimited[T any](message string, retryAfterMs int64) PollOutcome[T] {
	return PollOutcome[T]{kind: pollRecoverableError, message: message, retryAfterMs: retryAfterMs}
}

// PollFatal reports an unrecoverable poll failure.
func PollFatal[T any](message string) PollOutcome[T] {
	return PollOutcome[T]{kind: pollFatalError, message: message}
}

// PollingStats accumulates counters across a supervisor run.
type PollingStats struct {
	TotalPolls      int64
	SuccessfulPolls int64
	FailedPolls     int64
	ItemsProcessed  int64
	BackoffTimeMs   int64
}

// PollFunc performs one poll from the given offset.
type PollFunc[C PollingCursor, T any] func(ctx context.Context, offset *int64) PollOutcome[T]

// ProcessFunc handles a batch of polled items and advances cursor state.
type ProcessFunc[C PollingCursor, T any] func(items []T, cursor C) error

// PollingSupervisor runs a supervised polling loop: poll at a fixed
// interval, back off (respecting rate-limit hints) on recoverable errors,
// and persist cursor state after each successful batch (spec §4.4.1).
type PollingSupervisor[C PollingCursor, T any] struct {
	cfg     Config
	cursor  C
	health  *health.Tracker
	stats   PollingStats
	log     *slog.Logger
	limiter *rate.Limiter
}

// NewPolling wraps cursor under cfg. Pass WithRateLimit to additionally cap
// the steady-state poll rate.
func NewPolling[C PollingCursor, T any](cfg Config, cursor C, log *slog.Logger, opts ...Option) *PollingSupervisor[C, T] {
	if log == nil {
		log = slog.Default()
	}
	o := buildOptions(opts)
	return &PollingSupervisor[C, T]{cfg: cfg, cursor: cursor, health: health.New(), log: log, limiter: o.limiter}
}

// Health returns the supervisor's health tracker.
func (s *PollingSupervisor[C, T]) Health() *health.Tracker { return s.health }

// Stats returns a copy of the accumulated statistics.
func (s *PollingSupervisor[C, T]) Stats() PollingStats { return s.stats }

// failureAttrs builds the same structured fields the streaming supervisor
// emits on failure, for a uniform log schema across both supervisor
// variants. Polling connectors have no heartbeat protocol, so
// heartbeat_seq/ack_seq/missed_heartbeats are always zero; reconnect_count
// is the poll attempt count, the polling loop's nearest analog to a
// reconnect.
func (s *PollingSupervisor[C, T]) failureAttrs(consecutiveFailures int) []any {
	return []any{
		"heartbeat_seq", int64(0),
		"ack_seq", int64(0),
		"missed_heartbeats", int64(0),
		"reconnect_count", s.stats.TotalPolls,
		"consecutive_failures", consecutiveFailures,
	}
}

func (s *PollingSupervisor[C, T]) thresholds() health.Thresholds {
	return health.Thresholds{MaxConsecutiveFailures: s.cfg.MaxConsecutiveFailures, CooldownAfterFailure: s.cfg.CooldownDuration()}
}

// Run drives the poll/process/backoff loop until ctx is canceled, a fatal
// poll result is returned, or max_consecutive_failures is reached.
func (s *PollingSupervisor[C, T]) Run(ctx context.Context, pollInterval time.Duration, poll PollFunc[C, T], process ProcessFunc[C, T]) Outcome {
	consecutiveFailures := 0

	if err := s.cursor.Restore(); err != nil {
		s.log.Warn("failed to restore cursor state, starting fresh", "error", err)
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

		s.stats.TotalPolls++
		offset := s.cursor.Offset()

		result := poll(ctx, offset)
		s.cursor.RecordPoll(time.Now(), len(result.items))

		switch result.kind {
		case pollSuccess:
			s.stats.SuccessfulPolls++
			s.stats.ItemsProcessed += int64(len(result.items))
			consecutiveFailures = 0
			s.health.RecordSuccess()
			s.health.Evaluate(s.thresholds())

			if len(result.items) > 0 {
				if err := process(result.items, s.cursor); err != nil {
					s.log.Error("failed to process poll results", "error", err)
				}
				if err := s.cursor.Persist(); err != nil {
					s.log.Warn("failed to persist cursor", "error", err)
				}
			}

			if s.sleepOrShutdown(ctx, pollInterval) {
				return s.shutdown()
			}

		case pollRecoverableError:
			s.stats.FailedPolls++
			consecutiveFailures++
			s.health.RecordFailure(result.message)
			s.health.Evaluate(s.thresholds())
			s.log.Warn("poll failed with recoverable error", append([]any{"error", result.message, "retry_after_ms", result.retryAfterMs}, s.failureAttrs(consecutiveFailures)...)...)

			if consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
				s.persist()
				return Outcome{Kind: OutcomeMaxFailuresReached, Failures: consecutiveFailures}
			}

			delay := Delay(s.cfg, consecutiveFailures-1, fractionalJitter(consecutiveFailures-1), result.retryAfterMs)
			s.stats.BackoffTimeMs += delay.Milliseconds()
			s.log.Info("backing off before retry", "delay_ms", delay.Milliseconds(), "attempt", consecutiveFailures)
			if s.sleepOrShutdown(ctx, delay) {
				return s.shutdown()
			}

		case pollFatalError:
			s.log.Error("poll failed with fatal error", append([]any{"error", result.message}, s.failureAttrs(consecutiveFailures)...)...)
			s.health.Transition(health.Transition{Kind: health.ToError, Reason: result.message})
			s.persist()
			return Outcome{Kind: OutcomeFatalError, Message: result.message}
		}
	}
}

func (s *PollingSupervisor[C, T]) sleepOrShutdown(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func (s *PollingSupervisor[C, T]) shutdown() Outcome {
	s.log.Info("polling supervisor received shutdown signal")
	s.persist()
	return Outcome{Kind: OutcomeShutdown}
}

func (s *PollingSupervisor[C, T]) persist() {
	if err := s.cursor.Persist(); err != nil {
		s.log.Error("failed to persist cursor on shutdown", "error", err)
	}
}
