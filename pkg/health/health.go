// Package health implements the Recovery Supervisor's health state machine:
// Starting/Ready/Degraded/Error/Stopping with threshold-driven
// auto-evaluation (spec §4.4.2).
package health

import (
	"sync"
	"time"
)

// State is the coarse health of a supervised connector.
type State int

const (
	Starting State = iota
	Ready
	Degraded
	Error
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	case Error:
		return "error"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Transition is one proposed health-state move; Degraded and Error carry a
// reason.
type Transition struct {
	Kind   TransitionKind
	Reason string
}

type TransitionKind int

const (
	ToReady TransitionKind = iota
	ToDegraded
	ToError
	ToStarting
	ToStopping
)

// clock is injectable for deterministic tests.
type clock func() time.Time

// Tracker maintains current state, consecutive success/failure counters,
// and the timestamps auto-evaluation and cooldown checks need.
type Tracker struct {
	mu sync.Mutex

	state                State
	reason               string
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureReason    string
	startedAt            time.Time
	lastStateChange      time.Time
	now                  clock
}

// New returns a Tracker in the Starting state.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock allows tests to inject a deterministic clock.
func NewWithClock(now clock) *Tracker {
	t0 := now()
	return &Tracker{
		state:           Starting,
		startedAt:       t0,
		lastStateChange: t0,
		now:             now,
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) ConsecutiveFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveFailures
}

func (t *Tracker) ConsecutiveSuccesses() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveSuccesses
}

// RecordSuccess resets the failure streak and extends the success streak.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures = 0
	t.consecutiveSuccesses++
}

// RecordFailure resets the success streak and extends the failure streak.
func (t *Tracker) RecordFailure(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveSuccesses = 0
	t.consecutiveFailures++
	t.lastFailureReason = reason
}

// validTransition implements the spec §4.4.2 transition table.
func validTransition(from State, to Transition) bool {
	if from == Stopping {
		return false
	}
	if from == Starting {
		return true
	}
	if to.Kind == ToStarting || to.Kind == ToStopping {
		return true
	}
	switch from {
	case Ready:
		return to.Kind == ToDegraded || to.Kind == ToError
	case Degraded:
		return to.Kind == ToReady || to.Kind == ToError
	case Error:
		return to.Kind == ToReady || to.Kind == ToDegraded
	default:
		return false
	}
}

// Transition applies t if valid from the current state, returning whether
// it was applied.
func (t *Tracker) Transition(tr Transition) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(tr)
}

func (t *Tracker) transitionLocked(tr Transition) bool {
	if !validTransition(t.state, tr) {
		return false
	}
	t.lastStateChange = t.now()
	switch tr.Kind {
	case ToReady:
		t.state = Ready
		t.reason = ""
		t.consecutiveFailures = 0
	case ToDegraded:
		t.state = Degraded
		t.reason = tr.Reason
	case ToError:
		t.state = Error
		t.reason = tr.Reason
	case ToStarting:
		t.state = Starting
		t.reason = ""
		t.consecutiveFailures = 0
		t.consecutiveSuccesses = 0
	case ToStopping:
		t.state = Stopping
		t.reason = ""
	}
	return true
}

// CooldownElapsed reports whether cooldown has passed since the last state
// change; non-Error states are always considered elapsed.
func (t *Tracker) CooldownElapsed(cooldown time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Error {
		return true
	}
	return t.now().Sub(t.lastStateChange) >= cooldown
}

// Thresholds is the subset of supervisor configuration Evaluate needs to
// drive auto-transitions. Kept independent of package supervisor (which
// imports health for the reverse direction — wiring Tracker into its
// supervised loops) to avoid an import cycle.
type Thresholds struct {
	MaxConsecutiveFailures int
	CooldownAfterFailure   time.Duration
}

// Evaluate auto-transitions based on (consecutive_successes,
// consecutive_failures) against threshold config (spec §4.4.2).
func (t *Tracker) Evaluate(cfg Thresholds) {
	t.mu.Lock()
	defer t.mu.Unlock()

	reason := t.lastFailureReason

	switch t.state {
	case Starting:
		if t.consecutiveSuccesses > 0 {
			t.transitionLocked(Transition{Kind: ToReady})
		} else if t.consecutiveFailures >= cfg.MaxConsecutiveFailures {
			t.transitionLocked(Transition{Kind: ToError, Reason: fallback(reason, "initialization failed")})
		}
	case Ready:
		if t.consecutiveFailures >= cfg.MaxConsecutiveFailures {
			t.transitionLocked(Transition{Kind: ToError, Reason: fallback(reason, "too many failures")})
		} else if t.consecutiveFailures > 0 {
			t.transitionLocked(Transition{Kind: ToDegraded, Reason: fallback(reason, "recoverable error")})
		}
	case Degraded:
		if t.consecutiveFailures >= cfg.MaxConsecutiveFailures {
			t.transitionLocked(Transition{Kind: ToError, Reason: fallback(reason, "too many failures")})
		} else if t.consecutiveSuccesses >= 3 {
			t.transitionLocked(Transition{Kind: ToReady})
		}
	case Error:
		if t.now().Sub(t.lastStateChange) >= cfg.CooldownAfterFailure && t.consecutiveSuccesses > 0 {
			t.transitionLocked(Transition{Kind: ToReady})
		}
	case Stopping:
		// terminal; no auto-transitions.
	}
}

func fallback(reason, def string) string {
	if reason == "" {
		return def
	}
	return reason
}

// Snapshot is a point-in-time view of tracker state.
type Snapshot struct {
	State                State
	Reason               string
	UptimeMs             int64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:                t.state,
		Reason:               t.reason,
		UptimeMs:             t.now().Sub(t.startedAt).Milliseconds(),
		ConsecutiveFailures:  t.consecutiveFailures,
		ConsecutiveSuccesses: t.consecutiveSuccesses,
	}
}

// global is the process-wide GLOBAL_HEALTH singleton (SPEC_FULL §4):
// connectors with no dedicated tracker report through it.
var global struct {
	mu      sync.Mutex
	tracker *Tracker
}

// Init (re)initializes the global tracker, returning it.
func Init() *Tracker {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.tracker = New()
	return global.tracker
}

// Global returns the process-wide tracker, initializing it on first use.
func Global() *Tracker {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.tracker == nil {
		global.tracker = New()
	}
	return global.tracker
}

// Reset discards the global tracker; the next Global() call reinitializes.
func Reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.tracker = nil
}
