// Package crashloop implements the crash-loop detector: a bounded window of
// crash timestamps plus a consecutive-crash counter that drives both
// crash-loop detection and next-delay computation (spec §4.4.3).
package crashloop

import "sort"

// Config parameterizes the detector (spec §8 Scenario G names these
// fields: crash_threshold, window, initial, factor, max).
type Config struct {
	CrashThreshold int
	WindowSecs     int64
	InitialMs      int64
	Factor         float64
	MaxMs          int64
}

// Detector tracks crash timestamps within a sliding window and the current
// consecutive-crash streak.
type Detector struct {
	cfg                Config
	crashTimestamps    []int64 // seconds, ascending
	consecutiveCrashes int
}

// New returns a Detector with no recorded crashes.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// RecordCrash appends now to the window, prunes entries older than
// window_secs, and increments the consecutive-crash streak.
func (d *Detector) RecordCrash(nowSecs int64) {
	d.crashTimestamps = append(d.crashTimestamps, nowSecs)
	d.prune(nowSecs)
	d.consecutiveCrashes++
}

func (d *Detector) prune(nowSecs int64) {
	cutoff := nowSecs - d.cfg.WindowSecs
	idx := sort.Search(len(d.crashTimestamps), func(i int) bool {
		return d.crashTimestamps[i] > cutoff
	})
	d.crashTimestamps = d.crashTimestamps[idx:]
}

// RecordSuccess resets the consecutive-crash streak; the window history of
// past crash timestamps is left untouched.
func (d *Detector) RecordSuccess() {
	d.consecutiveCrashes = 0
}

// CrashesInWindow returns the number of crash timestamps currently retained.
func (d *Detector) CrashesInWindow() int {
	return len(d.crashTimestamps)
}

// IsCrashLoop reports whether the window holds at least crash_threshold
// entries.
func (d *Detector) IsCrashLoop() bool {
	return d.CrashesInWindow() >= d.cfg.CrashThreshold
}

// ConsecutiveCrashes returns the current consecutive-crash streak.
func (d *Detector) ConsecutiveCrashes() int {
	return d.consecutiveCrashes
}

// NextDelayMs is 0 with no consecutive crashes, else
// min(max, initial * factor^(consecutive-1)).
func (d *Detector) NextDelayMs() int64 {
	if d.consecutiveCrashes == 0 {
		return 0
	}
	delay := float64(d.cfg.InitialMs)
	for i := 0; i < d.consecutiveCrashes-1; i++ {
		delay *= d.cfg.Factor
		if delay >= float64(d.cfg.MaxMs) {
			return d.cfg.MaxMs
		}
	}
	if delay > float64(d.cfg.MaxMs) {
		return d.cfg.MaxMs
	}
	return int64(delay)
}

// Diagnostics is a point-in-time summary for observability/debugging.
type Diagnostics struct {
	CrashesInWindow    int
	ConsecutiveCrashes int
	IsCrashLoop        bool
	NextDelayMs        int64
}

func (d *Detector) Diagnostics() Diagnostics {
	return Diagnostics{
		CrashesInWindow:    d.CrashesInWindow(),
		ConsecutiveCrashes: d.ConsecutiveCrashes(),
		IsCrashLoop:        d.IsCrashLoop(),
		NextDelayMs:        d.NextDelayMs(),
	}
}
