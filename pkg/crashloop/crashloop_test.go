package crashloop_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flywheel-sh/fcpcore/pkg/crashloop"
)

// Scenario G — crash-loop backoff.
func TestDetector_ScenarioG(t *testing.T) {
	d := crashloop.New(crashloop.Config{
		CrashThreshold: 3,
		WindowSecs:     60,
		InitialMs:      1000,
		Factor:         2,
		MaxMs:          60000,
	})

	d.RecordCrash(0)
	d.RecordCrash(1)
	d.RecordCrash(2)

	require.True(t, d.IsCrashLoop())
	require.Equal(t, int64(4000), d.NextDelayMs())
	require.Equal(t, 3, d.CrashesInWindow())

	d.RecordSuccess()

	require.Equal(t, 0, d.ConsecutiveCrashes())
	require.Equal(t, int64(0), d.NextDelayMs())
	require.Equal(t, 3, d.CrashesInWindow())
}

func TestDetector_WindowPruning(t *testing.T) {
	d := crashloop.New(crashloop.Config{CrashThreshold: 2, WindowSecs: 10, InitialMs: 100, Factor: 2, MaxMs: 10000})

	d.RecordCrash(0)
	d.RecordCrash(20) // outside the 10s window relative to itself? pruned against this crash's own now.

	require.Equal(t, 1, d.CrashesInWindow())
	require.False(t, d.IsCrashLoop())
}

func TestDetector_NextDelayCapsAtMax(t *testing.T) {
	d := crashloop.New(crashloop.Config{CrashThreshold: 100, WindowSecs: 1000, InitialMs: 1000, Factor: 10, MaxMs: 5000})

	for i := 0; i < 5; i++ {
		d.RecordCrash(int64(i))
	}

	require.Equal(t, int64(5000), d.NextDelayMs())
}
