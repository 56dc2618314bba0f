//go:build property
// +build property

package provenance_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
)

// TestApplyElevationNeverMutatesReceiver verifies provenance mutation
// methods are value-semantic: applying elevation never changes the
// original record (spec §5).
func TestApplyElevationNeverMutatesReceiver(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ApplyElevation does not mutate the receiver", prop.ForAll(
		func(startLevel, targetLevel, ceiling int) bool {
			start := labels.IntegrityLevel(startLevel % 4)
			target := labels.IntegrityLevel(targetLevel % 4)
			cap := labels.IntegrityLevel(ceiling % 4)

			r := provenance.Record{IntegrityLabel: start}
			before := r.IntegrityLabel
			_ = r.ApplyElevation(objectid.ObjectId{0x01}, target, cap, 1)
			return r.IntegrityLabel == before && len(r.ElevationHistory) == 0
		},
		gen.Int(), gen.Int(), gen.Int(),
	))

	properties.Property("ApplyElevation never exceeds the zone ceiling", prop.ForAll(
		func(startLevel, targetLevel, ceiling int) bool {
			start := labels.IntegrityLevel(startLevel % 4)
			target := labels.IntegrityLevel(targetLevel % 4)
			cap := labels.IntegrityLevel(ceiling % 4)

			r := provenance.Record{IntegrityLabel: start}
			out := r.ApplyElevation(objectid.ObjectId{0x01}, target, cap, 1)
			return out.IntegrityLabel <= cap
		},
		gen.Int(), gen.Int(), gen.Int(),
	))

	properties.TestingRun(t)
}
