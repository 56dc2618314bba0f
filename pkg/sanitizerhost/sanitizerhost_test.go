package sanitizerhost

import (
	"testing"

	"github.com/flywheel-sh/fcpcore/pkg/labels"
)

func TestParseClearedFlags(t *testing.T) {
	out := []byte("PublicInput\nUnverifiedLink\n\n")
	got := parseClearedFlags(out)
	want := []labels.TaintFlag{labels.TaintPublicInput, labels.TaintUnverifiedLink}

	if len(got) != len(want) {
		t.Fatalf("parseClearedFlags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flag[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseClearedFlags_Empty(t *testing.T) {
	if got := parseClearedFlags([]byte("")); got != nil {
		t.Errorf("parseClearedFlags(\"\") = %v, want nil", got)
	}
}
