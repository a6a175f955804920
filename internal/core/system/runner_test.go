package system

import (
	"testing"
	"time"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r *recorder) Phase() Phase            { return r.phase }
func (r *recorder) Update(dt time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{"cleanup", PhaseCleanup, &log})
	r.Register(&recorder{"input", PhaseInput, &log})
	r.Register(&recorder{"track-a", PhasePostUpdate, &log})
	r.Register(&recorder{"track-b", PhasePostUpdate, &log})
	r.Register(&recorder{"wander", PhaseUpdate, &log})

	r.Tick(time.Millisecond)
	want := []string{"input", "wander", "track-a", "track-b", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("ran %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("ran %v, want %v", log, want)
		}
	}
}

func TestRunnerTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{"input", PhaseInput, &log})
	r.Register(&recorder{"output", PhaseOutput, &log})

	r.TickPhase(PhaseInput, 0)
	r.TickPhase(PhaseInput, 0)
	if len(log) != 2 || log[0] != "input" || log[1] != "input" {
		t.Fatalf("TickPhase ran %v", log)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestPhaseString(t *testing.T) {
	if PhasePostUpdate.String() != "post_update" || Phase(42).String() != "unknown" {
		t.Fatalf("unexpected phase names %q %q", PhasePostUpdate, Phase(42))
	}
}
