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

func (r recorder) Phase() Phase { return r.phase }
func (r recorder) Update(time.Duration) {
	*r.log = append(*r.log, r.name)
}

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"cleanup", PhaseCleanup, &log})
	r.Register(recorder{"light", PhaseLighting, &log})
	r.Register(recorder{"drift", PhaseSimulate, &log})
	r.Register(recorder{"cycle", PhaseSimulate, &log})

	r.Tick(16 * time.Millisecond)
	want := []string{"drift", "cycle", "light", "cleanup"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order = %v, want %v", log, want)
		}
	}

}
