package lightpool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/megameal/fireflies/internal/geom"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	p, err := New(capacity, nil)
	if err != nil {
		t.Fatalf("New(%d): %v", capacity, err)
	}
	return p
}

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -3} {
		if _, err := New(c, nil); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("capacity %d: expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestRequestIsIdempotent(t *testing.T) {
	p := newTestPool(t, 3)
	h1, ok := p.Request("firefly_1")
	if !ok || h1 == nil {
		t.Fatal("first request failed")
	}
	if !h1.Visible {
		t.Error("requested handle not visible")
	}
	h2, ok := p.Request("firefly_1")
	if !ok || h2 != h1 {
		t.Error("repeat request returned a different handle")
	}
	if s := p.Snapshot(); s.Active != 1 || s.Available != 2 {
		t.Errorf("snapshot after repeat request = %+v", s)
	}
}

func TestRequestReleaseRoundTrip(t *testing.T) {
	p := newTestPool(t, 4)
	p.Request("other")
	before := p.Snapshot().Available

	p.Request("firefly_9")
	if got := p.Snapshot().Available; got != before-1 {
		t.Fatalf("available after request = %d, want %d", got, before-1)
	}
	if !p.Release("firefly_9") {
		t.Fatal("Release returned false for owned handle")
	}
	if got := p.Snapshot().Available; got != before {
		t.Errorf("available after release = %d, want %d", got, before)
	}
	if p.Release("firefly_9") {
		t.Error("second Release returned true")
	}
	if got := p.Snapshot().Available; got != before {
		t.Errorf("available after double release = %d, want %d", got, before)
	}
	if err := p.CheckInvariants(); err != nil {
		t.Error(err)
	}
}

func TestReleaseResetsHandle(t *testing.T) {
	p := newTestPool(t, 1)
	p.Request("a")
	in := 2.5
	p.Update("a", Patch{Intensity: &in})
	p.Release("a")

	var seen bool
	p.Handles(func(_ int, owner string, h Handle) {
		seen = true
		if owner != "" || h.Visible || h.Intensity != 0 {
			t.Errorf("released handle = owner %q %+v", owner, h)
		}
	})
	if !seen {
		t.Fatal("Handles visited nothing")
	}
}

func TestExhaustion(t *testing.T) {
	p := newTestPool(t, 2)
	p.Request("a")
	p.Request("b")
	if h, ok := p.Request("c"); ok || h != nil {
		t.Fatal("request beyond capacity succeeded")
	}
	if p.Exhausted() != 1 {
		t.Errorf("exhausted = %d, want 1", p.Exhausted())
	}
	p.Release("a")
	if _, ok := p.Request("c"); !ok {
		t.Error("request after release failed")
	}
	if err := p.CheckInvariants(); err != nil {
		t.Error(err)
	}
}

func TestUpdateAppliesOnlyGivenFields(t *testing.T) {
	p := newTestPool(t, 2)
	if p.Update("nobody", Patch{}) {
		t.Error("Update on unowned owner returned true")
	}
	p.Request("a")
	pos := geom.V(1, 2, 3)
	col := geom.Color(0xffcc66)
	in := 1.5
	fall := 12.0
	p.Update("a", Patch{Position: &pos, Color: &col, Intensity: &in, Falloff: &fall})

	in2 := 0.5
	if !p.Update("a", Patch{Intensity: &in2}) {
		t.Fatal("Update returned false for owner")
	}
	h, _ := p.Lookup("a")
	if h.Position != pos || h.Color != col || h.Falloff != fall || h.Intensity != in2 {
		t.Errorf("handle = %+v", h)
	}
}

func TestOwnershipBijectionUnderChurn(t *testing.T) {
	p := newTestPool(t, 5)
	for round := 0; round < 50; round++ {
		owner := fmt.Sprintf("o%d", round%8)
		if round%3 == 0 {
			p.Release(owner)
		} else {
			p.Request(owner)
		}
		if err := p.CheckInvariants(); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if s := p.Snapshot(); s.Active > s.Capacity || s.Active != len(s.Owners) {
			t.Fatalf("round %d: snapshot %+v", round, s)
		}
	}
}

func TestDispose(t *testing.T) {
	p := newTestPool(t, 3)
	p.Request("a")
	p.Request("b")
	p.Dispose()
	if s := p.Snapshot(); s.Active != 0 || s.Available != 3 || len(s.Owners) != 0 {
		t.Errorf("snapshot after dispose = %+v", s)
	}
}
