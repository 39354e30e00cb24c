package event

import "testing"

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(ev LightAcquired) { got = append(got, ev.Owner) })

	Emit(b, LightAcquired{Owner: "firefly_1"})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatalf("event delivered in the tick it was emitted: %v", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0] != "firefly_1" {
		t.Fatalf("got %v, want [firefly_1]", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 {
		t.Errorf("event delivered twice: %v", got)
	}
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	acquired, released := 0, 0
	Subscribe(b, func(LightAcquired) { acquired++ })
	Subscribe(b, func(LightReleased) { released++ })

	Emit(b, LightReleased{Owner: "a"})
	Emit(b, LightReleased{Owner: "b"})
	if b.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", b.Pending())
	}
	b.SwapBuffers()
	b.DispatchAll()
	if acquired != 0 || released != 2 {
		t.Errorf("acquired=%d released=%d, want 0 and 2", acquired, released)
	}
}

func TestEmitOnNilBus(t *testing.T) {
	var b *Bus
	Emit(b, CapacityExhausted{Budget: 1})
}
