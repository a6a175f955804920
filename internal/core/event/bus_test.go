package event

import "testing"

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []ChunkEntered
	Subscribe(b, func(e ChunkEntered) { got = append(got, e) })

	Emit(b, ChunkEntered{X: 1, Z: 2})
	Emit(b, ChunkEntered{X: 3, Z: 4})
	if Pending[ChunkEntered](b) != 2 {
		t.Fatalf("pending = %d", Pending[ChunkEntered](b))
	}
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatal("events must not be visible before SwapBuffers")
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 || got[0].X != 1 || got[1].X != 3 {
		t.Fatalf("delivered %v", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 {
		t.Fatal("events must be delivered once")
	}
}

func TestBusSeparatesTypes(t *testing.T) {
	b := NewBus()
	enters, exits := 0, 0
	Subscribe(b, func(ChunkEntered) { enters++ })
	Subscribe(b, func(ChunkExited) { exits++ })
	Emit(b, ChunkExited{})
	b.SwapBuffers()
	b.DispatchAll()
	if enters != 0 || exits != 1 {
		t.Fatalf("enters=%d exits=%d", enters, exits)
	}
}
