package area

import (
	"errors"
	"testing"
)

func hashInt(v int) uint64 { return uint64(v) }

func expectFault(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("%s: expected an invariant panic", op)
		}
		err, ok := r.(error)
		var ie *InvariantError
		if !ok || !errors.As(err, &ie) {
			t.Fatalf("%s: panic value %v is not an *InvariantError", op, r)
		}
		if ie.Op != op {
			t.Fatalf("fault op = %q, want %q", ie.Op, op)
		}
	}()
	fn()
}

func TestPoolInternsByContent(t *testing.T) {
	p := NewPool(hashInt)
	a := p.NewSingleton(1)
	b := p.NewSingleton(1)

	ab := p.WithAdded(a, 2)
	ab2 := p.WithAdded(b, 2)
	if ab != ab2 {
		t.Fatal("equal combinations must share one set")
	}
	if ab.Refs() != 2 {
		t.Fatalf("refs = %d, want 2", ab.Refs())
	}
	if p.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", p.Len())
	}

	// Insertion order does not matter for identity.
	ba := p.WithAdded(p.NewSingleton(2), 1)
	if ba != ab {
		t.Fatal("{2,1} and {1,2} must be the same set")
	}
	if ab.Refs() != 3 {
		t.Fatalf("refs = %d, want 3", ab.Refs())
	}
}

func TestPoolSingletonsArePermanent(t *testing.T) {
	p := NewPool(hashInt)
	s := p.NewSingleton(7)
	if !s.Permanent() || s.Refs() != -1 {
		t.Fatalf("singleton should be permanent, got %v", s)
	}
	if got := p.WithRemoved(s, 7); got != nil {
		t.Fatalf("removing the only member must yield nil, got %v", got)
	}
	if !p.Live(s) {
		t.Fatal("private sets are always live")
	}
	if p.Len() != 0 {
		t.Fatalf("private sets are never interned, pool len = %d", p.Len())
	}
}

func TestPoolEvictsAtZero(t *testing.T) {
	p := NewPool(hashInt)
	ab := p.WithAdded(p.NewSingleton(1), 2)
	if !p.Live(ab) {
		t.Fatal("fresh set must be live")
	}

	a := p.WithRemoved(ab, 2)
	if p.Live(ab) {
		t.Fatal("set with zero refs must be evicted")
	}
	if a.Permanent() || a.Len() != 1 || !a.Contains(1) {
		t.Fatalf("expected pooled {1}, got %v", a)
	}

	// The same combination after eviction is a fresh instance.
	ab2 := p.WithAdded(a, 2)
	if ab2 == ab {
		t.Fatal("evicted set must not come back")
	}
	if ab2.Refs() != 1 {
		t.Fatalf("refs = %d, want 1", ab2.Refs())
	}
	if p.Live(a) {
		t.Fatal("{1} lost its only reference and must be evicted")
	}
	if p.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", p.Len())
	}
}

func TestPoolTransitionCache(t *testing.T) {
	p := NewPool(hashInt)
	one := p.NewSingleton(1)

	first := p.WithAdded(one, 2)
	if one.addNext != first.handle {
		t.Fatal("add transition should be remembered on the source set")
	}
	second := p.WithAdded(one, 2)
	if second != first || first.Refs() != 2 {
		t.Fatalf("cached transition should reuse %v, got %v", first, second)
	}

	// A different element misses the cache.
	other := p.WithAdded(one, 3)
	if other == first || !other.Contains(3) || other.Contains(2) {
		t.Fatalf("unexpected set for {1,3}: %v", other.Members())
	}
}

func TestPoolStaleCacheMisses(t *testing.T) {
	p := NewPool(hashInt)
	one := p.NewSingleton(1)

	ab := p.WithAdded(one, 2)
	stale := one.addNext
	if p.WithRemoved(ab, 2) == nil {
		t.Fatal("{1,2} - 2 should be {1}")
	}
	if p.resolve(stale) != nil {
		t.Fatal("handle of an evicted set must not resolve")
	}

	fresh := p.WithAdded(one, 2)
	if fresh == ab || fresh.Refs() != 1 || !p.Live(fresh) {
		t.Fatalf("stale cache must recompute a live set, got %v", fresh)
	}
}

func TestPoolRemoveKeepsOrder(t *testing.T) {
	p := NewPool(hashInt)
	s := p.NewSingleton(1)
	for _, e := range []int{2, 3, 4} {
		s = p.WithAdded(s, e)
	}
	s = p.WithRemoved(s, 3)
	got := s.Members()
	want := []int{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("members = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("members = %v, want %v", got, want)
		}
	}
}

func TestPoolLargeSetsUseIndex(t *testing.T) {
	p := NewPool(hashInt)
	s := p.NewSingleton(0)
	for e := 1; e < 20; e++ {
		s = p.WithAdded(s, e)
	}
	if s.index == nil {
		t.Fatal("large sets should build a lookup index")
	}
	for e := 0; e < 20; e++ {
		if !s.Contains(e) {
			t.Fatalf("missing %d", e)
		}
	}
	if s.Contains(20) {
		t.Fatal("20 is not a member")
	}
	if p.Len() != 1 {
		t.Fatalf("intermediate sets should be evicted, pool len = %d", p.Len())
	}
}

func TestPoolFaults(t *testing.T) {
	p := NewPool(hashInt)
	expectFault(t, "WithAdded", func() { p.WithAdded(p.NewSingleton(1), 1) })
	expectFault(t, "WithRemoved", func() { p.WithRemoved(p.NewSingleton(1), 2) })

	ab := p.WithAdded(p.NewSingleton(1), 2)
	p.WithRemoved(ab, 1)
	expectFault(t, "decRef", func() { p.decRef(ab) })
}
