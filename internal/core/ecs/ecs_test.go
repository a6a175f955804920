package ecs

import "testing"

type pos struct{ X, Z int32 }
type tag struct{}

func TestEntityPoolReusesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	if a.IsZero() || a.Generation() != 1 {
		t.Fatalf("first entity = %v", a)
	}
	p.Destroy(a)
	if p.Alive(a) || p.Count() != 0 {
		t.Fatal("destroyed entity must not be alive")
	}
	b := p.Create()
	if b.Index() != a.Index() || b.Generation() != 2 {
		t.Fatalf("reused entity = %v, want index %d gen 2", b, a.Index())
	}
	p.Destroy(a) // stale, no effect
	if !p.Alive(b) || p.Count() != 1 {
		t.Fatal("stale destroy must not affect the new entity")
	}
}

func TestWorldFlushRunsHooksAndClearsStores(t *testing.T) {
	w := NewWorld()
	positions := NewPtrComponentStore[pos]()
	tags := NewPtrComponentStore[tag]()
	w.Register(positions)
	w.Register(tags)

	id := w.CreateEntity()
	positions.Set(id, &pos{1, 2})
	tags.Set(id, &tag{})

	var seen []EntityID
	w.OnDestroy(func(e EntityID) {
		if !positions.Has(e) {
			t.Error("hooks must run before components are removed")
		}
		seen = append(seen, e)
	})

	w.MarkForDestruction(id)
	w.MarkForDestruction(id)
	if w.Pending() != 2 {
		t.Fatalf("pending = %d", w.Pending())
	}
	w.FlushDestroyQueue()
	if len(seen) != 1 || seen[0] != id {
		t.Fatalf("hook calls = %v", seen)
	}
	if positions.Has(id) || tags.Has(id) || w.Alive(id) || w.Pending() != 0 {
		t.Fatal("entity must be fully destroyed")
	}
}

func TestEach2AndEachSorted(t *testing.T) {
	w := NewWorld()
	positions := NewPtrComponentStore[pos]()
	tags := NewPtrComponentStore[tag]()
	var ids []EntityID
	for i := 0; i < 5; i++ {
		id := w.CreateEntity()
		ids = append(ids, id)
		positions.Set(id, &pos{int32(i), 0})
		if i%2 == 0 {
			tags.Set(id, &tag{})
		}
	}

	n := 0
	Each2(positions, tags, func(id EntityID, p *pos, _ *tag) {
		if p.X%2 != 0 {
			t.Errorf("untagged entity %v visited", id)
		}
		n++
	})
	if n != 3 {
		t.Fatalf("Each2 visited %d, want 3", n)
	}

	var order []EntityID
	positions.EachSorted(func(id EntityID, _ *pos) { order = append(order, id) })
	for i := range ids {
		if order[i] != ids[i] {
			t.Fatalf("EachSorted order = %v, want %v", order, ids)
		}
	}
}
