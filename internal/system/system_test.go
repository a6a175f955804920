package system

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/l1jgo/interest/internal/config"
	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/handler"
	"github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/net/packet"
	"github.com/l1jgo/interest/internal/persist"
	"github.com/l1jgo/interest/internal/scripting"
	"github.com/l1jgo/interest/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type chanSource chan *net.Session

func (c chanSource) NewSessions() <-chan *net.Session { return c }

type fakeSaver struct {
	batches [][]persist.ViewerRow
	err     error
}

func (f *fakeSaver) Save(_ context.Context, rows []persist.ViewerRow) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]persist.ViewerRow(nil), rows...))
	return nil
}

type fakeJournal struct {
	entries []persist.JournalEntry
}

func (f *fakeJournal) Write(e persist.JournalEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type loop struct {
	world   *world.State
	store   *net.SessionStore
	source  chanSource
	script  *scripting.Engine
	runner  *coresys.Runner
	persist *PersistenceSystem
	saver   *fakeSaver
	journal *fakeJournal
}

func newLoop(t *testing.T, saveInterval int) *loop {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := config.Defaults()
	eng, err := scripting.NewEngine(filepath.Join("..", "..", "scripts"), log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(eng.Close)

	l := &loop{
		world:   world.NewState(cfg.View, log),
		store:   net.NewSessionStore(),
		source:  make(chanSource, 4),
		script:  eng,
		runner:  coresys.NewRunner(),
		saver:   &fakeSaver{},
		journal: &fakeJournal{},
	}
	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, &handler.Deps{Config: cfg, Log: log, World: l.world, Scripting: eng})

	l.persist = NewPersistenceSystem(l.world, l.saver, l.journal, saveInterval, 1, log)
	// Registered out of order on purpose; the runner sorts by phase.
	l.runner.Register(NewCleanupSystem(l.world.ECS))
	l.runner.Register(l.persist)
	l.runner.Register(NewOutputSystem(l.world, l.store))
	l.runner.Register(NewTrackingSystem(l.world))
	l.runner.Register(NewWanderSystem(l.world, eng))
	l.runner.Register(NewInputSystem(l.source, reg, l.store, l.world, 8, log))
	return l
}

func (l *loop) connect(t *testing.T, id uint64, msg any) *net.Session {
	t.Helper()
	sess := net.NewSession(nil, id, "127.0.0.1", 8, 256, 0, 0, zap.NewNop())
	l.push(t, sess, msg)
	l.source <- sess
	return sess
}

func (l *loop) push(t *testing.T, sess *net.Session, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	sess.InQueue <- data
}

func drain(t *testing.T, sess *net.Session) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-sess.OutQueue:
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatal(err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func countType(msgs []map[string]any, typ string) int {
	n := 0
	for _, m := range msgs {
		if m["type"] == typ {
			n++
		}
	}
	return n
}

func intp(v int) *int { return &v }

func subscribe(name string, x, z int32, dist int) packet.Subscribe {
	return packet.Subscribe{Type: packet.C_SUBSCRIBE, Name: name, X: x, Z: z, ViewDistance: intp(dist)}
}

func TestTickDeliversWelcomeThenChunks(t *testing.T) {
	l := newLoop(t, 100)
	sess := l.connect(t, 1, subscribe("alice", 0, 0, 2))
	l.runner.Tick(0)

	msgs := drain(t, sess)
	if len(msgs) != 26 {
		t.Fatalf("got %d messages, want welcome + 25 chunks", len(msgs))
	}
	if msgs[0]["type"] != packet.S_WELCOME {
		t.Fatalf("first message = %v, want WELCOME", msgs[0]["type"])
	}
	if n := countType(msgs, packet.S_CHUNK_ENTER); n != 25 {
		t.Fatalf("CHUNK_ENTER = %d, want 25", n)
	}
	if l.store.Len() != 1 {
		t.Fatalf("store len = %d", l.store.Len())
	}
}

func TestTickAppliesMoveOnce(t *testing.T) {
	l := newLoop(t, 100)
	sess := l.connect(t, 1, subscribe("alice", 0, 0, 2))
	l.runner.Tick(0)
	drain(t, sess)

	// Two moves in one tick collapse into a single tracking pass.
	l.push(t, sess, subscribe("alice", 5, 0, 2))
	l.push(t, sess, subscribe("alice", 1, 0, 2))
	l.runner.Tick(0)

	msgs := drain(t, sess)
	if n := countType(msgs, packet.S_CHUNK_ENTER); n != 5 {
		t.Fatalf("CHUNK_ENTER = %d, want 5", n)
	}
	if n := countType(msgs, packet.S_CHUNK_EXIT); n != 5 {
		t.Fatalf("CHUNK_EXIT = %d, want 5", n)
	}
	last := msgs[len(msgs)-1]
	if last["type"] != packet.S_VIEW_CENTER || last["x"].(float64) != 1 {
		t.Fatalf("last message = %v, want VIEW_CENTER at x=1", last)
	}
}

func TestDisconnectReleasesViewer(t *testing.T) {
	l := newLoop(t, 100)
	sess := l.connect(t, 1, subscribe("alice", 0, 0, 2))
	l.runner.Tick(0)

	sess.Close()
	l.runner.Tick(0)
	if l.store.Len() != 0 {
		t.Fatal("closed session must leave the store")
	}
	if l.world.ViewerCount() != 0 {
		t.Fatal("viewer must be destroyed at the end of the tick")
	}
	if st := l.world.Interest().Stats(); st != (world.Stats{}) {
		t.Fatalf("interest maps not empty: %+v", st)
	}

	// ViewerLeft is dispatched on the following tick.
	l.runner.Tick(0)
	if l.persist.PendingDepartures() != 1 {
		t.Fatalf("pending departures = %d, want 1", l.persist.PendingDepartures())
	}
	l.persist.SaveAll()
	if len(l.saver.batches) != 1 || l.saver.batches[0][0].Name != "alice" {
		t.Fatalf("saved %+v", l.saver.batches)
	}
	if l.persist.PendingDepartures() != 0 {
		t.Fatal("departures must be cleared after a save")
	}
}

func TestLeaveClosesAndDespawns(t *testing.T) {
	l := newLoop(t, 100)
	sess := l.connect(t, 1, subscribe("alice", 0, 0, 2))
	l.runner.Tick(0)

	l.push(t, sess, packet.Leave{Type: packet.C_LEAVE})
	l.runner.Tick(0)
	if !sess.IsClosed() {
		t.Fatal("LEAVE must close the session")
	}
	if _, ok := l.world.ByName("alice"); ok {
		t.Fatal("viewer must be gone after LEAVE")
	}
}

func TestPersistenceSavesChangedViewers(t *testing.T) {
	l := newLoop(t, 2)
	sess := l.connect(t, 1, subscribe("alice", 3, 4, 2))
	l.runner.Tick(0)
	l.runner.Tick(0)
	if len(l.saver.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(l.saver.batches))
	}
	row := l.saver.batches[0][0]
	if row.Name != "alice" || row.X != 3 || row.Z != 4 || row.ViewDistance != 2 || row.UpdatedAt.IsZero() {
		t.Fatalf("row = %+v", row)
	}

	// Unchanged viewers are skipped.
	l.runner.Tick(0)
	l.runner.Tick(0)
	if len(l.saver.batches) != 1 {
		t.Fatalf("clean viewer saved again: %d batches", len(l.saver.batches))
	}

	l.push(t, sess, subscribe("alice", 9, 4, 2))
	l.runner.Tick(0)
	l.runner.Tick(0)
	if len(l.saver.batches) != 2 || l.saver.batches[1][0].X != 9 {
		t.Fatalf("moved viewer not saved: %+v", l.saver.batches)
	}

	// A clean viewer leaves without a pending save.
	l.runner.Tick(0)
	l.runner.Tick(0)
	sess.Close()
	l.runner.Tick(0)
	l.runner.Tick(0)
	if l.persist.PendingDepartures() != 0 {
		t.Fatal("saved viewer must not be queued again on leave")
	}
}

func TestPersistenceRetriesAfterError(t *testing.T) {
	l := newLoop(t, 1)
	l.saver.err = errors.New("db down")
	l.connect(t, 1, subscribe("alice", 0, 0, 2))
	l.runner.Tick(0)
	if len(l.saver.batches) != 0 {
		t.Fatal("failed save must not record a batch")
	}

	l.saver.err = nil
	l.runner.Tick(0)
	if len(l.saver.batches) != 1 {
		t.Fatalf("viewer must be retried, batches = %d", len(l.saver.batches))
	}
}

func TestJournalCountsEvents(t *testing.T) {
	l := newLoop(t, 100)
	l.connect(t, 1, subscribe("alice", 0, 0, 2))
	l.runner.Tick(0)

	if len(l.journal.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(l.journal.entries))
	}
	e := l.journal.entries[0]
	if e.Tick != 1 || e.Joins != 1 || e.Enters != 25 || e.Exits != 0 {
		t.Fatalf("entry = %+v", e)
	}
	// ticket radius is the view distance plus one
	if e.Viewers != 1 || e.ViewCells != 25 || e.Tickets != 49 {
		t.Fatalf("entry stats = %+v", e)
	}

	l.runner.Tick(0)
	if e := l.journal.entries[1]; e.Joins != 0 || e.Enters != 0 {
		t.Fatalf("counters must reset between entries: %+v", e)
	}
}

func TestWanderMovesBots(t *testing.T) {
	l := newLoop(t, 100)
	if err := l.script.LoadString(`function wander_step(ctx) return {dx = 1, dz = 0} end`); err != nil {
		t.Fatal(err)
	}
	id, err := l.world.SpawnViewer(world.ViewerSpec{Name: "bot", Requested: 2, Effective: 2, Bot: true, WanderRange: 4})
	if err != nil {
		t.Fatal(err)
	}
	still, err := l.world.SpawnViewer(world.ViewerSpec{Name: "post", X: 50, Requested: 2, Effective: 2, Bot: true})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		l.runner.Tick(0)
	}
	if x, _, _ := l.world.Interest().Anchor(id); x != 3 {
		t.Fatalf("wandering bot anchor x = %d, want 3", x)
	}
	if x, _, _ := l.world.Interest().Anchor(still); x != 50 {
		t.Fatalf("stationary bot moved to x = %d", x)
	}
}
