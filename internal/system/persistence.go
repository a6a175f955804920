package system

import (
	"context"
	"time"

	"github.com/l1jgo/interest/internal/component"
	"github.com/l1jgo/interest/internal/core/ecs"
	"github.com/l1jgo/interest/internal/core/event"
	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/persist"
	"github.com/l1jgo/interest/internal/world"
	"go.uber.org/zap"
)

// ViewerSaver persists viewer rows. Implemented by *persist.ViewerRepo.
type ViewerSaver interface {
	Save(ctx context.Context, rows []persist.ViewerRow) error
}

// JournalWriter appends interest journal entries. Implemented by *persist.Journal.
type JournalWriter interface {
	Write(e persist.JournalEntry) error
}

// PersistenceSystem periodically saves viewers whose state changed since the
// last save, and appends an interest journal entry. Phase 5 (Persist).
type PersistenceSystem struct {
	world   *world.State
	saver   ViewerSaver   // nil when the database is disabled
	journal JournalWriter // nil when the journal is disabled
	log     *zap.Logger

	saveInterval    int
	journalInterval int
	saveTicks       int
	journalTicks    int
	tick            uint64

	left     []persist.ViewerRow // viewers that left before their next save
	counters counters
	now      func() time.Time
}

// counters accumulate bus events between journal entries.
type counters struct {
	enters, exits, moves, joins, leaves int
}

func NewPersistenceSystem(ws *world.State, saver ViewerSaver, journal JournalWriter, saveInterval, journalInterval int, log *zap.Logger) *PersistenceSystem {
	s := &PersistenceSystem{
		world:           ws,
		saver:           saver,
		journal:         journal,
		log:             log,
		saveInterval:    max(saveInterval, 1),
		journalInterval: max(journalInterval, 1),
		now:             time.Now,
	}
	event.Subscribe(ws.Bus, func(event.ChunkEntered) { s.counters.enters++ })
	event.Subscribe(ws.Bus, func(event.ChunkExited) { s.counters.exits++ })
	event.Subscribe(ws.Bus, func(event.AnchorMoved) { s.counters.moves++ })
	event.Subscribe(ws.Bus, func(event.ViewerJoined) { s.counters.joins++ })
	event.Subscribe(ws.Bus, s.onViewerLeft)
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tick++

	s.saveTicks++
	if s.saveTicks >= s.saveInterval {
		s.saveTicks = 0
		s.save(true)
	}

	s.journalTicks++
	if s.journalTicks >= s.journalInterval {
		s.journalTicks = 0
		s.writeJournal()
	}
}

// SaveAll persists every live viewer and every pending departure, ignoring
// the Saved flag. Called on graceful shutdown.
func (s *PersistenceSystem) SaveAll() {
	s.save(false)
}

// PendingDepartures reports how many departed viewers wait for the next save.
func (s *PersistenceSystem) PendingDepartures() int { return len(s.left) }

func (s *PersistenceSystem) onViewerLeft(e event.ViewerLeft) {
	s.counters.leaves++
	if e.Saved || s.saver == nil {
		return
	}
	s.left = append(s.left, persist.ViewerRow{
		Name:         e.Name,
		X:            e.X,
		Z:            e.Z,
		ViewDistance: e.ViewDistance,
		Bot:          e.Bot,
	})
}

func (s *PersistenceSystem) save(changedOnly bool) {
	if s.saver == nil {
		return
	}
	now := s.now()
	rows := s.left
	var ids []ecs.EntityID
	s.world.Viewers.EachSorted(func(id ecs.EntityID, v *component.Viewer) {
		if changedOnly && v.Saved {
			return
		}
		pos, ok := s.world.Positions.Get(id)
		if !ok {
			return
		}
		row := persist.ViewerRow{Name: v.Name, X: pos.X, Z: pos.Z, Bot: v.Bot}
		if view, ok := s.world.Views.Get(id); ok {
			row.ViewDistance = view.Requested
		}
		rows = append(rows, row)
		ids = append(ids, id)
	})
	if len(rows) == 0 {
		return
	}
	for i := range rows {
		rows[i].UpdatedAt = now
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saver.Save(ctx, rows); err != nil {
		// 保留離線者，下次存檔重試；線上者的 Saved 未設定，同樣會重試。
		s.log.Error("觀察者存檔失敗", zap.Int("rows", len(rows)), zap.Error(err))
		return
	}
	s.left = nil
	for _, id := range ids {
		if v, ok := s.world.Viewers.Get(id); ok {
			v.Saved = true
		}
	}
	s.log.Debug("自動存檔完成", zap.Int("rows", len(rows)))
}

func (s *PersistenceSystem) writeJournal() {
	if s.journal == nil {
		s.counters = counters{}
		return
	}
	st := s.world.Interest().Stats()
	entry := persist.JournalEntry{
		Tick:       s.tick,
		Time:       s.now().UTC(),
		Viewers:    st.Viewers,
		ViewCells:  st.ViewCells,
		Tickets:    st.TicketCells,
		PooledSets: st.PooledSets,
		Enters:     s.counters.enters,
		Exits:      s.counters.exits,
		Moves:      s.counters.moves,
		Joins:      s.counters.joins,
		Leaves:     s.counters.leaves,
	}
	s.counters = counters{}
	if err := s.journal.Write(entry); err != nil {
		s.log.Warn("興趣日誌寫入失敗", zap.Error(err))
	}
}
