package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ViewerRow is the last known state of a named viewer.
type ViewerRow struct {
	Name         string
	X            int32 // chunk coordinates
	Z            int32
	ViewDistance int // requested, not effective
	Bot          bool
	UpdatedAt    time.Time
}

type ViewerRepo struct {
	db *DB
}

func NewViewerRepo(db *DB) *ViewerRepo {
	return &ViewerRepo{db: db}
}

// Save upserts a batch of viewers in a single transaction.
func (r *ViewerRepo) Save(ctx context.Context, rows []ViewerRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("viewers begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, v := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO viewers (name, chunk_x, chunk_z, view_distance, bot, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (name) DO UPDATE SET
			   chunk_x = EXCLUDED.chunk_x,
			   chunk_z = EXCLUDED.chunk_z,
			   view_distance = EXCLUDED.view_distance,
			   bot = EXCLUDED.bot,
			   updated_at = EXCLUDED.updated_at`,
			v.Name, v.X, v.Z, v.ViewDistance, v.Bot,
		); err != nil {
			return fmt.Errorf("viewers upsert %s: %w", v.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// Load returns the saved viewer, or nil if the name was never saved.
func (r *ViewerRepo) Load(ctx context.Context, name string) (*ViewerRow, error) {
	v := &ViewerRow{Name: name}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT chunk_x, chunk_z, view_distance, bot, updated_at FROM viewers WHERE name = $1`, name,
	).Scan(&v.X, &v.Z, &v.ViewDistance, &v.Bot, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("viewers load %s: %w", name, err)
	}
	return v, nil
}
