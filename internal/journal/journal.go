// Package journal archives committed episode metadata in Postgres so a
// dataset can be audited against the game it was recorded from.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/lechess/lechess-record/internal/session"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveEpisode upserts one committed episode. A failed insert is fatal for
// the session; there is no retry.
func (r *Repository) SaveEpisode(ctx context.Context, rec session.EpisodeRecord) error {
	if r == nil || r.db == nil {
		return nil
	}
	q := `INSERT INTO episodes (
	    episode_id, repo_id, move_index, fen, san, task, duration_ms, recorded_at
	  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	  ON CONFLICT (episode_id) DO UPDATE SET
	    repo_id=EXCLUDED.repo_id,
	    move_index=EXCLUDED.move_index,
	    fen=EXCLUDED.fen,
	    san=EXCLUDED.san,
	    task=EXCLUDED.task,
	    duration_ms=EXCLUDED.duration_ms,
	    recorded_at=EXCLUDED.recorded_at`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.RepoID,
		rec.MoveIndex,
		rec.FEN,
		rec.SAN,
		rec.Task,
		rec.Duration.Milliseconds(),
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", rec.ID, err)
	}
	return nil
}
