// Package store persists refinement traces: one row per improvement
// round, keyed by run, so quality trends survive across sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TraceStore is an SQLite-backed log of refinement rounds.
// Thread-safe with a read-write mutex.
type TraceStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// RefinementRound is one recorded improvement step of a run.
type RefinementRound struct {
	ID          string             `json:"id"`
	RunID       string             `json:"run_id"`
	Round       int                `json:"round"`
	Task        string             `json:"task"`
	Strategy    string             `json:"strategy"`
	Template    string             `json:"template"`
	Output      string             `json:"output,omitempty"`
	Quality     float64            `json:"quality"`
	Components  map[string]float64 `json:"components,omitempty"`
	MetaLevel   int                `json:"meta_level"`
	Improvement string             `json:"improvement,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Open opens (creating if needed) the trace database at path.
func Open(path string) (*TraceStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}

	s := &TraceStore{db: db, dbPath: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure trace schema: %w", err)
	}
	return s, nil
}

func (s *TraceStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS refinement_traces (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		task TEXT,
		strategy TEXT,
		template TEXT NOT NULL,
		output TEXT,
		quality REAL NOT NULL,
		components TEXT,
		meta_level INTEGER NOT NULL,
		improvement TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_refinement_run ON refinement_traces(run_id);
	CREATE INDEX IF NOT EXISTS idx_refinement_round ON refinement_traces(run_id, round);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRound persists one refinement round. A missing ID is filled in.
func (s *TraceStore) RecordRound(ctx context.Context, round RefinementRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now()
	}

	components, err := json.Marshal(round.Components)
	if err != nil {
		return fmt.Errorf("marshal quality components: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO refinement_traces
			(id, run_id, round, task, strategy, template, output, quality, components, meta_level, improvement, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		round.ID, round.RunID, round.Round, round.Task, round.Strategy,
		round.Template, round.Output, round.Quality, string(components),
		round.MetaLevel, round.Improvement, round.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record refinement round: %w", err)
	}
	return nil
}

// Rounds returns all rounds of a run in execution order.
func (s *TraceStore) Rounds(ctx context.Context, runID string) ([]RefinementRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, round, task, strategy, template, output, quality, components, meta_level, improvement, created_at
		FROM refinement_traces
		WHERE run_id = ?
		ORDER BY round ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query refinement rounds: %w", err)
	}
	defer rows.Close()

	var out []RefinementRound
	for rows.Next() {
		var r RefinementRound
		var components sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Round, &r.Task, &r.Strategy,
			&r.Template, &r.Output, &r.Quality, &components, &r.MetaLevel,
			&r.Improvement, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refinement round: %w", err)
		}
		if components.Valid && components.String != "" && components.String != "null" {
			if err := json.Unmarshal([]byte(components.String), &r.Components); err != nil {
				return nil, fmt.Errorf("unmarshal quality components: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refinement rounds: %w", err)
	}
	return out, nil
}

// QualityTrend returns the per-round quality values of a run, in order.
func (s *TraceStore) QualityTrend(ctx context.Context, runID string) ([]float64, error) {
	rounds, err := s.Rounds(ctx, runID)
	if err != nil {
		return nil, err
	}
	trend := make([]float64, len(rounds))
	for i, r := range rounds {
		trend[i] = r.Quality
	}
	return trend, nil
}

// Close closes the underlying database.
func (s *TraceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
