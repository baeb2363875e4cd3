package graphrt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore persists Checkpoints to the "checkpoints" table (see
// pkg/database's embedded migration) through plain SQL — no ORM layer.
// One row per (thread_id, step_index); Latest reads the highest
// step_index for a thread.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps a ready *sql.DB (typically pkg/database.Client.DB()).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// Save persists cp, overwriting any prior row at the same
// (thread_id, step_index) — a step retried after a crash before its
// checkpoint landed simply re-saves the same index.
func (s *PostgresStore) Save(ctx context.Context, cp Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("graphrt: marshal state: %w", err)
	}
	candidatesJSON, err := json.Marshal(cp.NextCandidates)
	if err != nil {
		return fmt.Errorf("graphrt: marshal next_candidates: %w", err)
	}
	var pendingJSON []byte
	if cp.PendingInterrupt != nil {
		pendingJSON, err = json.Marshal(cp.PendingInterrupt)
		if err != nil {
			return fmt.Errorf("graphrt: marshal pending_interrupt: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, step_index, state_snapshot, next_candidates, pending_interrupt)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id, step_index) DO UPDATE SET
			state_snapshot = EXCLUDED.state_snapshot,
			next_candidates = EXCLUDED.next_candidates,
			pending_interrupt = EXCLUDED.pending_interrupt
	`, cp.ThreadID, cp.StepIndex, stateJSON, candidatesJSON, nullable(pendingJSON))
	if err != nil {
		return fmt.Errorf("graphrt: save checkpoint: %w", err)
	}
	return nil
}

// Latest returns the highest-step_index checkpoint for threadID.
func (s *PostgresStore) Latest(ctx context.Context, threadID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, step_index, state_snapshot, next_candidates, pending_interrupt
		FROM checkpoints
		WHERE thread_id = $1
		ORDER BY step_index DESC
		LIMIT 1
	`, threadID)

	var cp Checkpoint
	var stateJSON, candidatesJSON []byte
	var pendingJSON sql.NullString
	if err := row.Scan(&cp.ThreadID, &cp.StepIndex, &stateJSON, &candidatesJSON, &pendingJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checkpoint{}, ErrNoCheckpoint
		}
		return Checkpoint{}, fmt.Errorf("graphrt: load checkpoint: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return Checkpoint{}, fmt.Errorf("graphrt: unmarshal state: %w", err)
	}
	if err := json.Unmarshal(candidatesJSON, &cp.NextCandidates); err != nil {
		return Checkpoint{}, fmt.Errorf("graphrt: unmarshal next_candidates: %w", err)
	}
	if pendingJSON.Valid {
		if err := json.Unmarshal([]byte(pendingJSON.String), &cp.PendingInterrupt); err != nil {
			return Checkpoint{}, fmt.Errorf("graphrt: unmarshal pending_interrupt: %w", err)
		}
	}

	return cp, nil
}

// History returns every checkpoint for threadID in step order, the
// full decision-by-decision replay a Driver trace query reads from.
func (s *PostgresStore) History(ctx context.Context, threadID string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, step_index, state_snapshot, next_candidates, pending_interrupt
		FROM checkpoints
		WHERE thread_id = $1
		ORDER BY step_index ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("graphrt: load history: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var stateJSON, candidatesJSON []byte
		var pendingJSON sql.NullString
		if err := rows.Scan(&cp.ThreadID, &cp.StepIndex, &stateJSON, &candidatesJSON, &pendingJSON); err != nil {
			return nil, fmt.Errorf("graphrt: scan history row: %w", err)
		}
		if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
			return nil, fmt.Errorf("graphrt: unmarshal state: %w", err)
		}
		if err := json.Unmarshal(candidatesJSON, &cp.NextCandidates); err != nil {
			return nil, fmt.Errorf("graphrt: unmarshal next_candidates: %w", err)
		}
		if pendingJSON.Valid {
			if err := json.Unmarshal([]byte(pendingJSON.String), &cp.PendingInterrupt); err != nil {
				return nil, fmt.Errorf("graphrt: unmarshal pending_interrupt: %w", err)
			}
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
