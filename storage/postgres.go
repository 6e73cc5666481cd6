// Package storage persists operations and state snapshots durably: an
// append-only operation log and snapshot archive in Postgres, with large
// snapshot payloads optionally cold-archived to S3.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"cardsync/server/ot"
)

// OperationRecord is one row of the durable operation log.
type OperationRecord struct {
	ID        string
	SessionID string
	ClientID  string
	Kind      ot.Kind
	Version   ot.VectorClock
	Timestamp int64
	CreatedAt time.Time
}

// OperationStore is the durable, append-only log of applied operations,
// grounded on the teacher's ot.go persistOperation/GetOperationsSince (the
// `operations` table), generalized from a single int64 version column to a
// JSONB-encoded vector clock.
type OperationStore struct {
	db *sql.DB
}

// NewOperationStore opens (and does not itself migrate) the operation log
// against an existing `operations` table.
func NewOperationStore(db *sql.DB) *OperationStore {
	return &OperationStore{db: db}
}

// Schema returns the DDL this store expects, for use by a migration runner.
func (s *OperationStore) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS operations (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	client_id   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	version     JSONB NOT NULL,
	op_timestamp BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS operations_session_created_idx ON operations (session_id, created_at);
`
}

// Append persists op against sessionID.
func (s *OperationStore) Append(sessionID string, op ot.Operation) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("storage: marshal operation: %w", err)
	}
	versionJSON, err := json.Marshal(op.Version)
	if err != nil {
		return fmt.Errorf("storage: marshal version: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO operations (id, session_id, client_id, kind, payload, version, op_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		operationRowID(sessionID, op), sessionID, op.ClientID, string(op.Kind),
		payload, versionJSON, op.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("storage: insert operation: %w", err)
	}
	return nil
}

// Since returns every operation recorded for sessionID whose version is not
// Less-or-Equal to `after` — i.e. the operations a client at `after` hasn't
// seen yet. Filtering happens in Go since Postgres has no native vector
// clock comparator; the log is expected to stay small enough (pruned by
// PruneOlderThan) for this to be cheap.
func (s *OperationStore) Since(sessionID string, after ot.VectorClock) ([]ot.Operation, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM operations
		WHERE session_id = $1
		ORDER BY created_at ASC
		LIMIT 10000`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: query operations: %w", err)
	}
	defer rows.Close()

	var out []ot.Operation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan operation: %w", err)
		}
		var op ot.Operation
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("storage: unmarshal operation: %w", err)
		}
		if cmp := ot.Compare(op.Version, after); cmp == ot.Greater || cmp == ot.Concurrent {
			out = append(out, op)
		}
	}
	return out, rows.Err()
}

// PruneOlderThan deletes log rows created before the cutoff, mirroring the
// teacher's CleanupOldOperations retention policy.
func (s *OperationStore) PruneOlderThan(maxAge time.Duration) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM operations WHERE created_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("storage: prune operations: %w", err)
	}
	return result.RowsAffected()
}

func operationRowID(sessionID string, op ot.Operation) string {
	return fmt.Sprintf("%s:%s:%s:%d", sessionID, op.ClientID, op.Kind, op.Timestamp)
}

// SnapshotRecord is one archived state snapshot row.
type SnapshotRecord struct {
	ID        string
	SessionID string
	Version   ot.VectorClock
	Checksum  string
	SavedAt   time.Time
}

// SnapshotStore archives periodic full-state snapshots, grounded on the
// teacher's services/canvas_service.go (`canvas_states` table, version
// bookkeeping, Redis-cached "latest" read path).
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens the snapshot archive against an existing
// `state_snapshots` table.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Schema returns the DDL this store expects.
func (s *SnapshotStore) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS state_snapshots (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	version     JSONB NOT NULL,
	checksum    TEXT NOT NULL,
	data        JSONB NOT NULL,
	saved_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS state_snapshots_session_saved_idx ON state_snapshots (session_id, saved_at DESC);
`
}

// Save archives a snapshot. data is the already-JSON-marshaled Data payload
// of a state.Snapshot[Data]; the caller owns the marshaling so this store
// stays independent of any particular game-state type.
func (s *SnapshotStore) Save(sessionID, id string, version ot.VectorClock, checksum string, data []byte) error {
	versionJSON, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("storage: marshal snapshot version: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO state_snapshots (id, session_id, version, checksum, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		id, sessionID, versionJSON, checksum, data,
	)
	if err != nil {
		return fmt.Errorf("storage: insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently archived snapshot for sessionID.
func (s *SnapshotStore) Latest(sessionID string) (*SnapshotRecord, []byte, error) {
	var rec SnapshotRecord
	var versionJSON []byte
	var data []byte

	err := s.db.QueryRow(`
		SELECT id, session_id, version, checksum, data, saved_at
		FROM state_snapshots
		WHERE session_id = $1
		ORDER BY saved_at DESC
		LIMIT 1`,
		sessionID,
	).Scan(&rec.ID, &rec.SessionID, &versionJSON, &rec.Checksum, &data, &rec.SavedAt)

	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage: query latest snapshot: %w", err)
	}

	if err := json.Unmarshal(versionJSON, &rec.Version); err != nil {
		return nil, nil, fmt.Errorf("storage: unmarshal snapshot version: %w", err)
	}
	return &rec, data, nil
}
