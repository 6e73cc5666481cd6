package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cardsync/server/ot"
)

// Mutator mutates a draft copy of a snapshot's data in place, or returns a
// non-nil replacement to use instead. The draft's lifetime is bounded by the
// UpdateState call that invokes it.
type Mutator[Data any] func(draft *Data) *Data

// HistoryMetadata summarizes a manager's history DAG.
type HistoryMetadata struct {
	StateCount int
	Head       string
}

// Manager owns one replica's view of the replicated game state: a DAG of
// checksum-protected snapshots keyed by vector clock, with a head pointer to
// the most recently observed snapshot. Generalized from the teacher's
// services/canvas_service.go (versioned, Postgres-backed canvas saves) into
// an in-process history DAG; Postgres becomes the archival layer built on
// top of this (see storage/postgres.go).
type Manager[Data any] struct {
	clientID  string
	snapshots map[string]Snapshot[Data]
	head      string
	clock     ot.VectorClock
}

// NewManager creates a manager for the replica identified by clientID.
func NewManager[Data any](clientID string) *Manager[Data] {
	return &Manager[Data]{
		clientID:  clientID,
		snapshots: make(map[string]Snapshot[Data]),
		clock:     ot.NewVectorClock(),
	}
}

// GetClientID returns this replica's id.
func (m *Manager[Data]) GetClientID() string {
	return m.clientID
}

// CreateState builds a root snapshot with version {clientId: 0}, no parent,
// and registers it as head.
func (m *Manager[Data]) CreateState(data Data, id string) (Snapshot[Data], error) {
	if id == "" {
		id = newSnapshotID()
	}
	sum, err := checksum(data)
	if err != nil {
		return Snapshot[Data]{}, err
	}

	snap := Snapshot[Data]{
		ID:        id,
		Version:   ot.VectorClock{m.clientID: 0},
		Timestamp: time.Now(),
		Data:      data,
		Checksum:  sum,
	}
	m.snapshots[snap.ID] = snap
	m.head = snap.ID
	return snap, nil
}

// UpdateState looks up fromID, deep-copies its data, invokes mutator on the
// copy, and registers a new snapshot whose version has this replica's
// counter incremented. The parent snapshot is never mutated.
func (m *Manager[Data]) UpdateState(fromID string, mutator Mutator[Data]) (Snapshot[Data], error) {
	parent, ok := m.snapshots[fromID]
	if !ok {
		return Snapshot[Data]{}, fmt.Errorf("state: update from %q: %w", fromID, ErrStateNotFound)
	}

	draft, err := deepCopy(parent.Data)
	if err != nil {
		return Snapshot[Data]{}, err
	}
	if replacement := mutator(&draft); replacement != nil {
		draft = *replacement
	}

	m.clock = ot.Increment(m.clock, m.clientID)
	sum, err := checksum(draft)
	if err != nil {
		return Snapshot[Data]{}, err
	}

	snap := Snapshot[Data]{
		ID:            newSnapshotID(),
		Version:       m.clock.Copy(),
		ParentVersion: parent.Version.Copy(),
		Timestamp:     time.Now(),
		Data:          draft,
		Checksum:      sum,
	}
	m.snapshots[snap.ID] = snap
	m.head = snap.ID
	return snap, nil
}

// MergeRemoteState validates remote's checksum, registers it if new, merges
// the local clock, and advances head when remote causally dominates or wins
// a deterministic tiebreak on a concurrent head.
func (m *Manager[Data]) MergeRemoteState(remote Snapshot[Data]) (Snapshot[Data], error) {
	if !ValidateChecksum(remote) {
		return Snapshot[Data]{}, fmt.Errorf("state: merge %q: %w", remote.ID, ErrInvalidChecksum)
	}

	if existing, ok := m.snapshots[remote.ID]; ok {
		return existing, nil
	}

	m.snapshots[remote.ID] = remote
	m.clock = ot.Merge(m.clock, remote.Version)

	if m.head == "" {
		m.head = remote.ID
		return remote, nil
	}

	head := m.snapshots[m.head]
	switch ot.Compare(remote.Version, head.Version) {
	case ot.Greater:
		m.head = remote.ID
	case ot.Concurrent:
		if remote.Timestamp.After(head.Timestamp) ||
			(remote.Timestamp.Equal(head.Timestamp) && remote.ID < head.ID) {
			m.head = remote.ID
		}
	}

	return remote, nil
}

// GetStateAtVersion returns the exact match for version if one exists;
// otherwise the snapshot with the largest version that is Less-or-Equal to
// the query; nil if none qualifies. This preserves the source's
// ancestor-fallback behavior (see SPEC_FULL.md Open Question (a)).
func (m *Manager[Data]) GetStateAtVersion(version ot.VectorClock) (Snapshot[Data], bool) {
	var best Snapshot[Data]
	found := false

	for _, snap := range m.snapshots {
		switch ot.Compare(snap.Version, version) {
		case ot.Equal:
			return snap, true
		case ot.Less:
			if !found || isNewerCandidate(snap, best) {
				best = snap
				found = true
			}
		}
	}
	return best, found
}

func isNewerCandidate[Data any](candidate, current Snapshot[Data]) bool {
	switch ot.Compare(candidate.Version, current.Version) {
	case ot.Greater:
		return true
	case ot.Concurrent:
		return candidate.Timestamp.After(current.Timestamp)
	default:
		return false
	}
}

// ValidateChecksum recomputes s's digest and compares it against s.Checksum.
func (m *Manager[Data]) ValidateChecksum(s Snapshot[Data]) bool {
	return ValidateChecksum(s)
}

// GetHistory returns every snapshot ordered by timestamp, stable under ties
// by id.
func (m *Manager[Data]) GetHistory() []Snapshot[Data] {
	out := make([]Snapshot[Data], 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetHistoryMetadata summarizes the history DAG.
func (m *Manager[Data]) GetHistoryMetadata() HistoryMetadata {
	return HistoryMetadata{StateCount: len(m.snapshots), Head: m.head}
}

// ClearHistory drops every snapshot and empties head.
func (m *Manager[Data]) ClearHistory() {
	m.snapshots = make(map[string]Snapshot[Data])
	m.head = ""
}

// Head returns the current head snapshot, if any.
func (m *Manager[Data]) Head() (Snapshot[Data], bool) {
	if m.head == "" {
		return Snapshot[Data]{}, false
	}
	snap, ok := m.snapshots[m.head]
	return snap, ok
}

// deepCopy round-trips data through JSON to produce an independent copy,
// since Data is opaque to the core and may contain nested slices/maps.
func deepCopy[Data any](data Data) (Data, error) {
	var out Data
	buf, err := json.Marshal(data)
	if err != nil {
		return out, fmt.Errorf("state: failed to copy snapshot data: %w", err)
	}
	if err := json.Unmarshal(buf, &out); err != nil {
		return out, fmt.Errorf("state: failed to copy snapshot data: %w", err)
	}
	return out, nil
}
