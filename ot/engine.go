package ot

import "time"

// Tombstone marks an entity as deleted. Once present, subsequent operations
// referencing that entity are silently dropped rather than transformed.
type Tombstone struct {
	EntityID  string
	DeletedAt time.Time
	DeletedBy string
}

// Stats summarizes an engine's bookkeeping, mirroring the teacher's
// RoomState counters generalized from one whiteboard room to one replica.
type Stats struct {
	AppliedOperations int
	BufferedResiduals int
	Tombstones        int
	RegisteredPairs   int
}

// Engine applies, transforms, and deduplicates operations for one local
// replica. It owns the applied set, the tombstone table, and the residual
// buffer, but never mutates domain state itself — that is the state
// package's job. Grounded on the teacher's OTEngine/RoomState in ot.go,
// generalized from "room" to "replica".
type Engine struct {
	matrix     *Matrix
	applied    map[Identity]struct{}
	tombstones map[string]Tombstone
	buffer     []Operation
}

// NewEngine builds an engine with the transform matrix populated per
// spec.md §4.4. The matrix is immutable once construction completes.
func NewEngine() *Engine {
	return &Engine{
		matrix:     NewDefaultMatrix(),
		applied:    make(map[Identity]struct{}),
		tombstones: make(map[string]Tombstone),
	}
}

// Transform starts from op and, for each operation in concurrentOps (in
// order), transforms the current result against it — skipping operations
// already applied or whose entity is tombstoned. It is pure except for
// appending any produced residual to the buffer; it never applies op.
func (e *Engine) Transform(op Operation, concurrentOps []Operation) Operation {
	current := op
	for _, other := range concurrentOps {
		if _, seen := e.applied[other.Identity()]; seen {
			continue
		}
		if entityID, ok := tombstoneKey(other); ok && e.IsTombstoned(entityID) {
			continue
		}

		fn := e.matrix.Lookup(current.Kind, other.Kind)
		result := fn(current, other)
		current = result.Transformed
		if result.Residual != nil {
			e.buffer = append(e.buffer, *result.Residual)
		}
	}
	return current
}

// Apply records op as applied and returns true iff it was newly accepted.
// It rejects (returns false, no mutation) when validation fails, the
// operation's identity was already applied, or its entity is tombstoned.
func (e *Engine) Apply(op Operation) bool {
	if err := Validate(op); err != nil {
		return false
	}
	id := op.Identity()
	if _, seen := e.applied[id]; seen {
		return false
	}
	if entityID, ok := tombstoneKey(op); ok && e.IsTombstoned(entityID) {
		return false
	}
	e.applied[id] = struct{}{}
	return true
}

// AddTombstone marks entityID deleted by deletedBy at the current time.
func (e *Engine) AddTombstone(entityID, deletedBy string) {
	e.tombstones[entityID] = Tombstone{
		EntityID:  entityID,
		DeletedAt: time.Now(),
		DeletedBy: deletedBy,
	}
}

// IsTombstoned reports whether entityID has been deleted.
func (e *Engine) IsTombstoned(entityID string) bool {
	_, ok := e.tombstones[entityID]
	return ok
}

// CompareVectorClocks exposes the VectorClock comparison to callers that
// only hold an Engine.
func (e *Engine) CompareVectorClocks(a, b VectorClock) Ordering {
	return Compare(a, b)
}

// GetBuffer returns a copy of the residual operations produced by Transform
// calls so far.
func (e *Engine) GetBuffer() []Operation {
	out := make([]Operation, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// ClearBuffer drains the residual buffer.
func (e *Engine) ClearBuffer() {
	e.buffer = nil
}

// Reset clears applied identities, tombstones, and the residual buffer, but
// keeps the transform matrix intact.
func (e *Engine) Reset() {
	e.applied = make(map[Identity]struct{})
	e.tombstones = make(map[string]Tombstone)
	e.buffer = nil
}

// Stats reports bookkeeping counts for diagnostics.
func (e *Engine) Stats() Stats {
	return Stats{
		AppliedOperations: len(e.applied),
		BufferedResiduals: len(e.buffer),
		Tombstones:        len(e.tombstones),
		RegisteredPairs:   e.matrix.RegisteredPairs(),
	}
}

// tombstoneKey extracts the entity ID an operation references for tombstone
// lookups, preferring a card ID over a player ID since most kinds carry one.
func tombstoneKey(op Operation) (string, bool) {
	if cardID, ok := op.CardID(); ok {
		return cardID, true
	}
	if playerID, ok := op.PlayerID(); ok {
		return playerID, true
	}
	return "", false
}
