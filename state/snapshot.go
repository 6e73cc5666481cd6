package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"cardsync/server/ot"
)

// Snapshot is a versioned, checksum-protected, immutable view of replicated
// state. Data is opaque to the core — the host decides what it carries.
type Snapshot[Data any] struct {
	ID            string
	Version       ot.VectorClock
	ParentVersion ot.VectorClock // nil for the root snapshot
	Timestamp     time.Time
	Data          Data
	Checksum      string
}

// checksum computes a deterministic digest over the canonical serialization
// of data. encoding/json already sorts map keys and preserves struct field
// order, which is sufficient for a stable canonical form across replicas
// running the same Go types. Grounded on the teacher's versioned-save shape
// in services/canvas_service.go; xxhash is promoted here from an indirect
// (go-redis) dependency to a direct one, per spec.md §4.6's "any stable
// hash" allowance.
func checksum[Data any](data Data) (string, error) {
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("state: failed to canonicalize snapshot data: %w", err)
	}
	sum := xxhash.Sum64(canonical)
	return fmt.Sprintf("%016x", sum), nil
}

// ValidateChecksum recomputes s.Data's digest and compares it against
// s.Checksum.
func ValidateChecksum[Data any](s Snapshot[Data]) bool {
	sum, err := checksum(s.Data)
	if err != nil {
		return false
	}
	return sum == s.Checksum
}

func newSnapshotID() string {
	return uuid.NewString()
}
