// Package recovery lets a reconnecting client catch up on every operation it
// missed while disconnected, using its last known vector clock instead of a
// single linear version number.
package recovery

import (
	"fmt"
	"time"

	"cardsync/server/battlefield"
	"cardsync/server/ot"
	"cardsync/server/storage"
)

// Request is a client's resync request on reconnect.
type Request struct {
	SessionID   string
	ClientID    string
	LastVersion ot.VectorClock
}

// Response is the server's answer: every operation the client hasn't seen,
// plus enough metadata for the client to tell whether it's now caught up.
type Response struct {
	SessionExists    bool
	MissedOperations []ot.Operation
	CurrentVersion   ot.VectorClock
	Message          string
}

// SessionLookup answers whether a session exists and its current clock —
// implemented by the services package in front of whatever backs session
// metadata.
type SessionLookup interface {
	SessionVersion(sessionID string) (ot.VectorClock, bool, error)
}

// Coordinator handles reconnection recovery. Grounded on the teacher's
// recovery.go SessionRecovery, generalized from `last_version int64` to
// ot.VectorClock and from a single `db *sql.DB` handle to the storage
// package's OperationStore.
type Coordinator struct {
	sessions   SessionLookup
	operations *storage.OperationStore
	spatial    *battlefield.Index
}

// NewCoordinator builds a recovery coordinator over the given collaborators.
func NewCoordinator(sessions SessionLookup, operations *storage.OperationStore, spatial *battlefield.Index) *Coordinator {
	return &Coordinator{sessions: sessions, operations: operations, spatial: spatial}
}

// Recover answers a client's recovery request.
func (c *Coordinator) Recover(req Request) (*Response, error) {
	currentVersion, exists, err := c.sessions.SessionVersion(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("recovery: validate session %s: %w", req.SessionID, err)
	}
	if !exists {
		return &Response{SessionExists: false, Message: "session no longer exists"}, nil
	}

	missed, err := c.operations.Since(req.SessionID, req.LastVersion)
	if err != nil {
		return nil, fmt.Errorf("recovery: fetch missed operations for %s: %w", req.SessionID, err)
	}

	message := fmt.Sprintf("recovered %d missed operations", len(missed))
	if len(missed) == 0 {
		message = "already up to date"
	}

	return &Response{
		SessionExists:    true,
		MissedOperations: missed,
		CurrentVersion:   currentVersion,
		Message:          message,
	}, nil
}

// SnapshotStats reports how many active battlefield cards the spatial index
// holds for a session. Response does not carry this count.
func (c *Coordinator) SnapshotStats(sessionID string) int {
	if c.spatial == nil {
		return 0
	}
	return c.spatial.Stats().PerSession[sessionID]
}

// PruneStaleOperations deletes operation-log rows older than maxAge, run
// periodically so Since() never has to scan an unbounded history. Grounded
// on the teacher's CleanupExpiredSessions / StartCleanupRoutine.
func (c *Coordinator) PruneStaleOperations(maxAge time.Duration) (int64, error) {
	return c.operations.PruneOlderThan(maxAge)
}

// StartCleanupRoutine runs PruneStaleOperations on an interval until stop is
// closed.
func (c *Coordinator) StartCleanupRoutine(interval, maxAge time.Duration, stop <-chan struct{}, onErr func(error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := c.PruneStaleOperations(maxAge); err != nil && onErr != nil {
					onErr(err)
				}
			case <-stop:
				return
			}
		}
	}()
}
