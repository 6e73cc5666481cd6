package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"cardsync/server/state"
	"cardsync/server/storage"
)

// SnapshotService periodically archives a session's GameState and serves
// the fast-path "give me the latest state" read, caching in Redis before
// falling back to the Postgres archive. Grounded on teacher's
// services/canvas_service.go (CanvasService), generalized from
// map[string]interface{} canvas data to the typed GameState and from a
// single-room save path to many concurrently-tracked session managers.
type SnapshotService struct {
	redis     *redis.Client
	snapshots *storage.SnapshotStore
	archive   *storage.ArchiveClient

	managers map[string]*state.Manager[GameState]
	pending  map[string]bool
}

// archiveThresholdBytes is the payload size past which a snapshot is cold-
// archived to S3 instead of inlined in Postgres, mirroring
// the usual "large object" cutoff for a JSONB column.
const archiveThresholdBytes = 256 * 1024

// NewSnapshotService wires a snapshot service to its backends. archive may
// be nil, in which case large snapshots stay inlined in Postgres only.
func NewSnapshotService(redis *redis.Client, snapshots *storage.SnapshotStore, archive *storage.ArchiveClient) *SnapshotService {
	return &SnapshotService{
		redis:     redis,
		snapshots: snapshots,
		archive:   archive,
		managers:  make(map[string]*state.Manager[GameState]),
		pending:   make(map[string]bool),
	}
}

// Register attaches sessionID's in-memory state manager, so autosave and
// load paths know where to find its live snapshots.
func (s *SnapshotService) Register(sessionID string, manager *state.Manager[GameState]) {
	s.managers[sessionID] = manager
}

// MarkPending flags sessionID as having unsaved changes, checked by the
// autosave loop.
func (s *SnapshotService) MarkPending(sessionID string) {
	s.pending[sessionID] = true
	key := "session:" + sessionID + ":changes_pending"
	s.redis.Set(context.Background(), key, "true", 35*time.Second)
}

// SaveSnapshot archives the session's current head snapshot to Postgres and
// refreshes the Redis cache.
func (s *SnapshotService) SaveSnapshot(sessionID string) error {
	manager, ok := s.managers[sessionID]
	if !ok {
		return fmt.Errorf("services: no state manager registered for session %s", sessionID)
	}

	head, ok := manager.Head()
	if !ok {
		return fmt.Errorf("services: session %s has no state yet", sessionID)
	}

	data, err := json.Marshal(head.Data)
	if err != nil {
		return fmt.Errorf("services: marshal game state for %s: %w", sessionID, err)
	}

	stored := data
	if s.archive != nil && len(data) > archiveThresholdBytes {
		key, err := s.archive.SaveSnapshotArchive(sessionID, head.ID, data)
		if err != nil {
			return fmt.Errorf("services: archive snapshot for %s: %w", sessionID, err)
		}
		stored, err = json.Marshal(archivedSnapshotRef{Archived: true, Key: key})
		if err != nil {
			return fmt.Errorf("services: marshal archive ref for %s: %w", sessionID, err)
		}
		log.Printf("services: cold-archived snapshot for session %s to s3 key %s (%d bytes)", sessionID, key, len(data))
	}

	if err := s.snapshots.Save(sessionID, head.ID, head.Version, head.Checksum, stored); err != nil {
		return err
	}

	s.cacheLatest(sessionID, data)
	delete(s.pending, sessionID)
	log.Printf("services: saved snapshot for session %s (version=%s)", sessionID, head.Version)
	return nil
}

// archivedSnapshotRef is stored in Postgres's data column in place of a
// large snapshot payload, pointing at the S3 object that holds the real
// data.
type archivedSnapshotRef struct {
	Archived bool   `json:"_archived"`
	Key      string `json:"key"`
}

// LoadLatest returns the most recently archived GameState for sessionID,
// preferring the Redis cache over a Postgres round trip.
func (s *SnapshotService) LoadLatest(sessionID string) (*GameState, error) {
	if cached, err := s.fromCache(sessionID); err == nil && cached != nil {
		return cached, nil
	}

	_, data, err := s.snapshots.Latest(sessionID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var ref archivedSnapshotRef
	if json.Unmarshal(data, &ref) == nil && ref.Archived {
		if s.archive == nil {
			return nil, fmt.Errorf("services: snapshot for %s is s3-archived but no archive client configured", sessionID)
		}
		data, err = s.archive.LoadSnapshotArchive(ref.Key)
		if err != nil {
			return nil, fmt.Errorf("services: load archived snapshot for %s: %w", sessionID, err)
		}
	}

	var gs GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("services: unmarshal archived game state for %s: %w", sessionID, err)
	}
	s.cacheLatest(sessionID, data)
	return &gs, nil
}

// StartAutoSave archives every session with pending changes on a fixed
// interval, mirroring the teacher's CanvasService.StartAutoSave.
func (s *SnapshotService) StartAutoSave(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.autoSaveAll()
			case <-stop:
				return
			}
		}
	}()
	log.Printf("services: snapshot auto-save started (interval=%s)", interval)
}

func (s *SnapshotService) autoSaveAll() {
	saved := 0
	for sessionID, isPending := range s.pending {
		if !isPending {
			continue
		}
		if err := s.SaveSnapshot(sessionID); err != nil {
			log.Printf("services: auto-save failed for session %s: %v", sessionID, err)
			continue
		}
		saved++
	}
	if saved > 0 {
		log.Printf("services: auto-saved %d sessions", saved)
	}
}

func (s *SnapshotService) cacheLatest(sessionID string, data []byte) {
	key := "session:" + sessionID + ":latest_state"
	s.redis.Set(context.Background(), key, data, time.Hour)
}

func (s *SnapshotService) fromCache(sessionID string) (*GameState, error) {
	key := "session:" + sessionID + ":latest_state"
	data, err := s.redis.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil, err
	}
	var gs GameState
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}
