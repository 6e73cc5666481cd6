package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cardsync/server/ot"
)

// Session is a live game: one table, one set of players, one OT engine.
// Generalized from the teacher's Room (services/room_service.go).
type Session struct {
	SessionID    string                 `json:"session_id" db:"session_id"`
	HostPlayerID string                 `json:"host_player_id" db:"host_player_id"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
	LastActivity time.Time              `json:"last_activity" db:"last_activity"`
	MaxPlayers   int                    `json:"max_players" db:"max_players"`
	IsActive     bool                   `json:"is_active" db:"is_active"`
	CurrentClock ot.VectorClock         `json:"current_clock" db:"-"`
	Settings     map[string]interface{} `json:"settings"`
}

// SessionService owns session lifecycle: creation, membership limits, and
// the Redis-cached "live" view of each session the hub consults on every
// join/leave. Grounded on teacher's services/room_service.go.
type SessionService struct {
	db    *sql.DB
	redis *redis.Client
}

// NewSessionService wires a session service to its Postgres/Redis backends.
func NewSessionService(db *sql.DB, redis *redis.Client) *SessionService {
	return &SessionService{db: db, redis: redis}
}

// Schema returns the DDL the sessions table needs, for use by a migration
// runner at startup.
func (s *SessionService) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS sessions (
	session_id     TEXT PRIMARY KEY,
	host_player_id TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_activity  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	max_players    INT NOT NULL DEFAULT 4,
	is_active      BOOLEAN NOT NULL DEFAULT true,
	settings       JSONB
);
`
}

// GenerateSessionID creates a short random session identifier.
func (s *SessionService) GenerateSessionID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("services: generate session id: %w", err)
	}
	return fmt.Sprintf("session_%s", hex.EncodeToString(b)), nil
}

// CreateSession inserts a new session row and seeds its Redis cache entry.
func (s *SessionService) CreateSession(hostPlayerID string, maxPlayers int, settings map[string]interface{}) (*Session, error) {
	sessionID, err := s.GenerateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		SessionID:    sessionID,
		HostPlayerID: hostPlayerID,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		MaxPlayers:   maxPlayers,
		IsActive:     true,
		Settings:     settings,
	}

	settingsJSON, err := json.Marshal(session.Settings)
	if err != nil {
		return nil, fmt.Errorf("services: marshal session settings: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (session_id, host_player_id, created_at, last_activity, max_players, is_active, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.SessionID, session.HostPlayerID, session.CreatedAt,
		session.LastActivity, session.MaxPlayers, session.IsActive, settingsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("services: insert session: %w", err)
	}

	sessionKey := "session:" + sessionID
	cached := map[string]interface{}{
		"host_player_id": session.HostPlayerID,
		"created_at":     session.CreatedAt.Unix(),
		"last_activity":  session.LastActivity.Unix(),
		"max_players":    session.MaxPlayers,
		"is_active":      session.IsActive,
		"player_count":   0,
	}
	if err := s.redis.HMSet(context.Background(), sessionKey, cached).Err(); err != nil {
		return nil, fmt.Errorf("services: cache session: %w", err)
	}
	s.redis.Expire(context.Background(), sessionKey, time.Hour)

	return session, nil
}

// GetSession loads a session row by id.
func (s *SessionService) GetSession(sessionID string) (*Session, error) {
	session := &Session{}
	var settingsJSON []byte
	err := s.db.QueryRow(`
		SELECT session_id, host_player_id, created_at, last_activity, max_players, is_active, settings
		FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&session.SessionID, &session.HostPlayerID, &session.CreatedAt, &session.LastActivity,
		&session.MaxPlayers, &session.IsActive, &settingsJSON)
	if err != nil {
		return nil, fmt.Errorf("services: get session %s: %w", sessionID, err)
	}

	if len(settingsJSON) > 0 {
		_ = json.Unmarshal(settingsJSON, &session.Settings)
	}
	return session, nil
}

// SessionVersion implements recovery.SessionLookup.
func (s *SessionService) SessionVersion(sessionID string) (ot.VectorClock, bool, error) {
	session, err := s.GetSession(sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return session.CurrentClock, session.IsActive, nil
}

// CanJoinSession checks a session is active and under its player cap.
func (s *SessionService) CanJoinSession(sessionID string) (bool, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return false, err
	}
	if !session.IsActive {
		return false, fmt.Errorf("services: session %s is not active", sessionID)
	}

	count, err := s.GetPlayerCount(sessionID)
	if err != nil {
		return false, err
	}
	if count >= session.MaxPlayers {
		return false, fmt.Errorf("services: session %s is at capacity", sessionID)
	}
	return true, nil
}

// GetPlayerCount returns the number of players currently in sessionID,
// preferring the Redis cache over the database.
func (s *SessionService) GetPlayerCount(sessionID string) (int, error) {
	key := "session:" + sessionID
	countStr, err := s.redis.HGet(context.Background(), key, "player_count").Result()
	if err == nil {
		count, _ := strconv.Atoi(countStr)
		return count, nil
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM player_sessions WHERE session_id = $1`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("services: count players for %s: %w", sessionID, err)
	}
	s.redis.HSet(context.Background(), key, "player_count", count)
	return count, nil
}

// UpdateSessionActivity bumps last_activity in both the database and cache.
func (s *SessionService) UpdateSessionActivity(sessionID string) error {
	now := time.Now()
	if _, err := s.db.Exec(`UPDATE sessions SET last_activity = $1 WHERE session_id = $2`, now, sessionID); err != nil {
		return fmt.Errorf("services: touch session %s: %w", sessionID, err)
	}
	return s.redis.HSet(context.Background(), "session:"+sessionID, "last_activity", now.Unix()).Err()
}

// IncrementPlayerCount atomically bumps the cached player count.
func (s *SessionService) IncrementPlayerCount(sessionID string) error {
	return s.redis.HIncrBy(context.Background(), "session:"+sessionID, "player_count", 1).Err()
}

// DecrementPlayerCount atomically drops the cached player count.
func (s *SessionService) DecrementPlayerCount(sessionID string) error {
	return s.redis.HIncrBy(context.Background(), "session:"+sessionID, "player_count", -1).Err()
}

// GetRecentSessions lists the most recently active sessions.
func (s *SessionService) GetRecentSessions(limit int) ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT session_id, host_player_id, created_at, last_activity, max_players, is_active,
		       COALESCE(settings::text, '{}') AS settings
		FROM sessions
		WHERE is_active = true
		ORDER BY last_activity DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("services: query recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session := &Session{}
		var settingsStr string
		if err := rows.Scan(&session.SessionID, &session.HostPlayerID, &session.CreatedAt,
			&session.LastActivity, &session.MaxPlayers, &session.IsActive, &settingsStr); err != nil {
			log.Printf("services: scan session row: %v", err)
			return nil, err
		}

		session.Settings = make(map[string]interface{})
		if settingsStr != "" {
			if err := json.Unmarshal([]byte(settingsStr), &session.Settings); err != nil {
				log.Printf("services: unmarshal session settings: %v", err)
			}
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// GetGlobalStats summarizes table-wide activity.
func (s *SessionService) GetGlobalStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var activeSessions int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE is_active = true`).Scan(&activeSessions); err != nil {
		activeSessions = 0
	}
	stats["active_sessions"] = activeSessions

	var activePlayers int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM player_sessions WHERE last_activity > NOW() - INTERVAL '5 minutes'`).Scan(&activePlayers); err != nil {
		activePlayers = 0
	}
	stats["active_players"] = activePlayers

	var operationsApplied int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM operations`).Scan(&operationsApplied); err != nil {
		operationsApplied = 0
	}
	stats["operations_applied"] = operationsApplied

	return stats, nil
}
