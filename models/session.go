// Package models holds the durable, cross-service records the host layer
// shares — as opposed to package ot/state, which model the replicated game
// data itself.
package models

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PlayerSession is one player's membership in a session: which table
// they're at, their display name, and whether they're the host. Generalized
// from the teacher's UserSession (models/session.go).
type PlayerSession struct {
	PlayerID     string    `json:"player_id" db:"player_id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	JoinedAt     time.Time `json:"joined_at" db:"joined_at"`
	LastSeen     time.Time `json:"last_seen" db:"last_seen"`
	IsHost       bool      `json:"is_host" db:"is_host"`
	ConnectionID string    `json:"connection_id" db:"connection_id"`
}

// PlayerSessionManager tracks live player sessions in Postgres and caches
// the hot path (lookup by player id) in Redis.
type PlayerSessionManager struct {
	db    *sql.DB
	redis *redis.Client
}

// NewPlayerSessionManager wires a manager to its backends.
func NewPlayerSessionManager(db *sql.DB, redis *redis.Client) *PlayerSessionManager {
	return &PlayerSessionManager{db: db, redis: redis}
}

// Schema returns the DDL the player_sessions table needs.
func (m *PlayerSessionManager) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS player_sessions (
	player_id     TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	connection_id TEXT,
	is_host       BOOLEAN NOT NULL DEFAULT false,
	joined_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS player_sessions_session_idx ON player_sessions (session_id);
`
}

func sessionCacheKey(playerID string) string {
	return "player_session:" + playerID
}

// GetSession returns playerID's cached session, or nil if not found.
func (m *PlayerSessionManager) GetSession(playerID string) *PlayerSession {
	data, err := m.redis.HGetAll(context.Background(), sessionCacheKey(playerID)).Result()
	if err != nil || len(data) == 0 {
		return nil
	}

	isHost, _ := strconv.ParseBool(data["is_host"])
	lastSeen, _ := strconv.ParseInt(data["last_seen"], 10, 64)

	return &PlayerSession{
		PlayerID:     playerID,
		SessionID:    data["session_id"],
		DisplayName:  data["display_name"],
		ConnectionID: data["connection_id"],
		IsHost:       isHost,
		LastSeen:     time.Unix(lastSeen, 0),
	}
}

// CreateSession records a new player session, upserting on reconnect.
func (m *PlayerSessionManager) CreateSession(playerID, sessionID, displayName, connectionID string, isHost bool) error {
	_, err := m.db.Exec(`
		INSERT INTO player_sessions (player_id, session_id, display_name, connection_id, is_host)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			last_activity = CURRENT_TIMESTAMP,
			connection_id = $4`,
		playerID, sessionID, displayName, connectionID, isHost,
	)
	if err != nil {
		return fmt.Errorf("models: create player session: %w", err)
	}

	return m.redis.HMSet(context.Background(), sessionCacheKey(playerID), map[string]interface{}{
		"session_id":    sessionID,
		"display_name":  displayName,
		"connection_id": connectionID,
		"is_host":       isHost,
		"last_seen":     time.Now().Unix(),
	}).Err()
}

// UpdateLastSeen bumps a player's activity timestamp in both stores.
func (m *PlayerSessionManager) UpdateLastSeen(playerID string) error {
	if _, err := m.db.Exec(`UPDATE player_sessions SET last_activity = CURRENT_TIMESTAMP WHERE player_id = $1`, playerID); err != nil {
		return fmt.Errorf("models: touch player session %s: %w", playerID, err)
	}
	return m.redis.HSet(context.Background(), sessionCacheKey(playerID), "last_seen", time.Now().Unix()).Err()
}

// RemoveSession deletes a player session from both stores, on disconnect or
// explicit leave.
func (m *PlayerSessionManager) RemoveSession(playerID string) error {
	if _, err := m.db.Exec(`DELETE FROM player_sessions WHERE player_id = $1`, playerID); err != nil {
		return fmt.Errorf("models: remove player session %s: %w", playerID, err)
	}
	return m.redis.Del(context.Background(), sessionCacheKey(playerID)).Err()
}
