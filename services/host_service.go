package services

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cardsync/server/models"
)

// HostService manages host-transfer: a session's host can hand control to
// another player, and one is auto-assigned if the host disconnects.
// Grounded on teacher's services/admin_service.go.
type HostService struct {
	db       *sql.DB
	redis    *redis.Client
	sessions *models.PlayerSessionManager
}

// NewHostService wires a host service to its backends.
func NewHostService(db *sql.DB, redis *redis.Client, sessions *models.PlayerSessionManager) *HostService {
	return &HostService{db: db, redis: redis, sessions: sessions}
}

// TransferHost moves host status from currentHostID to newHostID, failing if
// currentHostID isn't actually the current host.
func (h *HostService) TransferHost(sessionID, currentHostID, newHostID string) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("services: begin host transfer: %w", err)
	}
	defer tx.Rollback()

	var isCurrentHost bool
	err = tx.QueryRow(
		`SELECT is_host FROM player_sessions WHERE player_id = $1 AND session_id = $2`,
		currentHostID, sessionID,
	).Scan(&isCurrentHost)
	if err != nil || !isCurrentHost {
		return fmt.Errorf("services: player %s is not host of session %s", currentHostID, sessionID)
	}

	if _, err := tx.Exec(
		`UPDATE player_sessions SET is_host = false WHERE player_id = $1 AND session_id = $2`,
		currentHostID, sessionID,
	); err != nil {
		return fmt.Errorf("services: demote host: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE player_sessions SET is_host = true WHERE player_id = $1 AND session_id = $2`,
		newHostID, sessionID,
	); err != nil {
		return fmt.Errorf("services: promote host: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET host_player_id = $1 WHERE session_id = $2`,
		newHostID, sessionID,
	); err != nil {
		return fmt.Errorf("services: update session host: %w", err)
	}

	return tx.Commit()
}

// AutoAssignHost picks the longest-seated remaining player as the new host
// when the current host disconnects. Returns an empty id if nobody else is
// in the session.
func (h *HostService) AutoAssignHost(sessionID, leavingHostID string) (string, error) {
	var newHostID string
	err := h.db.QueryRow(`
		SELECT player_id FROM player_sessions
		WHERE session_id = $1 AND player_id != $2
		ORDER BY joined_at ASC
		LIMIT 1`,
		sessionID, leavingHostID,
	).Scan(&newHostID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("services: find next host for %s: %w", sessionID, err)
	}

	if err := h.TransferHost(sessionID, leavingHostID, newHostID); err != nil {
		return "", err
	}
	return newHostID, nil
}
