package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"cardsync/server/services"
)

// Handlers holds the services the REST surface needs. Kept deliberately
// small — session/player lifecycle only; auth, rate limiting, and request
// routing middleware are host-level concerns this package doesn't own.
// Generalized from the teacher's APIHandlers (api/room_handlers.go).
type Handlers struct {
	sessions *services.SessionService
	invites  *services.InviteService
	players  *services.PlayerService
}

// NewHandlers wires the REST surface to its backing services.
func NewHandlers(sessions *services.SessionService, invites *services.InviteService, players *services.PlayerService) *Handlers {
	return &Handlers{sessions: sessions, invites: invites, players: players}
}

// CreateSessionRequest is the expected body for POST /api/sessions.
type CreateSessionRequest struct {
	MaxPlayers int                    `json:"max_players"`
	Settings   map[string]interface{} `json:"settings"`
}

// CreateSessionResponse is the response for POST /api/sessions.
type CreateSessionResponse struct {
	Session   *services.Session `json:"session"`
	InviteURL string            `json:"invite_url"`
}

// JoinSessionRequest is the expected body for POST /api/sessions/join.
type JoinSessionRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	InviteCode  string `json:"invite_code,omitempty"`
	DisplayName string `json:"display_name"`
}

// CreateInviteLink mints a new invite code for an existing session.
func (h *Handlers) CreateInviteLink(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/invite")
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		ExpirationHours int `json:"expiration_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ExpirationHours <= 0 {
		req.ExpirationHours = 24
	}

	code, err := h.invites.CreateInviteLink(sessionID, time.Duration(req.ExpirationHours)*time.Hour)
	if err != nil {
		http.Error(w, "failed to create invite link", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"invite_code": code,
		"invite_url":  fmt.Sprintf("http://%s/invite/%s", r.Host, code),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// CreateSession creates a new game session and a default invite link for it.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	hostPlayerID, err := h.players.GeneratePlayerID()
	if err != nil {
		http.Error(w, "failed to generate host id", http.StatusInternalServerError)
		return
	}

	if req.MaxPlayers <= 0 {
		req.MaxPlayers = 4
	}
	if req.Settings == nil {
		req.Settings = make(map[string]interface{})
	}

	session, err := h.sessions.CreateSession(hostPlayerID, req.MaxPlayers, req.Settings)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	code, err := h.invites.CreateInviteLink(session.SessionID, 24*time.Hour)
	if err != nil {
		log.Printf("api: failed to create invite link for new session: %v", err)
	}

	response := CreateSessionResponse{Session: session}
	if code != "" {
		response.InviteURL = fmt.Sprintf("http://%s/invite/%s", r.Host, code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// GetSession retrieves a single session's details and live player count.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.GetSession(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	playerCount, _ := h.sessions.GetPlayerCount(sessionID)
	response := map[string]interface{}{
		"session":      session,
		"player_count": playerCount,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// JoinSession validates capacity/invite and hands the caller everything it
// needs to open a websocket connection.
func (h *Handlers) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req JoinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var sessionID string
	if req.InviteCode != "" {
		invite, err := h.invites.UseInviteLink(req.InviteCode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sessionID = invite.SessionID
	} else if req.SessionID != "" {
		sessionID = req.SessionID
	} else {
		http.Error(w, "session id or invite code is required", http.StatusBadRequest)
		return
	}

	canJoin, err := h.sessions.CanJoinSession(sessionID)
	if err != nil || !canJoin {
		errMsg := "cannot join session"
		if err != nil {
			errMsg = err.Error()
		}
		http.Error(w, errMsg, http.StatusForbidden)
		return
	}

	playerID, err := h.players.GeneratePlayerID()
	if err != nil {
		http.Error(w, "failed to generate player id", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"player_id":     playerID,
		"session_id":    sessionID,
		"display_name":  req.DisplayName,
		"websocket_url": fmt.Sprintf("ws://%s/ws/session/%s", r.Host, sessionID),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetRecentSessions lists recently active sessions.
func (h *Handlers) GetRecentSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.GetRecentSessions(10)
	if err != nil {
		http.Error(w, "failed to fetch recent sessions", http.StatusInternalServerError)
		return
	}

	withCounts := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		count, _ := h.sessions.GetPlayerCount(session.SessionID)
		withCounts = append(withCounts, map[string]interface{}{
			"session_id":     session.SessionID,
			"host_player_id": session.HostPlayerID,
			"created_at":     session.CreatedAt,
			"last_activity":  session.LastActivity,
			"max_players":    session.MaxPlayers,
			"is_active":      session.IsActive,
			"settings":       session.Settings,
			"player_count":   count,
		})
	}

	response := map[string]interface{}{
		"sessions": withCounts,
		"total":    len(withCounts),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetGlobalStats reports table-wide activity counters.
func (h *Handlers) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessions.GetGlobalStats()
	if err != nil {
		log.Printf("api: failed to get global stats: %v", err)
		stats = map[string]interface{}{
			"active_sessions":    0,
			"active_players":     0,
			"operations_applied": 0,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
