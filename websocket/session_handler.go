package websocket

import (
	"encoding/json"
	"log"
	"time"
)

// handlePlayerJoin admits a connecting client into its session: assigns a
// player id/display name if the client didn't supply one, makes the player
// host if the session has no players yet, and records the player's
// membership. Grounded on the teacher's handleUserJoin
// (websocket/user_handler.go).
func (h *Hub) handlePlayerJoin(client *Client, message []byte) {
	var join JoinMessage
	if err := json.Unmarshal(message, &join); err != nil {
		log.Printf("websocket: bad join message from %s: %v", client.playerID, err)
		return
	}

	if join.SessionID != client.sessionID {
		log.Printf("websocket: session id mismatch. url=%s message=%s", client.sessionID, join.SessionID)
		return
	}

	if join.PlayerID == "" {
		playerID, err := h.players.GeneratePlayerID()
		if err != nil {
			log.Printf("websocket: failed to generate player id: %v", err)
			return
		}
		join.PlayerID = playerID
	}
	if join.DisplayName == "" {
		join.DisplayName = h.players.GenerateDisplayName()
	}
	client.playerID = join.PlayerID

	count, err := h.sessionSv.GetPlayerCount(join.SessionID)
	if err != nil {
		log.Printf("websocket: failed to check player count for %s: %v", join.SessionID, err)
	}
	isHost := count == 0

	connectionID := client.conn.RemoteAddr().String()
	if err := h.playerSv.CreateSession(join.PlayerID, join.SessionID, join.DisplayName, connectionID, isHost); err != nil {
		log.Printf("websocket: failed to record player session: %v", err)
		return
	}
	if err := h.sessionSv.IncrementPlayerCount(join.SessionID); err != nil {
		log.Printf("websocket: failed to increment player count for %s: %v", join.SessionID, err)
	}

	log.Printf("websocket: player %s (%s) joined session %s as host=%v",
		join.PlayerID, join.DisplayName, join.SessionID, isHost)

	response := map[string]interface{}{
		"type":         "player_joined",
		"player_id":    join.PlayerID,
		"display_name": join.DisplayName,
		"is_host":      isHost,
		"timestamp":    time.Now().Unix(),
	}
	responseBytes, err := json.Marshal(response)
	if err != nil {
		log.Printf("websocket: failed to marshal join response: %v", err)
		return
	}
	h.broadcast <- &BroadcastMessage{SessionID: join.SessionID, Payload: responseBytes}
}

// handleHostTransfer lets the current host hand control to another player.
// Grounded on the teacher's handleAdminTransfer.
func (h *Hub) handleHostTransfer(client *Client, message []byte) {
	var msg HostTransferMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("websocket: bad host transfer message from %s: %v", client.playerID, err)
		return
	}

	currentHostID := client.playerID
	if err := h.host.TransferHost(msg.SessionID, currentHostID, msg.NewHostID); err != nil {
		log.Printf("websocket: failed to transfer host: %v", err)
		return
	}

	log.Printf("websocket: host transferred for session %s: %s -> %s", msg.SessionID, currentHostID, msg.NewHostID)

	response := map[string]interface{}{
		"type":        "host_changed",
		"new_host_id": msg.NewHostID,
		"timestamp":   time.Now().Unix(),
	}
	responseBytes, _ := json.Marshal(response)
	h.broadcast <- &BroadcastMessage{SessionID: msg.SessionID, Payload: responseBytes}
}

// handlePlayerLeave runs when a client's connection drops: auto-assigns a
// new host if the leaving player was one, removes the membership record,
// and notifies the rest of the session. Grounded on the teacher's
// handleUserLeave.
func (h *Hub) handlePlayerLeave(sessionID, playerID string) {
	session := h.playerSv.GetSession(playerID)
	if session != nil && session.IsHost {
		newHostID, err := h.host.AutoAssignHost(sessionID, playerID)
		if err != nil {
			log.Printf("websocket: failed to auto-assign host for %s: %v", sessionID, err)
		} else if newHostID != "" {
			log.Printf("websocket: auto-assigned new host for session %s: %s", sessionID, newHostID)
			hostChangeMsg := map[string]interface{}{
				"type":        "host_changed",
				"new_host_id": newHostID,
				"timestamp":   time.Now().Unix(),
			}
			msgBytes, _ := json.Marshal(hostChangeMsg)
			h.broadcast <- &BroadcastMessage{SessionID: sessionID, Payload: msgBytes}
		}
	}

	if err := h.playerSv.RemoveSession(playerID); err != nil {
		log.Printf("websocket: failed to remove player session for %s: %v", playerID, err)
	}
	if err := h.sessionSv.DecrementPlayerCount(sessionID); err != nil {
		log.Printf("websocket: failed to decrement player count for %s: %v", sessionID, err)
	}

	log.Printf("websocket: player %s left session %s", playerID, sessionID)

	response := map[string]interface{}{
		"type":      "player_left",
		"player_id": playerID,
		"timestamp": time.Now().Unix(),
	}
	responseBytes, err := json.Marshal(response)
	if err != nil {
		log.Printf("websocket: failed to marshal leave response: %v", err)
		return
	}
	h.broadcast <- &BroadcastMessage{SessionID: sessionID, Payload: responseBytes}
}
