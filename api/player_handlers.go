package api

import (
	"encoding/json"
	"net/http"

	"cardsync/server/services"
)

// HandleGeneratePlayerID hands out a fresh player id for clients that want
// one before opening a websocket connection.
func HandleGeneratePlayerID(w http.ResponseWriter, r *http.Request, players *services.PlayerService) {
	playerID, err := players.GeneratePlayerID()
	if err != nil {
		http.Error(w, "failed to generate player id", http.StatusInternalServerError)
		return
	}

	response := map[string]string{"player_id": playerID}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
