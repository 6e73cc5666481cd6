package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"

	"cardsync/server/battlefield"
	"cardsync/server/broadcast"
	"cardsync/server/compression"
)

// registerDiagnosticRoutes wires the operational endpoints that aren't part
// of the session/player REST surface: viewport queries against the spatial
// index, batching/fan-out stats, and a health check. Grounded on the
// teacher's handlers.go (handleViewportQuery/handleSpatialStats/
// handleHealthCheck).
func registerDiagnosticRoutes(mux *http.ServeMux, spatial *battlefield.Index, batcher *compression.Batcher, fanout *broadcast.Hub, db *sql.DB, redisClient *redis.Client) {
	mux.HandleFunc("/api/battlefield/viewport", func(w http.ResponseWriter, r *http.Request) {
		handleViewportQuery(w, r, spatial)
	})
	mux.HandleFunc("/api/stats/spatial", func(w http.ResponseWriter, r *http.Request) {
		handleSpatialStats(w, r, spatial)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealthCheck(w, r, spatial, batcher, fanout, db, redisClient)
	})
}

// handleViewportQuery answers "what cards are in my current view" for a
// session, so a client doesn't have to pull every card on a crowded
// battlefield to render its own viewport.
func handleViewportQuery(w http.ResponseWriter, r *http.Request, spatial *battlefield.Index) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	x1Str, y1Str := r.URL.Query().Get("x1"), r.URL.Query().Get("y1")
	x2Str, y2Str := r.URL.Query().Get("x2"), r.URL.Query().Get("y2")
	if x1Str == "" || y1Str == "" || x2Str == "" || y2Str == "" {
		http.Error(w, "viewport bounds (x1,y1,x2,y2) required", http.StatusBadRequest)
		return
	}

	x1, err1 := strconv.ParseFloat(x1Str, 64)
	y1, err2 := strconv.ParseFloat(y1Str, 64)
	x2, err3 := strconv.ParseFloat(x2Str, 64)
	y2, err4 := strconv.ParseFloat(y2Str, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		http.Error(w, "invalid viewport bounds", http.StatusBadRequest)
		return
	}

	viewport := battlefield.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
	result, err := spatial.QueryViewportWithMetrics(viewport, sessionID)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Query-Time-Ns", strconv.FormatInt(result.QueryTimeNS, 10))
	w.Header().Set("X-Result-Count", strconv.Itoa(len(result.Cards)))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"cards":        result.Cards,
		"query_time":   result.QueryTimeNS,
		"result_count": len(result.Cards),
		"viewport":     result.Viewport,
	})
}

// handleSpatialStats reports current battlefield index occupancy.
func handleSpatialStats(w http.ResponseWriter, r *http.Request, spatial *battlefield.Index) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spatial.Stats())
}

// handleHealthCheck pings every external dependency and reports the
// in-process subsystems' occupancy, for container orchestrators and
// monitoring.
func handleHealthCheck(w http.ResponseWriter, r *http.Request, spatial *battlefield.Index, batcher *compression.Batcher, fanout *broadcast.Hub, db *sql.DB, redisClient *redis.Client) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := db.Ping(); err != nil {
		http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
		return
	}

	if _, err := redisClient.Ping(r.Context()).Result(); err != nil {
		http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "healthy",
		"spatial_index":   spatial.Stats(),
		"batcher":         batcher.Stats(),
		"active_sessions": fanout.ActiveSessions(),
	})
}
