package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"cardsync/server/api"
	"cardsync/server/battlefield"
	"cardsync/server/broadcast"
	"cardsync/server/compression"
	"cardsync/server/config"
	"cardsync/server/models"
	"cardsync/server/recovery"
	redisconn "cardsync/server/redis"
	"cardsync/server/services"
	"cardsync/server/storage"
	"cardsync/server/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("failed to ping PostgreSQL:", err)
	}
	log.Println("connected to PostgreSQL")

	redisClient, err := redisconn.Connect(cfg)
	if err != nil {
		log.Fatal("failed to build Redis client:", err)
	}
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatal("failed to connect to Redis:", err)
	}
	log.Println("connected to Redis")

	operations := storage.NewOperationStore(db)
	snapshotStore := storage.NewSnapshotStore(db)
	playerSessions := models.NewPlayerSessionManager(db, redisClient)
	sessionSv := services.NewSessionService(db, redisClient)

	for _, schema := range []string{sessionSv.Schema(), playerSessions.Schema(), operations.Schema(), snapshotStore.Schema()} {
		if _, err := db.Exec(schema); err != nil {
			log.Fatal("failed to apply schema:", err)
		}
	}
	log.Println("schema up to date")

	var archive *storage.ArchiveClient
	if cfg.S3Bucket != "" {
		archive, err = storage.NewArchiveClient(cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			log.Printf("s3 archive client unavailable, snapshots stay inline in Postgres: %v", err)
			archive = nil
		} else {
			log.Printf("s3 cold archive enabled (bucket=%s region=%s)", cfg.S3Bucket, cfg.S3Region)
		}
	}

	players := services.NewPlayerService(db, redisClient)
	invites := services.NewInviteService(db, redisClient)
	host := services.NewHostService(db, redisClient, playerSessions)
	snapshots := services.NewSnapshotService(redisClient, snapshotStore, archive)

	spatial := battlefield.New()
	fanout := broadcast.NewHub(redisClient)
	batcher := compression.NewBatcher(cfg.BatchSize, cfg.BatchTimeout)

	stopAutoSave := make(chan struct{})
	snapshots.StartAutoSave(30*time.Second, stopAutoSave)

	recoveryCoord := recovery.NewCoordinator(sessionSv, operations, spatial)
	stopCleanup := make(chan struct{})
	recoveryCoord.StartCleanupRoutine(time.Hour, 7*24*time.Hour, stopCleanup, func(err error) {
		log.Printf("recovery: prune failed: %v", err)
	})

	hub := websocket.NewHub(players, sessionSv, invites, host, snapshots, playerSessions, operations, spatial, fanout, batcher)
	go hub.Run()

	handlers := api.NewHandlers(sessionSv, invites, players)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/session/", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	})

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlers.CreateSession(w, r)
		case http.MethodGet:
			handlers.GetRecentSessions(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/sessions/join", handlers.JoinSession)
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > len("/api/sessions/") && r.URL.Path[len(r.URL.Path)-7:] == "/invite" {
			handlers.CreateInviteLink(w, r)
			return
		}
		handlers.GetSession(w, r)
	})
	mux.HandleFunc("/api/sessions/recent", handlers.GetRecentSessions)
	mux.HandleFunc("/api/stats", handlers.GetGlobalStats)
	mux.HandleFunc("/api/players/generate", func(w http.ResponseWriter, r *http.Request) {
		api.HandleGeneratePlayerID(w, r, players)
	})

	registerDiagnosticRoutes(mux, spatial, batcher, fanout, db, redisClient)

	log.Printf("server starting on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, mux))
}
