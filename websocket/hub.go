package websocket

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"cardsync/server/battlefield"
	"cardsync/server/broadcast"
	"cardsync/server/compression"
	"cardsync/server/models"
	"cardsync/server/ot"
	"cardsync/server/services"
	"cardsync/server/state"
	"cardsync/server/storage"
)

// replica bundles everything one live session needs to process operations:
// its OT engine (dedup/transform/tombstones) and its state manager (the
// checksum-protected GameState snapshot DAG). Grounded on the teacher's
// OTEngine's per-room RoomState, generalized into one pair per session.
type replica struct {
	engine  *ot.Engine
	state   *state.Manager[services.GameState]
	headID  string
	pending []ot.Operation
}

// Hub owns every live session on this process: its connected clients, its
// OT/state replicas, and the collaborators (persistence, spatial index,
// broadcast fan-out, batching) every operation passes through. Grounded on
// the teacher's Hub (websocket/hub.go), generalized from "room" to
// "session" and from raw Stroke broadcast to validated ot.Operation
// processing.
type Hub struct {
	sessions   map[string]map[*Client]bool
	replicas   map[string]*replica
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	players   *services.PlayerService
	sessionSv *services.SessionService
	invites   *services.InviteService
	host      *services.HostService
	snapshots *services.SnapshotService
	playerSv  *models.PlayerSessionManager

	operations *storage.OperationStore
	spatial    *battlefield.Index
	fanout     *broadcast.Hub
	batcher    *compression.Batcher
}

// NewHub wires a hub to every backing collaborator it needs.
func NewHub(
	players *services.PlayerService,
	sessionSv *services.SessionService,
	invites *services.InviteService,
	host *services.HostService,
	snapshots *services.SnapshotService,
	playerSv *models.PlayerSessionManager,
	operations *storage.OperationStore,
	spatial *battlefield.Index,
	fanout *broadcast.Hub,
	batcher *compression.Batcher,
) *Hub {
	h := &Hub{
		sessions:   make(map[string]map[*Client]bool),
		replicas:   make(map[string]*replica),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage),
		players:    players,
		sessionSv:  sessionSv,
		invites:    invites,
		host:       host,
		snapshots:  snapshots,
		playerSv:   playerSv,
		operations: operations,
		spatial:    spatial,
		fanout:     fanout,
		batcher:    batcher,
	}
	batcher.SetFlushFunc(h.flushBatch)
	return h
}

// replicaFor returns sessionID's OT/state replica, creating one seeded with
// an empty table if this is the first operation this process has seen for
// it (e.g. after a restart, or the first write on a freshly-created
// session).
func (h *Hub) replicaFor(sessionID string) *replica {
	if r, ok := h.replicas[sessionID]; ok {
		return r
	}

	mgr := state.NewManager[services.GameState](sessionID)
	root, _ := mgr.CreateState(services.NewGameState(nil, 20), "")
	r := &replica{engine: ot.NewEngine(), state: mgr, headID: root.ID}
	h.replicas[sessionID] = r
	h.snapshots.Register(sessionID, mgr)

	h.fanout.Subscribe(sessionID, func(frame broadcast.Frame) {
		h.applyRemote(sessionID, frame.Operation)
	})
	return r
}

func (h *Hub) sessionMembers(sessionID string) string {
	if clients, ok := h.sessions[sessionID]; ok {
		var members []string
		for client := range clients {
			members = append(members, client.playerID)
		}
		return strings.Join(members, ", ")
	}
	return "no members"
}

// Run drives the hub's event loop: registration, teardown, and local
// broadcast. Remote (cross-process) operations arrive via each replica's
// broadcast.Hub subscription; applyRemote then hands them to this loop
// through the broadcast channel for local delivery.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if _, ok := h.sessions[client.sessionID]; !ok {
				h.sessions[client.sessionID] = make(map[*Client]bool)
				log.Printf("websocket: session %s opened on this process", client.sessionID)
			}
			h.sessions[client.sessionID][client] = true
			log.Printf("websocket: player %s joined session %s (members: %s)",
				client.playerID, client.sessionID, h.sessionMembers(client.sessionID))

		case client := <-h.unregister:
			if clients, ok := h.sessions[client.sessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					log.Printf("websocket: player %s left session %s", client.playerID, client.sessionID)

					if len(clients) == 0 {
						delete(h.sessions, client.sessionID)
						h.fanout.Unsubscribe(client.sessionID)
						log.Printf("websocket: session %s has no local members left", client.sessionID)
					}

					go h.handlePlayerLeave(client.sessionID, client.playerID)
				}
			}

		case message := <-h.broadcast:
			h.deliverLocal(message)
		}
	}
}

func (h *Hub) deliverLocal(message *BroadcastMessage) {
	clients, ok := h.sessions[message.SessionID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- message.Payload:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

func (h *Hub) broadcastExcept(sessionID, excludePlayerID string, payload []byte) {
	clients, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	for client := range clients {
		if client.playerID == excludePlayerID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
}

// handleOperation is the core OT pipeline for one inbound envelope: decode,
// validate+dedup through the engine, apply to the session's GameState, log
// durably, update the spatial index, batch for outbound delivery, and fan
// out to other processes. Grounded on the teacher's handleStroke/
// handleOperation plus ot.go's ProcessOperation.
func (h *Hub) handleOperation(client *Client, env Envelope) {
	op, err := env.ToOperation()
	if err != nil {
		log.Printf("websocket: bad envelope from %s: %v", client.playerID, err)
		h.sendToClient(client, map[string]interface{}{
			"type":    "error",
			"message": "malformed operation",
		})
		return
	}
	if err := ot.Validate(op); err != nil {
		log.Printf("websocket: invalid operation from %s: %v", client.playerID, err)
		h.sendToClient(client, map[string]interface{}{
			"type":    "error",
			"message": err.Error(),
		})
		return
	}

	r := h.replicaFor(client.sessionID)

	concurrent := r.pending
	transformed := r.engine.Transform(op, concurrent)
	if !r.engine.Apply(transformed) {
		log.Printf("websocket: rejected duplicate/tombstoned operation %+v", transformed.Identity())
		return
	}
	r.pending = append(r.pending, transformed)

	next, err := r.state.UpdateState(r.headID, func(draft *services.GameState) *services.GameState {
		services.ApplyToGameState(draft, transformed)
		return nil
	})
	if err != nil {
		log.Printf("websocket: failed to update state for session %s: %v", client.sessionID, err)
		return
	}
	r.headID = next.ID

	if h.operations != nil {
		if err := h.operations.Append(client.sessionID, transformed); err != nil {
			log.Printf("websocket: failed to persist operation: %v", err)
		}
	}
	h.updateSpatialIndex(client.sessionID, transformed)
	h.snapshots.MarkPending(client.sessionID)

	h.batcher.Add(client.sessionID, transformed)

	if h.fanout != nil {
		if err := h.fanout.Publish(context.Background(), client.sessionID, transformed); err != nil {
			log.Printf("websocket: failed to publish operation: %v", err)
		}
	}
}

// applyRemote admits an operation received from another process over Redis
// Pub/Sub, applying it locally without re-publishing it (avoiding an
// infinite fan-out loop).
func (h *Hub) applyRemote(sessionID string, op ot.Operation) {
	r := h.replicaFor(sessionID)
	if !r.engine.Apply(op) {
		return
	}
	r.pending = append(r.pending, op)

	next, err := r.state.UpdateState(r.headID, func(draft *services.GameState) *services.GameState {
		services.ApplyToGameState(draft, op)
		return nil
	})
	if err != nil {
		log.Printf("websocket: failed to apply remote operation for session %s: %v", sessionID, err)
		return
	}
	r.headID = next.ID

	env, err := FromOperation(op)
	if err != nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.broadcast <- &BroadcastMessage{SessionID: sessionID, Payload: payload}
}

// flushBatch is the compression.Batcher's FlushFunc: it gzips a session's
// accumulated operations and delivers the single compressed frame to every
// local client, replacing the teacher's per-message broadcast.
func (h *Hub) flushBatch(sessionID string, batch *compression.Batch) {
	compressed, result, err := compression.CompressBatch(batch)
	if err != nil {
		log.Printf("websocket: failed to compress batch for session %s: %v", sessionID, err)
		return
	}
	log.Printf("websocket: flushed batch for session %s (%d ops, %d -> %d bytes)",
		sessionID, len(batch.Operations), result.OriginalSize, result.CompressedSize)

	h.deliverLocal(&BroadcastMessage{SessionID: sessionID, Payload: compressed})
}

func (h *Hub) updateSpatialIndex(sessionID string, op ot.Operation) {
	if h.spatial == nil {
		return
	}

	switch op.Kind {
	case ot.KindPlayCard:
		p := op.PlayCard
		card := &battlefield.IndexedCard{
			CardID:    p.CardID,
			SessionID: sessionID,
			OwnerID:   op.ClientID,
			BBox: battlefield.BoundingBox{
				X1: p.Position.X - 1, Y1: p.Position.Y - 1,
				X2: p.Position.X + 1, Y2: p.Position.Y + 1,
			},
			IsActive: true,
		}
		if err := h.spatial.Update(p.CardID, card); err != nil {
			_ = h.spatial.Insert(card)
		}
	case ot.KindMoveCard:
		p := op.MoveCard
		if p.To != ot.ZoneBattlefield {
			_ = h.spatial.Remove(p.CardID)
		}
	}
}

func (h *Hub) sendToClient(client *Client, message map[string]interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("websocket: failed to marshal message to %s: %v", client.playerID, err)
		return
	}
	select {
	case client.send <- payload:
	default:
		close(client.send)
		if clients, ok := h.sessions[client.sessionID]; ok {
			delete(clients, client)
		}
	}
}
