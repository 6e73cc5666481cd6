package websocket

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins
	},
}

// Client is one player's live websocket connection into a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	playerID  string
}

// ServeWs upgrades an HTTP request to a websocket connection and registers
// it with the hub. Expected path: /ws/session/{sessionId}.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")
	var sessionID string
	if len(pathParts) >= 4 && pathParts[2] == "session" {
		sessionID = pathParts[3]
	} else {
		http.Error(w, "invalid session id in path", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		playerID:  fmt.Sprintf("temp-player-%s", generateID()),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	log.Printf("websocket: new client connected to session %s", sessionID)
}

// generateID creates a short random identifier.
func generateID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// frame is the envelope used to sniff an inbound message's type before
// dispatching to the right handler.
type frame struct {
	Type string `json:"type"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error: %v", err)
			}
			break
		}

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Printf("websocket: malformed message from %s: %v", c.playerID, err)
			continue
		}

		switch f.Type {
		case "join":
			c.hub.handlePlayerJoin(c, message)
		case "transfer_host":
			c.hub.handleHostTransfer(c, message)
		default:
			var env Envelope
			if err := json.Unmarshal(message, &env); err != nil {
				log.Printf("websocket: unrecognized message type %q from %s", f.Type, c.playerID)
				continue
			}
			c.hub.handleOperation(c, env)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
