// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ttbt-io/scorecard/backend/scorecard"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// How long a hub with no clients lingers before it is removed.
	hubIdleTimeout = 5 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// FeedMessage is one message on the live update feed.
type FeedMessage struct {
	Type   string                `json:"type"`
	GameID string                `json:"gameId,omitempty"`
	Event  *scorecard.ScoreEvent `json:"event,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// Hub fans out accepted submissions to every client watching one game.
type Hub struct {
	key string

	// Registered clients. Only touched by run.
	clients map[*wsClient]bool

	register   chan *wsClient
	unregister chan *wsClient
	messages   chan FeedMessage

	// done is closed when the hub stops; joiners then ask for a new hub.
	done chan struct{}

	hm *HubManager
}

func newHub(key string, hm *HubManager) *Hub {
	return &Hub{
		key:        key,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		messages:   make(chan FeedMessage, 64),
		done:       make(chan struct{}),
		hm:         hm,
	}
}

func (h *Hub) run() {
	idleTimer := time.NewTicker(h.hm.idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.hm.setCount(h.key, len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.hm.setCount(h.key, len(h.clients))
			}
		case msg := <-h.messages:
			h.broadcast(msg)
		case <-idleTimer.C:
			if len(h.clients) == 0 {
				h.hm.removeHub(h)
				close(h.done)
				return
			}
		}
	}
}

func (h *Hub) broadcast(msg FeedMessage) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.hm.setCount(h.key, len(h.clients))
}

// HubManager manages one hub per account and game.
type HubManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	counts      map[string]int
	idleTimeout time.Duration
}

func NewHubManager() *HubManager {
	return &HubManager{
		hubs:        make(map[string]*Hub),
		counts:      make(map[string]int),
		idleTimeout: hubIdleTimeout,
	}
}

func hubKey(accountID, gameID string) string {
	return accountID + "/" + gameID
}

func (hm *HubManager) getHub(key string) *Hub {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hub, ok := hm.hubs[key]; ok {
		return hub
	}
	hub := newHub(key, hm)
	hm.hubs[key] = hub
	go hub.run()
	return hub
}

// removeHub drops h from the map. Joiners still holding h see its done
// channel close and fetch a fresh hub.
func (hm *HubManager) removeHub(h *Hub) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if hm.hubs[h.key] == h {
		delete(hm.hubs, h.key)
		delete(hm.counts, h.key)
	}
}

func (hm *HubManager) setCount(key string, n int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.counts[key] = n
}

// ClientCount returns how many clients watch the game.
func (hm *HubManager) ClientCount(accountID, gameID string) int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.counts[hubKey(accountID, gameID)]
}

// Watchers returns the number of connected clients across all games.
func (hm *HubManager) Watchers() (clients, games int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	for _, n := range hm.counts {
		if n > 0 {
			clients += n
			games++
		}
	}
	return clients, games
}

func (hm *HubManager) join(key string, c *wsClient) {
	for {
		hub := hm.getHub(key)
		select {
		case hub.register <- c:
			c.hub = hub
			return
		case <-hub.done:
		}
	}
}

// Broadcast sends msg to every client watching the game. It never blocks;
// messages for a saturated hub are dropped.
func (hm *HubManager) Broadcast(accountID, gameID string, msg FeedMessage) {
	hm.mu.Lock()
	hub, ok := hm.hubs[hubKey(accountID, gameID)]
	hm.mu.Unlock()
	if !ok {
		return
	}
	select {
	case hub.messages <- msg:
	case <-hub.done:
	default:
		log.Printf("[FEED] Warning: Hub channel full, dropping %s for game %s", msg.Type, gameID)
	}
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Closed by the hub.
	send chan FeedMessage

	// Direct replies from readPump. Never closed.
	replies chan FeedMessage

	userID string
	debugf func(string, ...any)
}

// readPump keeps the connection alive and answers client pings. The feed is
// one-way; anything else a client sends gets an error message.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg FeedMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[FEED] error: %v", err)
			}
			break
		}
		switch msg.Type {
		case MsgTypePing:
			c.sendJSON(FeedMessage{Type: MsgTypePong})
		default:
			c.debugf("Unknown message type from %s: %s", maskEmail(c.userID), msg.Type)
			c.sendJSON(FeedMessage{Type: MsgTypeError, Error: "Unknown message type"})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case message := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
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

// sendJSON queues a direct reply. Replies to a client whose queue is full
// are dropped.
func (c *wsClient) sendJSON(msg FeedMessage) {
	select {
	case c.replies <- msg:
	default:
	}
}

// ServeWS upgrades the request and subscribes the connection to the game's
// hub. The caller has already authorized the user for the account.
func ServeWS(hm *HubManager, w http.ResponseWriter, r *http.Request, debugf func(string, ...any)) {
	accountID := r.URL.Query().Get("accountId")
	gameID := r.URL.Query().Get("gameId")
	if err := validateID(accountID, "accountId"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateID(gameID, "gameId"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[FEED] upgrade: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan FeedMessage, 256), replies: make(chan FeedMessage, 8), userID: getUserID(r), debugf: debugf}
	hm.join(hubKey(accountID, gameID), client)
	debugf("Feed client %s joined %s/%s", maskEmail(client.userID), accountID, gameID)

	go client.writePump()
	go client.readPump()
}
