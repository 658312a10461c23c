package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// SYNC-PROGRESS-MESSAGE
type progressMessage struct {
	Type     string `json:"type"` // "start", "progress", "done", "error"
	Video    string `json:"video"`
	Progress any    `json:"progress,omitempty"`
	RunID    int64  `json:"runID,omitempty"`
	Error    string `json:"error,omitempty"`
}

type progressClient struct {
	conn *websocket.Conn
	send chan []byte
}

// progressHub fans analysis progress out to every connected websocket
type progressHub struct {
	log     logs.Log
	lock    sync.Mutex
	nextID  int64
	clients map[int64]*progressClient
}

func newProgressHub(log logs.Log) *progressHub {
	return &progressHub{
		log:     log,
		clients: map[int64]*progressClient{},
	}
}

func (h *progressHub) add(conn *websocket.Conn) int64 {
	c := &progressClient{
		conn: conn,
		send: make(chan []byte, progressClientQueueDepth),
	}
	h.lock.Lock()
	h.nextID++
	id := h.nextID
	h.clients[id] = c
	h.lock.Unlock()

	go func() {
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Infof("Progress websocket %v write failed: %v", id, err)
				break
			}
		}
		conn.Close()
	}()
	return id
}

func (h *progressHub) remove(id int64) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.send)
		delete(h.clients, id)
	}
}

func (h *progressHub) closeAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

func (h *progressHub) numClients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// broadcast never blocks. A client that can't keep up misses messages.
func (h *progressHub) broadcast(msg progressMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("Failed to encode progress message: %v", err)
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- b:
		default:
		}
	}
}

// httpProgress streams progressMessage objects to the client, until the client disconnects
func (s *Server) httpProgress(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpProgress websocket upgrade failed: %v", err)
		return
	}
	id := s.progress.add(conn)
	defer s.progress.remove(id)

	// We don't expect anything from the client, but we must read in order to notice when it goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
