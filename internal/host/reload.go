package host

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ascbridge/internal/logging"
)

// ReloadPath is the websocket endpoint the injected client connects to.
const ReloadPath = "/@ascbridge/reload"

const (
	reloadWriteWait = 10 * time.Second
	reloadPongWait  = 60 * time.Second
	reloadPingEvery = (reloadPongWait * 9) / 10
)

// reloadClientScript is a classic script so it also runs where module
// scripts are unsupported.
const reloadClientScript = `<script>(function(){` +
	`var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"` + ReloadPath + `");` +
	`ws.onmessage=function(e){try{if(JSON.parse(e.data).type==="update"){location.reload();}}catch(_){}};` +
	`})();</script>`

var reloadUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// ReloadMessage is pushed to every connected page.
type ReloadMessage struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

type reloadClient struct {
	id   string
	send chan ReloadMessage
	done chan struct{}
}

// reloadHub fans reload messages out to connected pages.
type reloadHub struct {
	mu      sync.Mutex
	clients map[string]*reloadClient
	closed  bool
}

func newReloadHub() *reloadHub {
	return &reloadHub{clients: make(map[string]*reloadClient)}
}

func (h *reloadHub) register() *reloadClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &reloadClient{id: uuid.NewString(), send: make(chan ReloadMessage, 16), done: make(chan struct{})}
	if h.closed {
		close(c.done)
		return c
	}
	h.clients[c.id] = c
	return c
}

func (h *reloadHub) unregister(c *reloadClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.done)
	}
}

// broadcast queues msg for every client; slow clients drop messages.
func (h *reloadHub) broadcast(msg ReloadMessage) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.clients {
		select {
		case c.send <- msg:
			n++
		default:
			logging.ServeWarn("Reload client %s is not keeping up, dropping %s", c.id, msg.Type)
		}
	}
	return n
}

func (h *reloadHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *reloadHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		close(c.done)
		delete(h.clients, id)
	}
}

func (h *reloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := reloadUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := h.register()
	defer h.unregister(client)
	logging.ServeDebug("Reload client %s connected", client.id)

	if err := conn.SetReadDeadline(time.Now().Add(reloadPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(reloadPongWait))
	})

	// The reader only exists to process pongs and notice the peer leaving.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(reloadPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
				time.Now().Add(reloadWriteWait))
			return
		case <-readerDone:
			return
		case msg := <-client.send:
			if err := conn.SetWriteDeadline(time.Now().Add(reloadWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(reloadWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
