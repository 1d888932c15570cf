package signal

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge only serves local processes
	CheckOrigin: func(r *http.Request) bool { return true },
}

// bridgeMsg is the wire form between the hub and attached processes
type bridgeMsg struct {
	Type   string   `json:"type"` // "hello" | "signal"
	Tenant string   `json:"tenant,omitempty"`
	Tables []string `json:"tables,omitempty"`
	Table  string   `json:"table,omitempty"`
}

type bridgeClient struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	unsubscribe func()
	closeOnce   sync.Once
}

// ServeWS attaches another local process to the hub over a websocket. The
// first frame must be a hello naming the tenant and watched tables; after
// that, incoming signal frames are published with the client's origin and
// outgoing signals from other origins are relayed down.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("bridge upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var hello bridgeMsg
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" || hello.Tenant == "" {
		conn.Close()
		return
	}

	client := &bridgeClient{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	client.unsubscribe = h.Subscribe(hello.Tenant, client.id, hello.Tables, func(sig Signal) {
		payload, err := json.Marshal(bridgeMsg{Type: "signal", Tenant: sig.TenantID, Table: sig.Table})
		if err != nil {
			return
		}
		select {
		case client.send <- payload:
		default:
			// Slow consumer; it will resync through its own silent reloads
		}
	})

	go client.writePump()
	go client.readPump(hello.Tenant)
}

func (c *bridgeClient) readPump(tenant string) {
	defer c.close()
	for {
		var msg bridgeMsg
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Type == "signal" && msg.Table != "" {
			c.hub.Publish(Signal{TenantID: tenant, Table: msg.Table, Origin: c.id})
		}
	}
}

func (c *bridgeClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

func (c *bridgeClient) close() {
	c.closeOnce.Do(func() {
		c.unsubscribe()
		c.conn.Close()
	})
}
