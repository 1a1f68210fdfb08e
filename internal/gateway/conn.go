// Package gateway accepts WebSocket upgrades on the four endpoints
// spec.md §6 documents, parses inbound envelopes, dispatches to Room and
// Competition, and serves the JSON introspection endpoints.
//
// Grounded on sonpython-slether/server/main.go's upgrader
// (CheckOrigin/EnableCompression/buffer sizing) and sendErrorAndClose
// helper, and connection.go's Conn (single-writer mutex around
// ws.WriteMessage, uuid-identified) generalized into the wire.Sender
// every Room/Competition talks to.
package gateway

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/revodavid/copperhead-server/internal/wire"
)

// Conn wraps one upgraded WebSocket connection. It implements
// wire.Sender so internal/room and internal/competition can talk to a
// client without importing gorilla/websocket.
type Conn struct {
	// ID is an opaque per-connection identifier used in log lines and as
	// the player uid in direct-play rooms (/ws/join, /ws/{id}); it is not
	// the tournament player uid (that's Competition's sequential
	// "P1","P2",... per spec.md §4.4).
	ID string

	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an upgraded websocket.Conn, minting its log id the way
// sonpython-slether/server/connection.go's NewConn does.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ID: uuid.New().String(), ws: ws}
}

// Send serializes msg to JSON and writes it as one text frame, under the
// connection's write mutex (single-writer rule, spec.md §4.5).
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// CloseWithCode sends a close frame carrying one of spec.md §6's
// documented codes, then tears down the socket.
func (c *Conn) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	closeFrame := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, closeFrame, timeNowPlusWriteWait())
	return c.ws.Close()
}

// ReadEnvelope blocks for the next inbound client frame, returning a
// parsed wire.ClientEnvelope. A malformed frame is not an error here;
// callers decide whether to ignore it (move/get_rooms) or close with
// 4001 (e.g. /ws/compete's mandatory first message), per spec.md §7.
func (c *Conn) ReadEnvelope() (wire.ClientEnvelope, []byte, error) {
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return wire.ClientEnvelope{}, nil, err
	}
	var env wire.ClientEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
		log.Printf("gateway: bad frame from %s: %v", c.ID, jsonErr)
		return wire.ClientEnvelope{}, raw, nil
	}
	return env, raw, nil
}

var _ wire.Sender = (*Conn)(nil)
