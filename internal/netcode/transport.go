// Package netcode predicts Msgs locally against a private Runtime and
// reconciles the result against an authoritative Model a server sends
// down periodically (spec's netcode contract: "predicts locally,
// reconciles against an authoritative snapshot"), over a pluggable
// Transport whose concrete default is a gorilla/websocket connection.
package netcode

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Frame is one netcode wire message: an input the client predicted
// locally, or a snapshot the server broadcasts for reconciliation.
type Frame struct {
	Kind      FrameKind       `json:"kind"`
	Tick      uint64          `json:"tick"`
	Input     json.RawMessage `json:"input,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
}

// FrameKind discriminates Frame's variants.
type FrameKind string

const (
	FrameInput    FrameKind = "input"
	FrameSnapshot FrameKind = "snapshot"
)

// Transport is the named-only transport contract a Predictor/Reconciler
// pair is driven over: send a Frame, receive the next one, close when
// done. Kept narrow and transport-agnostic so prediction/reconciliation
// logic never depends on gorilla/websocket directly.
type Transport interface {
	Send(f Frame) error
	Receive() (Frame, error)
	Close() error
}

// WSTransport is the default Transport, backed by a single
// gorilla/websocket connection.
type WSTransport struct {
	conn *websocket.Conn
}

// NewWSTransport wraps an already-established websocket connection.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

// DialWS connects to a netcode server at url (e.g. "ws://host:port/netcode").
func DialWS(url string) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("netcode: dial: %w", err)
	}
	return NewWSTransport(conn), nil
}

// upgrader accepts any origin: the engine process, not the browser
// sandbox, is the trust boundary here.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AcceptWS upgrades an incoming HTTP request to a websocket connection,
// for a host process accepting client prediction streams.
func AcceptWS(w http.ResponseWriter, r *http.Request) (*WSTransport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("netcode: upgrade: %w", err)
	}
	return NewWSTransport(conn), nil
}

func (t *WSTransport) Send(f Frame) error {
	return t.conn.WriteJSON(f)
}

func (t *WSTransport) Receive() (Frame, error) {
	var f Frame
	err := t.conn.ReadJSON(&f)
	return f, err
}

func (t *WSTransport) Close() error {
	return t.conn.Close()
}
