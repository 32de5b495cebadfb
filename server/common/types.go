// Package common defines the JSON messages exchanged between clients and the
// sync server. Every message carries a "type" field; decoders probe it first
// via MsgType, then unmarshal the concrete struct. Unknown types are logged
// and ignored so old peers tolerate new message kinds.
package common

import (
	"encoding/json"

	"github.com/zeeshan-mehdi/ARISXR/bpmn"
)

// Message type values.
const (
	TypeWelcome  = "welcome"
	TypeUsers    = "users"
	TypeProcess  = "process"
	TypePosition = "position"
)

// For detecting incoming message type before decoding the full payload.
type MsgType struct {
	Type string `json:"type"`
}

// User is one entry of the presence roster.
type User struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Color    string     `json:"color"`
	Position [3]float32 `json:"position"`
}

// Sent from server to client, once, immediately after connect.
type Welcome struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

// Sent from server to all clients after any roster change. Always the full
// roster, never a delta.
type Users struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// Sent from client to server on any local document mutation, and relayed by
// the server to every other client with FromUserID set to the sender's
// session id.
type ProcessUpdate struct {
	Type       string        `json:"type"`
	Process    *bpmn.Process `json:"process"`
	FromUserID string        `json:"fromUserId,omitempty"`
}

// RawProcessUpdate is the relay-side view of a process message: the server
// never decodes the document, it forwards the payload verbatim.
type RawProcessUpdate struct {
	Type       string          `json:"type"`
	Process    json.RawMessage `json:"process"`
	FromUserID string          `json:"fromUserId,omitempty"`
}

// Sent from client to server when the local viewpoint moves beyond the
// reporting threshold. Coordinates are rounded to one decimal client-side.
type Position struct {
	Type     string     `json:"type"`
	Position [3]float32 `json:"position"`
}
