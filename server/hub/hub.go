// Package hub implements the presence and sync broker. It owns the registry
// of connected sessions, assigns each one an id, a display name, and a color,
// relays document updates between peers, and rebroadcasts the full roster on
// every change.
//
// The broker never interprets documents: a process update is relayed verbatim
// to every other session, tagged with the sender's id. Replication is
// last-writer-wins and non-linearizable; concurrent edits are resolved by
// whichever update reaches each peer last, with no merge or versioning.
package hub

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/asadovsky/gosh"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zeeshan-mehdi/ARISXR/server/common"
)

// Outbound messages queued per session before the broker starts dropping
// them for that recipient. A slow reader only loses its own messages.
const sendBufSize = 32

var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F7DC6F", "#BB8FCE", "#85C1E2", "#F8B739", "#52B788",
}

// session is one connected client's presence record.
type session struct {
	id       string
	name     string
	color    string
	position [3]float32
	send     chan []byte
}

// envelope is a broadcast with an optional excluded recipient.
type envelope struct {
	exclude string // session id to skip, "" for none
	msg     []byte
}

// Hub is the broker. Create with New, start the fan-out loop with Run, and
// mount HandleConn on the /ws upgrade path.
type Hub struct {
	log         zerolog.Logger
	upgrader    websocket.Upgrader
	clients     map[*session]bool // owned by the Run goroutine
	subscribe   chan *session
	unsubscribe chan *session
	broadcast   chan envelope
	mu          sync.Mutex // protects the fields below
	sessions    []*session // roster, in connect order
	nextUserNum int
}

// New returns a Hub with an empty roster.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log,
		clients:     make(map[*session]bool),
		subscribe:   make(chan *session),
		unsubscribe: make(chan *session),
		broadcast:   make(chan envelope),
	}
}

// Run fans broadcasts out to subscribed sessions. It never returns; start it
// on its own goroutine before serving connections.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.subscribe:
			h.clients[s] = true
		case s := <-h.unsubscribe:
			delete(h.clients, s)
			close(s.send)
		case env := <-h.broadcast:
			for s := range h.clients {
				if env.exclude != "" && s.id == env.exclude {
					continue
				}
				select {
				case s.send <- env.msg:
				default:
					// Recipient too slow; drop for them only.
					h.log.Warn().Str("user", s.id).Msg("send buffer full, dropping message")
				}
			}
		}
	}
}

func newUserID() string {
	return fmt.Sprintf("user-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// addSession registers a new session under the roster lock.
func (h *Hub) addSession() *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextUserNum++
	s := &session{
		id:    newUserID(),
		name:  fmt.Sprintf("User %d", h.nextUserNum),
		color: palette[rand.Intn(len(palette))],
		send:  make(chan []byte, sendBufSize),
	}
	h.sessions = append(h.sessions, s)
	return s
}

func (h *Hub) removeSession(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, c := range h.sessions {
		if c == s {
			h.sessions = append(h.sessions[:i], h.sessions[i+1:]...)
			return
		}
	}
}

// roster snapshots the current session list under the lock, so every
// broadcast reflects a consistent state.
func (h *Hub) roster() []common.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]common.User, len(h.sessions))
	for i, s := range h.sessions {
		users[i] = common.User{ID: s.id, Name: s.name, Color: s.color, Position: s.position}
	}
	return users
}

// broadcastRoster sends the full roster to every connected session.
func (h *Hub) broadcastRoster() {
	msg, err := json.Marshal(common.Users{Type: common.TypeUsers, Users: h.roster()})
	if err != nil {
		h.log.Error().Err(err).Msg("marshaling roster")
		return
	}
	h.broadcast <- envelope{msg: msg}
}

// HandleConn upgrades the request and services the connection until the peer
// goes away. One goroutine reads and dispatches inbound messages, another
// drains the session's send queue; a fault in either tears down only this
// session.
func (h *Hub) HandleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := h.addSession()
	h.log.Info().Str("user", s.id).Str("name", s.name).Msg("client connected")

	welcome := common.Welcome{
		Type:      common.TypeWelcome,
		UserID:    s.id,
		UserName:  s.name,
		UserColor: s.color,
	}
	if err := conn.WriteJSON(welcome); err != nil {
		h.log.Error().Err(err).Str("user", s.id).Msg("sending welcome")
		h.removeSession(s)
		conn.Close()
		return
	}

	eof, done := make(chan struct{}), make(chan struct{})

	go func() {
		for {
			select {
			case msg, ok := <-s.send:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					// Broken pipe for this recipient only; keep draining so
					// broadcasts to others are unaffected.
					h.log.Debug().Err(err).Str("user", s.id).Msg("write failed")
				}
			case <-eof:
				close(done)
				return
			}
		}
	}()

	h.subscribe <- s
	h.broadcastRoster()

	go func() {
		defer close(eof)
		for {
			_, buf, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.log.Debug().Err(err).Str("user", s.id).Msg("read failed")
				}
				return
			}
			h.handleMessage(s, buf)
		}
	}()

	<-done

	h.unsubscribe <- s
	h.removeSession(s)
	conn.Close()
	h.log.Info().Str("user", s.id).Msg("client disconnected")
	h.broadcastRoster()
}

// handleMessage dispatches one inbound frame. Malformed JSON and unknown
// types are logged and dropped; the connection stays open.
func (h *Hub) handleMessage(s *session, buf []byte) {
	var mt common.MsgType
	if err := json.Unmarshal(buf, &mt); err != nil {
		h.log.Warn().Err(err).Str("user", s.id).Msg("dropping malformed message")
		return
	}
	switch mt.Type {
	case common.TypePosition:
		var msg common.Position
		if err := json.Unmarshal(buf, &msg); err != nil {
			h.log.Warn().Err(err).Str("user", s.id).Msg("dropping malformed position")
			return
		}
		h.mu.Lock()
		s.position = msg.Position
		h.mu.Unlock()
		h.broadcastRoster()
	case common.TypeProcess:
		var msg common.RawProcessUpdate
		if err := json.Unmarshal(buf, &msg); err != nil {
			h.log.Warn().Err(err).Str("user", s.id).Msg("dropping malformed process update")
			return
		}
		out, err := json.Marshal(common.RawProcessUpdate{
			Type:       common.TypeProcess,
			Process:    msg.Process,
			FromUserID: s.id,
		})
		if err != nil {
			h.log.Error().Err(err).Str("user", s.id).Msg("marshaling process relay")
			return
		}
		h.log.Debug().Str("user", s.id).Int("bytes", len(out)).Msg("relaying process update")
		h.broadcast <- envelope{exclude: s.id, msg: out}
	default:
		h.log.Warn().Str("user", s.id).Str("type", mt.Type).Msg("unknown message type")
	}
}

// Serve runs a hub on addr with the websocket endpoint at /ws. It signals
// readiness through gosh for use as a child process (see the demo). The main
// server binary wires New and Run itself.
func Serve(addr string) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	h := New(log)
	go h.Run()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleConn)
	go func() {
		time.Sleep(100 * time.Millisecond)
		gosh.SendReady()
	}()
	return http.ListenAndServe(addr, mux)
}
