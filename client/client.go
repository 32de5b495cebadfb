// Package client is the sync adapter: it keeps a local replica of the shared
// process document and the presence roster, applies remote updates, and
// republishes local edits over the wire.
//
// Echo suppression: when a process update arrives from another user, the
// adapter raises a one-shot flag immediately before routing the document
// through the normal mutation path; the publish step consumes the flag and
// skips exactly one send. Both steps run synchronously under the adapter's
// mutex, so a remote apply can never race a local edit into a feedback loop.
package client

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zeeshan-mehdi/ARISXR/bpmn"
	"github.com/zeeshan-mehdi/ARISXR/server/common"
)

// State is the connection lifecycle: Connecting -> Open -> Closed.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is a connected sync adapter. Create one with Dial. Methods are safe
// for concurrent use; callbacks run on the read goroutine, outside the lock.
type Client struct {
	log  zerolog.Logger
	conn *websocket.Conn
	done chan struct{}

	mu           sync.Mutex
	state        State
	selfID       string
	selfName     string
	selfColor    string
	doc          *bpmn.Process
	users        []common.User
	selectedID   string
	editingID    string
	suppressNext bool

	onDocument func(*bpmn.Process)
	onPresence func([]common.User)
}

// Dial connects to a sync server's /ws endpoint. The returned client is Open;
// its own session id arrives with the server's welcome message shortly after.
func Dial(url string, log zerolog.Logger) (*Client, error) {
	c := &Client{log: log, state: StateConnecting, done: make(chan struct{})}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		c.state = StateClosed
		return nil, err
	}
	c.conn = conn
	c.state = StateOpen
	go c.readLoop()
	return c, nil
}

// OnDocument registers a callback invoked after every document change, local
// or remote. Set it before edits start flowing.
func (c *Client) OnDocument(f func(*bpmn.Process)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDocument = f
}

// OnPresence registers a callback invoked on every roster refresh.
func (c *Client) OnPresence(f func([]common.User)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPresence = f
}

// State returns the connection state, for the UI to surface as it sees fit.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelfID returns the server-assigned session id, or "" before welcome.
func (c *Client) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// Document returns the local replica. Treat it as read-only; edits must go
// through SetDocument or RenameElement so they reach other peers.
func (c *Client) Document() *bpmn.Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// Presence returns a copy of the latest roster.
func (c *Client) Presence() []common.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.User(nil), c.users...)
}

// SetDocument replaces the local document and broadcasts it. A document swap
// invalidates element identity, so selection and editing state are cleared.
func (c *Client) SetDocument(p *bpmn.Process) {
	c.mu.Lock()
	c.applyDocument(p)
	f, doc := c.onDocument, c.doc
	c.mu.Unlock()
	if f != nil {
		f(doc)
	}
}

// RenameElement renames one element of the current document and broadcasts
// the updated document. Reports whether the element exists. Editing state is
// cleared; selection survives a rename.
func (c *Client) RenameElement(id, name string) bool {
	c.mu.Lock()
	if c.doc == nil || !c.doc.Rename(id, name) {
		c.mu.Unlock()
		return false
	}
	c.editingID = ""
	c.publish()
	f, doc := c.onDocument, c.doc
	c.mu.Unlock()
	if f != nil {
		f(doc)
	}
	return true
}

// SelectElement records the element the local user has selected.
func (c *Client) SelectElement(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedID = id
}

// SelectedID returns the locally selected element id, or "".
func (c *Client) SelectedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID
}

// EditElement records the element the local user is editing.
func (c *Client) EditElement(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = id
}

// EditingID returns the element id being edited locally, or "".
func (c *Client) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID
}

// Done is closed when the connection is gone. There is no automatic
// reconnect; recovery is the embedding layer's concern.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame. The read loop observes the peer's reply and
// moves the client to Closed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil
	}
	return c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// applyDocument is the single mutation path for the replica; the caller
// holds the lock. Every call clears selection state and runs the publish
// step, which is where the suppression flag is consumed.
func (c *Client) applyDocument(p *bpmn.Process) {
	c.doc = p
	c.selectedID = ""
	c.editingID = ""
	c.publish()
}

// publish sends the current document unless this change came off the wire.
func (c *Client) publish() {
	if c.suppressNext {
		c.suppressNext = false
		c.log.Debug().Msg("skipping broadcast for remote update")
		return
	}
	if c.doc == nil || c.state != StateOpen || c.selfID == "" {
		return
	}
	msg := common.ProcessUpdate{
		Type:       common.TypeProcess,
		Process:    c.doc,
		FromUserID: c.selfID,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Error().Err(err).Msg("sending process update")
	}
}

func (c *Client) readLoop() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("connection lost")
			}
			c.mu.Lock()
			c.state = StateClosed
			c.mu.Unlock()
			c.conn.Close()
			close(c.done)
			return
		}
		c.handleMessage(buf)
	}
}

// handleMessage dispatches one inbound frame. Parse failures and unknown
// types are logged and dropped without touching connection state.
func (c *Client) handleMessage(buf []byte) {
	var mt common.MsgType
	if err := json.Unmarshal(buf, &mt); err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed message")
		return
	}
	switch mt.Type {
	case common.TypeWelcome:
		var msg common.Welcome
		if err := json.Unmarshal(buf, &msg); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed welcome")
			return
		}
		c.mu.Lock()
		c.selfID = msg.UserID
		c.selfName = msg.UserName
		c.selfColor = msg.UserColor
		c.mu.Unlock()
		c.log.Info().Str("user", msg.UserID).Str("name", msg.UserName).Msg("welcomed")
	case common.TypeUsers:
		var msg common.Users
		if err := json.Unmarshal(buf, &msg); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed roster")
			return
		}
		c.mu.Lock()
		c.users = msg.Users
		f := c.onPresence
		c.mu.Unlock()
		if f != nil {
			f(msg.Users)
		}
	case common.TypeProcess:
		var msg common.ProcessUpdate
		if err := json.Unmarshal(buf, &msg); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed process update")
			return
		}
		c.mu.Lock()
		if msg.FromUserID == c.selfID {
			// Self-originated echo; the server excludes the sender, so this
			// only happens with a misbehaving peer. Never re-apply.
			c.mu.Unlock()
			return
		}
		c.suppressNext = true
		c.applyDocument(msg.Process)
		f, doc := c.onDocument, c.doc
		c.mu.Unlock()
		if f != nil {
			f(doc)
		}
	default:
		c.log.Warn().Str("type", mt.Type).Msg("unknown message type")
	}
}
