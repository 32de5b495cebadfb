package hub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeeshan-mehdi/ARISXR/bpmn"
	"github.com/zeeshan-mehdi/ARISXR/server/common"
	"github.com/zeeshan-mehdi/ARISXR/server/hub"
)

const readTimeout = 2 * time.Second

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := hub.New(zerolog.Nop())
	go h.Run()
	ts := httptest.NewServer(http.HandlerFunc(h.HandleConn))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRaw(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, buf, err := conn.ReadMessage()
	require.NoError(t, err)
	var mt common.MsgType
	require.NoError(t, json.Unmarshal(buf, &mt))
	return mt.Type, buf
}

func readWelcome(t *testing.T, conn *websocket.Conn) common.Welcome {
	t.Helper()
	typ, buf := readRaw(t, conn)
	require.Equal(t, common.TypeWelcome, typ)
	var msg common.Welcome
	require.NoError(t, json.Unmarshal(buf, &msg))
	return msg
}

// readUsersUntil reads roster broadcasts until pred accepts one.
func readUsersUntil(t *testing.T, conn *websocket.Conn, pred func(common.Users) bool) common.Users {
	t.Helper()
	for {
		typ, buf := readRaw(t, conn)
		if typ != common.TypeUsers {
			continue
		}
		var msg common.Users
		require.NoError(t, json.Unmarshal(buf, &msg))
		if pred(msg) {
			return msg
		}
	}
}

func rosterOfSize(n int) func(common.Users) bool {
	return func(u common.Users) bool { return len(u.Users) == n }
}

func TestWelcome(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts)

	w := readWelcome(t, conn)
	assert.True(t, strings.HasPrefix(w.UserID, "user-"), "id %q", w.UserID)
	assert.Equal(t, "User 1", w.UserName)
	assert.True(t, strings.HasPrefix(w.UserColor, "#"), "color %q", w.UserColor)

	roster := readUsersUntil(t, conn, rosterOfSize(1))
	assert.Equal(t, w.UserID, roster.Users[0].ID)
	assert.Equal(t, w.UserName, roster.Users[0].Name)
	assert.Equal(t, [3]float32{0, 0, 0}, roster.Users[0].Position)
}

func TestRosterAccuracy(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)
	w1 := readWelcome(t, c1)

	c2 := dial(t, ts)
	w2 := readWelcome(t, c2)

	c3 := dial(t, ts)
	w3 := readWelcome(t, c3)

	assert.Equal(t, "User 2", w2.UserName)
	assert.Equal(t, "User 3", w3.UserName)

	roster := readUsersUntil(t, c1, rosterOfSize(3))
	seen := map[string]int{}
	for _, u := range roster.Users {
		seen[u.ID]++
	}
	for _, id := range []string{w1.UserID, w2.UserID, w3.UserID} {
		assert.Equal(t, 1, seen[id])
	}

	// Two disconnects leave a roster of exactly one.
	require.NoError(t, c3.Close())
	require.NoError(t, c2.Close())
	roster = readUsersUntil(t, c1, rosterOfSize(1))
	assert.Equal(t, w1.UserID, roster.Users[0].ID)
}

func TestPositionUpdate(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)
	w1 := readWelcome(t, c1)
	c2 := dial(t, ts)
	readWelcome(t, c2)

	pos := [3]float32{1.5, 0, -2.5}
	require.NoError(t, c1.WriteJSON(common.Position{Type: common.TypePosition, Position: pos}))

	roster := readUsersUntil(t, c2, func(u common.Users) bool {
		for _, user := range u.Users {
			if user.ID == w1.UserID && user.Position == pos {
				return true
			}
		}
		return false
	})
	assert.Len(t, roster.Users, 2)
}

func TestProcessRelayExcludesSender(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)
	w1 := readWelcome(t, c1)
	c2 := dial(t, ts)
	readWelcome(t, c2)
	c3 := dial(t, ts)
	readWelcome(t, c3)

	// Let the roster settle so the only pending message is the relay.
	readUsersUntil(t, c2, rosterOfSize(3))
	readUsersUntil(t, c3, rosterOfSize(3))
	readUsersUntil(t, c1, rosterOfSize(3))

	doc, err := bpmn.SampleProcess()
	require.NoError(t, err)
	require.NoError(t, c1.WriteJSON(common.ProcessUpdate{
		Type:       common.TypeProcess,
		Process:    doc,
		FromUserID: w1.UserID,
	}))

	for _, conn := range []*websocket.Conn{c2, c3} {
		typ, buf := readRaw(t, conn)
		require.Equal(t, common.TypeProcess, typ)
		var msg common.ProcessUpdate
		require.NoError(t, json.Unmarshal(buf, &msg))
		assert.Equal(t, w1.UserID, msg.FromUserID)
		assert.Equal(t, doc, msg.Process)
	}

	// The sender gets nothing back.
	require.NoError(t, c1.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = c1.ReadMessage()
	assert.Error(t, err)
}

func TestMalformedMessageDropped(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)
	w1 := readWelcome(t, c1)
	c2 := dial(t, ts)
	readWelcome(t, c2)

	require.NoError(t, c1.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, c1.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))

	// The connection survived: a position report still goes through.
	pos := [3]float32{4, 0, 0}
	require.NoError(t, c1.WriteJSON(common.Position{Type: common.TypePosition, Position: pos}))
	readUsersUntil(t, c2, func(u common.Users) bool {
		for _, user := range u.Users {
			if user.ID == w1.UserID && user.Position == pos {
				return true
			}
		}
		return false
	})
}
