// ABOUTME: WebSocket endpoint tests using a live httptest server
// ABOUTME: Covers history replay, live delivery, sends, and session teardown

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, ts *httptest.Server, token, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws" + query
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) WSEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt WSEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestChatWS_ReplayAndLiveDelivery(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	// Seed one message before connecting
	sendRec := env.do(t, http.MethodPost, "/api/chat/send", env.clientToken(t), SendRequest{Text: "before connect"}, nil)
	require.Equal(t, http.StatusCreated, sendRec.Code)

	conn := dialWS(t, ts, env.clientToken(t), "")

	replay := readEvent(t, conn)
	require.Equal(t, "history", replay.Type)
	require.Len(t, replay.Messages, 1)
	assert.Equal(t, "before connect", replay.Messages[0].Body)

	// A message sent over REST arrives live on the socket
	sendRec = env.do(t, http.MethodPost, "/api/chat/send", env.adminToken(t), SendRequest{
		Text:     "from the firm",
		ClientID: env.client.ID,
	}, nil)
	require.Equal(t, http.StatusCreated, sendRec.Code)

	live := readEvent(t, conn)
	require.Equal(t, "message", live.Type)
	require.NotNil(t, live.Message)
	assert.Equal(t, "from the firm", live.Message.Body)
	assert.Equal(t, "admin", live.Message.SenderRole)
}

func TestChatWS_SendOverSocket(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, env.clientToken(t), "")

	replay := readEvent(t, conn)
	require.Equal(t, "history", replay.Type)
	assert.Empty(t, replay.Messages)

	require.NoError(t, conn.WriteJSON(WSCommand{Type: "send", Text: "over the socket"}))

	// The send round-trips through the store and the broadcast channel
	evt := readEvent(t, conn)
	require.Equal(t, "message", evt.Type)
	require.NotNil(t, evt.Message)
	assert.Equal(t, "over the socket", evt.Message.Body)
	assert.Equal(t, env.client.ID, evt.Message.SenderID)

	hist := decodeBody[HistoryResponse](t, env.do(t, http.MethodGet, "/api/chat/history", env.clientToken(t), nil, nil))
	require.Len(t, hist.Messages, 1)
}

func TestChatWS_EmptySendReportsError(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, env.clientToken(t), "")
	_ = readEvent(t, conn) // history

	require.NoError(t, conn.WriteJSON(WSCommand{Type: "send", Text: "   "}))

	evt := readEvent(t, conn)
	assert.Equal(t, "error", evt.Type)
	assert.NotEmpty(t, evt.Error)
}

func TestChatWS_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatWS_AdminJoinsNamedConversation(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	adminConn := dialWS(t, ts, env.adminToken(t), "?client_id="+env.client.ID)
	_ = readEvent(t, adminConn) // history

	require.NoError(t, adminConn.WriteJSON(WSCommand{Type: "send", Text: "firm joining"}))

	evt := readEvent(t, adminConn)
	require.Equal(t, "message", evt.Type)
	require.NotNil(t, evt.Message)
	assert.Equal(t, "admin", evt.Message.SenderRole)
	assert.Equal(t, env.admin.ID, evt.Message.SenderID)
}
