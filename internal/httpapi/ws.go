// ABOUTME: WebSocket endpoint streaming a live conversation session
// ABOUTME: Replays history, forwards realtime updates, and accepts outgoing sends

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/chat"
	"github.com/atrio-legal/lexgate/internal/store"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API is token-authenticated; origins are not used for access control
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSEvent is the JSON envelope for server-to-client frames.
type WSEvent struct {
	Type     string            `json:"type"` // history, message, error
	Messages []MessageResponse `json:"messages,omitempty"`
	Message  *MessageResponse  `json:"message,omitempty"`
	Error    string            `json:"error,omitempty"`
	Draft    string            `json:"draft,omitempty"`
}

// WSCommand is the JSON envelope for client-to-server frames.
type WSCommand struct {
	Type           string `json:"type"` // send
	Text           string `json:"text,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// handleChatWS handles GET /api/chat/ws.
// Opens a conversation session, replays its history, and then forwards every
// realtime update as it arrives. Inbound frames carry sends. The session is
// closed unconditionally when the connection tears down, whatever the cause.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	clientID, errMsg := s.resolveTargetClient(id, r.URL.Query().Get("client_id"))
	if errMsg != "" {
		status := http.StatusBadRequest
		if !id.IsAdmin() {
			status = http.StatusForbidden
		}
		s.sendJSONError(w, status, errMsg)
		return
	}

	sess, err := s.manager.Open(r.Context(), clientID)
	if err != nil {
		s.logger.Warn("conversation open failed", "client_id", clientID, "error", err)
		s.sendJSONError(w, http.StatusServiceUnavailable, "conversation unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		sess.Close()
		return
	}
	defer conn.Close()
	defer sess.Close()

	history := sess.Messages()
	replay := WSEvent{Type: "history", Messages: make([]MessageResponse, len(history))}
	for i, msg := range history {
		replay.Messages[i] = toMessageResponse(msg)
	}
	if err := s.writeWSEvent(conn, &replay); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: inbound send commands. Terminates the connection
	// context when the peer goes away.
	cmds := make(chan WSCommand)
	go func() {
		defer cancel()
		for {
			var cmd WSCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	role := store.RoleClient
	if id.IsAdmin() {
		role = store.RoleAdmin
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-sess.Updates():
			if !ok {
				return
			}
			resp := toMessageResponse(msg)
			if err := s.writeWSEvent(conn, &WSEvent{Type: "message", Message: &resp}); err != nil {
				return
			}

		case cmd := <-cmds:
			if cmd.Type != "send" {
				continue
			}
			err := sess.SendKeyed(ctx, role, id.PrincipalID, cmd.Text, cmd.IdempotencyKey)
			if err != nil {
				s.writeWSSendError(conn, err)
			}

		case <-pings.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// writeWSEvent sends one JSON frame with a write deadline.
func (s *Server) writeWSEvent(conn *websocket.Conn, evt *WSEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}

// writeWSSendError reports a failed send to the peer. A *SendError includes
// the draft so the client can restore the user's input.
func (s *Server) writeWSSendError(conn *websocket.Conn, err error) {
	evt := WSEvent{Type: "error", Error: err.Error()}

	var sendErr *chat.SendError
	if errors.As(err, &sendErr) {
		evt.Error = "message could not be saved"
		evt.Draft = sendErr.Draft
	}

	s.writeWSEvent(conn, &evt)
}
