// ABOUTME: Chat history and send handlers
// ABOUTME: Clients are scoped to their own conversation; admins pick one by client id

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/chat"
	"github.com/atrio-legal/lexgate/internal/store"
)

// MessageResponse is the JSON shape of a chat message.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderRole     string `json:"sender_role"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
	ReadAt         string `json:"read_at,omitempty"`
}

// HistoryResponse is the JSON response for GET /api/chat/history.
type HistoryResponse struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	Messages       []MessageResponse `json:"messages"`
}

// SendRequest is the JSON request body for POST /api/chat/send.
type SendRequest struct {
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"` // admin only: target conversation
}

// SendResponse is the JSON response for POST /api/chat/send.
type SendResponse struct {
	Message   *MessageResponse `json:"message,omitempty"`
	Duplicate bool             `json:"duplicate,omitempty"`
}

// SendFailureResponse carries the draft back when a send cannot be persisted.
type SendFailureResponse struct {
	Error string `json:"error"`
	Draft string `json:"draft"`
}

func toMessageResponse(msg *store.ChatMessage) MessageResponse {
	resp := MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderRole:     string(msg.SenderRole),
		SenderID:       msg.SenderID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339Nano),
	}
	if msg.ReadAt != nil {
		resp.ReadAt = msg.ReadAt.Format(time.RFC3339Nano)
	}
	return resp
}

// resolveTargetClient determines whose conversation a request addresses.
// Clients always act on their own; admins must name a client.
func (s *Server) resolveTargetClient(id *auth.Identity, requested string) (string, string) {
	if id.IsAdmin() {
		if requested == "" {
			return "", "client_id is required"
		}
		return requested, ""
	}
	if requested != "" && requested != id.PrincipalID {
		return "", "clients may only access their own conversation"
	}
	return id.PrincipalID, ""
}

// handleChatHistory handles GET /api/chat/history.
// Returns the ordered message history; a client with no conversation yet gets
// an empty list rather than an implicit create.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
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

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	conv, err := s.store.GetConversationByClient(r.Context(), clientID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, HistoryResponse{Messages: []MessageResponse{}})
		return
	}
	if err != nil {
		s.logger.Error("conversation lookup failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), conv.ID, limit)
	if err != nil {
		s.logger.Error("history load failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := HistoryResponse{
		ConversationID: conv.ID,
		Messages:       make([]MessageResponse, len(messages)),
	}
	for i, msg := range messages {
		resp.Messages[i] = toMessageResponse(msg)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleChatSend handles POST /api/chat/send.
// The Idempotency-Key header makes blind retries safe: a replay of a key that
// already landed reports duplicate instead of inserting twice.
func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	clientID, errMsg := s.resolveTargetClient(id, req.ClientID)
	if errMsg != "" {
		status := http.StatusBadRequest
		if !id.IsAdmin() {
			status = http.StatusForbidden
		}
		s.sendJSONError(w, status, errMsg)
		return
	}

	role := store.RoleClient
	if id.IsAdmin() {
		role = store.RoleAdmin
	}

	key := r.Header.Get("Idempotency-Key")
	msg, err := s.manager.Post(r.Context(), clientID, role, id.PrincipalID, req.Text, key)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateMessage):
			s.writeJSON(w, http.StatusOK, SendResponse{Duplicate: true})
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidSender):
			s.sendJSONError(w, http.StatusBadRequest, err.Error())
		default:
			var sendErr *chat.SendError
			if errors.As(err, &sendErr) {
				s.writeJSON(w, http.StatusInternalServerError, SendFailureResponse{
					Error: "message could not be saved",
					Draft: sendErr.Draft,
				})
				return
			}
			s.logger.Error("send failed", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp := toMessageResponse(msg)
	s.writeJSON(w, http.StatusCreated, SendResponse{Message: &resp})
}
