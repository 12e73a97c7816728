// ABOUTME: Staff and client endpoints for conversations, processes, and documents
// ABOUTME: Admin manages processes and lists conversations; reads are scoped per client

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/store"
)

// ConversationResponse is the JSON shape of a conversation summary.
type ConversationResponse struct {
	ID            string `json:"id"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name,omitempty"`
	CreatedAt     string `json:"created_at"`
	LastMessageAt string `json:"last_message_at"`
}

// ProcessResponse is the JSON shape of a tracked legal process.
type ProcessResponse struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Court     string `json:"court,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DocumentResponse is the JSON shape of a document record.
type DocumentResponse struct {
	ID          string `json:"id"`
	ProcessID   string `json:"process_id,omitempty"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	UploadedBy  string `json:"uploaded_by"`
	CreatedAt   string `json:"created_at"`
}

// handleListConversations handles GET /api/conversations (admin only).
// Conversations are ordered by most recent activity first.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	convs, err := s.store.ListConversations(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ConversationResponse, len(convs))
	for i, conv := range convs {
		clientName := ""
		if client, err := s.store.GetClient(r.Context(), conv.ClientID); err == nil {
			clientName = client.Name
		}
		response[i] = ConversationResponse{
			ID:            conv.ID,
			ClientID:      conv.ClientID,
			ClientName:    clientName,
			CreatedAt:     conv.CreatedAt.Format(time.RFC3339),
			LastMessageAt: conv.LastMessageAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// authorizeClientScope checks that the caller may read data for the client id
// in the path. Admins see everyone; clients only themselves.
func (s *Server) authorizeClientScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.MustFromContext(r.Context())
	clientID := r.PathValue("id")
	if clientID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "client id is required")
		return "", false
	}
	if !id.IsAdmin() && id.PrincipalID != clientID {
		s.sendJSONError(w, http.StatusForbidden, "clients may only access their own records")
		return "", false
	}
	return clientID, true
}

// handleClientProcesses handles GET /api/clients/{id}/processes.
func (s *Server) handleClientProcesses(w http.ResponseWriter, r *http.Request) {
	clientID, ok := s.authorizeClientScope(w, r)
	if !ok {
		return
	}

	procs, err := s.store.ListProcessesByClient(r.Context(), clientID)
	if err != nil {
		s.logger.Error("failed to list processes", "client_id", clientID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ProcessResponse, len(procs))
	for i, p := range procs {
		response[i] = ProcessResponse{
			ID:        p.ID,
			Number:    p.Number,
			Court:     p.Court,
			Subject:   p.Subject,
			Status:    p.Status,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
			UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// CreateProcessRequest is the body for registering a legal process for a client.
type CreateProcessRequest struct {
	Number  string `json:"number"`
	Court   string `json:"court,omitempty"`
	Subject string `json:"subject,omitempty"`
	Status  string `json:"status,omitempty"`
}

// UpdateProcessStatusRequest is the body for changing a process status.
type UpdateProcessStatusRequest struct {
	Status string `json:"status"`
}

// ProcessStatusResponse confirms a status change.
type ProcessStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func validProcessStatus(status string) bool {
	switch status {
	case "active", "suspended", "archived":
		return true
	}
	return false
}

// handleCreateProcess handles POST /api/clients/{id}/processes (admin only).
// Registers a process number for the client so its status can be tracked.
func (s *Server) handleCreateProcess(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("id")
	if clientID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "client id is required")
		return
	}
	if _, err := s.store.GetClient(r.Context(), clientID); errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusBadRequest, "unknown client")
		return
	} else if err != nil {
		s.logger.Error("failed to look up client", "client_id", clientID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req CreateProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" {
		s.sendJSONError(w, http.StatusBadRequest, "process number is required")
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}
	if !validProcessStatus(req.Status) {
		s.sendJSONError(w, http.StatusBadRequest, "status must be one of: active, suspended, archived")
		return
	}

	now := time.Now()
	proc := &store.Process{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Number:    req.Number,
		Court:     strings.TrimSpace(req.Court),
		Subject:   strings.TrimSpace(req.Subject),
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProcess(r.Context(), proc); err != nil {
		if errors.Is(err, store.ErrDuplicateProcess) {
			s.sendJSONError(w, http.StatusConflict, "process number is already registered")
			return
		}
		s.logger.Error("failed to create process", "number", proc.Number, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("process registered",
		"process_id", proc.ID,
		"client_id", clientID,
		"number", proc.Number)
	s.writeJSON(w, http.StatusCreated, ProcessResponse{
		ID:        proc.ID,
		Number:    proc.Number,
		Court:     proc.Court,
		Subject:   proc.Subject,
		Status:    proc.Status,
		CreatedAt: proc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: proc.UpdatedAt.Format(time.RFC3339),
	})
}

// handleUpdateProcessStatus handles PATCH /api/processes/{id}/status (admin only).
func (s *Server) handleUpdateProcessStatus(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	if processID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "process id is required")
		return
	}

	var req UpdateProcessStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validProcessStatus(req.Status) {
		s.sendJSONError(w, http.StatusBadRequest, "status must be one of: active, suspended, archived")
		return
	}

	if err := s.store.UpdateProcessStatus(r.Context(), processID, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "process not found")
			return
		}
		s.logger.Error("failed to update process status", "process_id", processID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("process status updated", "process_id", processID, "status", req.Status)
	s.writeJSON(w, http.StatusOK, ProcessStatusResponse{ID: processID, Status: req.Status})
}

// handleClientDocuments handles GET /api/clients/{id}/documents.
func (s *Server) handleClientDocuments(w http.ResponseWriter, r *http.Request) {
	clientID, ok := s.authorizeClientScope(w, r)
	if !ok {
		return
	}

	docs, err := s.store.ListDocumentsByClient(r.Context(), clientID)
	if err != nil {
		s.logger.Error("failed to list documents", "client_id", clientID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		response[i] = DocumentResponse{
			ID:          d.ID,
			ProcessID:   d.ProcessID,
			FileName:    d.FileName,
			ContentType: d.ContentType,
			SizeBytes:   d.SizeBytes,
			UploadedBy:  string(d.UploadedBy),
			CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}
