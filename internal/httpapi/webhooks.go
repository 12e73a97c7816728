// ABOUTME: Inbound webhook endpoints for external providers
// ABOUTME: Shared-secret header check, then consultation or document ingest

package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atrio-legal/lexgate/internal/process"
	"github.com/atrio-legal/lexgate/internal/store"
)

// webhookSecretHeader carries the shared secret on inbound webhook calls.
const webhookSecretHeader = "X-Webhook-Secret"

// maxWebhookBody caps inbound webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// ProcessWebhookResponse is the JSON response for POST /api/webhooks/process.
type ProcessWebhookResponse struct {
	Success       bool   `json:"success"`
	ProcessNumber string `json:"process_number"`
}

// DocumentWebhookRequest is the JSON request body for
// POST /api/webhooks/document-upload.
type DocumentWebhookRequest struct {
	Record struct {
		ClientID        string `json:"client_id"`
		ProcessID       string `json:"process_id,omitempty"`
		FileName        string `json:"file_name"`
		FilePath        string `json:"file_path"`
		ContentType     string `json:"content_type,omitempty"`
		FileSize        int64  `json:"file_size"`
		UploadedByAdmin bool   `json:"uploaded_by_admin"`
	} `json:"record"`
}

// checkWebhookSecret validates the shared secret. When no secret is
// configured the endpoints are disabled entirely.
func (s *Server) checkWebhookSecret(w http.ResponseWriter, r *http.Request) bool {
	if s.webhookSecret == "" {
		s.sendJSONError(w, http.StatusNotFound, "webhooks are not enabled")
		return false
	}

	provided := r.Header.Get(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) != 1 {
		s.logger.Warn("webhook rejected: bad secret", "path", r.URL.Path)
		s.sendJSONError(w, http.StatusUnauthorized, "invalid webhook secret")
		return false
	}
	return true
}

// handleProcessWebhook handles POST /api/webhooks/process.
// The provider pushes consultation results for a tracked legal process.
func (s *Server) handleProcessWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.checkWebhookSecret(w, r) {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	number, err := s.ingester.Ingest(r.Context(), payload)
	if err != nil {
		if errors.Is(err, process.ErrNoProcessNumber) {
			s.sendJSONError(w, http.StatusBadRequest, "process number is required")
			return
		}
		s.logger.Error("consultation ingest failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, ProcessWebhookResponse{
		Success:       true,
		ProcessNumber: number,
	})
}

// handleDocumentWebhook handles POST /api/webhooks/document-upload.
// Blob storage notifies on upload; the metadata is recorded against the client.
func (s *Server) handleDocumentWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.checkWebhookSecret(w, r) {
		return
	}

	var req DocumentWebhookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec := req.Record
	if rec.ClientID == "" || rec.FileName == "" || rec.FilePath == "" {
		s.sendJSONError(w, http.StatusBadRequest, "client_id, file_name, and file_path are required")
		return
	}

	if _, err := s.store.GetClient(r.Context(), rec.ClientID); errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusBadRequest, "unknown client")
		return
	} else if err != nil {
		s.logger.Error("client lookup failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	uploadedBy := store.RoleClient
	if rec.UploadedByAdmin {
		uploadedBy = store.RoleAdmin
	}

	doc := &store.Document{
		ID:          uuid.New().String(),
		ClientID:    rec.ClientID,
		ProcessID:   rec.ProcessID,
		FileName:    rec.FileName,
		StoragePath: rec.FilePath,
		ContentType: rec.ContentType,
		SizeBytes:   rec.FileSize,
		UploadedBy:  uploadedBy,
		CreatedAt:   time.Now(),
	}
	if err := s.store.SaveDocument(r.Context(), doc); err != nil {
		s.logger.Error("document save failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("document recorded",
		"document_id", doc.ID,
		"client_id", doc.ClientID,
		"file_name", doc.FileName)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "document_id": doc.ID})
}
