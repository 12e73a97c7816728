// ABOUTME: HTTP server wiring for the lexgate API
// ABOUTME: Routes, middleware layering, and graceful shutdown

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/chat"
	"github.com/atrio-legal/lexgate/internal/process"
	"github.com/atrio-legal/lexgate/internal/store"
)

// Options configures the API server.
type Options struct {
	Addr          string
	Store         store.Store
	Manager       *chat.Manager
	Ingester      *process.Ingester
	Verifier      *auth.JWTVerifier
	WebhookSecret string
	Logger        *slog.Logger
}

// Server exposes the lexgate API over HTTP.
type Server struct {
	store         store.Store
	manager       *chat.Manager
	ingester      *process.Ingester
	verifier      *auth.JWTVerifier
	webhookSecret string
	logger        *slog.Logger

	httpServer *http.Server
}

// NewServer creates the API server. Pass a nil logger for the default.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:         opts.Store,
		manager:       opts.Manager,
		ingester:      opts.Ingester,
		verifier:      opts.Verifier,
		webhookSecret: opts.WebhookSecret,
		logger:        logger.With("component", "httpapi"),
	}
	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the route table with auth middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("POST /api/client/login", s.handleClientLogin)
	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /api/webhooks/process", s.handleProcessWebhook)
	mux.HandleFunc("POST /api/webhooks/document-upload", s.handleDocumentWebhook)

	// Authenticated endpoints
	authed := auth.HTTPAuthMiddleware(s.verifier)
	mux.Handle("GET /api/chat/history", authed(http.HandlerFunc(s.handleChatHistory)))
	mux.Handle("POST /api/chat/send", authed(http.HandlerFunc(s.handleChatSend)))
	mux.Handle("GET /api/chat/ws", authed(http.HandlerFunc(s.handleChatWS)))
	mux.Handle("GET /api/clients/{id}/processes", authed(http.HandlerFunc(s.handleClientProcesses)))
	mux.Handle("GET /api/clients/{id}/documents", authed(http.HandlerFunc(s.handleClientDocuments)))

	// Staff-only endpoints
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(auth.RequireAdminHTTP()(h))
	}
	mux.Handle("GET /api/conversations", admin(s.handleListConversations))
	mux.Handle("POST /api/clients/{id}/processes", admin(s.handleCreateProcess))
	mux.Handle("PATCH /api/processes/{id}/status", admin(s.handleUpdateProcessStatus))

	return mux
}

// ListenAndServe runs the HTTP server until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
