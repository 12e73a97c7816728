// ABOUTME: Login handlers for client and admin accounts
// ABOUTME: Verifies bcrypt passwords and issues role-scoped JWTs

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atrio-legal/lexgate/internal/auth"
	"github.com/atrio-legal/lexgate/internal/store"
)

// ClientLoginRequest is the JSON request body for POST /api/client/login.
type ClientLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLoginRequest is the JSON request body for POST /api/admin/login.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for successful logins.
type LoginResponse struct {
	Token       string `json:"token"`
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// handleClientLogin handles POST /api/client/login.
func (s *Server) handleClientLogin(w http.ResponseWriter, r *http.Request) {
	var req ClientLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	client, err := s.store.GetClientByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		// Same response as a wrong password so accounts can't be enumerated
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("client lookup failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := auth.CheckPassword(client.PasswordHash, req.Password); err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id := &auth.Identity{PrincipalID: client.ID, Role: auth.RoleClient}
	token, err := s.verifier.Generate(id)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("client logged in", "client_id", client.ID)
	s.writeJSON(w, http.StatusOK, LoginResponse{
		Token:       token,
		PrincipalID: client.ID,
		Role:        auth.RoleClient,
		DisplayName: client.Name,
	})
}

// handleAdminLogin handles POST /api/admin/login.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.store.GetAdminUserByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("admin lookup failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id := &auth.Identity{PrincipalID: user.ID, Role: auth.RoleAdmin}
	token, err := s.verifier.Generate(id)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("admin logged in", "admin_id", user.ID)
	s.writeJSON(w, http.StatusOK, LoginResponse{
		Token:       token,
		PrincipalID: user.ID,
		Role:        auth.RoleAdmin,
		DisplayName: user.DisplayName,
	})
}
