package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/auth"
	"github.com/NordCoder/Custodian/internal/services/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	tok, err := s.sessions.Issue(r.Context(), cookieValue(r, session.CookieName))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setCookie(w, session.CookieName, tok.Value, tok.ExpiresOn)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	access, refresh, err := s.accounts.Login(r.Context(), email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeTokens(w, access, refresh)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.setCookie(w, refreshCookie, "", time.Now())
	s.logFor(r).Info("auth.logout")
	w.WriteHeader(http.StatusOK)
}

// refresh answers 200 with an empty body when no refresh cookie is present, so anonymous
// page loads do not produce errors.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	raw := cookieValue(r, refreshCookie)
	if raw == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	access, refresh, err := s.accounts.Refresh(r.Context(), raw)
	if err != nil {
		s.setCookie(w, refreshCookie, "", time.Now())
		s.writeError(w, r, err)
		return
	}
	s.writeTokens(w, access, refresh)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.ChangePassword(r.Context(), IdentityFromCtx(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"result": "success"})
}

func (s *Server) writeTokens(w http.ResponseWriter, access, refresh auth.Credential) {
	s.setCookie(w, refreshCookie, refresh.Token, refresh.ExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access.Token, ExpiresAt: access.ExpiresAt})
}

// decode reads a JSON body into v and answers 422 when it cannot.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		s.logFor(r).Debug("bad request body", zap.Error(err))
		writeProblem(w, http.StatusUnprocessableEntity, "unprocessable: malformed JSON body")
		return false
	}
	return true
}
