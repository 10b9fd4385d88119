package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type profileRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	BirthDate   string `json:"birthDate"`
	Description string `json:"description"`
}

func (p profileRequest) profile() (account.Profile, error) {
	out := account.Profile{PhoneNumber: p.PhoneNumber, Description: p.Description}
	if p.BirthDate != "" {
		d, err := time.Parse(time.DateOnly, p.BirthDate)
		if err != nil {
			return out, fmt.Errorf("%w: birthDate must be YYYY-MM-DD", domain.ErrUnprocessable)
		}
		out.BirthDate = &d
	}
	return out, nil
}

func pathID(params map[string]string) (int64, error) {
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid account id %q", domain.ErrNotFound, params["id"])
	}
	return id, nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.accounts.Register(r.Context(), req.Username, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.Public())
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) setPassword(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req passwordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.accounts.SetPassword(r.Context(), req.Token, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, true)
}

func (s *Server) findAccounts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	viewer := IdentityFromCtx(r.Context())
	var (
		out any
		err error
	)
	switch {
	case q.Has("username"):
		out, err = s.accounts.FindByUsername(r.Context(), viewer, q.Get("username"))
	case q.Has("email"):
		out, err = s.accounts.FindByEmail(r.Context(), viewer, q.Get("email"))
	default:
		out, err = s.accounts.List(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := pathID(params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.accounts.Get(r.Context(), IdentityFromCtx(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) usernameExists(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ok, err := s.accounts.UsernameExists(r.Context(), params["username"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := pathID(params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req profileRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := req.profile()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	who := IdentityFromCtx(r.Context())
	a, err := s.accounts.UpdateProfile(r.Context(), who, id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.ViewFor(who))
}

func (s *Server) updateUsername(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := pathID(params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req usernameRequest
	if !s.decode(w, r, &req) {
		return
	}
	who := IdentityFromCtx(r.Context())
	a, err := s.accounts.UpdateUsername(r.Context(), who, id, req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.ViewFor(who))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.softDelete(w, r, params, true)
}

func (s *Server) restoreAccount(w http.ResponseWriter, r *http.Request, params map[string]string) {
	s.softDelete(w, r, params, false)
}

func (s *Server) softDelete(w http.ResponseWriter, r *http.Request, params map[string]string, deleted bool) {
	id, err := pathID(params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	who := IdentityFromCtx(r.Context())
	if deleted {
		err = s.accounts.Delete(r.Context(), who, id)
	} else {
		err = s.accounts.Restore(r.Context(), who, id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, true)
}
