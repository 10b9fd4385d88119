package api

import (
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"github.com/NordCoder/Custodian/internal/domain"
)

type transferRequest struct {
	EmailOld string `json:"emailOld"`
	EmailNew string `json:"emailNew"`
}

type transferSide int

const (
	oldSide transferSide = iota
	newSide
)

func (s *Server) requestTransfer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.transfers.RequestTransfer(r.Context(), IdentityFromCtx(r.Context()), req.EmailOld, req.EmailNew); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// decide serves the four mailed links. A yes that cannot complete the transfer is refused
// with 403; a no on a transfer that is already over answers 204.
func (s *Server) decide(side transferSide, yes bool) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var err error
		if side == oldSide {
			err = s.transfers.ConfirmOrDeny(r.Context(), r.URL.Query().Get("tokenForOldEmail"), yes)
		} else {
			err = s.transfers.AcceptOrReject(r.Context(), r.URL.Query().Get("tokenForNewEmail"), yes)
		}
		switch {
		case err == nil:
			w.WriteHeader(http.StatusAccepted)
		case !yes && (errors.Is(err, domain.ErrProcessing) || errors.Is(err, domain.ErrAlreadyProcessed)):
			w.WriteHeader(http.StatusNoContent)
		default:
			s.writeError(w, r, err)
		}
	}
}
