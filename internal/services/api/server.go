// Package api exposes the account, auth and transfer operations over HTTP on a
// grpc-gateway runtime mux.
package api

import (
	"context"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/auth"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/session"
	"github.com/NordCoder/Custodian/internal/domain/transfer"
	"github.com/NordCoder/Custodian/internal/obs"
)

type Sessions interface {
	Issue(ctx context.Context, presented string) (*session.Token, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*account.Identity, error)
}

type Accounts interface {
	Authenticator
	Register(ctx context.Context, username, email string) (*account.Account, error)
	RequestPasswordReset(ctx context.Context, email string) error
	SetPassword(ctx context.Context, token, password string) error
	Login(ctx context.Context, email, password string) (access, refresh auth.Credential, err error)
	Refresh(ctx context.Context, refreshToken string) (access, refresh auth.Credential, err error)
	ChangePassword(ctx context.Context, who *account.Identity, oldPassword, newPassword string) error
	UpdateUsername(ctx context.Context, who *account.Identity, id int64, username string) (*account.Account, error)
	UpdateProfile(ctx context.Context, who *account.Identity, id int64, p account.Profile) (*account.Account, error)
	Delete(ctx context.Context, who *account.Identity, id int64) error
	Restore(ctx context.Context, who *account.Identity, id int64) error
	Get(ctx context.Context, viewer *account.Identity, id int64) (any, error)
	FindByUsername(ctx context.Context, viewer *account.Identity, username string) (any, error)
	FindByEmail(ctx context.Context, viewer *account.Identity, email string) (any, error)
	List(ctx context.Context) ([]account.PublicView, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type Transfers interface {
	RequestTransfer(ctx context.Context, who *account.Identity, emailOld, emailNew string) (*transfer.Transfer, error)
	ConfirmOrDeny(ctx context.Context, tokenForOldEmail string, confirm bool) error
	AcceptOrReject(ctx context.Context, tokenForNewEmail string, accept bool) error
}

type Opts struct {
	Logger        *zap.Logger
	SecureCookies bool
}

type Server struct {
	sessions  Sessions
	accounts  Accounts
	auth      Authenticator
	transfers Transfers

	secureCookies bool
	log           *zap.Logger
}

func NewServer(sessions Sessions, accounts Accounts, transfers Transfers, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		sessions:      sessions,
		accounts:      accounts,
		auth:          accounts,
		transfers:     transfers,
		secureCookies: o.SecureCookies,
		log:           log.With(zap.String("component", "api")),
	}
}

func (s *Server) logFor(r *http.Request) *zap.Logger { return obs.WithTrace(r.Context(), s.log) }

type route struct {
	method, path string
	h            runtime.HandlerFunc
}

// Handler builds the gateway mux. Unmatched routes get the same JSON problem body as
// domain errors.
func (s *Server) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux(
		runtime.WithRoutingErrorHandler(func(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, _ *http.Request, status int) {
			writeProblem(w, status, http.StatusText(status))
		}),
	)

	routes := []route{
		{http.MethodGet, "/account/{id}", s.optionalAuth(s.getAccount)},
		{http.MethodPut, "/account/{id}", s.requireAuth(s.updateProfile)},
		{http.MethodPut, "/account/{id}/username", s.requireAuth(s.updateUsername)},
		{http.MethodPut, "/account/{id}/delete", s.requireAuth(s.deleteAccount)},
		{http.MethodPut, "/account/{id}/restore", s.requireAuth(s.restoreAccount)},

		{http.MethodGet, "/auth/session", s.session},
		{http.MethodPost, "/auth/login", s.login},
		{http.MethodGet, "/auth/logout", s.logout},
		{http.MethodPost, "/auth/refresh", s.refresh},
		{http.MethodPost, "/auth/change-password", s.requireAuth(s.changePassword)},

		{http.MethodPost, "/account", s.register},
		{http.MethodGet, "/account", s.optionalAuth(s.findAccounts)},
		{http.MethodPost, "/account/request-password-reset", s.requestPasswordReset},
		{http.MethodPost, "/account/set-password", s.setPassword},
		{http.MethodPost, "/account/reset-password", s.setPassword},
		{http.MethodGet, "/account/does-username-exist/{username}", s.usernameExists},

		{http.MethodPost, "/account/transfer", s.requireAuth(s.requestTransfer)},
		{http.MethodPut, "/account/transfer/confirm", s.decide(oldSide, true)},
		{http.MethodPut, "/account/transfer/deny", s.decide(oldSide, false)},
		{http.MethodPut, "/account/transfer/accept", s.decide(newSide, true)},
		{http.MethodPut, "/account/transfer/reject", s.decide(newSide, false)},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, err
		}
	}
	return mux, nil
}
