// Package account implements the account lifecycle: registration, password
// setup and reset, login, profile management and soft deletion.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/auth"
	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/outbox"
	"github.com/NordCoder/Custodian/internal/domain/verification"
	"github.com/NordCoder/Custodian/internal/obs"
)

const minPasswordLen = 8

type VerificationTokens interface {
	Issue(ctx context.Context, email string) (*verification.Token, error)
	IssueOrReuse(ctx context.Context, email string) (*verification.Token, error)
	Consume(ctx context.Context, token string, act func(ctx context.Context, a *account.Account) error) (*account.Account, error)
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

type Deps struct {
	Accounts     account.Repo
	Authorities  account.AuthorityRepo
	Tx           domain.Transactor
	Verification VerificationTokens
	Issuer       *auth.Issuer
	Hasher       Hasher
	Events       outbox.Recorder
	Mail         Mailer
	Logger       *zap.Logger
}

type Service struct {
	accounts    account.Repo
	authorities account.AuthorityRepo
	tx          domain.Transactor
	tokens      VerificationTokens
	issuer      *auth.Issuer
	hasher      Hasher
	events      outbox.Recorder
	mail        Mailer
	log         *zap.Logger

	now func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		accounts:    d.Accounts,
		authorities: d.Authorities,
		tx:          d.Tx,
		tokens:      d.Verification,
		issuer:      d.Issuer,
		hasher:      d.Hasher,
		events:      d.Events,
		mail:        d.Mail,
		log:         log.With(zap.String("component", "account.service")),
		now:         time.Now,
	}
}

// Register creates a disabled account with an unusable random password and mails a
// verification link. The account is kept if the mail cannot be sent.
func (s *Service) Register(ctx context.Context, username, email string) (*account.Account, error) {
	email = account.NormalizeEmail(email)
	if !account.ValidUsername(username) {
		return nil, fmt.Errorf("%w: username may contain only letters, digits and underscores", domain.ErrUnprocessable)
	}
	if !account.ValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrUnprocessable)
	}

	hash, err := s.hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInternal, err.Error())
	}

	var (
		a   *account.Account
		tok *verification.Token
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, username, email); err != nil {
			return err
		}
		now := s.now()
		a = &account.Account{
			Username:          username,
			Email:             email,
			PasswordHash:      hash,
			CreatedAt:         now,
			LastPasswordReset: now,
		}
		if err := s.accounts.Create(ctx, a); err != nil {
			return err
		}
		if tok, err = s.tokens.Issue(ctx, email); err != nil {
			return err
		}
		return s.events.Record(ctx, outbox.KindAccountRegistered, outbox.AccountEvent{
			AccountID: a.ID, Username: a.Username, Email: a.Email, At: now,
		})
	})
	if err != nil {
		obs.WithTrace(ctx, s.log).Warn("account.register failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	obs.WithTrace(ctx, s.log).Info("account.register", zap.Int64("account_id", a.ID), zap.String("username", username))

	if err := s.mail.SendVerification(ctx, email, tok.Value); err != nil {
		return a, err
	}
	return a, nil
}

func (s *Service) ensureFree(ctx context.Context, username, email string) error {
	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return fmt.Errorf("%w: username %s is taken", domain.ErrConflict, username)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: email %s is already registered", domain.ErrConflict, email)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// RequestPasswordReset mails a reset link, reusing a live token when there is one.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = account.NormalizeEmail(email)
	if _, err := s.accounts.GetByEmail(ctx, email); err != nil {
		return err
	}
	tok, err := s.tokens.IssueOrReuse(ctx, email)
	if err != nil {
		return err
	}
	obs.WithTrace(ctx, s.log).Info("account.request_password_reset", obs.Email("email", email))
	return s.mail.SendPasswordReset(ctx, email, tok.Value)
}

// SetPassword consumes a verification token, sets the password and enables the account.
func (s *Service) SetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrUnprocessable, minPasswordLen)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInternal, err.Error())
	}

	a, err := s.tokens.Consume(ctx, token, func(ctx context.Context, a *account.Account) error {
		now := s.now()
		if err := s.accounts.UpdatePassword(ctx, a.ID, hash, now, true); err != nil {
			return err
		}
		if err := s.authorities.Ensure(ctx, a.ID, account.RoleUser); err != nil {
			return err
		}
		return s.events.Record(ctx, outbox.KindPasswordSet, outbox.AccountEvent{
			AccountID: a.ID, Username: a.Username, Email: a.Email, At: now,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) {
			return fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)
		}
		return err
	}
	obs.WithTrace(ctx, s.log).Info("account.set_password", zap.Int64("account_id", a.ID))
	return nil
}

// Login checks the password and issues an access credential carrying an account snapshot
// plus a refresh credential.
func (s *Service) Login(ctx context.Context, email, password string) (access, refresh auth.Credential, err error) {
	email = account.NormalizeEmail(email)
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return auth.Credential{}, auth.Credential{}, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
		}
		return auth.Credential{}, auth.Credential{}, err
	}
	if !s.hasher.Verify(a.PasswordHash, password) {
		return auth.Credential{}, auth.Credential{}, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if !a.Enabled {
		return auth.Credential{}, auth.Credential{}, fmt.Errorf("%w: account is not enabled", domain.ErrUnauthorized)
	}

	if access, err = s.issuer.IssueAccess(a.Email, claimsOf(a)); err != nil {
		return auth.Credential{}, auth.Credential{}, fmt.Errorf("%w: %s", domain.ErrInternal, err.Error())
	}
	if refresh, err = s.issuer.IssueRefresh(a.Email); err != nil {
		return auth.Credential{}, auth.Credential{}, fmt.Errorf("%w: %s", domain.ErrInternal, err.Error())
	}
	obs.WithTrace(ctx, s.log).Info("auth.login", zap.Int64("account_id", a.ID))
	return access, refresh, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (access, refresh auth.Credential, err error) {
	return s.issuer.Refresh(ctx, refreshToken, s.Lookup)
}

// Authenticate validates a bearer access credential and returns the caller's identity as of now.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*account.Identity, error) {
	_, sub, err := s.issuer.Validate(ctx, accessToken, auth.UseAccess, s.Lookup)
	if err != nil {
		return nil, err
	}
	return &account.Identity{
		AccountID: sub.Claims.ID,
		Email:     sub.Claims.Email,
		Roles:     sub.Claims.Authorities,
	}, nil
}

// Lookup resolves a credential subject (the account email) for the issuer.
func (s *Service) Lookup(ctx context.Context, subject string) (*auth.Subject, error) {
	a, err := s.accounts.GetByEmail(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &auth.Subject{LastPasswordReset: a.LastPasswordReset, Claims: claimsOf(a)}, nil
}

// ChangePassword replaces the password after checking the current one. Every credential
// issued before the change stops validating.
func (s *Service) ChangePassword(ctx context.Context, who *account.Identity, oldPassword, newPassword string) error {
	if who == nil {
		return fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrUnprocessable, minPasswordLen)
	}
	a, err := s.accounts.GetByID(ctx, who.AccountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(a.PasswordHash, oldPassword) {
		return fmt.Errorf("%w: current password does not match", domain.ErrUnauthorized)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInternal, err.Error())
	}
	if err := s.accounts.UpdatePassword(ctx, a.ID, hash, s.now(), false); err != nil {
		return err
	}
	obs.WithTrace(ctx, s.log).Info("auth.change_password", zap.Int64("account_id", a.ID))
	return nil
}

func claimsOf(a *account.Account) *auth.AccountClaims {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return &auth.AccountClaims{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Creation:    a.CreatedAt,
		Enabled:     a.Enabled,
		Deleted:     a.Deleted,
		Authorities: roles,
	}
}

