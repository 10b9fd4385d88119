package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/obs"
)

type TokenUse string

const (
	UseAccess  TokenUse = "access"
	UseRefresh TokenUse = "refresh"
)

// AccountClaims is a point-in-time snapshot of the account taken at issuance.
type AccountClaims struct {
	ID          int64     `json:"http://www.example.com/account-id"`
	Username    string    `json:"http://www.example.com/account-username"`
	Email       string    `json:"http://www.example.com/account-email"`
	Creation    time.Time `json:"http://www.example.com/account-creation"`
	Enabled     bool      `json:"http://www.example.com/account-enabled"`
	Deleted     bool      `json:"http://www.example.com/account-deleted"`
	Authorities []string  `json:"http://www.example.com/account-authorities"`
}

type Claims struct {
	jwt.RegisteredClaims
	Use TokenUse `json:"token_use"`
	// IssuedAtMs is iat in unix milliseconds. The registered iat only has second precision.
	IssuedAtMs int64 `json:"iat_ms"`
	*AccountClaims
}

type Credential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Subject is what a credential's subject resolves to at validation time.
type Subject struct {
	LastPasswordReset time.Time
	Claims            *AccountClaims
}

type Lookup func(ctx context.Context, subject string) (*Subject, error)

type Config struct {
	Issuer     string
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

var ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")

type Issuer struct {
	cfg    Config
	parser *jwt.Parser
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrWeakSecret
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	)
	return &Issuer{cfg: cfg, parser: parser}, nil
}

func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

func (i *Issuer) IssueAccess(subject string, claims *AccountClaims) (Credential, error) {
	return i.sign(subject, UseAccess, i.cfg.AccessTTL, claims)
}

func (i *Issuer) IssueRefresh(subject string) (Credential, error) {
	return i.sign(subject, UseRefresh, i.cfg.RefreshTTL, nil)
}

func (i *Issuer) sign(subject string, use TokenUse, ttl time.Duration, ac *AccountClaims) (Credential, error) {
	now := i.cfg.Now()
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
		Use:           use,
		IssuedAtMs:    now.UnixMilli(),
		AccountClaims: ac,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign %s token: %w", use, err)
	}
	obs.CredentialsIssued.WithLabelValues(string(use)).Inc()
	return Credential{Token: signed, IssuedAt: time.UnixMilli(claims.IssuedAtMs).UTC(), ExpiresAt: exp.Time}, nil
}

// Validate checks signature, issuer, expiry and token use, resolves the subject and rejects
// credentials issued before the subject's last password reset.
func (i *Issuer) Validate(ctx context.Context, raw string, use TokenUse, lookup Lookup) (*Claims, *Subject, error) {
	c, sub, err := i.validate(ctx, raw, use, lookup)
	if err != nil {
		obs.CredentialRejections.WithLabelValues(string(use)).Inc()
	}
	return c, sub, err
}

func (i *Issuer) validate(ctx context.Context, raw string, use TokenUse, lookup Lookup) (*Claims, *Subject, error) {
	if raw == "" {
		return nil, nil, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	var c Claims
	tok, err := i.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnauthorized, err.Error())
	}
	if !tok.Valid || c.Subject == "" || c.IssuedAt == nil || c.IssuedAtMs <= 0 {
		return nil, nil, fmt.Errorf("%w: malformed token", domain.ErrUnauthorized)
	}
	if c.Use != use {
		return nil, nil, fmt.Errorf("%w: %s token presented where %s token expected", domain.ErrUnauthorized, c.Use, use)
	}

	sub, err := lookup(ctx, c.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: unknown subject", domain.ErrUnauthorized)
		}
		return nil, nil, fmt.Errorf("%w: subject lookup: %s", domain.ErrDependency, err.Error())
	}
	if c.IssuedAtMs < sub.LastPasswordReset.UnixMilli() {
		return nil, nil, fmt.Errorf("%w: token issued before last password reset", domain.ErrUnauthorized)
	}
	return &c, sub, nil
}

// Refresh validates a refresh credential and issues a new access credential with a fresh claim
// snapshot, plus a new refresh credential.
func (i *Issuer) Refresh(ctx context.Context, refreshRaw string, lookup Lookup) (access, refresh Credential, err error) {
	c, sub, err := i.Validate(ctx, refreshRaw, UseRefresh, lookup)
	if err != nil {
		return Credential{}, Credential{}, err
	}
	if access, err = i.IssueAccess(c.Subject, sub.Claims); err != nil {
		return Credential{}, Credential{}, err
	}
	if refresh, err = i.IssueRefresh(c.Subject); err != nil {
		return Credential{}, Credential{}, err
	}
	return access, refresh, nil
}
