package account

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Account struct {
	ID                int64
	Username          string
	Email             string
	PasswordHash      string
	CreatedAt         time.Time
	LastPasswordReset time.Time
	Enabled           bool
	Deleted           bool
	PhoneNumber       string
	BirthDate         *time.Time
	Description       string
	Roles             []string
}

func (a *Account) HasRole(role string) bool { return slices.Contains(a.Roles, role) }

// Identity is the authenticated caller, resolved from a validated access credential.
type Identity struct {
	AccountID int64
	Email     string
	Roles     []string
}

func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

// CanManage reports whether the caller may modify the account with the given id.
func (i *Identity) CanManage(accountID int64) bool {
	return i != nil && (i.AccountID == accountID || i.HasRole(RoleAdmin))
}

func ValidUsername(username string) bool { return usernamePattern.MatchString(username) }

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail is a shape check only: a non-empty local part, an '@' and a non-empty domain.
func ValidEmail(email string) bool {
	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

type Profile struct {
	PhoneNumber string
	BirthDate   *time.Time
	Description string
}

// PublicView is what anyone may see about an account.
type PublicView struct {
	ID          int64     `json:"id"`
	Username    string    `json:"public_username"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"creation"`
	Deleted     bool      `json:"deleted"`
}

// RedactedView is shown to the account owner. The password hash never leaves the service.
type RedactedView struct {
	ID                int64      `json:"id"`
	Username          string     `json:"public_username"`
	Email             string     `json:"email"`
	PhoneNumber       string     `json:"phone_number"`
	BirthDate         *time.Time `json:"birth_date"`
	Description       string     `json:"description"`
	CreatedAt         time.Time  `json:"creation"`
	Deleted           bool       `json:"deleted"`
	Enabled           bool       `json:"enabled"`
	LastPasswordReset time.Time  `json:"last_password_reset"`
	Roles             []string   `json:"authorities"`
}

func (a *Account) Public() PublicView {
	return PublicView{
		ID:          a.ID,
		Username:    a.Username,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		Deleted:     a.Deleted,
	}
}

func (a *Account) Redacted() RedactedView {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return RedactedView{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		PhoneNumber:       a.PhoneNumber,
		BirthDate:         a.BirthDate,
		Description:       a.Description,
		CreatedAt:         a.CreatedAt,
		Deleted:           a.Deleted,
		Enabled:           a.Enabled,
		LastPasswordReset: a.LastPasswordReset,
		Roles:             roles,
	}
}

// ViewFor returns the redacted view to the owner and the public view to anyone else.
func (a *Account) ViewFor(viewer *Identity) any {
	if viewer != nil && viewer.AccountID == a.ID {
		return a.Redacted()
	}
	return a.Public()
}
