package mail

import (
	"context"
	"embed"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/notification"
	"github.com/NordCoder/Custodian/internal/obs"
	"github.com/NordCoder/Custodian/internal/obs/retry"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tplVerification    = "verification_mail.html"
	tplPasswordReset   = "password_reset_mail.html"
	tplTransferConfirm = "account_transfer_confirm_mail.html"
	tplTransferAccept  = "account_transfer_accept_mail.html"
)

// Links are URL prefixes; the token is appended verbatim.
type Links struct {
	Verification    string `mapstructure:"verification"`
	PasswordReset   string `mapstructure:"password_reset"`
	TransferConfirm string `mapstructure:"transfer_confirm"`
	TransferDeny    string `mapstructure:"transfer_deny"`
	TransferAccept  string `mapstructure:"transfer_accept"`
	TransferReject  string `mapstructure:"transfer_reject"`
}

// Notifier renders the account mails and hands them to an EmailSender with retries.
type Notifier struct {
	sender    notification.EmailSender
	links     Links
	policy    retry.Policy
	templates map[string]string
	log       *zap.Logger
}

func NewNotifier(sender notification.EmailSender, links Links, policy retry.Policy, log *zap.Logger) (*Notifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tpls := make(map[string]string, 4)
	for _, name := range []string{tplVerification, tplPasswordReset, tplTransferConfirm, tplTransferAccept} {
		b, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("load mail template %s: %w", name, err)
		}
		tpls[name] = string(b)
	}
	return &Notifier{
		sender:    sender,
		links:     links,
		policy:    policy,
		templates: tpls,
		log:       log.With(zap.String("component", "mail.notifier")),
	}, nil
}

func (n *Notifier) SendVerification(ctx context.Context, to, token string) error {
	body := n.render(tplVerification, "%%VERIFICATION_LINK%%", n.links.Verification+token)
	return n.send(ctx, tplVerification, to, "Verify your email address", body, "verification")
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, token string) error {
	body := n.render(tplPasswordReset, "%%PASSWORD_RESET_LINK%%", n.links.PasswordReset+token)
	return n.send(ctx, tplPasswordReset, to, "Reset your password", body, "password reset")
}

// SendTransferConfirm goes to the current address with the confirm and deny links.
func (n *Notifier) SendTransferConfirm(ctx context.Context, emailOld, emailNew, token string) error {
	body := n.render(tplTransferConfirm,
		"%%OLD_EMAIL%%", html.EscapeString(emailOld),
		"%%NEW_EMAIL%%", html.EscapeString(emailNew),
		"%%TRANSFER_CONFIRM_LINK%%", n.links.TransferConfirm+token,
		"%%TRANSFER_DENY_LINK%%", n.links.TransferDeny+token,
	)
	return n.send(ctx, tplTransferConfirm, emailOld, "Confirm your account transfer", body, "account transfer confirmation")
}

// SendTransferAccept goes to the new address with the accept and reject links.
func (n *Notifier) SendTransferAccept(ctx context.Context, emailOld, emailNew, token string) error {
	body := n.render(tplTransferAccept,
		"%%OLD_EMAIL%%", html.EscapeString(emailOld),
		"%%NEW_EMAIL%%", html.EscapeString(emailNew),
		"%%TRANSFER_ACCEPT_LINK%%", n.links.TransferAccept+token,
		"%%TRANSFER_REJECT_LINK%%", n.links.TransferReject+token,
	)
	return n.send(ctx, tplTransferAccept, emailNew, "Accept your account transfer", body, "account transfer acceptance")
}

func (n *Notifier) render(name string, oldnew ...string) string {
	return strings.NewReplacer(oldnew...).Replace(n.templates[name])
}

func (n *Notifier) send(ctx context.Context, tpl, to, subject, body, what string) error {
	err := retry.Do(ctx, func() error { return n.sender.Send(ctx, to, subject, body) }, n.policy)
	if err != nil {
		obs.MailFailures.WithLabelValues(tpl).Inc()
		obs.WithTrace(ctx, n.log).Error("mail.send failed", zap.String("template", tpl), obs.Email("to", to), zap.Error(err))
		return fmt.Errorf("%w: could not send %s email", domain.ErrDependency, what)
	}
	return nil
}
