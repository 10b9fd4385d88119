package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/obs/retry"
)

type sent struct{ to, subject, body string }

type fakeSender struct {
	out   []sent
	fails int
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("421 service not available")
	}
	f.out = append(f.out, sent{to, subject, body})
	return nil
}

var testLinks = Links{
	Verification:    "https://app.example.com/set-password?token=",
	PasswordReset:   "https://app.example.com/reset-password?token=",
	TransferConfirm: "https://api.example.com/account/transfer/confirm?tokenForOldEmail=",
	TransferDeny:    "https://api.example.com/account/transfer/deny?tokenForOldEmail=",
	TransferAccept:  "https://api.example.com/account/transfer/accept?tokenForNewEmail=",
	TransferReject:  "https://api.example.com/account/transfer/reject?tokenForNewEmail=",
}

func newNotifier(t *testing.T, s *fakeSender, attempts int) *Notifier {
	t.Helper()
	n, err := NewNotifier(s, testLinks, retry.Policy{Name: "test", Attempts: attempts, Backoff: retry.ExpoJitter{}}, nil)
	require.NoError(t, err)
	return n
}

func TestSendVerification(t *testing.T) {
	s := &fakeSender{}
	n := newNotifier(t, s, 1)

	require.NoError(t, n.SendVerification(context.Background(), "alice@example.com", "tok-1"))
	require.Len(t, s.out, 1)
	assert.Equal(t, "alice@example.com", s.out[0].to)
	assert.Equal(t, "Verify your email address", s.out[0].subject)
	assert.Contains(t, s.out[0].body, "https://app.example.com/set-password?token=tok-1")
	assert.NotContains(t, s.out[0].body, "%%")
}

func TestSendTransferMails_EscapesAddresses(t *testing.T) {
	s := &fakeSender{}
	n := newNotifier(t, s, 1)

	require.NoError(t, n.SendTransferAccept(context.Background(), "old@example.com", `"><script>x</script>@evil.example`, "t"))
	require.Len(t, s.out, 1)
	assert.NotContains(t, s.out[0].body, "<script>")
	assert.Contains(t, s.out[0].body, "&#34;&gt;&lt;script&gt;x&lt;/script&gt;@evil.example")
	assert.Equal(t, `"><script>x</script>@evil.example`, s.out[0].to)
}

func TestSendTransferMails(t *testing.T) {
	s := &fakeSender{}
	n := newNotifier(t, s, 1)
	ctx := context.Background()

	require.NoError(t, n.SendTransferConfirm(ctx, "old@example.com", "new@example.com", "t-old"))
	require.NoError(t, n.SendTransferAccept(ctx, "old@example.com", "new@example.com", "t-new"))
	require.Len(t, s.out, 2)

	confirm, accept := s.out[0], s.out[1]
	assert.Equal(t, "old@example.com", confirm.to)
	assert.Contains(t, confirm.body, "confirm?tokenForOldEmail=t-old")
	assert.Contains(t, confirm.body, "deny?tokenForOldEmail=t-old")
	assert.Contains(t, confirm.body, "new@example.com")

	assert.Equal(t, "new@example.com", accept.to)
	assert.Contains(t, accept.body, "accept?tokenForNewEmail=t-new")
	assert.Contains(t, accept.body, "reject?tokenForNewEmail=t-new")
	for _, m := range s.out {
		assert.False(t, strings.Contains(m.body, "%%"), m.subject)
	}
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	s := &fakeSender{fails: 2}
	n := newNotifier(t, s, 3)

	require.NoError(t, n.SendPasswordReset(context.Background(), "bob@example.com", "r"))
	require.Len(t, s.out, 1)
}

func TestSend_FailureIsDependency(t *testing.T) {
	s := &fakeSender{fails: 5}
	n := newNotifier(t, s, 2)

	err := n.SendPasswordReset(context.Background(), "bob@example.com", "r")
	require.ErrorIs(t, err, domain.ErrDependency)
	assert.Contains(t, err.Error(), "password reset")
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "a@example.com", "Hi", "<p>x</p>"))
	assert.True(t, strings.HasPrefix(msg, "From: noreply@example.com\r\n"))
	assert.Contains(t, msg, "Content-Type: text/html; charset=utf-8\r\n\r\n<p>x</p>")
	assert.Equal(t, "smtp.example.com", host("smtp.example.com:465"))
}
