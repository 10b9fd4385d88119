package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CredentialsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_credentials_issued_total",
		Help: "Signed credentials issued, by use (access, refresh).",
	}, []string{"use"})

	CredentialRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_credential_rejections_total",
		Help: "Credentials that failed validation, by use.",
	}, []string{"use"})

	SessionTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_session_tokens_total",
		Help: "Session token requests, by outcome (minted, rotated, refreshed, failed).",
	}, []string{"outcome"})

	VerificationTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_verification_tokens_total",
		Help: "Verification token operations, by outcome.",
	}, []string{"outcome"})

	TransferDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_transfer_decisions_total",
		Help: "Recorded transfer decisions, by side and decision.",
	}, []string{"side", "decision"})

	TransferCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_transfer_completions_total",
		Help: "Transfers that reached a terminal state, by result (swapped, void).",
	}, []string{"result"})

	MailFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custodian_mail_failures_total",
		Help: "Mails that could not be delivered after retries, by template.",
	}, []string{"template"})
)
