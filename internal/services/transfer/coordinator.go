// Package transfer runs the two-sided account email transfer. The current
// address confirms or denies, the new address accepts or rejects, and the
// email is swapped once both have said yes.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/outbox"
	domaintransfer "github.com/NordCoder/Custodian/internal/domain/transfer"
	"github.com/NordCoder/Custodian/internal/obs"
)

type Mailer interface {
	SendTransferConfirm(ctx context.Context, emailOld, emailNew, token string) error
	SendTransferAccept(ctx context.Context, emailOld, emailNew, token string) error
}

type Coordinator struct {
	transfers domaintransfer.Repo
	accounts  account.Repo
	tx        domain.Transactor
	events    outbox.Recorder
	mail      Mailer
	log       *zap.Logger

	now      func() time.Time
	newValue func() string
}

func NewCoordinator(
	transfers domaintransfer.Repo,
	accounts account.Repo,
	tx domain.Transactor,
	events outbox.Recorder,
	mail Mailer,
	log *zap.Logger,
) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		transfers: transfers,
		accounts:  accounts,
		tx:        tx,
		events:    events,
		mail:      mail,
		log:       log.With(zap.String("component", "transfer.coordinator")),
		now:       time.Now,
		newValue:  uuid.NewString,
	}
}

// RequestTransfer records a pending transfer and mails both addresses. The record is kept even
// when a mail cannot be sent; the caller then gets a dependency error alongside the record.
func (c *Coordinator) RequestTransfer(ctx context.Context, who *account.Identity, emailOld, emailNew string) (_ *domaintransfer.Transfer, err error) {
	ctx, span := obs.StartSpan(ctx, "transfer.request")
	defer func() { obs.EndSpan(span, err) }()

	emailOld = account.NormalizeEmail(emailOld)
	emailNew = account.NormalizeEmail(emailNew)
	if who == nil || account.NormalizeEmail(who.Email) != emailOld {
		return nil, fmt.Errorf("%w: only the owner of %s can transfer it", domain.ErrForbidden, emailOld)
	}
	if !account.ValidEmail(emailNew) {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrUnprocessable)
	}
	if emailNew == emailOld {
		return nil, fmt.Errorf("%w: new email must differ from the current one", domain.ErrUnprocessable)
	}

	t := &domaintransfer.Transfer{
		RequestedOn: c.now(),
		EmailOld:    emailOld,
		EmailNew:    emailNew,
		TokenOld:    c.newValue(),
		TokenNew:    c.newValue(),
	}
	err = c.tx.WithTx(ctx, func(ctx context.Context) error {
		_, err := c.accounts.GetByEmail(ctx, emailNew)
		switch {
		case err == nil:
			return fmt.Errorf("%w: an account with email %s already exists", domain.ErrConflict, emailNew)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return c.transfers.Create(ctx, t)
	})
	if err != nil {
		obs.WithTrace(ctx, c.log).Warn("transfer.request rejected", obs.Email("email_old", emailOld), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("transfer.id", t.ID))
	obs.WithTrace(ctx, c.log).Info("transfer.request", zap.Int64("transfer_id", t.ID), obs.Email("email_old", emailOld))

	if err := c.mail.SendTransferConfirm(ctx, emailOld, emailNew, t.TokenOld); err != nil {
		return t, err
	}
	if err := c.mail.SendTransferAccept(ctx, emailOld, emailNew, t.TokenNew); err != nil {
		return t, err
	}
	return t, nil
}

// ConfirmOrDeny records the current address owner's decision.
func (c *Coordinator) ConfirmOrDeny(ctx context.Context, tokenForOldEmail string, confirm bool) error {
	return c.decide(ctx, domaintransfer.OldEmail, tokenForOldEmail, domaintransfer.DecisionOf(confirm))
}

// AcceptOrReject records the new address owner's decision.
func (c *Coordinator) AcceptOrReject(ctx context.Context, tokenForNewEmail string, accept bool) error {
	return c.decide(ctx, domaintransfer.NewEmail, tokenForNewEmail, domaintransfer.DecisionOf(accept))
}

// decide stores one side's decision and evaluates completion on the row as written. Decide only
// writes an unset side, so of two racing deciders exactly one observes both sides set.
// A transfer that ends with a no keeps its decisions and reports domain.ErrProcessing.
func (c *Coordinator) decide(ctx context.Context, side domaintransfer.Side, token string, d domaintransfer.Decision) (err error) {
	ctx, span := obs.StartSpan(ctx, "transfer."+side.String(), trace.WithAttributes(
		attribute.String("transfer.decision", d.String()),
	))
	defer func() { obs.EndSpan(span, err) }()

	if token == "" {
		return fmt.Errorf("%w: missing transfer token", domain.ErrNotFound)
	}

	var (
		rec     *domaintransfer.Transfer
		outcome domaintransfer.Outcome
	)
	err = c.tx.WithTx(ctx, func(ctx context.Context) error {
		now := c.now()
		t, err := c.transfers.Decide(ctx, side, token, d, now)
		if err != nil {
			return err
		}
		rec, outcome = t, t.Outcome()
		if outcome != domaintransfer.Approved {
			return nil
		}

		a, err := c.accounts.UpdateEmail(ctx, t.EmailOld, t.EmailNew)
		if err != nil {
			return fmt.Errorf("swap account email: %w", err)
		}
		return c.events.Record(ctx, outbox.KindEmailTransferred, outbox.AccountEvent{
			AccountID: a.ID,
			Username:  a.Username,
			Email:     a.Email,
			OldEmail:  t.EmailOld,
			At:        now,
		})
	})
	log := obs.WithTrace(ctx, c.log)
	if err != nil {
		log.Warn("transfer."+side.String()+" failed", zap.Error(err))
		return err
	}

	obs.TransferDecisions.WithLabelValues(side.String(), d.String()).Inc()
	span.SetAttributes(attribute.Int64("transfer.id", rec.ID))
	log.Info("transfer."+side.String(), zap.Int64("transfer_id", rec.ID), zap.Stringer("decision", d))

	switch outcome {
	case domaintransfer.Approved:
		obs.TransferCompletions.WithLabelValues("swapped").Inc()
		log.Info("transfer.completed", zap.Int64("transfer_id", rec.ID))
	case domaintransfer.Void:
		obs.TransferCompletions.WithLabelValues("void").Inc()
		return fmt.Errorf("%w: account transfer was not approved by both parties", domain.ErrProcessing)
	}
	return nil
}
