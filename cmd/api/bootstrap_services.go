package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/auth"
	config "github.com/NordCoder/Custodian/internal/config/api"
	"github.com/NordCoder/Custodian/internal/domain/notification"
	"github.com/NordCoder/Custodian/internal/obs/retry"
	outboxsvc "github.com/NordCoder/Custodian/internal/outbox"
	"github.com/NordCoder/Custodian/internal/repository/kafka"
	accountsvc "github.com/NordCoder/Custodian/internal/services/account"
	"github.com/NordCoder/Custodian/internal/services/api"
	"github.com/NordCoder/Custodian/internal/services/mail"
	"github.com/NordCoder/Custodian/internal/services/session"
	transfersvc "github.com/NordCoder/Custodian/internal/services/transfer"
	"github.com/NordCoder/Custodian/internal/services/verification"
)

type services struct {
	api    *api.Server
	runner *outboxsvc.Runner
	close  func()
}

func initServices(ctx context.Context, cfg *config.Config, st *stores, logger *zap.Logger) (*services, error) {
	issuer, err := auth.NewIssuer(cfg.Auth.AsIssuerConfig())
	if err != nil {
		return nil, err
	}

	var sender notification.EmailSender
	if cfg.Mail.SMTP.Addr != "" {
		sender = mail.NewMailer(cfg.Mail.SMTP).WithLogger(logger)
	} else {
		logger.Warn("smtp not configured, mails are logged only")
		sender = mail.LogSender{Log: logger}
	}
	notifier, err := mail.NewNotifier(sender, cfg.Mail.Links, retry.DefaultMailPolicy(cfg.Mail.RetryAttempts, logger), logger)
	if err != nil {
		return nil, err
	}

	events := outboxsvc.NewRecorder(st.outbox)
	verifications := verification.NewManager(st.verifications, st.accounts, st.tx, cfg.Verification, logger)

	accounts := accountsvc.NewService(accountsvc.Deps{
		Accounts:     st.accounts,
		Authorities:  st.authorities,
		Tx:           st.tx,
		Verification: verifications,
		Issuer:       issuer,
		Hasher:       auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Events:       events,
		Mail:         notifier,
		Logger:       logger,
	})
	sessions := session.NewManager(st.sessions, st.tx, cfg.Session, logger)
	transfers := transfersvc.NewCoordinator(st.transfers, st.accounts, st.tx, events, notifier, logger)

	var (
		publisher outboxsvc.Publisher = outboxsvc.LogPublisher{Log: logger}
		closeFn                       = func() {}
	)
	if cfg.Kafka.Enabled {
		producer := kafka.BootstrapProducer(ctx, kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
		publisher = kafka.NewAccountEventsKafka(producer)
		closeFn = func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close", zap.Error(err))
			}
		}
	}
	runner := outboxsvc.NewOutboxRunner(logger, st.outbox,
		outboxsvc.MakeGlobalOutboxHandler(publisher, retry.DefaultKafkaPolicy(logger)), cfg.Outbox)

	return &services{
		api: api.NewServer(sessions, accounts, transfers, api.Opts{
			Logger:        logger,
			SecureCookies: cfg.Server.SecureCookies,
		}),
		runner: runner,
		close:  closeFn,
	}, nil
}
