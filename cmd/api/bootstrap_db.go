package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	config "github.com/NordCoder/Custodian/internal/config/api"
	"github.com/NordCoder/Custodian/internal/domain"
	"github.com/NordCoder/Custodian/internal/domain/account"
	"github.com/NordCoder/Custodian/internal/domain/outbox"
	"github.com/NordCoder/Custodian/internal/domain/session"
	"github.com/NordCoder/Custodian/internal/domain/transfer"
	"github.com/NordCoder/Custodian/internal/domain/verification"
	"github.com/NordCoder/Custodian/internal/repository/memory"
	pg "github.com/NordCoder/Custodian/internal/repository/postgres"
)

// stores is the set of repositories the services run on.
type stores struct {
	accounts      account.Repo
	authorities   account.AuthorityRepo
	sessions      session.Repo
	verifications verification.Repo
	transfers     transfer.Repo
	outbox        outbox.Repository
	tx            domain.Transactor

	health func(context.Context) error
	close  func()
}

func initStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory storage, state is lost on restart")
		accounts := memory.NewAccounts()
		return &stores{
			accounts:      accounts,
			authorities:   memory.NewAuthorities(accounts),
			sessions:      memory.NewSessions(),
			verifications: memory.NewVerifications(),
			transfers:     memory.NewTransfers(),
			outbox:        memory.NewOutbox(),
			tx:            &memory.Transactor{},
			health:        func(context.Context) error { return nil },
			close:         func() {},
		}, nil
	case "postgres":
		return initPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func initPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.DB.AutoMigrate {
		if err := pg.Migrate(ctx, cfg.DB.DSN); err != nil {
			return nil, err
		}
		logger.Info("migrations applied")
	}

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &stores{
		accounts:      pg.NewAccountRepo(db),
		authorities:   pg.NewAuthorityRepo(db),
		sessions:      pg.NewSessionTokenRepo(db),
		verifications: pg.NewVerificationTokenRepo(db),
		transfers:     pg.NewTransferRepo(db),
		outbox:        pg.NewOutboxRepo(db),
		tx:            pg.NewTransactor(db, logger),
		health:        db.Ping,
		close:         db.Close,
	}, nil
}
