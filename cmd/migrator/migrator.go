package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	config "github.com/NordCoder/Custodian/internal/config/api"
	"github.com/NordCoder/Custodian/internal/obs"
	pg "github.com/NordCoder/Custodian/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CUSTODIAN_CONFIG"), "path to the YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "custodian/migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
		dsn = cfg.DB.DSN
	}

	if err := pg.Migrate(ctx, dsn); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("migrations: up OK")
}
