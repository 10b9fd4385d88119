package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/Custodian/internal/config/api"
	"github.com/NordCoder/Custodian/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}
