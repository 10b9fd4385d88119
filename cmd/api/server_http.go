package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Custodian/internal/config/api"
	"github.com/NordCoder/Custodian/internal/obs"
	"github.com/NordCoder/Custodian/internal/services/api"
)

func buildHTTPServer(cfg *config.Config, srv *api.Server, health func(context.Context) error) (*http.Server, error) {
	gw, err := srv.Handler()
	if err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/", obs.HTTPHandler(gw, "custodian.api"))
	root.Handle("/metrics", obs.MetricsHandler())
	root.Handle("/healthz", obs.HealthHandler(health))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.CORS(cfg.Server.CORSOrigins)(root),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
