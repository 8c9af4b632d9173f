package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/medrex/portal-authz/internal/authz"
	"github.com/medrex/portal-authz/internal/gateway"
	"github.com/medrex/portal-authz/internal/policy"
	"github.com/medrex/portal-authz/pkg/config"
	"github.com/medrex/portal-authz/pkg/logger"
	"github.com/medrex/portal-authz/pkg/monitoring"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "path to the gateway config file")
	pflag.Parse()

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	entry := logger.WithComponent("main")

	store, err := policy.Load(cfg.Policy.File)
	if err != nil {
		entry.WithError(err).Fatal("Failed to load route policy")
	}
	entry.WithField("policy_version", store.Version()).Info("Route policy loaded")

	var opts []gateway.Option
	var tracing *monitoring.TracingManager
	if cfg.Tracing.Enabled {
		tracing, err = monitoring.NewTracingManager(monitoring.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: gateway.Version,
			Environment:    cfg.Tracing.Environment,
			SamplingRate:   cfg.Tracing.SamplingRate,
			Exporter:       cfg.Tracing.Exporter,
		})
		if err != nil {
			entry.WithError(err).Fatal("Failed to initialise tracing")
		}
		opts = append(opts, gateway.WithTracing(tracing))
	}

	service := gateway.NewService(cfg, authz.NewEngine(store), logger, opts...)
	if err := service.PolicyError(); err != nil {
		if cfg.Policy.FailOnIssues {
			entry.WithError(err).Fatal("Route policy failed verification; run policy-lint report for details")
		}
		entry.WithError(err).Warn("Route policy failed verification, serving anyway")
	}

	go func() {
		if err := service.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	entry.Info("Shutting down authorization gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := service.Stop(ctx); err != nil {
		entry.WithError(err).Error("Failed to shutdown server gracefully")
	}
	if tracing != nil {
		if err := tracing.Shutdown(ctx); err != nil {
			entry.WithError(err).Error("Failed to flush traces")
		}
	}

	entry.Info("Authorization gateway stopped")
}
