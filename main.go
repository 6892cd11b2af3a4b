package main

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
)

//go:embed config/migrations/*/*.sql
var embedMigrations embed.FS

func main() {
	bootLogger := log.NewZapLogger(log.Config{}).WithName("root")
	if len(os.Args) > 1 {
		// If a CLI command is provided, run it and exit
		runCli(bootLogger, os.Args[1], os.Args[2:])
		return
	}

	config, err := LoadConfig(bootLogger)
	if err != nil {
		bootLogger.Fatal("failed to load configuration", "error", err)
	}
	logger := log.NewZapLogger(config.Log).WithName("root")

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)

	signer, err := config.Signer.NewSigner()
	if err != nil {
		logger.Fatal("failed to initialise signer", "error", err)
	}
	if config.Signer.PrivateKey == "" {
		logger.Warn("SIGNER_PRIVATE_KEY is not set, using an ephemeral key")
	}
	logger.Info("signer initialized", "address", signer.SignerKey().Hex(), "digestLength", signer.DigestLength())

	hasher, err := hash.NewBlake3(signer.DigestLength())
	if err != nil {
		logger.Fatal("failed to initialise hash provider", "error", err)
	}

	db, err := ConnectToDB(config.DB, logger)
	if err != nil {
		logger.Fatal("failed to setup database", "error", err)
	}
	ledger := NewClaimStore(db)

	metrics := NewMetrics()

	rpcNode := NewRPCNode(signer, logger)
	NewRPCRouter(rpcNode, config, signer, hasher, ledger, metrics, logger)

	rpcListenEndpoint := "/ws"
	rpcMux := http.NewServeMux()
	rpcMux.HandleFunc(rpcListenEndpoint, rpcNode.HandleConnection)
	rpcServer := &http.Server{
		Addr:    config.RPCAddr,
		Handler: rpcMux,
	}

	metricsEndpoint := "/metrics"
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    config.MetricsAddr,
		Handler: metricsMux,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go metrics.RecordMetricsPeriodically(ctx, ledger, logger)

	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", config.MetricsAddr, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("RPC server available", "listenAddr", config.RPCAddr, "endpoint", rpcListenEndpoint)
		if err := rpcServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("RPC server failure", "error", err)
		}
	}()

	// Wait for shutdown signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	// Shutdown does not track hijacked connections.
	rpcNode.Close()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down RPC server", "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracer provider", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
