// Command evalcore-server runs the bias-evaluation service: job intake,
// background evaluation tasks, evidence shipping, repro-pack signing, and
// the verification endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/biaslens/evalcore/canon"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/httpapi"
	"github.com/biaslens/evalcore/internal/config"
	"github.com/biaslens/evalcore/internal/metrics"
	"github.com/biaslens/evalcore/leases"
	"github.com/biaslens/evalcore/orchestrator"
	"github.com/biaslens/evalcore/repropack"
	"github.com/biaslens/evalcore/store"
	"github.com/biaslens/evalcore/vault"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Tracing: a plain SDK provider; exporters attach via the standard OTEL
	// environment when the operator wants them.
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pg.Close()

	progress, err := store.NewRedisProgress(cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer progress.Close()

	credentialVault, err := vault.FromEnv(vault.EnvAPIKeySecret)
	if err != nil {
		logger.Warn("credential vault disabled", zap.Error(err))
		credentialVault = nil
	}
	signingVault, err := vault.FromEnv(vault.EnvSigningKeySecret)
	if err != nil {
		logger.Warn("signing vault disabled; customer signing unavailable", zap.Error(err))
		signingVault = nil
	}

	defaultSigning := loadDefaultSigning(cfg, logger)

	leaseMgr, err := leases.NewManager(leases.Config{Endpoints: cfg.Registry.Endpoints})
	if err != nil {
		return err
	}
	if leaseMgr != nil {
		defer leaseMgr.Close()
		// Hold the lease for the default provider so replicas sharing one
		// rate-limit budget do not schedule against it concurrently.
		if err := leaseMgr.Acquire(ctx, cfg.Model.Provider); err != nil {
			return err
		}
		logger.Info("scheduler lease acquired", zap.String("provider", cfg.Model.Provider))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	orch := orchestrator.New(orchestrator.Options{
		Store:           pg,
		Progress:        progress,
		CredentialVault: credentialVault,
		SigningVault:    signingVault,
		DefaultSigning:  defaultSigning,
		Model:           cfg.Model,
		Logger:          logger,
		Audit:           zapAudit{logger: logger.Named("audit")},
		Metrics:         m,
	})

	server := httpapi.New(
		orch,
		httpapi.NewProfileAuthenticator(pg),
		httpapi.HealthCheckers{
			Database:   pg,
			Redis:      progress,
			SigningKey: defaultSigning.PrivateKey != nil,
		},
		registry,
		logger,
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	// Let in-flight background evaluations finish their current writes.
	orch.Wait()
	return nil
}

// loadDefaultSigning parses the process-default signing key pair from the
// environment-backed config. A missing key is tolerated at startup; pack
// construction fails per evaluation until keys are provided.
func loadDefaultSigning(cfg *config.Config, logger *zap.Logger) repropack.SigningMaterial {
	material := repropack.SigningMaterial{
		Mode:         evaltypes.SigningModeBiasLens,
		Authority:    cfg.Signing.Authority,
		KeyID:        cfg.Signing.KeyID,
		PublicKeyPEM: cfg.Signing.PublicKeyPEM,
	}
	if cfg.Signing.PrivateKeyPEM == "" {
		logger.Warn("no default signing key configured; evaluations will fail at repro-pack time")
		return material
	}
	priv, err := canon.ParsePrivateKeyPEM(cfg.Signing.PrivateKeyPEM)
	if err != nil {
		logger.Error("default signing key unparseable", zap.Error(err))
		return material
	}
	material.PrivateKey = priv
	return material
}

// zapAudit writes audit events as structured log lines.
type zapAudit struct {
	logger *zap.Logger
}

// Event implements the audit sink.
func (a zapAudit) Event(name string, fields map[string]any) {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	a.logger.Info(name, zapFields...)
}
