// Package main is the entry point of ctxprobe, a readiness probe that brings up
// the process-wide execution context on the configured runtime backend and
// reports whether it is usable.
//
// ctxprobe takes no flags. Configuration comes from configs/base.yaml,
// configs/{APP_ENVIRONMENT}.yaml and APP_ environment variables. It exits 1
// when the context cannot be created.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime"
	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/instrumented"
	"github.com/jsamuelsen/go-eager-context/internal/app/execctx"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/platform/config"
	"github.com/jsamuelsen/go-eager-context/internal/platform/logging"
	"github.com/jsamuelsen/go-eager-context/internal/platform/metrics"
	"github.com/jsamuelsen/go-eager-context/internal/platform/telemetry"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD)"
var (
	// Version is the semantic version of the probe.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting probe",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("backend", cfg.Runtime.Backend),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	probeMetrics, err := telemetry.NewProbeMetrics()
	if err != nil {
		return fmt.Errorf("creating probe metrics: %w", err)
	}

	// 5. Resolve the runtime backend and instrument it
	registry := metrics.NewRegistry()

	backend, err := runtime.NewRegistry().Open(cfg.Runtime.Backend, runtime.BackendConfig{
		MaxContexts: cfg.Runtime.MaxContexts,
	})
	if err != nil {
		return fmt.Errorf("opening runtime: %w", err)
	}

	rt, err := instrumented.New(backend, instrumented.Config{
		Registerer: registry,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("instrumenting runtime: %w", err)
	}

	// 6. Select the runtime for the process-wide context
	if err := execctx.Install(rt); err != nil {
		return fmt.Errorf("installing runtime: %w", err)
	}

	settings, err := settingsFrom(cfg.Runtime)
	if err != nil {
		return err
	}

	// 7. Probe
	ctx = logging.WithUnitID(logging.WithContext(ctx, logger), uuid.NewString())
	ctx, end := probeMetrics.Start(ctx, rt.Name())

	probeErr := probe(ctx, rt, settings)
	end(probeErr)

	// 8. Tear down and export
	if err := execctx.Shutdown(); err != nil {
		probeErr = errors.Join(probeErr, fmt.Errorf("releasing global context: %w", err))
	}

	if err := registry.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		probeErr = errors.Join(probeErr, err)
	}

	if probeErr != nil {
		return probeErr
	}

	logger.Info("probe complete")

	return nil
}

// probe brings up the global context, reports health, then creates and
// releases one context with the configured options.
func probe(ctx context.Context, rt ports.Runtime, settings execctx.Settings) error {
	logger := logging.FromContext(ctx)

	ctx, release := execctx.WithStatus(ctx, rt)
	defer release()

	health := ports.NewHealthRegistry()
	if err := health.Register(execctx.ProcessGlobal()); err != nil {
		return fmt.Errorf("registering health check: %w", err)
	}

	result := health.CheckAll(ctx)
	for name, check := range result.Checks {
		logger.Info("health check",
			slog.String("check", name),
			slog.String("status", string(check.Status)),
			slog.String("code", check.Code),
			slog.String("message", check.Message),
			slog.Duration("duration", check.Duration),
		)
	}

	if result.Status != ports.HealthStatusHealthy {
		_, err := execctx.GlobalContext(ctx)
		return fmt.Errorf("global execution context: %w", err)
	}

	opts, err := execctx.NewOptions(ctx, rt, settings)
	if err != nil {
		return fmt.Errorf("configuring context options: %w", err)
	}
	defer opts.Close()

	h, err := execctx.New(ctx, rt, opts)
	if err != nil {
		return fmt.Errorf("creating configured context: %w", err)
	}

	logger.Info("configured context created",
		slog.String("handle_id", h.ID().String()),
		slog.Bool("async", settings.Async),
		slog.String("device_placement", settings.DevicePlacement.String()),
	)

	return h.Close()
}

func settingsFrom(cfg config.RuntimeConfig) (execctx.Settings, error) {
	placement, err := domain.ParseDevicePlacementPolicy(cfg.DevicePlacement)
	if err != nil {
		return execctx.Settings{}, fmt.Errorf("runtime.device_placement: %w", err)
	}

	session, err := cfg.ReadSessionConfig()
	if err != nil {
		return execctx.Settings{}, err
	}

	return execctx.Settings{
		Async:           cfg.Async,
		DevicePlacement: placement,
		Config:          session,
	}, nil
}
