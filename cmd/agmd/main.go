// Command agmd is the main entry point for the Audio Graph Manager daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qti-audio/agm/internal/apiserver"
	"github.com/qti-audio/agm/internal/config"
	"github.com/qti-audio/agm/internal/engine/gsl/mock"
	"github.com/qti-audio/agm/internal/health"
	"github.com/qti-audio/agm/internal/observe"
	"github.com/qti-audio/agm/pkg/runtime"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "agmd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "agmd: %v\n", err)
		}
		return 1
	}

	// ── Logger ───────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("agmd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"health_addr", cfg.Server.HealthAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "agmd"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Runtime (session pool, device registry, engine boundary) ────────
	//
	// The GSL graph engine itself is out of scope (spec.md §1): agmd wires
	// the same scriptable fake pkg/runtime's own tests use rather than a
	// real transport, since no GSL wire protocol exists to dial. Config's
	// EngineTarget is still loaded and logged — it documents where a real
	// transport would be dialed from once GSL's wire protocol is in scope.
	if cfg.Runtime.EngineTarget != "" {
		slog.Info("runtime: engine target configured but unused — GSL transport is out of scope", "target", cfg.Runtime.EngineTarget)
	}

	rt, err := runtime.New(ctx, runtime.Options{
		Config: cfg,
		Engine: mock.New(),
	})
	if err != nil {
		slog.Error("failed to initialise runtime", "err", err)
		return 1
	}

	printStartupSummary(cfg, rt)

	// ── Config hot-reload ─────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(diff config.ConfigDiff, newCfg *config.Config) {
		if diff.LogLevelChanged {
			slog.SetDefault(newLogger(diff.NewLogLevel))
			slog.Info("config: log level changed", "new_level", diff.NewLogLevel)
		}
		if diff.DevicesChanged {
			for _, dc := range diff.DeviceChanges {
				slog.Info("config: device catalogue changed", "device", dc.Name, "gkv_changed", dc.GKVChanged, "added", dc.Added, "removed", dc.Removed)
			}
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── gRPC server (spec.md §6 public API) ──────────────────────────────
	lis, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.Server.ListenAddr, "err", err)
		return 1
	}
	grpcServer := apiserver.NewGRPCServer(apiserver.New(rt))

	go func() {
		slog.Info("grpc server listening", "addr", cfg.Server.ListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc server stopped", "err", err)
		}
	}()

	// ── Health/readiness server ──────────────────────────────────────────
	healthHandler := health.New(health.Checker{
		Name:  "engine",
		Check: rt.EngineHealthCheck,
	})
	mux := http.NewServeMux()
	healthHandler.Register(mux)
	httpServer := &http.Server{Addr: cfg.Server.HealthAddr, Handler: mux}

	go func() {
		slog.Info("health server listening", "addr", cfg.Server.HealthAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server stopped", "err", err)
		}
	}()

	slog.Info("agmd ready — press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}
	if err := rt.CloseAll(shutdownCtx); err != nil {
		slog.Error("runtime shutdown error", "err", err)
		return 1
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ──────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, rt *runtime.Runtime) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         agmd — startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Devices enumerated : %-16d ║\n", len(rt.Devices.List()))
	fmt.Printf("║  ACDB files loaded  : %-16d ║\n", len(rt.ACDBFiles))
	journaled := "disabled"
	if cfg.Runtime.JournalDSN != "" {
		journaled = "enabled"
	}
	fmt.Printf("║  Audit journal      : %-16s ║\n", journaled)
	fmt.Printf("║  Listen addr        : %-16s ║\n", cfg.Server.ListenAddr)
	fmt.Printf("║  Health addr        : %-16s ║\n", cfg.Server.HealthAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
