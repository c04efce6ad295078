// Package runtime implements spec.md §4.5/§9's "explicit Runtime object":
// the process-wide session pool, device registry, and engine handle,
// constructed once and passed through rather than held as ambient globals.
//
// Grounded on the teacher's internal/app.App (the single top-level struct
// New wires every subsystem into, with an ordered Shutdown), narrowed here
// to AGM's five components plus the calibration catalogue.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qti-audio/agm/internal/acdb"
	"github.com/qti-audio/agm/internal/config"
	"github.com/qti-audio/agm/internal/engine/gsl"
	"github.com/qti-audio/agm/internal/journal"
	"github.com/qti-audio/agm/internal/pcmreg"
	"github.com/qti-audio/agm/internal/resilience"
	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/graph"
	"github.com/qti-audio/agm/pkg/session"
)

// Runtime bundles the session pool, device registry, and engine boundary
// that every public API verb (internal/apiserver) operates against (spec
// §9's "Design Note: model as an explicit Runtime object ... not ambient
// globals").
type Runtime struct {
	Sessions *session.Pool
	Devices  *device.Registry
	Engine   gsl.Client

	// ACDBFiles is the calibration file set discovered at construction
	// time (spec.md §6: "ACDB calibration files"). Read-only after New;
	// content is out of scope per spec.md §1, only discovery is owned here.
	ACDBFiles []string

	// Journal is the optional audit trail (SPEC_FULL.md §11). Never nil:
	// New falls back to a no-op sink when Config.Runtime.JournalDSN is
	// empty, so callers never need a nil check.
	Journal journal.Journal
}

// Options configures [New]. PCM and Engine are the two platform/engine
// boundaries spec.md §1 puts out of scope — callers supply the concrete
// driver and engine transport; tests supply fakes.
type Options struct {
	Config *config.Config

	// Engine is the raw GSL engine transport. New wraps it in a circuit
	// breaker (SPEC_FULL.md §10) before handing it to the session pool.
	Engine gsl.Client

	// PCM is the platform PCM driver shared by every enumerated device,
	// mirroring the teacher's single audio.Platform injection point
	// (pkg/audio.Platform) rather than one driver instance per device.
	PCM device.PCM

	// Templates resolves tagged-module dispatch for every graph this
	// runtime's sessions open. Defaults to graph.DefaultTemplates().
	Templates graph.TemplateSet

	// Breaker tunes the engine circuit breaker. Zero value uses
	// resilience.NewCircuitBreaker's defaults.
	Breaker resilience.CircuitBreakerConfig
}

// New parses the platform PCM registry, enumerates the device registry
// against the configured static endpoint catalogue, scans the ACDB
// directory (if configured), wraps the engine in a circuit breaker, and
// constructs the session pool — everything spec.md §6's init verb does,
// as one explicit object instead of process-global side effects.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("runtime: new: nil config")
	}

	entries, err := pcmreg.ParseFile(cfg.Runtime.PCMRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("runtime: new: %w", err)
	}
	slog.Info("runtime: parsed pcm registry", "path", cfg.Runtime.PCMRegistryPath, "entries", len(entries))

	catalog := newStaticCatalog(entries, cfg.Devices)
	devices := device.NewRegistry()
	devices.Enumerate(entries, catalog)
	if opts.PCM != nil {
		for _, d := range devices.List() {
			d.SetPCM(opts.PCM)
		}
	}

	var acdbFiles []string
	if cfg.Runtime.ACDBDir != "" {
		acdbFiles, err = acdb.Scan(cfg.Runtime.ACDBDir, cfg.Runtime.MaxACDBFiles)
		if err != nil {
			return nil, fmt.Errorf("runtime: new: %w", err)
		}
		slog.Info("runtime: scanned acdb directory", "dir", cfg.Runtime.ACDBDir, "files", len(acdbFiles))
	}

	breakerCfg := opts.Breaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "gsl-engine"
	}
	engine := wrapEngine(opts.Engine, breakerCfg)

	templates := opts.Templates
	if templates.Stream == nil && templates.Device == nil {
		templates = graph.DefaultTemplates()
	}

	pool := session.NewPool(devices, engine, templates)

	jrnl, err := journal.Open(ctx, cfg.Runtime.JournalDSN)
	if err != nil {
		return nil, fmt.Errorf("runtime: new: %w", err)
	}

	return &Runtime{
		Sessions:  pool,
		Devices:   devices,
		Engine:    engine,
		ACDBFiles: acdbFiles,
		Journal:   jrnl,
	}, nil
}

// CloseAll tears down every session (best-effort, concurrently, first
// error returned — spec §4.5) and is the runtime-level counterpart to
// cmd/agmd's shutdown path, called after the API server stops accepting
// new requests.
func (rt *Runtime) CloseAll(ctx context.Context) error {
	err := rt.Sessions.CloseAll(ctx)
	rt.Journal.Close()
	if err != nil {
		return fmt.Errorf("runtime: close all: %w", err)
	}
	return nil
}

// EngineHealthCheck is an internal/health.Checker probe: a lightweight
// no-op engine round trip (Tags against an empty GKV) verifying the GSL
// command channel still answers within a bounded deadline, rather than
// just checking the circuit breaker's local bookkeeping state (a breaker
// that's still closed says nothing if the engine has simply gone silent
// without yet failing enough calls to trip it).
func (rt *Runtime) EngineHealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := rt.Engine.Tags(ctx, nil); err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	return nil
}
