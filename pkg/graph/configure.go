package graph

import (
	"context"
	"fmt"
)

// Param ids used by the configure closures below. Out-of-scope "pure data"
// per spec §1, carried here only because Prepare/Pause must emit them.
const (
	paramIDSoftPauseStart   uint32 = 0x0001
	paramIDSoftPauseResume  uint32 = 0x0002
	paramIDSPRSessionTime   uint32 = 0x0003
)

// configure dispatches on m.Kind to emit the engine custom-config blob
// appropriate for that module, per spec §4.3 step 2's "configure closure"
// design note. Implemented as a closed type switch (SPEC_FULL.md §4.3)
// rather than function pointers; a TagKind without a case here falls to the
// default branch and fails with ErrInvalidConfig.
func (g *Graph) configure(ctx context.Context, m *ResolvedModule) error {
	switch m.Kind {
	case TagPCMDecoder:
		if g.direction == TX {
			return fmt.Errorf("%w: PCM decoder module in a TX session", ErrInvalidConfig)
		}
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	case TagPCMEncoder:
		if g.direction == RX {
			return fmt.Errorf("%w: PCM encoder module in an RX session", ErrInvalidConfig)
		}
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	case TagMediaFormat:
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	case TagShmemEndpoint:
		if g.hostless {
			return fmt.Errorf("%w: shared-memory module on a hostless session", ErrInvalidConfig)
		}
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	case TagHwEndpointRX, TagHwEndpointTX:
		// Direction-match validated by the caller (Prepare), which has
		// access to the owning device's endpoint direction; this closure
		// only emits the config once validated.
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	case TagSPR:
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	case TagPause:
		// Pause modules are configured lazily by Pause/Resume, not here;
		// marking configured is still correct since no steady-state config
		// is required to bring the module online.
		return nil

	case TagMFCLimiter:
		return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, 0, nil)

	default:
		return fmt.Errorf("%w: unconfigured tag kind %v", ErrInvalidConfig, m.Kind)
	}
}

// SetConfig pushes a raw custom-config blob directly to the engine for the
// given module instance, bypassing the per-tag configure closures. Used by
// pkg/session's set_params/set_aif_params passthrough (spec §4.4).
func (g *Graph) SetConfig(ctx context.Context, miid, paramID uint32, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.SetCustomConfig(ctx, g.handle, miid, paramID, payload)
}

// GetConfig round-trips a raw custom-config read through the engine for the
// given module instance (spec §6's session_get_params).
func (g *Graph) GetConfig(ctx context.Context, miid, paramID uint32) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.GetCustomConfig(ctx, g.handle, miid, paramID)
}

// SetCalibration re-issues the engine's set_cal for the given module
// instance (spec §6's session_aif_set_cal).
func (g *Graph) SetCalibration(ctx context.Context, miid uint32, ckv []uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.SetCalibration(ctx, g.handle, miid, ckv)
}

// DeviceDirectionCheck is satisfied by the owning device to let Prepare
// validate that a device module's endpoint direction matches its tag,
// without pkg/graph importing pkg/device.
type DeviceDirectionCheck interface {
	IsOutputEndpoint() bool
	StartRefs() int
}

// Prepare walks resolved modules in list order, invoking each unconfigured
// module's configure closure, validates direction constraints, issues
// configure_buffer_params for non-hostless sessions, then issues engine
// PREPARE. deviceFor resolves a device-owned module's owning device for the
// direction check; it may be nil for a graph with no device-resolved
// modules yet.
func (g *Graph) Prepare(ctx context.Context, bufCfg BufferConfig, deviceFor func(aifID uint32) DeviceDirectionCheck) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Opened && g.state != Stopped {
		return fmt.Errorf("%w: prepare from %s", ErrInvalidState, g.state)
	}

	for i := range g.resolved {
		m := &g.resolved[i]
		if m.Configured {
			continue
		}
		if m.Kind.IsDeviceSide() && m.OwningDeviceAIF != 0 && deviceFor != nil {
			if dev := deviceFor(m.OwningDeviceAIF); dev != nil && dev.StartRefs() == 0 {
				wantOutput := m.Kind == TagHwEndpointRX
				if dev.IsOutputEndpoint() != wantOutput {
					return fmt.Errorf("%w: device endpoint direction mismatch for tag %v", ErrInvalidConfig, m.Kind)
				}
			}
		}
		if err := g.configure(ctx, m); err != nil {
			return err
		}
		m.Configured = true
	}

	g.buffers = bufCfg
	if !g.hostless {
		if err := g.engine.ConfigureBufferParams(ctx, g.handle, 0, bufCfg.Count, bufCfg.Size, bufCfg.StartThresh, bufCfg.StopThresh, bufCfg.Blocking); err != nil {
			return fmt.Errorf("graph: configure buffer params: %w", err)
		}
	}

	if err := g.engine.Prepare(ctx, g.handle); err != nil {
		return fmt.Errorf("graph: engine prepare: %w", err)
	}
	g.state = Prepared
	return nil
}
