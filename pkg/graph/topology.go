package graph

import (
	"context"
	"fmt"
)

// Add implements spec §4.3's add(): engine ADD_GRAPH with the new GKV/CKV.
// If newDeviceAIF is nonzero, resolve the matching hardware-endpoint tag
// from newTagModules and append a new resolved module if none of the
// existing resolved modules already carries that module instance id. Then
// reconfigure every not-yet-configured module, plus any SPR module (its
// routing depends on the device set).
func (g *Graph) Add(ctx context.Context, gkv, ckv []uint32, newDeviceAIF uint32, newTagModules []ResolvedModuleCandidate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.engine.AddGraph(ctx, g.handle, gkv, ckv); err != nil {
		return fmt.Errorf("graph: engine add_graph: %w", err)
	}

	if newDeviceAIF != 0 {
		g.mergeDeviceModules(newDeviceAIF, gkv, newTagModules)
	}

	for i := range g.resolved {
		m := &g.resolved[i]
		if !m.Configured || m.Kind == TagSPR {
			m.Configured = false
			if err := g.configure(ctx, m); err != nil {
				return err
			}
			m.Configured = true
		}
	}
	return nil
}

// ResolvedModuleCandidate is what a caller (pkg/session, having queried the
// engine for the newly attached device's tags) supplies to Add/Change so
// pkg/graph can decide whether it duplicates an already-resolved module.
type ResolvedModuleCandidate struct {
	Tag              uint32
	Kind             TagKind
	ModuleID         uint32
	ModuleInstanceID uint32
}

func (g *Graph) mergeDeviceModules(deviceAIF uint32, gkv []uint32, candidates []ResolvedModuleCandidate) {
	existing := make(map[uint32]bool, len(g.resolved))
	for _, m := range g.resolved {
		existing[m.ModuleInstanceID] = true
	}
	for _, c := range candidates {
		if existing[c.ModuleInstanceID] {
			continue
		}
		g.resolved = append(g.resolved, ResolvedModule{
			Tag:              c.Tag,
			Kind:             c.Kind,
			ModuleID:         c.ModuleID,
			ModuleInstanceID: c.ModuleInstanceID,
			OwningDeviceAIF:  deviceAIF,
			SnapshotGKV:      append([]uint32(nil), gkv...),
		})
	}
}

// Change implements spec §4.3's change(): engine CHANGE_GRAPH, mark every
// resolved module not-configured; if a new hardware-endpoint module is
// introduced, remove the previously resolved one of the same tag (the
// engine has already torn it down); then reconfigure everything.
func (g *Graph) Change(ctx context.Context, gkv, ckv []uint32, newDeviceAIF uint32, newTagModules []ResolvedModuleCandidate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.engine.ChangeGraph(ctx, g.handle, gkv, ckv); err != nil {
		return fmt.Errorf("graph: engine change_graph: %w", err)
	}

	for i := range g.resolved {
		g.resolved[i].Configured = false
	}

	if newDeviceAIF != 0 {
		introducedTags := make(map[uint32]bool, len(newTagModules))
		for _, c := range newTagModules {
			introducedTags[c.Tag] = true
		}
		kept := g.resolved[:0]
		for _, m := range g.resolved {
			if m.Kind.IsDeviceSide() && introducedTags[m.Tag] && m.OwningDeviceAIF != newDeviceAIF {
				continue // engine already tore this one down
			}
			kept = append(kept, m)
		}
		g.resolved = kept
		g.mergeDeviceModules(newDeviceAIF, gkv, newTagModules)
	}

	for i := range g.resolved {
		m := &g.resolved[i]
		if err := g.configure(ctx, m); err != nil {
			return err
		}
		m.Configured = true
	}
	return nil
}

// Remove implements spec §4.3's remove(): engine REMOVE_GRAPH, no
// reconfiguration. The caller is expected to issue Add/Change or Start
// afterwards.
func (g *Graph) Remove(ctx context.Context, gkv, ckv []uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.engine.RemoveGraph(ctx, g.handle, gkv, ckv); err != nil {
		return fmt.Errorf("graph: engine remove_graph: %w", err)
	}
	return nil
}
