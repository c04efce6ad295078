package graph

import (
	"context"
	"fmt"
)

// Start transitions PREPARED or STOPPED to STARTED (spec §4.3).
func (g *Graph) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Prepared && g.state != Stopped {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, g.state)
	}
	if err := g.engine.Start(ctx, g.handle); err != nil {
		return fmt.Errorf("graph: engine start: %w", err)
	}
	g.state = Started
	return nil
}

// Stop transitions STARTED to STOPPED. An optional subgraph bundle scopes
// the stop to a single session/device pair (spec §4.3); a nil bundle stops
// the whole graph.
func (g *Graph) Stop(ctx context.Context, bundleGKV, bundleCKV []uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Started {
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, g.state)
	}
	if err := g.engine.Stop(ctx, g.handle, bundleGKV, bundleCKV); err != nil {
		return fmt.Errorf("graph: engine stop: %w", err)
	}
	g.state = Stopped
	return nil
}

// Pause finds the resolved module tagged Pause and sends SOFT_PAUSE_START.
// If no such module exists, Pause is a silent no-op — pause is an optional
// pipeline capability (spec §4.3).
func (g *Graph) Pause(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := g.findPause()
	if m == nil {
		return nil
	}
	return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, paramIDSoftPauseStart, nil)
}

// Resume is the inverse of Pause: SOFT_PAUSE_RESUME, or a silent no-op if
// there is no pause module.
func (g *Graph) Resume(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := g.findPause()
	if m == nil {
		return nil
	}
	return g.engine.SetCustomConfig(ctx, g.handle, m.ModuleInstanceID, paramIDSoftPauseResume, nil)
}

func (g *Graph) findPause() *ResolvedModule {
	for i := range g.resolved {
		if g.resolved[i].Kind == TagPause {
			return &g.resolved[i]
		}
	}
	return nil
}

// HasPauseModule reports whether this graph has a resolved TAG_PAUSE
// module, used by session-level tests of scenario 5 (spec §8).
func (g *Graph) HasPauseModule() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.findPause() != nil
}
