package graph

import (
	"context"
	"fmt"

	"github.com/qti-audio/agm/internal/engine/gsl"
)

// Write requires state in {PREPARED, STARTED} (spec §4.3). Buffers are
// passed with timestamp=0, flags=0; the engine reports actual bytes
// consumed back to the caller. Partial transfers are legal.
func (g *Graph) Write(ctx context.Context, data []byte) (int, error) {
	g.mu.Lock()
	state := g.state
	handle := g.handle
	g.mu.Unlock()

	if state != Prepared && state != Started {
		return 0, fmt.Errorf("%w: write from %s", ErrInvalidState, state)
	}
	buf := &gsl.Buffer{Data: data}
	return g.engine.Write(ctx, handle, buf)
}

// Read requires STARTED.
func (g *Graph) Read(ctx context.Context, data []byte) (int, error) {
	g.mu.Lock()
	state := g.state
	handle := g.handle
	g.mu.Unlock()

	if state != Started {
		return 0, fmt.Errorf("%w: read from %s", ErrInvalidState, state)
	}
	buf := &gsl.Buffer{Data: data}
	return g.engine.Read(ctx, handle, buf)
}

// EOS signals end-of-stream to the engine.
func (g *Graph) EOS(ctx context.Context) error {
	g.mu.Lock()
	handle := g.handle
	g.mu.Unlock()
	return g.engine.EOS(ctx, handle)
}

// SessionTime requires STARTED and a nonzero SPR module IID cached from
// configure. Sends a get-config for PARAM_ID_SPR_SESSION_TIME and
// reassembles the 64-bit timestamp from two 32-bit halves (msw<<32 | lsw).
//
// The original's SPR reassembly occasionally observes a momentarily
// non-monotonic (msw, lsw) pair across consecutive reads during a topology
// edit; per SPEC_FULL.md §12, this port clamps the reported value forward
// to the previous reading rather than surfacing a time regression.
func (g *Graph) SessionTime(ctx context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Started {
		return 0, fmt.Errorf("%w: session_time from %s", ErrInvalidState, g.state)
	}
	if g.sprMIID == 0 {
		return 0, fmt.Errorf("%w: no SPR module resolved", ErrInvalidState)
	}

	payload, err := g.engine.GetCustomConfig(ctx, g.handle, g.sprMIID, paramIDSPRSessionTime)
	if err != nil {
		return 0, fmt.Errorf("graph: get session time: %w", err)
	}
	if len(payload) < 8 {
		return 0, fmt.Errorf("%w: session time payload too short", ErrMalformed)
	}
	msw := uint64(payload[0]) | uint64(payload[1])<<8 | uint64(payload[2])<<16 | uint64(payload[3])<<24
	lsw := uint64(payload[4]) | uint64(payload[5])<<8 | uint64(payload[6])<<16 | uint64(payload[7])<<24
	ts := msw<<32 | lsw

	if g.haveSessionTime && ts < g.lastSessionTime {
		ts = g.lastSessionTime
	}
	g.lastSessionTime = ts
	g.haveSessionTime = true
	return ts, nil
}
