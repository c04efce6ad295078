// Package graph implements GraphObj: the wrapper around one graph-engine
// handle, its resolved tagged-module list, and the topology-edit/lifecycle
// operations driven against the GSL boundary (internal/engine/gsl).
//
// Grounded on the original AGM C source's service/src/graph.c for operation
// ordering, and on the teacher's internal/engine.Engine interface for
// shaping the GSL boundary as a narrow interface with a mock alongside it.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/qti-audio/agm/internal/engine/gsl"
)

// State is the graph's lifecycle state (spec §3: GraphObj has no CLOSED
// state of its own — a *nil* Graph pointer on the session represents
// closed, per the invariant "graph != null iff state != CLOSED").
type State int

const (
	Opened State = iota
	Prepared
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case Opened:
		return "OPENED"
	case Prepared:
		return "PREPARED"
	case Started:
		return "STARTED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Direction mirrors device.Direction without importing pkg/device, since
// pkg/graph only needs it to validate stream-side module/direction
// constraints (spec §4.3).
type Direction int

const (
	RX Direction = iota
	TX
)

var (
	ErrInvalidState  = errors.New("graph: invalid state")
	ErrInvalidConfig = errors.New("graph: invalid config")
	ErrMalformed     = errors.New("graph: malformed engine response")
)

// ResolvedModule is one entry in the graph's ordered tagged-module list
// (spec §3: GraphObj.resolved modules).
type ResolvedModule struct {
	Tag              uint32
	Kind             TagKind
	ModuleID         uint32
	ModuleInstanceID uint32
	OwningDeviceAIF  uint32 // 0 if not device-owned
	SnapshotGKV      []uint32
	Configured       bool
}

// BufferConfig is the count/size/threshold configuration pushed to the
// engine during Prepare for non-hostless sessions.
type BufferConfig struct {
	Count         int
	Size          int
	StartThresh   int
	StopThresh    int
	Blocking      bool
}

// Graph is one GraphObj: an owned engine handle plus the resolved module
// list derived from the session's currently-effective merged GKV.
//
// The session back-reference is intentionally weak: per spec §9's design
// note, Graph stores only SessionID and looks the owning session up through
// a Retriever at event-delivery time, rather than holding a live pointer
// that would create a reference cycle.
type Graph struct {
	mu sync.Mutex

	engine    gsl.Client
	templates TemplateSet

	SessionID   string
	handle      gsl.Handle
	state       State
	resolved    []ResolvedModule
	sprMIID     uint32 // 0 until resolved
	lastSessionTime uint64
	haveSessionTime bool
	buffers     BufferConfig
	hostless    bool
	direction   Direction

	onEvent func(gsl.Event)
}

// Retriever looks a session up by id; implemented by pkg/session.Pool. It
// exists so the event trampoline (built in Open) can resolve the owning
// session without Graph holding a pointer to it.
type Retriever interface {
	Retrieve(sessID string) (EventSink, bool)
}

// EventSink is the subset of session behavior the trampoline needs: fan out
// an engine event to registered callbacks.
type EventSink interface {
	DeliverEvent(gsl.Event)
}

// Open implements spec §4.3's open sequence: query tags, walk the stream and
// device templates to build the resolved-module list, snapshot GKV for
// device modules, then call engine Open and register the event trampoline.
// deviceAIF is the AIF being attached by this very open call (the first-ever
// attachment merges exactly one device's metadata into gkv), so any
// device-side module resolved here is owned by it; pass 0 for a
// device-less open (spec's hostless/loopback-only graphs have none).
func Open(ctx context.Context, engine gsl.Client, templates TemplateSet, sessionID string, gkv, ckv []uint32, hostless bool, dir Direction, retriever Retriever, deviceAIF uint32) (*Graph, error) {
	tagModules, err := engine.Tags(ctx, gkv)
	if err != nil {
		return nil, fmt.Errorf("graph: query tags: %w", err)
	}

	g := &Graph{
		engine:    engine,
		templates: templates,
		SessionID: sessionID,
		hostless:  hostless,
		direction: dir,
	}

	for _, tm := range tagModules {
		kind, isStream := templates.Stream[tm.Tag]
		if !isStream {
			if k, isDevice := templates.Device[tm.Tag]; isDevice {
				kind = k
			} else {
				continue // no template for this tag; not our concern (spec: "template exists")
			}
		}
		if len(tm.Modules) != 1 {
			return nil, fmt.Errorf("%w: tag %#x resolved to %d modules, want exactly 1", ErrMalformed, tm.Tag, len(tm.Modules))
		}
		mod := tm.Modules[0]
		rm := ResolvedModule{
			Tag:              tm.Tag,
			Kind:             kind,
			ModuleID:         mod.ModuleID,
			ModuleInstanceID: mod.ModuleInstanceID,
		}
		if kind.IsDeviceSide() {
			rm.SnapshotGKV = append([]uint32(nil), gkv...)
			rm.OwningDeviceAIF = deviceAIF
		}
		if kind == TagSPR {
			g.sprMIID = mod.ModuleInstanceID
		}
		g.resolved = append(g.resolved, rm)
	}

	handle, err := engine.Open(ctx, gkv, ckv)
	if err != nil {
		return nil, fmt.Errorf("graph: engine open: %w", err)
	}
	g.handle = handle
	g.state = Opened

	trampoline := func(ev gsl.Event) {
		if retriever == nil {
			return
		}
		sink, ok := retriever.Retrieve(sessionID)
		if !ok {
			return // pool rejects unknown/freed session ids (spec §9)
		}
		sink.DeliverEvent(ev)
	}
	if err := engine.RegisterEventCallback(ctx, handle, trampoline); err != nil {
		// Roll back: free resolved modules, close the handle.
		_ = engine.Close(ctx, handle)
		return nil, fmt.Errorf("graph: register event callback: %w", err)
	}
	g.onEvent = trampoline

	return g, nil
}

// Close tears the graph down. Best-effort: always frees the resolved-module
// bookkeeping even if the engine call fails; g.state is left unchanged (spec §9: "several close
// paths unconditionally free the graph even if graph_close failed").
func (g *Graph) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.engine.Close(ctx, g.handle)
	g.resolved = nil
	if err != nil {
		slog.Warn("graph: engine close failed, freeing anyway", "session_id", g.SessionID, "error", err)
		return fmt.Errorf("%w", err)
	}
	return nil
}

// State returns the graph's current lifecycle state.
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Resolved returns a snapshot of the resolved module list, used by tests
// and by the session layer's tag-module-info query.
func (g *Graph) Resolved() []ResolvedModule {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ResolvedModule, len(g.resolved))
	copy(out, g.resolved)
	return out
}
