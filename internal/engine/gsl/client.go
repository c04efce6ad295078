// Package gsl defines the boundary to the graph-engine (GSL): an opaque
// handle, a small ioctl-style command set, custom-config blob set/get,
// buffer read/write, and event callback hookup. GSL itself is out of scope
// (spec.md §1) — this package only narrows it to a Go interface so
// pkg/graph can drive it without depending on a concrete transport.
//
// Grounded on the teacher's internal/engine.Engine interface (an opaque
// backend boundary paired with an internal/engine/mock implementation).
package gsl

import "context"

// Handle identifies one open graph on the engine side.
type Handle uint64

// TagModules is what the engine reports for a single tag under Tags.
type TagModules struct {
	Tag      uint32
	Modules  []ModuleRef
}

// ModuleRef is one (module_id, module_instance_id) pair the engine resolved
// for a tag.
type ModuleRef struct {
	ModuleID         uint32
	ModuleInstanceID uint32
}

// Buffer is a data buffer passed to Read/Write. Timestamp and Flags are
// always zero on the way in per spec §4.3; the engine may set Timestamp on
// the way out (unused by this port, carried for interface completeness).
type Buffer struct {
	Data      []byte
	Timestamp uint64
	Flags     uint32
}

// Event is what the engine delivers to a registered callback trampoline.
type Event struct {
	SourceModuleID uint32
	EventID        uint32
	Payload        []byte
}

// EventSourceGSL is the engine-internal event source id distinguishing
// data-path events from module-generated ones (spec §6).
const EventSourceGSL uint32 = 0x2001

// Client is the narrow command set pkg/graph needs from the engine.
type Client interface {
	// Tags returns, for every tag present in gkv, the set of modules the
	// engine would resolve for it.
	Tags(ctx context.Context, gkv []uint32) ([]TagModules, error)

	// Open opens a new graph handle scoped by gkv/ckv.
	Open(ctx context.Context, gkv, ckv []uint32) (Handle, error)
	// Close tears down a graph handle. Best-effort: called even after a
	// prior engine error, per spec §9's documented close-path behavior.
	Close(ctx context.Context, h Handle) error

	AddGraph(ctx context.Context, h Handle, gkv, ckv []uint32) error
	ChangeGraph(ctx context.Context, h Handle, gkv, ckv []uint32) error
	RemoveGraph(ctx context.Context, h Handle, gkv, ckv []uint32) error

	Prepare(ctx context.Context, h Handle) error
	Start(ctx context.Context, h Handle) error
	// Stop optionally scopes the stop to a subgraph via bundleGKV/bundleCKV;
	// a nil bundle stops the whole graph (spec §4.3).
	Stop(ctx context.Context, h Handle, bundleGKV, bundleCKV []uint32) error

	ConfigureBufferParams(ctx context.Context, h Handle, miid uint32, count, size int, startThreshold, stopThreshold int, blocking bool) error
	SetCustomConfig(ctx context.Context, h Handle, miid uint32, paramID uint32, payload []byte) error
	GetCustomConfig(ctx context.Context, h Handle, miid uint32, paramID uint32) ([]byte, error)
	SetCalibration(ctx context.Context, h Handle, miid uint32, ckv []uint32) error

	Read(ctx context.Context, h Handle, buf *Buffer) (n int, err error)
	Write(ctx context.Context, h Handle, buf *Buffer) (n int, err error)
	EOS(ctx context.Context, h Handle) error

	RegisterEventCallback(ctx context.Context, h Handle, cb func(Event)) error
}
