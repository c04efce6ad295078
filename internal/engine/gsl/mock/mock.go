// Package mock provides an in-process fake of gsl.Client for tests,
// mirroring the teacher's internal/engine/mock pattern.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/qti-audio/agm/internal/engine/gsl"
)

// Engine is a scriptable fake GSL client. Tests register tags via AddTag
// or AddTagModules before calling pkg/graph.Open.
type Engine struct {
	mu sync.Mutex

	tags map[uint32][]gsl.ModuleRef

	FailOpen    bool
	FailStart   bool
	FailAdd     bool
	FailChange  bool
	FailRemove  bool
	FailGetConfig bool

	nextHandle gsl.Handle
	nextMIID   uint32

	opened    map[gsl.Handle]bool
	calls     []string // recorded call names, for assertions
	customCfg map[string][]byte
	callback  func(gsl.Event)
}

var _ gsl.Client = (*Engine)(nil)

// New returns a ready-to-use mock engine.
func New() *Engine {
	return &Engine{
		tags:      make(map[uint32][]gsl.ModuleRef),
		opened:    make(map[gsl.Handle]bool),
		customCfg: make(map[string][]byte),
		nextMIID:  1,
	}
}

// AddTag registers that tag resolves to exactly one module, auto-assigning
// a module instance id, and returns that id for the caller's convenience
// (e.g. to pre-seed SPR session time responses).
func (e *Engine) AddTag(tag uint32, moduleID uint32) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	miid := e.nextMIID
	e.nextMIID++
	e.tags[tag] = []gsl.ModuleRef{{ModuleID: moduleID, ModuleInstanceID: miid}}
	return miid
}

// AddTagModules registers an arbitrary set of modules for a tag, including
// more than one — used to exercise the "tag must resolve to exactly one
// module" malformed-response path in pkg/graph.
func (e *Engine) AddTagModules(tag uint32, modules []gsl.ModuleRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tags[tag] = modules
}

func (e *Engine) Tags(ctx context.Context, gkv []uint32) ([]gsl.TagModules, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []gsl.TagModules
	for tag, mods := range e.tags {
		out = append(out, gsl.TagModules{Tag: tag, Modules: mods})
	}
	return out, nil
}

func (e *Engine) Open(ctx context.Context, gkv, ckv []uint32) (gsl.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailOpen {
		return 0, errOpenFailed
	}
	e.nextHandle++
	h := e.nextHandle
	e.opened[h] = true
	e.calls = append(e.calls, "open")
	return h, nil
}

func (e *Engine) Close(ctx context.Context, h gsl.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.opened, h)
	e.calls = append(e.calls, "close")
	return nil
}

func (e *Engine) AddGraph(ctx context.Context, h gsl.Handle, gkv, ckv []uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "add_graph")
	if e.FailAdd {
		return errAddFailed
	}
	return nil
}

func (e *Engine) ChangeGraph(ctx context.Context, h gsl.Handle, gkv, ckv []uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "change_graph")
	if e.FailChange {
		return errChangeFailed
	}
	return nil
}

func (e *Engine) RemoveGraph(ctx context.Context, h gsl.Handle, gkv, ckv []uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "remove_graph")
	if e.FailRemove {
		return errRemoveFailed
	}
	return nil
}

func (e *Engine) Prepare(ctx context.Context, h gsl.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "prepare")
	return nil
}

func (e *Engine) Start(ctx context.Context, h gsl.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "start")
	if e.FailStart {
		return errStartFailed
	}
	return nil
}

func (e *Engine) Stop(ctx context.Context, h gsl.Handle, bundleGKV, bundleCKV []uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "stop")
	return nil
}

func (e *Engine) ConfigureBufferParams(ctx context.Context, h gsl.Handle, miid uint32, count, size int, startThreshold, stopThreshold int, blocking bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "configure_buffer_params")
	return nil
}

func (e *Engine) SetCustomConfig(ctx context.Context, h gsl.Handle, miid uint32, paramID uint32, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "set_custom_config")
	e.customCfg[key(miid, paramID)] = payload
	return nil
}

func (e *Engine) GetCustomConfig(ctx context.Context, h gsl.Handle, miid uint32, paramID uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailGetConfig {
		return nil, errGetConfigFailed
	}
	return e.customCfg[key(miid, paramID)], nil
}

func (e *Engine) SetCalibration(ctx context.Context, h gsl.Handle, miid uint32, ckv []uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "set_calibration")
	return nil
}

func (e *Engine) Read(ctx context.Context, h gsl.Handle, buf *gsl.Buffer) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "read")
	return len(buf.Data), nil
}

func (e *Engine) Write(ctx context.Context, h gsl.Handle, buf *gsl.Buffer) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "write")
	return len(buf.Data), nil
}

func (e *Engine) EOS(ctx context.Context, h gsl.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "eos")
	return nil
}

func (e *Engine) RegisterEventCallback(ctx context.Context, h gsl.Handle, cb func(gsl.Event)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = cb
	return nil
}

// Inject delivers an event as if the engine itself had raised it.
func (e *Engine) Inject(ev gsl.Event) {
	e.mu.Lock()
	cb := e.callback
	e.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// SetCustomConfigPayload lets a test seed the response to a future
// GetCustomConfig call (e.g. an SPR session-time reading).
func (e *Engine) SetCustomConfigPayload(miid, paramID uint32, payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customCfg[key(miid, paramID)] = payload
}

// Calls returns every engine call made so far, in order, for assertions
// about operation ordering (spec §4.4's direction-biased prepare/start/stop
// ordering).
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

func key(miid, paramID uint32) string {
	return fmt.Sprintf("%d:%d", miid, paramID)
}

type engineError string

func (e engineError) Error() string { return string(e) }

const (
	errOpenFailed      engineError = "mock: open failed"
	errStartFailed     engineError = "mock: start failed"
	errAddFailed       engineError = "mock: add_graph failed"
	errChangeFailed    engineError = "mock: change_graph failed"
	errRemoveFailed    engineError = "mock: remove_graph failed"
	errGetConfigFailed engineError = "mock: get_custom_config failed"
)
