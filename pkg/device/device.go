// Package device implements the process-wide device registry: one
// [Device] per physical audio endpoint, refcounted per lifecycle phase and
// driven through its own state machine independent of any session.
//
// Grounded on the teacher's pkg/audio.Platform/Connection pairing (a device
// here plays the role of a shared, refcounted Connection rather than one
// owned per caller) and on the original AGM C source's device_open/
// device_close refcount discipline.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Direction is the data-flow direction of a device endpoint.
type Direction int

const (
	// RX devices render audio (playback, speakers, HDMI).
	RX Direction = iota
	// TX devices capture audio (microphones).
	TX
)

func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// State is a device's lifecycle state.
type State int

const (
	Closed State = iota
	Opened
	Prepared
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
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

var (
	// ErrInvalidState is returned when an operation is attempted from a
	// state that does not permit it.
	ErrInvalidState = errors.New("device: invalid state")
	// ErrIO is returned when the underlying PCM driver call fails.
	ErrIO = errors.New("device: io error")
)

// MediaConfig is the rate/channel/format triple a device is opened with.
type MediaConfig struct {
	Rate     uint32
	Channels uint32
	Format   uint32
}

// PCM is the boundary to the platform PCM driver, out of scope per spec §1.
// A real platform supplies an implementation; tests use a fake.
type PCM interface {
	Open(ctx context.Context, cardID, pcmID int, dir Direction, cfg MediaConfig) error
	Prepare(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
}

type refcount struct {
	open    int
	prepare int
	start   int
}

// Device is one physical audio endpoint. All mutation happens under mu,
// matching spec §5's per-object lock discipline.
type Device struct {
	AIFID     uint32
	CardID    int
	PCMID     int
	Direction Direction
	Endpoint  Bundle // endpoint metadata, see Bundle below

	mu          sync.Mutex
	state       State
	refs        refcount
	media       MediaConfig
	pcm         PCM
	processed   uint64 // monotonic buffer-transfer counter, wraps at MaxUint64
	prepareDone chan struct{}
}

// Bundle mirrors metadata.Bundle's shape without importing pkg/metadata, to
// keep the device package free of a dependency on the session-facing
// metadata algebra; device.Registry.Enumerate fills it directly from the
// platform catalogue. Callers that need algebra merge it via pkg/metadata
// at the call site.
type Bundle struct {
	GKV []uint32 // flattened key list; values carried alongside in CKV-like pairs are owned by callers
}

// New constructs a Device in the CLOSED state with no PCM handle bound yet.
// SetPCM must be called before Open.
func New(aifID uint32, cardID, pcmID int, dir Direction) *Device {
	return &Device{
		AIFID:     aifID,
		CardID:    cardID,
		PCMID:     pcmID,
		Direction: dir,
		state:     Closed,
	}
}

// SetPCM binds the PCM driver implementation used for subsequent Open calls.
func (d *Device) SetPCM(pcm PCM) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pcm = pcm
}

// State returns the device's current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open opens the PCM with cfg if this is the first caller (open_refcnt was
// zero); otherwise it just increments the refcount. Per spec §4.2, fails
// [ErrIO] if the PCM is not ready; the refcount is rolled back on failure.
func (d *Device) Open(ctx context.Context, cfg MediaConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs.open > 0 {
		if cfg != d.media {
			return fmt.Errorf("%w: aif %d in use with a different media config", ErrInvalidState, d.AIFID)
		}
		d.refs.open++
		return nil
	}

	if d.pcm == nil {
		return fmt.Errorf("%w: no pcm driver bound for aif %d", ErrIO, d.AIFID)
	}
	if err := d.pcm.Open(ctx, d.CardID, d.PCMID, d.Direction, cfg); err != nil {
		slog.Warn("device: pcm open failed", "aif_id", d.AIFID, "error", err)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	d.media = cfg
	d.state = Opened
	d.refs.open = 1
	return nil
}

// Prepare is idempotent by refcount. The first caller dispatches the PCM
// prepare onto a short-lived worker goroutine (standing in for the
// real-time-priority thread of spec §5 — see SPEC_FULL.md §5 for why a
// bounded goroutine + channel join is the Go-idiomatic substitute); Start
// joins that worker before inspecting state, which is the synchronization
// point the original requires.
func (d *Device) Prepare(ctx context.Context) error {
	d.mu.Lock()
	if d.state != Opened && d.state != Prepared && d.state != Stopped {
		d.mu.Unlock()
		return fmt.Errorf("%w: prepare from %s", ErrInvalidState, d.state)
	}
	if d.refs.prepare > 0 {
		d.refs.prepare++
		d.mu.Unlock()
		return nil
	}

	done := make(chan error, 1)
	d.prepareDone = make(chan struct{})
	pcm := d.pcm
	d.refs.prepare = 1
	d.mu.Unlock()

	go func() {
		err := pcm.Prepare(ctx)
		done <- err
	}()

	err := <-done
	d.mu.Lock()
	close(d.prepareDone)
	d.prepareDone = nil
	if err != nil {
		d.refs.prepare = 0
		d.mu.Unlock()
		slog.Warn("device: pcm prepare failed", "aif_id", d.AIFID, "error", err)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	d.state = Prepared
	d.mu.Unlock()
	return nil
}

// Start refcounts start; the first start transitions STARTED, and drives the
// actual PCM start. Waits for any in-flight Prepare to finish first.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	for d.prepareDone != nil {
		wait := d.prepareDone
		d.mu.Unlock()
		<-wait
		d.mu.Lock()
	}

	if d.refs.start > 0 {
		d.refs.start++
		d.mu.Unlock()
		return nil
	}
	if d.state != Prepared && d.state != Stopped {
		d.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, d.state)
	}
	pcm := d.pcm
	d.mu.Unlock()

	if err := pcm.Start(ctx); err != nil {
		slog.Warn("device: pcm start failed", "aif_id", d.AIFID, "error", err)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	d.mu.Lock()
	d.state = Started
	d.refs.start = 1
	d.mu.Unlock()
	return nil
}

// Stop decrements the start refcount; PCM stop is issued only on the last
// stopper.
func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.refs.start == 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: stop with no active starter", ErrInvalidState)
	}
	d.refs.start--
	if d.refs.start > 0 {
		d.mu.Unlock()
		return nil
	}
	pcm := d.pcm
	d.mu.Unlock()

	if err := pcm.Stop(ctx); err != nil {
		slog.Warn("device: pcm stop failed", "aif_id", d.AIFID, "error", err)
		d.mu.Lock()
		d.state = Stopped
		d.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	d.mu.Lock()
	d.state = Stopped
	d.mu.Unlock()
	return nil
}

// Close decrements the open refcount; on reaching zero it closes the PCM,
// zeros the prepare/start counts, and returns the device to CLOSED.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.refs.open == 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: close with no open reference", ErrInvalidState)
	}
	d.refs.open--
	if d.refs.open > 0 {
		d.mu.Unlock()
		return nil
	}
	pcm := d.pcm
	d.mu.Unlock()

	var closeErr error
	if pcm != nil {
		if err := pcm.Close(ctx); err != nil {
			slog.Warn("device: pcm close failed", "aif_id", d.AIFID, "error", err)
			closeErr = fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	// Close paths unconditionally reset local state even on a PCM error —
	// this is deliberately ported from the original's best-effort teardown
	// (spec §9 design note), documented here rather than silently dropped.
	d.mu.Lock()
	d.refs.prepare = 0
	d.refs.start = 0
	d.state = Closed
	d.mu.Unlock()

	return closeErr
}

// SetMediaConfig implements spec §6's aif_set_media_config: stores the
// rate/channel/format triple this device will use on its next Open. Fails
// [ErrInvalidState] ("BUSY" in the verb table) if the device is currently
// open with a different config already active — changing a live device's
// format out from under its current user is exactly the case Open's own
// refcount-increment path also now rejects.
func (d *Device) SetMediaConfig(cfg MediaConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs.open > 0 && cfg != d.media {
		return fmt.Errorf("%w: aif %d in use with a different media config", ErrInvalidState, d.AIFID)
	}
	d.media = cfg
	return nil
}

// MediaConfig returns the device's currently stored rate/channel/format
// triple, whether set by [SetMediaConfig] or a prior Open.
func (d *Device) MediaConfig() MediaConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.media
}

// SetEndpointMetadata implements spec §6's aif_set_metadata: replaces this
// device's own endpoint bundle, shared by every session with this AIF
// attached (unlike session_aif_set_metadata, which is scoped to one
// session's attachment record).
func (d *Device) SetEndpointMetadata(gkv []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Endpoint = Bundle{GKV: append([]uint32(nil), gkv...)}
}

// IncrementProcessed records one completed buffer transfer and returns the
// updated count. Wraps to zero exactly once past MaxUint64, per spec §8.
func (d *Device) IncrementProcessed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processed++
	return d.processed
}

// ProcessedCount returns the current monotonic buffer-transfer count.
func (d *Device) ProcessedCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processed
}

// OpenRefs and StartRefs expose refcounts for invariant testing
// (spec §8: "D.open_refcnt > 0 iff D.state >= OPENED").
func (d *Device) OpenRefs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs.open
}

func (d *Device) StartRefs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs.start
}

// IsOutputEndpoint reports whether this device renders audio (RX), used by
// pkg/graph.Prepare to validate a resolved hardware-endpoint module's
// direction against its owning device (spec §4.3).
func (d *Device) IsOutputEndpoint() bool {
	return d.Direction == RX
}
