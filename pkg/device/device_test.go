package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakePCM struct {
	mu         sync.Mutex
	openCalls  int
	startCalls int
	stopCalls  int
	closeCalls int
	failStart  bool
	failOpen   bool
}

func (f *fakePCM) Open(ctx context.Context, cardID, pcmID int, dir Direction, cfg MediaConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if f.failOpen {
		return errors.New("pcm not ready")
	}
	return nil
}

func (f *fakePCM) Prepare(ctx context.Context) error { return nil }

func (f *fakePCM) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.failStart {
		return errors.New("start failed")
	}
	return nil
}

func (f *fakePCM) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakePCM) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func TestOpenRefcounting(t *testing.T) {
	d := New(1, 0, 0, RX)
	pcm := &fakePCM{}
	d.SetPCM(pcm)
	ctx := context.Background()

	if err := d.Open(ctx, MediaConfig{Rate: 48000}); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := d.Open(ctx, MediaConfig{Rate: 48000}); err != nil {
		t.Fatalf("second open: %v", err)
	}
	if pcm.openCalls != 1 {
		t.Errorf("pcm.Open called %d times, want 1", pcm.openCalls)
	}
	if d.OpenRefs() != 2 {
		t.Errorf("OpenRefs = %d, want 2", d.OpenRefs())
	}
	if d.State() != Opened {
		t.Errorf("state = %v, want OPENED", d.State())
	}

	if err := d.Close(ctx); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if d.State() != Opened {
		t.Errorf("state after partial close = %v, want still OPENED", d.State())
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if pcm.closeCalls != 1 {
		t.Errorf("pcm.Close called %d times, want 1", pcm.closeCalls)
	}
	if d.State() != Closed {
		t.Errorf("state = %v, want CLOSED", d.State())
	}
}

func TestOpenFailureDoesNotBumpRefcount(t *testing.T) {
	d := New(1, 0, 0, RX)
	pcm := &fakePCM{failOpen: true}
	d.SetPCM(pcm)

	err := d.Open(context.Background(), MediaConfig{})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if d.OpenRefs() != 0 {
		t.Errorf("OpenRefs = %d, want 0 after failed open", d.OpenRefs())
	}
	if d.State() != Closed {
		t.Errorf("state = %v, want CLOSED after failed open", d.State())
	}
}

func TestPrepareStartStopLifecycle(t *testing.T) {
	d := New(1, 0, 0, RX)
	pcm := &fakePCM{}
	d.SetPCM(pcm)
	ctx := context.Background()

	if err := d.Open(ctx, MediaConfig{}); err != nil {
		t.Fatal(err)
	}
	if err := d.Prepare(ctx); err != nil {
		t.Fatal(err)
	}
	if d.State() != Prepared {
		t.Fatalf("state = %v, want PREPARED", d.State())
	}
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if d.State() != Started {
		t.Fatalf("state = %v, want STARTED", d.State())
	}
	if d.StartRefs() != 1 {
		t.Fatalf("StartRefs = %d, want 1", d.StartRefs())
	}
	if err := d.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if d.State() != Stopped {
		t.Fatalf("state = %v, want STOPPED", d.State())
	}
	if pcm.stopCalls != 1 {
		t.Errorf("pcm.Stop called %d times, want 1", pcm.stopCalls)
	}
}

func TestStartFailureLeavesStateUnchanged(t *testing.T) {
	d := New(1, 0, 0, RX)
	pcm := &fakePCM{failStart: true}
	d.SetPCM(pcm)
	ctx := context.Background()

	if err := d.Open(ctx, MediaConfig{}); err != nil {
		t.Fatal(err)
	}
	if err := d.Prepare(ctx); err != nil {
		t.Fatal(err)
	}
	err := d.Start(ctx)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if d.State() != Prepared {
		t.Errorf("state = %v, want still PREPARED after failed start", d.State())
	}
	if d.StartRefs() != 0 {
		t.Errorf("StartRefs = %d, want 0", d.StartRefs())
	}
}

func TestProcessedCountWraps(t *testing.T) {
	d := New(1, 0, 0, RX)
	d.processed = ^uint64(0) // MaxUint64
	got := d.IncrementProcessed()
	if got != 0 {
		t.Errorf("IncrementProcessed after max = %d, want 0 (wraparound)", got)
	}
}

func TestRegistryEnumerateStableOrder(t *testing.T) {
	r := NewRegistry()
	entries := []Entry{
		{CardID: 0, PCMID: 0, Name: "speaker", Direction: RX},
		{CardID: 0, PCMID: 1, Name: "mic", Direction: TX},
	}
	r.Enumerate(entries, nil)

	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}
	list := r.List()
	if list[0].AIFID != 1 || list[1].AIFID != 2 {
		t.Errorf("AIF ids = %d, %d, want 1, 2 in order", list[0].AIFID, list[1].AIFID)
	}
	if _, ok := r.Lookup(1); !ok {
		t.Error("Lookup(1) not found")
	}
	if _, ok := r.Lookup(99); ok {
		t.Error("Lookup(99) unexpectedly found")
	}
}

func TestOpen_RejectsDifferentMediaConfigWhileInUse(t *testing.T) {
	d := New(1, 0, 0, RX)
	d.SetPCM(&fakePCM{})
	ctx := context.Background()

	if err := d.Open(ctx, MediaConfig{Rate: 48000, Channels: 2}); err != nil {
		t.Fatalf("first open: %v", err)
	}
	err := d.Open(ctx, MediaConfig{Rate: 16000, Channels: 1})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("open with different config while in use: got %v, want ErrInvalidState (BUSY)", err)
	}
	if d.OpenRefs() != 1 {
		t.Errorf("rejected open must not bump the refcount, got %d", d.OpenRefs())
	}
}

func TestSetMediaConfig_RejectsDifferentConfigWhileInUse(t *testing.T) {
	d := New(1, 0, 0, RX)
	d.SetPCM(&fakePCM{})
	ctx := context.Background()

	if err := d.SetMediaConfig(MediaConfig{Rate: 48000}); err != nil {
		t.Fatalf("set media config on closed device: %v", err)
	}
	if err := d.Open(ctx, d.MediaConfig()); err != nil {
		t.Fatalf("open: %v", err)
	}

	err := d.SetMediaConfig(MediaConfig{Rate: 16000})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("SetMediaConfig while in use with a different value: got %v, want ErrInvalidState (BUSY)", err)
	}

	if err := d.SetMediaConfig(MediaConfig{Rate: 48000}); err != nil {
		t.Errorf("SetMediaConfig with the same value while in use should succeed, got %v", err)
	}
}
