package apiserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/qti-audio/agm/internal/config"
	"github.com/qti-audio/agm/internal/engine/gsl/mock"
	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/runtime"
	"github.com/qti-audio/agm/pkg/session"
)

type handlerFakePCM struct{}

func (f *handlerFakePCM) Open(ctx context.Context, cardID, pcmID int, dir device.Direction, cfg device.MediaConfig) error {
	return nil
}
func (f *handlerFakePCM) Prepare(ctx context.Context) error { return nil }
func (f *handlerFakePCM) Start(ctx context.Context) error   { return nil }
func (f *handlerFakePCM) Stop(ctx context.Context) error    { return nil }
func (f *handlerFakePCM) Close(ctx context.Context) error   { return nil }

func newHandlerTestServer(t *testing.T) (*Server, *runtime.Runtime) {
	t.Helper()
	regPath := filepath.Join(t.TempDir(), "pcm_registry")
	if err := os.WriteFile(regPath, []byte("0-0: speaker playback\n"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	cfg := &config.Config{
		Runtime: config.RuntimeConfig{PCMRegistryPath: regPath},
		Devices: []config.DeviceConfig{
			{Name: "speaker", CardID: 0, PCMID: 0, Direction: config.DirectionPlayback, GKV: []uint32{1, 100}},
		},
	}

	rt, err := runtime.New(context.Background(), runtime.Options{
		Config: cfg,
		Engine: mock.New(),
		PCM:    &handlerFakePCM{},
	})
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	return New(rt), rt
}

func TestSessionOpen_UnknownSessionReturnsInvalid(t *testing.T) {
	srv, _ := newHandlerTestServer(t)
	resp, err := srv.sessionOpen(context.Background(), &sessionIDRequest{SessionID: "nope"})
	if err != nil {
		t.Fatalf("sessionOpen returned transport error: %v", err)
	}
	if resp.Status == 0 {
		t.Fatalf("expected non-zero status for unknown session, got 0")
	}
}

func TestSessionOpen_KnownSessionLifecycle(t *testing.T) {
	srv, rt := newHandlerTestServer(t)
	const sid = "sess-1"
	sess := rt.Sessions.GetOrCreate(sid, session.Config{})
	// Open requires at least one attachment staged OPEN; AIF 1 is the
	// speaker enumerated by newHandlerTestServer.
	if err := sess.ConnectAIF(context.Background(), 1, true); err != nil {
		t.Fatalf("stage connect_aif: %v", err)
	}

	resp, err := srv.sessionOpen(context.Background(), &sessionIDRequest{SessionID: sid})
	if err != nil {
		t.Fatalf("sessionOpen: %v", err)
	}
	if resp.Status != 0 {
		t.Fatalf("sessionOpen status = %d, want 0", resp.Status)
	}

	// Re-opening an already-open session is invalid per spec's lifecycle
	// table — exercises statusCode's ErrInvalidState branch end-to-end.
	resp, err = srv.sessionOpen(context.Background(), &sessionIDRequest{SessionID: sid})
	if err != nil {
		t.Fatalf("sessionOpen (second): %v", err)
	}
	if resp.Status == 0 {
		t.Fatalf("expected non-zero status re-opening an already-open session")
	}
}

func TestGetAIFInfoList_TwoPassSizeConvention(t *testing.T) {
	srv, _ := newHandlerTestServer(t)

	sizeResp, err := srv.getAIFInfoList(context.Background(), &aifInfoListRequest{Size: 0})
	if err != nil {
		t.Fatalf("getAIFInfoList (size pass): %v", err)
	}
	if sizeResp.Size != 1 {
		t.Fatalf("Size = %d, want 1 (one configured device)", sizeResp.Size)
	}
	if len(sizeResp.Entries) != 0 {
		t.Fatalf("expected no payload on the size-only pass, got %d bytes", len(sizeResp.Entries))
	}

	fillResp, err := srv.getAIFInfoList(context.Background(), &aifInfoListRequest{Size: sizeResp.Size})
	if err != nil {
		t.Fatalf("getAIFInfoList (fill pass): %v", err)
	}
	n := 0
	b := fillResp.Entries
	for len(b) > 0 {
		for i := 0; i < 4; i++ {
			v, consumed := protowire.ConsumeVarint(b)
			if consumed < 0 {
				t.Fatalf("malformed packed aif info entry: %v", protowire.ParseError(consumed))
			}
			_ = v
			b = b[consumed:]
		}
		n++
	}
	if n != 1 {
		t.Fatalf("got %d entries, want 1", n)
	}
}
