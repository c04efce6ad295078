package runtime

import (
	"context"

	"github.com/qti-audio/agm/internal/engine/gsl"
	"github.com/qti-audio/agm/internal/resilience"
)

// breakerClient wraps a gsl.Client so every call that crosses into the
// engine process trips a shared *resilience.CircuitBreaker on repeated
// failure, degrading a wedged engine to fast ErrIO-classified errors
// instead of hanging every session indefinitely (SPEC_FULL.md §10). The
// breaker is process-wide rather than per-Graph: a Graph's lifetime is one
// open-to-close cycle, often too short to accumulate MaxFailures on its
// own, while the underlying engine command channel is a single shared
// transport per spec.md §1 — so a fault on one graph's command is already
// meaningful signal about the channel every other graph shares.
type breakerClient struct {
	gsl.Client
	cb *resilience.CircuitBreaker
}

var _ gsl.Client = (*breakerClient)(nil)

// wrapEngine returns engine wrapped with a fresh circuit breaker, or engine
// itself unchanged if engine is already nil (callers pass a nil engine only
// in tests that construct a Runtime around a fake they don't want wrapped).
func wrapEngine(engine gsl.Client, cfg resilience.CircuitBreakerConfig) gsl.Client {
	if engine == nil {
		return nil
	}
	return &breakerClient{Client: engine, cb: resilience.NewCircuitBreaker(cfg)}
}

func (b *breakerClient) Tags(ctx context.Context, gkv []uint32) (out []gsl.TagModules, err error) {
	err = b.cb.Execute(func() error {
		out, err = b.Client.Tags(ctx, gkv)
		return err
	})
	return out, err
}

func (b *breakerClient) Open(ctx context.Context, gkv, ckv []uint32) (h gsl.Handle, err error) {
	err = b.cb.Execute(func() error {
		h, err = b.Client.Open(ctx, gkv, ckv)
		return err
	})
	return h, err
}

func (b *breakerClient) Close(ctx context.Context, h gsl.Handle) error {
	return b.cb.Execute(func() error { return b.Client.Close(ctx, h) })
}

func (b *breakerClient) AddGraph(ctx context.Context, h gsl.Handle, gkv, ckv []uint32) error {
	return b.cb.Execute(func() error { return b.Client.AddGraph(ctx, h, gkv, ckv) })
}

func (b *breakerClient) ChangeGraph(ctx context.Context, h gsl.Handle, gkv, ckv []uint32) error {
	return b.cb.Execute(func() error { return b.Client.ChangeGraph(ctx, h, gkv, ckv) })
}

func (b *breakerClient) RemoveGraph(ctx context.Context, h gsl.Handle, gkv, ckv []uint32) error {
	return b.cb.Execute(func() error { return b.Client.RemoveGraph(ctx, h, gkv, ckv) })
}

func (b *breakerClient) Prepare(ctx context.Context, h gsl.Handle) error {
	return b.cb.Execute(func() error { return b.Client.Prepare(ctx, h) })
}

func (b *breakerClient) Start(ctx context.Context, h gsl.Handle) error {
	return b.cb.Execute(func() error { return b.Client.Start(ctx, h) })
}

func (b *breakerClient) Stop(ctx context.Context, h gsl.Handle, bundleGKV, bundleCKV []uint32) error {
	return b.cb.Execute(func() error { return b.Client.Stop(ctx, h, bundleGKV, bundleCKV) })
}

func (b *breakerClient) ConfigureBufferParams(ctx context.Context, h gsl.Handle, miid uint32, count, size int, startThreshold, stopThreshold int, blocking bool) error {
	return b.cb.Execute(func() error {
		return b.Client.ConfigureBufferParams(ctx, h, miid, count, size, startThreshold, stopThreshold, blocking)
	})
}

func (b *breakerClient) SetCustomConfig(ctx context.Context, h gsl.Handle, miid uint32, paramID uint32, payload []byte) error {
	return b.cb.Execute(func() error { return b.Client.SetCustomConfig(ctx, h, miid, paramID, payload) })
}

func (b *breakerClient) GetCustomConfig(ctx context.Context, h gsl.Handle, miid uint32, paramID uint32) (out []byte, err error) {
	err = b.cb.Execute(func() error {
		out, err = b.Client.GetCustomConfig(ctx, h, miid, paramID)
		return err
	})
	return out, err
}

func (b *breakerClient) SetCalibration(ctx context.Context, h gsl.Handle, miid uint32, ckv []uint32) error {
	return b.cb.Execute(func() error { return b.Client.SetCalibration(ctx, h, miid, ckv) })
}

func (b *breakerClient) Read(ctx context.Context, h gsl.Handle, buf *gsl.Buffer) (n int, err error) {
	err = b.cb.Execute(func() error {
		n, err = b.Client.Read(ctx, h, buf)
		return err
	})
	return n, err
}

func (b *breakerClient) Write(ctx context.Context, h gsl.Handle, buf *gsl.Buffer) (n int, err error) {
	err = b.cb.Execute(func() error {
		n, err = b.Client.Write(ctx, h, buf)
		return err
	})
	return n, err
}

func (b *breakerClient) EOS(ctx context.Context, h gsl.Handle) error {
	return b.cb.Execute(func() error { return b.Client.EOS(ctx, h) })
}

// RegisterEventCallback is not wrapped: it registers a trampoline once at
// graph-open time rather than issuing a blocking engine command, so there
// is nothing for the breaker to protect against.
func (b *breakerClient) RegisterEventCallback(ctx context.Context, h gsl.Handle, cb func(gsl.Event)) error {
	return b.Client.RegisterEventCallback(ctx, h, cb)
}
