package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/graph"
)

// Open implements spec §4.4's open(): realizes every attachment staged OPEN
// (in ascending AIF-id order for determinism), unwinding on any failure.
// Staged loopback/ec-ref edges are realized afterwards.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Closed {
		return fmt.Errorf("%w: open from %s", ErrInvalidState, s.state)
	}

	var staged []uint32
	for id, att := range s.attachments {
		if att.staged && att.stagedConnect {
			staged = append(staged, id)
		}
	}
	if len(staged) == 0 {
		return fmt.Errorf("%w: open with no staged attachment", ErrInvalidState)
	}
	sort.Slice(staged, func(i, j int) bool { return staged[i] < staged[j] })

	var realized []uint32
	for _, id := range staged {
		att := s.attachments[id]
		if err := s.liveAttach(ctx, att); err != nil {
			for _, rid := range realized {
				if derr := s.liveDetach(ctx, s.attachments[rid]); derr != nil {
					slog.Warn("session: open unwind detach failed", "session_id", s.id, "aif_id", rid, "error", derr)
				}
			}
			if s.g != nil {
				_ = s.g.Close(ctx)
				s.g = nil
			}
			return fmt.Errorf("session: open: %w", err)
		}
		realized = append(realized, id)
	}

	s.state = Opened

	if s.loopback.hasStaged {
		if err := s.realizeLoopback(ctx); err != nil {
			slog.Warn("session: open: realize staged loopback failed", "session_id", s.id, "error", err)
		}
	}
	if s.ecRef.hasStaged {
		if err := s.realizeEcRef(ctx); err != nil {
			slog.Warn("session: open: realize staged ec-ref failed", "session_id", s.id, "error", err)
		}
	}

	return nil
}

// Prepare implements spec §4.4's direction-biased prepare ordering: TX
// prepares the graph before its devices; RX prepares devices first.
func (s *Session) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Opened && s.state != Prepared && s.state != Stopped {
		return fmt.Errorf("%w: prepare from %s", ErrInvalidState, s.state)
	}

	deviceFor := func(aifID uint32) graph.DeviceDirectionCheck {
		d, ok := s.devices.Lookup(aifID)
		if !ok {
			return nil
		}
		return d
	}

	if s.direction == TX {
		if err := s.g.Prepare(ctx, s.buffers, deviceFor); err != nil {
			return fmt.Errorf("session: prepare graph: %w", err)
		}
		if err := s.prepareRealizedDevices(ctx); err != nil {
			return err
		}
	} else {
		if err := s.prepareRealizedDevices(ctx); err != nil {
			return err
		}
		if err := s.g.Prepare(ctx, s.buffers, deviceFor); err != nil {
			return fmt.Errorf("session: prepare graph: %w", err)
		}
	}

	s.state = Prepared
	return nil
}

func (s *Session) prepareRealizedDevices(ctx context.Context) error {
	for id, att := range s.attachments {
		if !att.realized {
			continue
		}
		dev, err := s.devices.MustLookup(id)
		if err != nil {
			return err
		}
		if err := dev.Prepare(ctx); err != nil {
			return fmt.Errorf("session: prepare device %d: %w", id, err)
		}
		att.state = dev.State()
	}
	return nil
}

// Start implements spec §4.4's direction-biased start ordering, the
// loopback-peer/ec-ref-device readiness checks, and rollback on any
// device_start failure (spec §8 scenario 3).
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Prepared && s.state != Stopped {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.state)
	}

	if s.direction == TX && s.loopback.enabled {
		peer, ok := s.pool.retrieve(s.loopback.peerSessID)
		if !ok || peer.State() != Started {
			return fmt.Errorf("%w: loopback peer %q not started", ErrInvalidState, s.loopback.peerSessID)
		}
	}
	if s.ecRef.enabled {
		dev, ok := s.devices.Lookup(s.ecRef.aifID)
		if !ok || dev.State() != device.Started {
			return fmt.Errorf("%w: ec-ref device %d not started", ErrInvalidState, s.ecRef.aifID)
		}
	}

	var started []uint32
	startDevices := func() error {
		for id, att := range s.attachments {
			if !att.realized {
				continue
			}
			dev, err := s.devices.MustLookup(id)
			if err != nil {
				return err
			}
			if err := dev.Start(ctx); err != nil {
				return fmt.Errorf("session: start device %d: %w", id, err)
			}
			att.state = dev.State()
			started = append(started, id)
		}
		return nil
	}

	if s.direction == TX {
		if err := s.g.Start(ctx); err != nil {
			return fmt.Errorf("session: start graph: %w", err)
		}
		if err := startDevices(); err != nil {
			s.unwindStart(ctx, started)
			return err
		}
	} else {
		if err := startDevices(); err != nil {
			s.unwindStart(ctx, started)
			return err
		}
		if err := s.g.Start(ctx); err != nil {
			s.unwindStart(ctx, started)
			return err
		}
	}

	s.state = Started
	return nil
}

// unwindStart stops every device that was started and issues a best-effort
// graph_stop, per spec §4.4: "On any device_start failure, unwind
// previously started devices and graph_stop." Caller holds s.mu.
func (s *Session) unwindStart(ctx context.Context, started []uint32) {
	for _, id := range started {
		att := s.attachments[id]
		dev, err := s.devices.MustLookup(id)
		if err != nil {
			continue
		}
		if err := dev.Stop(ctx); err != nil {
			slog.Warn("session: start rollback: device stop failed", "session_id", s.id, "aif_id", id, "error", err)
		}
		att.state = dev.State()
	}
	if s.g != nil {
		if err := s.g.Stop(ctx, nil, nil); err != nil {
			slog.Debug("session: start rollback: graph stop failed (graph may not have started)", "session_id", s.id, "error", err)
		}
	}
}

// Stop implements spec §4.4's mirrored stop ordering: RX stops the graph
// first, TX stops devices first. Every realized device is stopped
// concurrently via errgroup since each is an independent PCM driver call;
// all stops are attempted regardless of failure (best-effort), and the
// first error encountered — device or graph — is returned.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Started {
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, s.state)
	}

	stopDevices := func() error {
		eg, egCtx := errgroup.WithContext(ctx)
		for id, att := range s.attachments {
			if !att.realized {
				continue
			}
			id, att := id, att
			eg.Go(func() error {
				dev, err := s.devices.MustLookup(id)
				if err != nil {
					return err
				}
				err = dev.Stop(egCtx)
				att.state = dev.State()
				if err != nil {
					return fmt.Errorf("session: stop device %d: %w", id, err)
				}
				return nil
			})
		}
		return eg.Wait()
	}
	stopGraph := func() error {
		if s.g == nil {
			return nil
		}
		if err := s.g.Stop(ctx, nil, nil); err != nil {
			return fmt.Errorf("session: stop graph: %w", err)
		}
		return nil
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.direction == RX {
		record(stopGraph())
		record(stopDevices())
	} else {
		record(stopDevices())
		record(stopGraph())
	}

	s.state = Stopped
	return firstErr
}

// Close implements spec §4.4's close(): best-effort graph stop if STARTED,
// then graph_close, then device_close for every realized attachment.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		return fmt.Errorf("%w: already closed", ErrAlready)
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.state == Started && s.g != nil {
		if err := s.g.Stop(ctx, nil, nil); err != nil {
			record(fmt.Errorf("session: close: stop graph: %w", err))
		}
	}

	if s.g != nil {
		if err := s.g.Close(ctx); err != nil {
			record(fmt.Errorf("session: close: graph close: %w", err))
		}
		s.g = nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for id, att := range s.attachments {
		if !att.realized {
			continue
		}
		id, att := id, att
		eg.Go(func() error {
			dev, err := s.devices.MustLookup(id)
			if err != nil {
				return err
			}
			err = dev.Close(egCtx)
			att.realized = false
			att.state = dev.State()
			if err != nil {
				return fmt.Errorf("session: close: device %d: %w", id, err)
			}
			return nil
		})
	}
	record(eg.Wait())

	s.state = Closed
	return firstErr
}

// Pause and Resume are pure graph operations (spec §4.4); a graph with no
// resolved TAG_PAUSE module accepts both as a silent no-op (spec §8
// scenario 5).
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Started {
		return fmt.Errorf("%w: pause from %s", ErrInvalidState, s.state)
	}
	if err := s.g.Pause(ctx); err != nil {
		return fmt.Errorf("session: pause: %w", err)
	}
	s.state = Paused
	return nil
}

func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidState, s.state)
	}
	if err := s.g.Resume(ctx); err != nil {
		return fmt.Errorf("session: resume: %w", err)
	}
	s.state = Started
	return nil
}
