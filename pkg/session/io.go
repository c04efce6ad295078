package session

import (
	"context"
	"fmt"
)

// Write passes buffer data through to the owned graph (spec §4.4). Requires
// a graph to exist (session not CLOSED). Every successful transfer ticks
// the processed-buffer counter on each currently realized device, the
// figure spec §6's get_hw_processed_buff_cnt exposes via [ProcessedCount].
func (s *Session) Write(ctx context.Context, data []byte) (int, error) {
	s.mu.Lock()
	g := s.g
	s.mu.Unlock()
	if g == nil {
		return 0, fmt.Errorf("%w: write with no open graph", ErrInvalidState)
	}
	n, err := g.Write(ctx, data)
	if err == nil {
		s.incrementProcessed()
	}
	return n, err
}

// Read passes buffer data through to the owned graph.
func (s *Session) Read(ctx context.Context, data []byte) (int, error) {
	s.mu.Lock()
	g := s.g
	s.mu.Unlock()
	if g == nil {
		return 0, fmt.Errorf("%w: read with no open graph", ErrInvalidState)
	}
	n, err := g.Read(ctx, data)
	if err == nil {
		s.incrementProcessed()
	}
	return n, err
}

// incrementProcessed ticks every currently realized device's monotonic
// buffer-transfer counter.
func (s *Session) incrementProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, att := range s.attachments {
		if !att.realized {
			continue
		}
		if dev, ok := s.devices.Lookup(id); ok {
			dev.IncrementProcessed()
		}
	}
}

// ProcessedCount implements spec §6's get_hw_processed_buff_cnt: the sum of
// every currently attached device's monotonic buffer-transfer counter.
// Wraps to zero exactly once past MaxUint64, per spec §8 — each underlying
// [device.Device.IncrementProcessed] wraps independently; summing wrapped
// counters is the natural Go realization of a figure the original exposes
// per hardware endpoint.
func (s *Session) ProcessedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for id, att := range s.attachments {
		if !att.realized {
			continue
		}
		if dev, ok := s.devices.Lookup(id); ok {
			total += dev.ProcessedCount()
		}
	}
	return total
}

// EOS signals end-of-stream through to the owned graph.
func (s *Session) EOS(ctx context.Context) error {
	s.mu.Lock()
	g := s.g
	s.mu.Unlock()
	if g == nil {
		return fmt.Errorf("%w: eos with no open graph", ErrInvalidState)
	}
	return g.EOS(ctx)
}

// SessionTime returns the graph's SPR-reported session time.
func (s *Session) SessionTime(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	g := s.g
	s.mu.Unlock()
	if g == nil {
		return 0, fmt.Errorf("%w: session_time with no open graph", ErrInvalidState)
	}
	return g.SessionTime(ctx)
}
