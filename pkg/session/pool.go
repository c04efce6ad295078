package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qti-audio/agm/internal/engine/gsl"
	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/graph"
)

// Pool is the single process-wide keyed collection of sessions (spec §4.5),
// generalized from the teacher's internal/app.SessionManager (one
// mutex-guarded session) to many, each independently locked.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*Session

	devices   *device.Registry
	engine    gsl.Client
	templates graph.TemplateSet
}

// NewPool constructs an empty pool sharing the given device registry,
// engine client, and tag-template set across every session it creates.
func NewPool(devices *device.Registry, engine gsl.Client, templates graph.TemplateSet) *Pool {
	return &Pool{
		sessions:  make(map[string]*Session),
		devices:   devices,
		engine:    engine,
		templates: templates,
	}
}

// GetOrCreate implements spec §4.5: a missing session id causes a new
// SessionObj to be constructed in CLOSED state and inserted; an existing id
// returns the existing session unchanged, ignoring cfg.
func (p *Pool) GetOrCreate(id string, cfg Config) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[id]; ok {
		return s
	}

	if cfg.Devices == nil {
		cfg.Devices = p.devices
	}
	if cfg.Engine == nil {
		cfg.Engine = p.engine
	}
	if cfg.Templates == nil {
		cfg.Templates = p.templates
	}

	s := newSession(id, cfg, p)
	p.sessions[id] = s
	return s
}

// Get returns an existing session without creating one.
func (p *Pool) Get(id string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	return s, ok
}

// retrieve is the unexported counterpart used internally by a session's own
// loopback-peer and ec-ref checks.
func (p *Pool) retrieve(id string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	return s, ok
}

// Retrieve implements graph.Retriever: the event trampoline's only way back
// from an engine callback to the owning session, looked up by id rather
// than held as a live pointer (spec §9's weak-reference design note).
func (p *Pool) Retrieve(sessID string) (graph.EventSink, bool) {
	s, ok := p.retrieve(sessID)
	if !ok {
		return nil, false
	}
	return s, true
}

// Remove deletes a closed session from the pool, e.g. after an explicit
// destroy verb (spec §4.5). It does not itself close the session.
func (p *Pool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
}

// CloseAll closes every session in the pool, best-effort and concurrently —
// each session has its own lock, so closing one cannot block another (spec
// §4.5: "Pool teardown closes every session (best-effort) before freeing").
// The first error encountered is returned.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	sessions := make([]*Session, 0, len(p.sessions))
	for id, s := range p.sessions {
		ids = append(ids, id)
		sessions = append(sessions, s)
	}
	sort.Strings(ids)
	p.mu.Unlock()

	eg, egCtx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		eg.Go(func() error {
			if s.State() == Closed {
				return nil
			}
			if err := s.Close(egCtx); err != nil {
				return fmt.Errorf("session pool: close all: session %q: %w", s.ID(), err)
			}
			return nil
		})
	}
	closeErr := eg.Wait()

	p.mu.Lock()
	for _, id := range ids {
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	return closeErr
}
