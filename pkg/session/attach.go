package session

import (
	"context"
	"fmt"

	"github.com/qti-audio/agm/pkg/graph"
)

// ConnectAIF implements spec §4.4's connect_aif verb. From CLOSED it only
// stages the request; from any other state it drives a live-attach or
// live-detach immediately.
func (s *Session) ConnectAIF(ctx context.Context, aifID uint32, connect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	att := s.attachments[aifID]
	if att == nil {
		att = &attachment{aifID: aifID}
		s.attachments[aifID] = att
	}

	if s.state == Closed {
		if att.staged && att.stagedConnect == connect {
			return fmt.Errorf("%w: connect_aif(%d, %v) already staged", ErrAlready, aifID, connect)
		}
		att.staged = true
		att.stagedConnect = connect
		return nil
	}

	if connect {
		if att.realized {
			return fmt.Errorf("%w: aif %d already attached", ErrAlready, aifID)
		}
		return s.liveAttach(ctx, att)
	}

	if !att.realized {
		return fmt.Errorf("%w: aif %d not attached", ErrNoAttachment, aifID)
	}
	return s.liveDetach(ctx, att)
}

// liveAttach implements the "live-attach" procedure of spec §4.4. Caller
// holds s.mu.
func (s *Session) liveAttach(ctx context.Context, att *attachment) error {
	dev, err := s.devices.MustLookup(att.aifID)
	if err != nil {
		return err
	}

	opened := s.realizedCount()

	if err := dev.Open(ctx, s.media); err != nil {
		return fmt.Errorf("session: live-attach device open: %w", err)
	}

	gkv, ckv := mergedFlat(s.sessMeta, att.meta, deviceBundleToMetadata(dev.Endpoint))

	switch {
	case opened == 0 && s.state == Closed:
		g, err := graph.Open(ctx, s.engine, s.templates, s.id, gkv, ckv, s.hostless, s.direction.graphDirection(), s.pool, att.aifID)
		if err != nil {
			_ = dev.Close(ctx)
			return fmt.Errorf("session: live-attach graph open: %w", err)
		}
		s.g = g
	case opened == 0:
		candidates, cerr := s.resolveDeviceCandidates(ctx, gkv)
		if cerr != nil {
			_ = dev.Close(ctx)
			return cerr
		}
		if err := s.g.Change(ctx, gkv, ckv, att.aifID, candidates); err != nil {
			_ = dev.Close(ctx)
			return fmt.Errorf("session: live-attach graph change: %w", err)
		}
	default:
		candidates, cerr := s.resolveDeviceCandidates(ctx, gkv)
		if cerr != nil {
			_ = dev.Close(ctx)
			return cerr
		}
		if err := s.g.Add(ctx, gkv, ckv, att.aifID, candidates); err != nil {
			_ = dev.Close(ctx)
			return fmt.Errorf("session: live-attach graph add: %w", err)
		}
	}

	att.realized = true
	att.staged = false
	att.state = dev.State()

	// Replay cached session params on the session's first-ever realized
	// attachment (i.e. the session was CLOSED immediately before this
	// attach), then per-AIF cached params (spec §4.4 "Cached parameter
	// semantics").
	if opened == 0 && len(s.cachedSessionParams) > 0 {
		if err := s.pushParams(ctx, s.cachedSessionParams); err != nil {
			return err
		}
	}
	if len(att.cachedParams) > 0 {
		if err := s.pushParams(ctx, att.cachedParams); err != nil {
			return err
		}
	}

	switch s.state {
	case Prepared, Stopped:
		if err := dev.Prepare(ctx); err != nil {
			return fmt.Errorf("session: live-attach device prepare: %w", err)
		}
		att.state = dev.State()
	case Started:
		if err := dev.Prepare(ctx); err != nil {
			return fmt.Errorf("session: live-attach device prepare: %w", err)
		}
		if err := dev.Start(ctx); err != nil {
			return fmt.Errorf("session: live-attach device start: %w", err)
		}
		att.state = dev.State()
	}

	return nil
}

// liveDetach implements the "live-detach" procedure of spec §4.4. Caller
// holds s.mu.
//
// Resolution of an Open Question (see DESIGN.md): the spec always issues
// "graph_stop" on the last remaining attachment, but graph.Graph.Stop is
// only valid from STARTED. This port issues Stop only when the graph is
// actually Started (the meaningful case — tearing down the one active data
// path); otherwise the last attachment is removed the same way as any
// other, since nothing has been started on the graph yet.
func (s *Session) liveDetach(ctx context.Context, att *attachment) error {
	dev, err := s.devices.MustLookup(att.aifID)
	if err != nil {
		return err
	}

	gkv, ckv := mergedFlat(s.sessMeta, att.meta, deviceBundleToMetadata(dev.Endpoint))

	isLast := s.realizedCount() == 1
	var graphErr error
	if isLast && s.g != nil && s.g.State() == graph.Started {
		graphErr = s.g.Stop(ctx, gkv, ckv)
	} else if s.g != nil {
		graphErr = s.g.Remove(ctx, gkv, ckv)
	}

	devErr := dev.Close(ctx)

	att.realized = false
	att.state = dev.State()

	if graphErr != nil {
		return fmt.Errorf("session: live-detach graph op: %w", graphErr)
	}
	if devErr != nil {
		return fmt.Errorf("session: live-detach device close: %w", devErr)
	}
	return nil
}

// resolveDeviceCandidates queries the engine for the tags a just-merged
// device GKV would resolve to, keeping only device-side tags (spec §4.3
// step 2's device-side template walk), for Graph.Add/Change to decide
// whether a module is newly introduced.
func (s *Session) resolveDeviceCandidates(ctx context.Context, gkv []uint32) ([]graph.ResolvedModuleCandidate, error) {
	tagModules, err := s.engine.Tags(ctx, gkv)
	if err != nil {
		return nil, fmt.Errorf("session: query tags: %w", err)
	}
	var out []graph.ResolvedModuleCandidate
	for _, tm := range tagModules {
		kind, ok := s.templates.Device[tm.Tag]
		if !ok {
			continue
		}
		if len(tm.Modules) != 1 {
			return nil, fmt.Errorf("%w: tag %#x resolved to %d modules, want 1", graph.ErrMalformed, tm.Tag, len(tm.Modules))
		}
		mod := tm.Modules[0]
		out = append(out, graph.ResolvedModuleCandidate{
			Tag:              tm.Tag,
			Kind:             kind,
			ModuleID:         mod.ModuleID,
			ModuleInstanceID: mod.ModuleInstanceID,
		})
	}
	return out, nil
}
