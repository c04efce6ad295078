package session

import (
	"context"
	"fmt"
)

// ParamBlob is a single cached parameter write: the module instance and
// param id it targets plus its raw payload. Module instance ids are
// resolved by the caller (typically from a prior get_tag_module_info
// query); param id constants are pure data out of scope per spec §1 —
// this type carries them as opaque keys the session replays later.
type ParamBlob struct {
	ModuleInstanceID uint32
	ParamID          uint32
	Payload          []byte
}

// SetParams implements spec §4.4's "Cached parameter semantics" for
// session-level params: one cached blob per (module_instance_id, param_id)
// target, replaced on every subsequent write to that same target rather
// than appended, and pushed immediately via graph_set_config when the
// session is not CLOSED.
func (s *Session) SetParams(ctx context.Context, p ParamBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cachedSessionParams = replaceParamBlob(s.cachedSessionParams, p)
	if s.state == Closed {
		return nil
	}
	return s.pushParams(ctx, []ParamBlob{p})
}

// SetAIFParams is the per-AIF counterpart of SetParams: cached on the
// attachment (replacing any prior blob for the same target) regardless of
// realization, pushed immediately if the attachment is currently realized.
func (s *Session) SetAIFParams(ctx context.Context, aifID uint32, p ParamBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	att := s.attachments[aifID]
	if att == nil {
		att = &attachment{aifID: aifID}
		s.attachments[aifID] = att
	}
	att.cachedParams = replaceParamBlob(att.cachedParams, p)
	if !att.realized {
		return nil
	}
	return s.pushParams(ctx, []ParamBlob{p})
}

// replaceParamBlob returns cached with p substituted for any existing blob
// targeting the same (ModuleInstanceID, ParamID), or appended if none
// matches. Only the latest write to a given target is ever cached for
// replay (spec §4.4: "caches for replay" names one blob per target, not an
// unbounded write log).
func replaceParamBlob(cached []ParamBlob, p ParamBlob) []ParamBlob {
	for i, c := range cached {
		if c.ModuleInstanceID == p.ModuleInstanceID && c.ParamID == p.ParamID {
			cached[i] = p
			return cached
		}
	}
	return append(cached, p)
}

// pushParams pushes each blob through the owned graph. Caller holds s.mu
// and has already verified the session owns a graph.
func (s *Session) pushParams(ctx context.Context, params []ParamBlob) error {
	for _, p := range params {
		if err := s.g.SetConfig(ctx, p.ModuleInstanceID, p.ParamID, p.Payload); err != nil {
			return fmt.Errorf("session: push params: %w", err)
		}
	}
	return nil
}
