package session

import (
	"context"
	"fmt"

	"github.com/qti-audio/agm/pkg/metadata"
)

// TagModuleInfo implements spec §6's session_aif_get_tag_module_info: the
// engine module a tag resolved to under this session's currently-owned
// graph. The two-pass size protocol itself (spec §6: "*size = 0 reports the
// required size") is a transport-layer concern handled by internal/apiserver
// around this call, not by the session.
func (s *Session) TagModuleInfo(tag uint32) (moduleID, moduleInstanceID uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g == nil {
		return 0, 0, false
	}
	m, found := s.g.ModuleForTag(tag)
	if !found {
		return 0, 0, false
	}
	return m.ModuleID, m.ModuleInstanceID, true
}

// SetParamsWithTag implements spec §6's set_params_with_tag: "engine
// set-config scoped to one tag" — resolves tag to its module instance on
// this session's graph and pushes payload there, caching it the same way
// SetAIFParams does so it replays on the attachment's next realization.
func (s *Session) SetParamsWithTag(ctx context.Context, aifID, tag, paramID uint32, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.g == nil {
		return fmt.Errorf("%w: set_params_with_tag with no owned graph", ErrInvalidState)
	}
	m, ok := s.g.ModuleForTag(tag)
	if !ok {
		return fmt.Errorf("%w: tag %#x not resolved on this graph", ErrInvalidState, tag)
	}

	att := s.attachments[aifID]
	if att == nil {
		att = &attachment{aifID: aifID}
		s.attachments[aifID] = att
	}
	blob := ParamBlob{ModuleInstanceID: m.ModuleInstanceID, ParamID: paramID, Payload: payload}
	att.cachedParams = replaceParamBlob(att.cachedParams, blob)

	if !att.realized {
		return nil
	}
	return s.pushParams(ctx, []ParamBlob{blob})
}

// GetParams implements spec §6's session_get_params: a direct round trip
// through the engine's get-custom-config, no caching (only set_params
// caches for replay).
func (s *Session) GetParams(ctx context.Context, moduleInstanceID, paramID uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.g == nil {
		return nil, fmt.Errorf("%w: get_params with no owned graph", ErrInvalidState)
	}
	return s.g.GetConfig(ctx, moduleInstanceID, paramID)
}

// SetCalibration implements spec §6's session_aif_set_cal: "update_cal on
// all three bundles, re-issue engine set_cal". The third bundle spec §4.2
// names (the device's own endpoint bundle) carries no CKV of its own, so
// the two CKV-bearing bundles this port tracks — the session bundle and
// the AIF's attachment bundle — are the ones updated; the device-owned
// hardware-endpoint module resolved for aifID is what the re-issued
// engine set_cal call targets.
func (s *Session) SetCalibration(ctx context.Context, aifID uint32, ckv []metadata.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata.UpdateCal(s.sessMeta, ckv)

	att := s.attachments[aifID]
	if att == nil {
		att = &attachment{aifID: aifID}
		s.attachments[aifID] = att
	}
	if att.meta == nil {
		att.meta = &metadata.Bundle{}
	}
	metadata.UpdateCal(att.meta, ckv)

	if s.g == nil || !att.realized {
		return nil
	}
	m, ok := s.g.ModuleForDevice(aifID)
	if !ok {
		return nil
	}
	flatCKV := make([]uint32, 0, len(ckv)*2)
	for _, p := range ckv {
		flatCKV = append(flatCKV, p.Key, p.Value)
	}
	return s.g.SetCalibration(ctx, m.ModuleInstanceID, flatCKV)
}
