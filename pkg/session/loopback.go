package session

import (
	"context"
	"fmt"

	"github.com/qti-audio/agm/pkg/metadata"
)

// SetLoopback implements spec §4.4's set_loopback: toggles a loopback edge
// to a peer playback session. If already in the requested state for the
// same peer, fails [ErrAlready]. On a non-CLOSED session, the edge is
// realized immediately via graph_add/graph_remove on this session's graph;
// otherwise it is staged for realization at the next open.
func (s *Session) SetLoopback(ctx context.Context, peerSessID string, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopback.enabled == enable && s.loopback.peerSessID == peerSessID {
		return fmt.Errorf("%w: loopback(%q, %v) already set", ErrAlready, peerSessID, enable)
	}

	if s.state == Closed {
		s.loopback.hasStaged = true
		s.loopback.stagedPeer = peerSessID
		s.loopback.stagedEnable = enable
		return nil
	}

	peer, ok := s.pool.retrieve(peerSessID)
	if !ok {
		return fmt.Errorf("%w: unknown peer session %q", ErrNoAttachment, peerSessID)
	}

	gkv, ckv := mergedFlat(s.sessMeta, peer.snapshotMeta())
	var err error
	if enable {
		err = s.g.Add(ctx, gkv, ckv, 0, nil)
	} else {
		err = s.g.Remove(ctx, gkv, ckv)
	}
	if err != nil {
		return fmt.Errorf("session: set_loopback: %w", err)
	}

	s.loopback.enabled = enable
	s.loopback.peerSessID = peerSessID
	return nil
}

// realizeLoopback applies a staged loopback edge at open() time. Caller
// holds s.mu and has already transitioned state away from CLOSED.
func (s *Session) realizeLoopback(ctx context.Context) error {
	peer, ok := s.pool.retrieve(s.loopback.stagedPeer)
	if !ok {
		return fmt.Errorf("%w: unknown loopback peer session %q", ErrNoAttachment, s.loopback.stagedPeer)
	}
	gkv, ckv := mergedFlat(s.sessMeta, peer.snapshotMeta())
	if s.loopback.stagedEnable {
		if err := s.g.Add(ctx, gkv, ckv, 0, nil); err != nil {
			return fmt.Errorf("session: realize loopback: %w", err)
		}
	} else if err := s.g.Remove(ctx, gkv, ckv); err != nil {
		return fmt.Errorf("session: realize loopback: %w", err)
	}
	s.loopback.enabled = s.loopback.stagedEnable
	s.loopback.peerSessID = s.loopback.stagedPeer
	s.loopback.hasStaged = false
	return nil
}

// SetEcRef implements spec §4.4's set_ec_ref: analogous to SetLoopback but
// merges this (capture) session's metadata with the referenced RX device's
// metadata instead of a peer session's.
func (s *Session) SetEcRef(ctx context.Context, aifID uint32, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ecRef.enabled == enable && s.ecRef.aifID == aifID {
		return fmt.Errorf("%w: ec_ref(%d, %v) already set", ErrAlready, aifID, enable)
	}

	if s.state == Closed {
		s.ecRef.hasStaged = true
		s.ecRef.stagedAIF = aifID
		s.ecRef.stagedEnable = enable
		return nil
	}

	dev, err := s.devices.MustLookup(aifID)
	if err != nil {
		return err
	}
	gkv, ckv := mergedFlat(s.sessMeta, deviceBundleToMetadata(dev.Endpoint))
	if enable {
		err = s.g.Add(ctx, gkv, ckv, 0, nil)
	} else {
		err = s.g.Remove(ctx, gkv, ckv)
	}
	if err != nil {
		return fmt.Errorf("session: set_ec_ref: %w", err)
	}

	s.ecRef.enabled = enable
	s.ecRef.aifID = aifID
	return nil
}

func (s *Session) realizeEcRef(ctx context.Context) error {
	dev, err := s.devices.MustLookup(s.ecRef.stagedAIF)
	if err != nil {
		return err
	}
	gkv, ckv := mergedFlat(s.sessMeta, deviceBundleToMetadata(dev.Endpoint))
	if s.ecRef.stagedEnable {
		if err := s.g.Add(ctx, gkv, ckv, 0, nil); err != nil {
			return fmt.Errorf("session: realize ec_ref: %w", err)
		}
	} else if err := s.g.Remove(ctx, gkv, ckv); err != nil {
		return fmt.Errorf("session: realize ec_ref: %w", err)
	}
	s.ecRef.enabled = s.ecRef.stagedEnable
	s.ecRef.aifID = s.ecRef.stagedAIF
	s.ecRef.hasStaged = false
	return nil
}

// snapshotMeta returns this session's current full metadata, used by a
// peer session realizing a loopback edge against it. Locks its own mutex,
// so callers must not already hold it (loopback realization only ever
// calls this on the *other* session).
func (s *Session) snapshotMeta() *metadata.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessMeta
}
