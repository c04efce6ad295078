// Package session implements SessionObj: the audio-session lifecycle state
// machine that mediates between attached AIFs (device.Device) and an owned
// graph.Graph, per spec §4.4.
//
// Grounded on the teacher's internal/app.SessionManager (a mutex-guarded
// lifecycle with ordered closers), generalized from "one process-wide
// session" to a keyed pool (see pool.go) of independently-locked sessions,
// each a full state machine instead of one boolean active flag.
package session

import (
	"errors"
	"sync"

	"github.com/qti-audio/agm/internal/engine/gsl"
	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/graph"
	"github.com/qti-audio/agm/pkg/metadata"
)

// State is the session's lifecycle state (spec §4.4's state/transition
// table).
type State int

const (
	Closed State = iota
	Opened
	Prepared
	Started
	Stopped
	Paused
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Opened:
		return "OPENED"
	case Prepared:
		return "PREPARED"
	case Started:
		return "STARTED"
	case Stopped:
		return "STOPPED"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Direction mirrors device.Direction/graph.Direction without importing
// either as the session's own vocabulary, since a session's direction
// governs its own prepare/start/stop ordering independent of any one
// attached device (spec §4.4).
type Direction int

const (
	RX Direction = iota
	TX
)

func (d Direction) deviceDirection() device.Direction {
	if d == RX {
		return device.RX
	}
	return device.TX
}

func (d Direction) graphDirection() graph.Direction {
	if d == RX {
		return graph.RX
	}
	return graph.TX
}

var (
	// ErrInvalidState is returned when a verb is attempted from a state
	// that does not permit it (spec §4.4's transition table "err" cells).
	ErrInvalidState = errors.New("session: invalid state")
	// ErrAlready is returned by idempotent operations repeated with no
	// side effect (spec §8: duplicate connect_aif/set_loopback).
	ErrAlready = errors.New("session: already")
	// ErrNoAttachment is returned when an operation names an AIF id with
	// no attachment record.
	ErrNoAttachment = errors.New("session: no such attachment")
)

// attachment is one AIF's membership record on this session (spec §3: "AIF
// attachment").
type attachment struct {
	aifID uint32

	// staged records a pending connect/disconnect recorded before the
	// session was ever opened (spec §4.4's CLOSED-state staging).
	staged       bool
	stagedConnect bool

	realized bool
	state    device.State // mirrors the realized attachment's device phase

	meta         *metadata.Bundle // aif.sess_aif_meta
	cachedParams []ParamBlob
}

// loopbackEdge tracks a loopback or echo-reference edge's current and
// staged-for-next-open state (spec §4.4 "Loopback"/"Echo reference").
type loopbackEdge struct {
	peerSessID string
	enabled    bool

	hasStaged    bool
	stagedPeer   string
	stagedEnable bool
}

type ecRefEdge struct {
	aifID   uint32
	enabled bool

	hasStaged    bool
	stagedAIF    uint32
	stagedEnable bool
}

// Session is one SessionObj: AIF-attachment pool, an owned graph (nil when
// CLOSED, per the invariant "graph != null iff state != CLOSED"), cached
// params, and loopback/ec-ref edges.
type Session struct {
	mu sync.Mutex

	id        string
	direction Direction
	hostless  bool
	media     device.MediaConfig
	buffers   graph.BufferConfig

	state State
	g     *graph.Graph

	devices   *device.Registry
	engine    gsl.Client
	templates graph.TemplateSet
	pool      *Pool

	sessMeta    *metadata.Bundle
	attachments map[uint32]*attachment

	cachedSessionParams []ParamBlob

	loopback loopbackEdge
	ecRef    ecRefEdge

	cbMu      sync.Mutex
	callbacks []subscription
}

// Config bundles the dependencies a session needs at construction; supplied
// by the owning [Pool].
type Config struct {
	Direction Direction
	Hostless  bool
	Media     device.MediaConfig
	Buffers   graph.BufferConfig
	Devices   *device.Registry
	Engine    gsl.Client
	Templates graph.TemplateSet
	SessMeta  *metadata.Bundle
}

func newSession(id string, cfg Config, pool *Pool) *Session {
	meta := cfg.SessMeta
	if meta == nil {
		meta = &metadata.Bundle{}
	}
	return &Session{
		id:          id,
		direction:   cfg.Direction,
		hostless:    cfg.Hostless,
		media:       cfg.Media,
		buffers:     cfg.Buffers,
		state:       Closed,
		devices:     cfg.Devices,
		engine:      cfg.Engine,
		templates:   cfg.Templates,
		pool:        pool,
		sessMeta:    meta,
		attachments: make(map[uint32]*attachment),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasGraph reports whether the session currently owns a graph, the Go
// realization of the invariant "graph != null iff state != CLOSED" (spec
// §8).
func (s *Session) HasGraph() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g != nil
}

func (s *Session) realizedCount() int {
	n := 0
	for _, a := range s.attachments {
		if a.realized {
			n++
		}
	}
	return n
}

// SetMetadata implements spec §6's session_set_metadata: replaces the
// session's own metadata bundle outright. Unlike SetParams this has no
// replay-on-attach step of its own — a later connect_aif's live-attach
// already re-merges the current sessMeta on every realization (meta.go's
// mergedFlat), so the new bundle takes effect on the next attach without
// needing a separate push path here.
func (s *Session) SetMetadata(b *metadata.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessMeta = b.Clone()
}

// SetAIFMetadata implements spec §6's session_aif_set_metadata: replaces
// one attachment's metadata bundle outright.
func (s *Session) SetAIFMetadata(aifID uint32, b *metadata.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att := s.attachments[aifID]
	if att == nil {
		att = &attachment{aifID: aifID}
		s.attachments[aifID] = att
	}
	att.meta = b.Clone()
}
