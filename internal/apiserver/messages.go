package apiserver

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/qti-audio/agm/pkg/metadata"
)

// packPairs packs a CKV/GKV-style pair list as protobuf's packed-repeated
// varint encoding (k0, v0, k1, v1, ...), the wire-compact equivalent of
// pkg/metadata/wire.go's fixed-width layout for the cases here that travel
// as one message field among several rather than a whole standalone
// metadata blob.
func packPairs(pairs []metadata.Pair) []byte {
	var b []byte
	for _, p := range pairs {
		b = protowire.AppendVarint(b, uint64(p.Key))
		b = protowire.AppendVarint(b, uint64(p.Value))
	}
	return b
}

func unpackPairs(b []byte) ([]metadata.Pair, error) {
	var out []metadata.Pair
	for len(b) > 0 {
		k, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("apiserver: malformed packed pair list: %w", protowire.ParseError(n))
		}
		b = b[n:]
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("apiserver: malformed packed pair list (missing value): %w", protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, metadata.Pair{Key: uint32(k), Value: uint32(v)})
	}
	return out, nil
}

// aifInfoEntry mirrors one row of get_aif_info_list's enumeration payload.
type aifInfoEntry struct {
	AIFID     uint32
	Direction uint32
	CardID    uint32
	PCMID     uint32
}

func packAIFInfo(entries []aifInfoEntry) []byte {
	var b []byte
	for _, e := range entries {
		b = protowire.AppendVarint(b, uint64(e.AIFID))
		b = protowire.AppendVarint(b, uint64(e.Direction))
		b = protowire.AppendVarint(b, uint64(e.CardID))
		b = protowire.AppendVarint(b, uint64(e.PCMID))
	}
	return b
}

// --- status-only request/response ---

// statusResponse is the response shape for every verb that returns nothing
// but a return code (spec §6's "0 = success; negative errno-style numbers").
type statusResponse struct {
	Status int32
}

func (r *statusResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	return m
}

func (r *statusResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	return nil
}

// sessionIDRequest covers every verb keyed by session id alone: open,
// close, prepare, start, stop, pause, resume, eos.
type sessionIDRequest struct {
	SessionID string
}

func (r *sessionIDRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	return m
}

func (r *sessionIDRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	return nil
}

// --- connect_aif ---

type connectAIFRequest struct {
	SessionID string
	AIFID     uint32
	Connect   bool
}

func (r *connectAIFRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.AIFID)
	setBool(m, 3, r.Connect)
	return m
}

func (r *connectAIFRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.Connect = m.boolean(3)
	return nil
}

// --- read / write ---

type readRequest struct {
	SessionID string
	Count     uint32
}

func (r *readRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.Count)
	return m
}

func (r *readRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.Count = m.u32(2)
	return nil
}

type readResponse struct {
	Status int32
	Data   []byte
	Count  uint32
}

func (r *readResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setBytes(m, 2, r.Data)
	setU32(m, 3, r.Count)
	return m
}

func (r *readResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.Data = m.bytes(2)
	r.Count = m.u32(3)
	return nil
}

type writeRequest struct {
	SessionID string
	Data      []byte
}

func (r *writeRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setBytes(m, 2, r.Data)
	return m
}

func (r *writeRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.Data = m.bytes(2)
	return nil
}

type writeResponse struct {
	Status int32
	Count  uint32
}

func (r *writeResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setU32(m, 2, r.Count)
	return m
}

func (r *writeResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.Count = m.u32(2)
	return nil
}

// --- params ---

type setParamsRequest struct {
	SessionID        string
	AIFID            uint32 // 0 for session-level set_params
	ModuleInstanceID uint32
	ParamID          uint32
	Payload          []byte
}

func (r *setParamsRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.AIFID)
	setU32(m, 3, r.ModuleInstanceID)
	setU32(m, 4, r.ParamID)
	setBytes(m, 5, r.Payload)
	return m
}

func (r *setParamsRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.ModuleInstanceID = m.u32(3)
	r.ParamID = m.u32(4)
	r.Payload = m.bytes(5)
	return nil
}

type setParamsWithTagRequest struct {
	SessionID string
	AIFID     uint32
	Tag       uint32
	ParamID   uint32
	Payload   []byte
}

func (r *setParamsWithTagRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.AIFID)
	setU32(m, 3, r.Tag)
	setU32(m, 4, r.ParamID)
	setBytes(m, 5, r.Payload)
	return m
}

func (r *setParamsWithTagRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.Tag = m.u32(3)
	r.ParamID = m.u32(4)
	r.Payload = m.bytes(5)
	return nil
}

type getParamsRequest struct {
	SessionID        string
	ModuleInstanceID uint32
	ParamID          uint32
	Size             uint32
}

func (r *getParamsRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.ModuleInstanceID)
	setU32(m, 3, r.ParamID)
	setU32(m, 4, r.Size)
	return m
}

func (r *getParamsRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.ModuleInstanceID = m.u32(2)
	r.ParamID = m.u32(3)
	r.Size = m.u32(4)
	return nil
}

type getParamsResponse struct {
	Status  int32
	Payload []byte
	Size    uint32
}

func (r *getParamsResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setBytes(m, 2, r.Payload)
	setU32(m, 3, r.Size)
	return m
}

func (r *getParamsResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.Payload = m.bytes(2)
	r.Size = m.u32(3)
	return nil
}

// --- tag module info (two-pass) ---

type tagModuleInfoRequest struct {
	SessionID string
	AIFID     uint32
	Tag       uint32
	Size      uint32
}

func (r *tagModuleInfoRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.AIFID)
	setU32(m, 3, r.Tag)
	setU32(m, 4, r.Size)
	return m
}

func (r *tagModuleInfoRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.Tag = m.u32(3)
	r.Size = m.u32(4)
	return nil
}

type tagModuleInfoResponse struct {
	Status           int32
	ModuleID         uint32
	ModuleInstanceID uint32
	Size             uint32
}

func (r *tagModuleInfoResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setU32(m, 2, r.ModuleID)
	setU32(m, 3, r.ModuleInstanceID)
	setU32(m, 4, r.Size)
	return m
}

func (r *tagModuleInfoResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.ModuleID = m.u32(2)
	r.ModuleInstanceID = m.u32(3)
	r.Size = m.u32(4)
	return nil
}

// --- calibration ---

type setCalRequest struct {
	SessionID  string
	AIFID      uint32
	PackedCKV  []byte
}

func (r *setCalRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.AIFID)
	setBytes(m, 3, r.PackedCKV)
	return m
}

func (r *setCalRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.PackedCKV = m.bytes(3)
	return nil
}

// --- aif_set_media_config ---

type aifSetMediaConfigRequest struct {
	AIFID    uint32
	Rate     uint32
	Channels uint32
	Format   uint32
}

func (r *aifSetMediaConfigRequest) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, r.AIFID)
	setU32(m, 2, r.Rate)
	setU32(m, 3, r.Channels)
	setU32(m, 4, r.Format)
	return m
}

func (r *aifSetMediaConfigRequest) fromWire(m wireMap) error {
	r.AIFID = m.u32(1)
	r.Rate = m.u32(2)
	r.Channels = m.u32(3)
	r.Format = m.u32(4)
	return nil
}

// --- metadata ---

// setMetadataRequest covers all three spec §6 set-metadata verbs
// (aif_set_metadata, session_set_metadata, session_aif_set_metadata);
// which one is meant is determined by which of SessionID/AIFID are set,
// dispatched by the method name, not by a field — each is registered as
// its own RPC method (see service.go).
type setMetadataRequest struct {
	SessionID string
	AIFID     uint32
	Payload   []byte // spec §6 metadata wire format, consumed by metadata.Copy
}

func (r *setMetadataRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.SessionID)
	setU32(m, 2, r.AIFID)
	setBytes(m, 3, r.Payload)
	return m
}

func (r *setMetadataRequest) fromWire(m wireMap) error {
	r.SessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.Payload = m.bytes(3)
	return nil
}

// --- processed count / session time ---

type processedCountResponse struct {
	Status int32
	Count  uint64
}

func (r *processedCountResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setU64(m, 2, r.Count)
	return m
}

func (r *processedCountResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.Count = m.u64(2)
	return nil
}

type sessionTimeResponse struct {
	Status    int32
	Timestamp uint64
}

func (r *sessionTimeResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setU64(m, 2, r.Timestamp)
	return m
}

func (r *sessionTimeResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.Timestamp = m.u64(2)
	return nil
}

// --- loopback / ec-ref ---

type setLoopbackRequest struct {
	CaptureSessionID  string
	PlaybackSessionID string
	Enable            bool
}

func (r *setLoopbackRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.CaptureSessionID)
	setStr(m, 2, r.PlaybackSessionID)
	setBool(m, 3, r.Enable)
	return m
}

func (r *setLoopbackRequest) fromWire(m wireMap) error {
	r.CaptureSessionID = m.str(1)
	r.PlaybackSessionID = m.str(2)
	r.Enable = m.boolean(3)
	return nil
}

type setEcRefRequest struct {
	CaptureSessionID string
	AIFID            uint32
	Enable           bool
}

func (r *setEcRefRequest) toWire() wireMap {
	m := wireMap{}
	setStr(m, 1, r.CaptureSessionID)
	setU32(m, 2, r.AIFID)
	setBool(m, 3, r.Enable)
	return m
}

func (r *setEcRefRequest) fromWire(m wireMap) error {
	r.CaptureSessionID = m.str(1)
	r.AIFID = m.u32(2)
	r.Enable = m.boolean(3)
	return nil
}

// --- get_aif_info_list (two-pass) ---

type aifInfoListRequest struct {
	Size uint32
}

func (r *aifInfoListRequest) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, r.Size)
	return m
}

func (r *aifInfoListRequest) fromWire(m wireMap) error {
	r.Size = m.u32(1)
	return nil
}

type aifInfoListResponse struct {
	Status  int32
	Size    uint32
	Entries []byte // packed aifInfoEntry rows, see packAIFInfo
}

func (r *aifInfoListResponse) toWire() wireMap {
	m := wireMap{}
	setU32(m, 1, uint32(r.Status))
	setU32(m, 2, r.Size)
	setBytes(m, 3, r.Entries)
	return m
}

func (r *aifInfoListResponse) fromWire(m wireMap) error {
	r.Status = int32(m.u32(1))
	r.Size = m.u32(2)
	r.Entries = m.bytes(3)
	return nil
}
