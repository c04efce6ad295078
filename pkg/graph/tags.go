package graph

// TagKind is the closed set of module roles a resolved tag can take on.
// Spec §9's design note asks for a closed tagged variant with one configure
// entry per variant rather than function pointers in a struct. The switch in
// configure.go has one case per kind; a kind without a case reaches its
// default branch, which returns ErrInvalidConfig at run time.
type TagKind int

const (
	TagUnknown TagKind = iota
	TagPCMDecoder
	TagPCMEncoder
	TagMediaFormat
	TagShmemEndpoint
	TagHwEndpointRX
	TagHwEndpointTX
	TagSPR
	TagPause
	TagMFCLimiter
)

func (k TagKind) String() string {
	switch k {
	case TagPCMDecoder:
		return "STREAM_PCM_DECODER"
	case TagPCMEncoder:
		return "STREAM_PCM_ENCODER"
	case TagMediaFormat:
		return "MEDIA_FORMAT"
	case TagShmemEndpoint:
		return "SHMEM_ENDPOINT"
	case TagHwEndpointRX:
		return "DEVICE_HW_ENDPOINT_RX"
	case TagHwEndpointTX:
		return "DEVICE_HW_ENDPOINT_TX"
	case TagSPR:
		return "SPR"
	case TagPause:
		return "PAUSE"
	case TagMFCLimiter:
		return "MFC_LIMITER"
	default:
		return "UNKNOWN"
	}
}

// IsDeviceSide reports whether a tag belongs to the device-side template
// walk (spec §4.3 step 2: "one for stream-side tags, one for device-side
// tags").
func (k TagKind) IsDeviceSide() bool {
	return k == TagHwEndpointRX || k == TagHwEndpointTX
}

// StreamTemplates and DeviceTemplates map an engine-reported tag id to the
// TagKind this port knows how to configure. Tag ids themselves are
// out-of-scope constants (spec §1: "tag ID constants... pure data"); this
// module accepts the mapping as configuration rather than hardcoding the
// platform's numeric tag ids.
type TemplateSet struct {
	Stream map[uint32]TagKind
	Device map[uint32]TagKind
}

// DefaultTemplates returns a TemplateSet using the de facto tag ids carried
// over from the original AGM source's tag header, for platforms that don't
// override them.
func DefaultTemplates() TemplateSet {
	return TemplateSet{
		Stream: map[uint32]TagKind{
			0x1001: TagPCMDecoder,
			0x1002: TagPCMEncoder,
			0x1003: TagMediaFormat,
			0x1004: TagShmemEndpoint,
			0x1005: TagSPR,
			0x1006: TagPause,
			0x1007: TagMFCLimiter,
		},
		Device: map[uint32]TagKind{
			0x3001: TagHwEndpointRX,
			0x3002: TagHwEndpointTX,
		},
	}
}
