package runtime

import (
	"errors"

	"github.com/qti-audio/agm/internal/resilience"
	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/graph"
	"github.com/qti-audio/agm/pkg/session"
)

// Sentinel errors realizing spec.md §7's return-code taxonomy at the
// runtime boundary. Package-level operations return one of these (wrapped
// with call-site context via %w) so callers — chiefly internal/apiserver —
// can translate a Go error into the wire return code with a single
// errors.Is switch instead of inspecting error strings.
var (
	// ErrInvalid is INVALID: a bad argument (unknown session/aif id, malformed KV).
	ErrInvalid = errors.New("runtime: invalid argument")
	// ErrInvalidState is INVALID_STATE: operation illegal from the current state.
	ErrInvalidState = errors.New("runtime: invalid state")
	// ErrAlready is ALREADY: a redundant request with no side effect.
	ErrAlready = errors.New("runtime: already")
	// ErrPipe is PIPE: no attachment/edge exists for the named peer.
	ErrPipe = errors.New("runtime: no attachment")
	// ErrNoMem is NOMEM: allocation failure (buffer/param blob sizing).
	ErrNoMem = errors.New("runtime: no memory")
	// ErrIO is IO: engine or PCM driver failure.
	ErrIO = errors.New("runtime: io error")
)

// Classify maps an error returned by pkg/session, pkg/graph, or pkg/device
// to the runtime-level sentinel that names its spec.md §7 return-code
// category, defaulting to ErrIO for anything unrecognized (a resource
// error is the safe default — state/argument errors are always named
// explicitly by the lower packages). Classify does not replace err; it
// names the category err belongs to so a caller can both log the
// underlying cause and report the wire code.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrAlready):
		return ErrAlready
	case errors.Is(err, session.ErrNoAttachment):
		return ErrPipe
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, graph.ErrInvalidState),
		errors.Is(err, device.ErrInvalidState):
		return ErrInvalidState
	case errors.Is(err, graph.ErrInvalidConfig), errors.Is(err, graph.ErrMalformed):
		return ErrInvalid
	case errors.Is(err, device.ErrIO), errors.Is(err, resilience.ErrCircuitOpen):
		return ErrIO
	default:
		return ErrIO
	}
}
