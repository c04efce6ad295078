package session

import (
	"fmt"

	"github.com/qti-audio/agm/internal/engine/gsl"
)

// EventType distinguishes the two event-delivery subscription classes of
// spec §4.4: DATA_PATH subscribers watch buffer lifecycle events sourced
// from the engine's own data-path module; MODULE subscribers watch
// everything emitted by an actual tagged module.
type EventType int

const (
	DataPath EventType = iota
	Module
)

// Pure-data event ids (spec §1) that qualify as DATA_PATH events when their
// source is gsl.EventSourceGSL. Out-of-scope numeric constants, carried as
// opaque values the same way pkg/graph carries param ids it never
// interprets.
const (
	EventEOSRendered uint32 = 0x1001
	EventReadDone    uint32 = 0x1002
	EventWriteDone   uint32 = 0x1003
)

type subscription struct {
	clientData uint64
	eventType  EventType
	callback   func(gsl.Event)
}

// Subscribe implements spec §4.4's callback registration: adding a
// subscriber for (clientData, eventType), or removing one by passing a nil
// callback for a matching existing (clientData, eventType) pair.
func (s *Session) Subscribe(clientData uint64, eventType EventType, callback func(gsl.Event)) error {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	for i, sub := range s.callbacks {
		if sub.clientData == clientData && sub.eventType == eventType {
			if callback == nil {
				s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
				return nil
			}
			s.callbacks[i].callback = callback
			return nil
		}
	}

	if callback == nil {
		return fmt.Errorf("%w: unsubscribe of unknown (client_data=%d, type=%v)", ErrNoAttachment, clientData, eventType)
	}
	s.callbacks = append(s.callbacks, subscription{clientData: clientData, eventType: eventType, callback: callback})
	return nil
}

// DeliverEvent implements graph.EventSink: fans an engine event out to
// every subscriber whose eventType matches the event, per spec §4.4's
// literal filter —
//
//	DATA_PATH matches source_module_id == gsl.EventSourceGSL AND
//	  event_id in {EOS_RENDERED, READ_DONE, WRITE_DONE};
//	MODULE matches source_module_id != gsl.EventSourceGSL.
//
// An event sourced from gsl.EventSourceGSL with an event id outside that
// set matches neither subscription class and is dropped.
func (s *Session) DeliverEvent(ev gsl.Event) {
	isDataPath := ev.SourceModuleID == gsl.EventSourceGSL &&
		(ev.EventID == EventEOSRendered || ev.EventID == EventReadDone || ev.EventID == EventWriteDone)
	isModule := ev.SourceModuleID != gsl.EventSourceGSL

	s.cbMu.Lock()
	matched := make([]func(gsl.Event), 0, len(s.callbacks))
	for _, sub := range s.callbacks {
		if (sub.eventType == DataPath && isDataPath) || (sub.eventType == Module && isModule) {
			matched = append(matched, sub.callback)
		}
	}
	s.cbMu.Unlock()

	for _, cb := range matched {
		cb(ev)
	}
}
