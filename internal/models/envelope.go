package models

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the broadcast message union. The set is closed;
// anything else on the wire is a protocol fault and is dropped.
type EventType string

const (
	EventCodeUpdate       EventType = "code_update"
	EventRequestState     EventType = "request_state"
	EventSyncState        EventType = "sync_state"
	EventWhiteboardUpdate EventType = "whiteboard_update"
)

// ErrUnknownEvent is returned when an envelope carries an event outside the
// closed set.
var ErrUnknownEvent = fmt.Errorf("unknown broadcast event")

// CodeUpdatePayload carries the owner's latest document state. It exists
// only on the wire; receivers fold it into their session state.
type CodeUpdatePayload struct {
	Code      string   `json:"code"`
	Language  Language `json:"language"`
	UpdatedBy string   `json:"updatedBy"`
	Timestamp int64    `json:"timestamp"`
}

// RequestStatePayload is a joining viewer asking the owner for the current
// session state.
type RequestStatePayload struct {
	UserID string `json:"userId"`
}

// SyncStatePayload is the owner's full-state reply to a request_state.
type SyncStatePayload struct {
	Code       string              `json:"code"`
	Language   Language            `json:"language"`
	Whiteboard *WhiteboardSnapshot `json:"whiteboard,omitempty"`
	FromOwner  bool                `json:"fromOwner"`
}

// WhiteboardUpdatePayload carries a full canvas snapshot.
type WhiteboardUpdatePayload struct {
	Snapshot  WhiteboardSnapshot `json:"snapshot"`
	UpdatedBy string             `json:"updatedBy"`
	Timestamp int64              `json:"timestamp"`
}

// Envelope is the broadcast message union. Exactly one payload pointer is
// non-nil, selected by Event.
type Envelope struct {
	Event            EventType
	CodeUpdate       *CodeUpdatePayload
	RequestState     *RequestStatePayload
	SyncState        *SyncStatePayload
	WhiteboardUpdate *WhiteboardUpdatePayload
}

// Sender returns the peer id the envelope originated from, or "" when the
// variant carries no originator (sync_state is logically addressed, not
// attributed).
func (e Envelope) Sender() string {
	switch e.Event {
	case EventCodeUpdate:
		if e.CodeUpdate != nil {
			return e.CodeUpdate.UpdatedBy
		}
	case EventRequestState:
		if e.RequestState != nil {
			return e.RequestState.UserID
		}
	case EventWhiteboardUpdate:
		if e.WhiteboardUpdate != nil {
			return e.WhiteboardUpdate.UpdatedBy
		}
	}
	return ""
}

// Stamp sets the variant's timestamp, if it carries one. The throttled
// broadcaster restamps deferred sends so a coalesced payload goes out with
// the time it was actually transmitted.
func (e *Envelope) Stamp(unixMilli int64) {
	switch e.Event {
	case EventCodeUpdate:
		if e.CodeUpdate != nil {
			e.CodeUpdate.Timestamp = unixMilli
		}
	case EventWhiteboardUpdate:
		if e.WhiteboardUpdate != nil {
			e.WhiteboardUpdate.Timestamp = unixMilli
		}
	}
}

type wireEnvelope struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the envelope as {"event": ..., "payload": ...}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Event {
	case EventCodeUpdate:
		payload = e.CodeUpdate
	case EventRequestState:
		payload = e.RequestState
	case EventSyncState:
		payload = e.SyncState
	case EventWhiteboardUpdate:
		payload = e.WhiteboardUpdate
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Event)
	}
	if payload == nil {
		return nil, fmt.Errorf("envelope %q has no payload", e.Event)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Event: e.Event, Payload: raw})
}

// UnmarshalJSON decodes into the variant selected by the event discriminant.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Envelope{Event: wire.Event}
	switch wire.Event {
	case EventCodeUpdate:
		e.CodeUpdate = &CodeUpdatePayload{}
		return json.Unmarshal(wire.Payload, e.CodeUpdate)
	case EventRequestState:
		e.RequestState = &RequestStatePayload{}
		return json.Unmarshal(wire.Payload, e.RequestState)
	case EventSyncState:
		e.SyncState = &SyncStatePayload{}
		return json.Unmarshal(wire.Payload, e.SyncState)
	case EventWhiteboardUpdate:
		e.WhiteboardUpdate = &WhiteboardUpdatePayload{}
		return json.Unmarshal(wire.Payload, e.WhiteboardUpdate)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, wire.Event)
	}
}
