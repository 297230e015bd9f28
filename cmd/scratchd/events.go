package main

import (
	"encoding/json"
	"fmt"

	"scratchd/turntable"
)

// ============================================================================
// Events
// ============================================================================
// Events are inputs to the daemon loop. They arrive from the touch device,
// the IPC socket, websocket clients and the platter's own tick timer.
// ============================================================================

// Event is a marker interface for everything the daemon loop consumes.
type Event interface {
	eventMarker()
}

// ContactBegin is a finger touching the record.
type ContactBegin turntable.PointerSample

// ContactMove is a finger moving on the record.
type ContactMove turntable.PointerSample

// ContactEnd is the finger leaving the record.
type ContactEnd struct {
	TimestampMs int64 `json:"t_ms,omitempty"`
}

// SelectSample makes a catalog sample active.
type SelectSample struct {
	Name string `json:"name"`
}

// Pause stops the idle animation (the renderer went to the background).
type Pause struct{}

// Resume restarts the idle animation.
type Resume struct{}

// LayoutChanged reports the renderer's view and artwork size in pixels.
// A nil offset centres the artwork on that axis.
type LayoutChanged struct {
	ViewWidth     int  `json:"view_width"`
	ViewHeight    int  `json:"view_height"`
	ContentWidth  int  `json:"content_width"`
	ContentHeight int  `json:"content_height"`
	OffsetX       *int `json:"offset_x,omitempty"`
	OffsetY       *int `json:"offset_y,omitempty"`
}

// Layout converts the event into engine geometry.
func (e LayoutChanged) Layout() turntable.Layout {
	l := turntable.CenteredLayout(e.ViewWidth, e.ViewHeight, e.ContentWidth, e.ContentHeight)
	if e.OffsetX != nil {
		l.OffsetX = *e.OffsetX
	}
	if e.OffsetY != nil {
		l.OffsetY = *e.OffsetY
	}
	return l
}

// RequestStateSnapshot asks the loop for a StateSnapshot on Reply.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

// scheduledCall runs a deferred engine callback on the loop goroutine.
type scheduledCall struct {
	f func()
}

func (ContactBegin) eventMarker()         {}
func (ContactMove) eventMarker()          {}
func (ContactEnd) eventMarker()           {}
func (SelectSample) eventMarker()         {}
func (Pause) eventMarker()                {}
func (Resume) eventMarker()               {}
func (LayoutChanged) eventMarker()        {}
func (RequestStateSnapshot) eventMarker() {}
func (scheduledCall) eventMarker()        {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// Wire names of the events that can cross a process boundary.
const (
	typeContactBegin  = "contact_begin"
	typeContactMove   = "contact_move"
	typeContactEnd    = "contact_end"
	typeSelectSample  = "select_sample"
	typePause         = "pause"
	typeResume        = "resume"
	typeLayoutChanged = "layout_changed"

	// typeRequestState is answered directly by the IPC server.
	typeRequestState = "request_state"
)

// EventEnvelope wraps an event with a type discriminator for JSON marshaling.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func decodeData[T any](env EventEnvelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case typeContactBegin:
		return decodeData[ContactBegin](env)
	case typeContactMove:
		return decodeData[ContactMove](env)
	case typeContactEnd:
		return decodeData[ContactEnd](env)
	case typeSelectSample:
		ev, err := decodeData[SelectSample](env)
		if err == nil && ev.Name == "" {
			return nil, fmt.Errorf("%s: name is required", env.Type)
		}
		return ev, err
	case typePause:
		return Pause{}, nil
	case typeResume:
		return Resume{}, nil
	case typeLayoutChanged:
		return decodeData[LayoutChanged](env)
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var (
		env  EventEnvelope
		data any
	)

	switch e := e.(type) {
	case ContactBegin:
		env.Type, data = typeContactBegin, e
	case ContactMove:
		env.Type, data = typeContactMove, e
	case ContactEnd:
		env.Type, data = typeContactEnd, e
	case SelectSample:
		env.Type, data = typeSelectSample, e
	case Pause:
		env.Type = typePause
	case Resume:
		env.Type = typeResume
	case LayoutChanged:
		env.Type, data = typeLayoutChanged, e
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
