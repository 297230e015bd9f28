package main

import (
	"time"

	"scratchd/turntable"
)

// StateSnapshot is a copy of the deck state, safe to hand to other goroutines.
type StateSnapshot struct {
	Sample    string              `json:"sample"`
	Samples   []string            `json:"samples"`
	Transform turntable.Transform `json:"transform"`
	Mode      string              `json:"mode"`
	InContact bool                `json:"in_contact"`
	HasPivot  bool                `json:"has_pivot"`
	At        time.Time           `json:"at"`
}

func snapshotOf(d *turntable.Deck, now time.Time) StateSnapshot {
	s := d.Snapshot()
	return StateSnapshot{
		Sample:    s.Sample,
		Samples:   s.Samples,
		Transform: s.Transform,
		Mode:      s.Mode.String(),
		InContact: s.InContact,
		HasPivot:  s.HasPivot,
		At:        now,
	}
}

// ============================================================================
// State broadcasts
// ============================================================================
// Broadcasts are emitted by the effects layer and fanned out to websocket
// clients by RunBroadcaster. They never flow back into the loop.
// ============================================================================

// StateBroadcast is a marker interface for outbound state changes.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastTransform is a new platter placement.
type BroadcastTransform struct {
	Transform turntable.Transform
	At        time.Time
}

// BroadcastPlayback is a triggered clip.
type BroadcastPlayback struct {
	Playback turntable.Playback
	At       time.Time
}

// BroadcastSampleChanged is a new active sample.
type BroadcastSampleChanged struct {
	Name string
	At   time.Time
}

func (BroadcastTransform) broadcastMarker()     {}
func (BroadcastPlayback) broadcastMarker()      {}
func (BroadcastSampleChanged) broadcastMarker() {}
