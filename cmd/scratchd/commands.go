package main

import (
	"fmt"

	"scratchd/turntable"
)

// ==============================
// Commands (side effects)
// ==============================

// Command is a side effect requested by the deck and executed by the daemon
// loop after the triggering event has been fully applied.
type Command interface {
	commandMarker()
	String() string
}

// CmdPlayClip plays a clip of the active sample at a playback rate.
type CmdPlayClip struct {
	Clip  turntable.ClipRef
	Pitch float64
}

func (CmdPlayClip) commandMarker() {}
func (c CmdPlayClip) String() string {
	return fmt.Sprintf("CmdPlayClip(clip=%s pitch=%.3f)", c.Clip, c.Pitch)
}

// CmdLoadSample loads the clips of a sample into the player.
type CmdLoadSample struct {
	Sample turntable.Sample
}

func (CmdLoadSample) commandMarker()   {}
func (c CmdLoadSample) String() string { return fmt.Sprintf("CmdLoadSample(%s)", c.Sample) }

// CmdPublishTransform pushes a new platter placement to renderers.
type CmdPublishTransform struct {
	Transform turntable.Transform
}

func (CmdPublishTransform) commandMarker() {}
func (c CmdPublishTransform) String() string {
	return fmt.Sprintf("CmdPublishTransform(rotate=%.2f)", c.Transform.RotateDegrees)
}

// CmdPublishPlayback tells renderers which clip was triggered.
type CmdPublishPlayback struct {
	Playback turntable.Playback
}

func (CmdPublishPlayback) commandMarker() {}
func (c CmdPublishPlayback) String() string {
	return fmt.Sprintf("CmdPublishPlayback(kind=%s clip=%s)", c.Playback.Command.Kind, c.Playback.Clip)
}

// CmdPublishSampleChanged announces a new active sample.
type CmdPublishSampleChanged struct {
	Name string
}

func (CmdPublishSampleChanged) commandMarker()   {}
func (c CmdPublishSampleChanged) String() string { return fmt.Sprintf("CmdPublishSampleChanged(%s)", c.Name) }

// CmdPublishStateSnapshot delivers a snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan<- StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// commandCollector sits between the deck and the outside world: the deck
// sees a SamplePlayer and a Renderer, the loop gets a queue of Commands.
type commandCollector struct {
	queue []Command
}

var (
	_ turntable.SamplePlayer = (*commandCollector)(nil)
	_ turntable.Renderer     = (*commandCollector)(nil)
)

func (c *commandCollector) Play(clip turntable.ClipRef, pitch float64) {
	c.queue = append(c.queue, CmdPlayClip{Clip: clip, Pitch: pitch})
}

func (c *commandCollector) Load(s turntable.Sample) {
	c.queue = append(c.queue, CmdLoadSample{Sample: s})
}

func (c *commandCollector) ApplyTransform(t turntable.Transform) {
	c.queue = append(c.queue, CmdPublishTransform{Transform: t})
}

func (c *commandCollector) push(cmd Command) {
	c.queue = append(c.queue, cmd)
}

// drain returns and clears the queued commands.
func (c *commandCollector) drain() []Command {
	q := c.queue
	c.queue = nil
	return q
}
