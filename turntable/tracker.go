package turntable

import (
	"errors"
	"fmt"
	"math"
)

// Gesture thresholds in dp.
const (
	DefaultScratchThresholdDP = 50.0
	DefaultSampleThresholdDP  = 80.0
)

// PointerSample is one observed contact position.
type PointerSample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TimestampMs int64   `json:"t_ms"`
}

// Point returns the sample position.
func (s PointerSample) Point() Point { return Point{X: s.X, Y: s.Y} }

// PlaybackKind selects which clip of the active sample to play.
type PlaybackKind int

const (
	PlayForward PlaybackKind = iota + 1
	PlayBackward
	PlayOneShot
)

func (k PlaybackKind) String() string {
	switch k {
	case PlayForward:
		return "forward"
	case PlayBackward:
		return "backward"
	case PlayOneShot:
		return "one_shot"
	default:
		return fmt.Sprintf("PlaybackKind(%d)", int(k))
	}
}

// PlaybackCommand is emitted by the tracker when an excursion crosses a threshold.
// Velocity (pixels/second) is set for PlayForward and PlayBackward only.
type PlaybackCommand struct {
	Kind     PlaybackKind
	Velocity float64
}

// Spinner is the part of the platter the tracker drives.
type Spinner interface {
	Start()
	Stop()
	Spin(dy, x float64)
}

// TrackerConfig holds the gesture thresholds in pixels.
type TrackerConfig struct {
	ScratchThresholdPx float64
	SampleThresholdPx  float64

	// SeparateAxisTriggers gives each axis its own "already played" flag, so
	// a horizontal reversal no longer re-arms the scratch and vice versa.
	SeparateAxisTriggers bool
}

// DefaultTrackerConfig returns the standard thresholds for a display.
func DefaultTrackerConfig(u UnitConverter) TrackerConfig {
	return TrackerConfig{
		ScratchThresholdPx: float64(u.ToPixels(DefaultScratchThresholdDP)),
		SampleThresholdPx:  float64(u.ToPixels(DefaultSampleThresholdDP)),
	}
}

// Validate checks the thresholds.
func (c TrackerConfig) Validate() error {
	if c.ScratchThresholdPx <= 0 {
		return errors.New("tracker: scratch threshold must be > 0")
	}
	if c.SampleThresholdPx <= 0 {
		return errors.New("tracker: sample threshold must be > 0")
	}
	return nil
}

// gestureState is reinitialized on every contact begin.
type gestureState struct {
	inContact bool

	last     PointerSample
	lastDX   float64
	lastDY   float64
	anchorY  float64
	anchorMs int64
	anchorX  float64

	// triggeredY doubles as the shared flag unless SeparateAxisTriggers is set.
	triggeredY bool
	triggeredX bool
}

// Tracker turns a single-contact pointer stream into playback commands and
// platter movement.
type Tracker struct {
	cfg     TrackerConfig
	spinner Spinner
	st      gestureState
}

// NewTracker returns a tracker that drives spinner (which may be nil).
func NewTracker(cfg TrackerConfig, spinner Spinner) *Tracker {
	return &Tracker{cfg: cfg, spinner: spinner}
}

// InContact reports whether a contact is in progress.
func (t *Tracker) InContact() bool { return t.st.inContact }

// ContactBegin starts a gesture at s and stops the platter.
func (t *Tracker) ContactBegin(s PointerSample) {
	t.st = gestureState{
		inContact: true,
		last:      s,
		anchorY:   s.Y,
		anchorMs:  s.TimestampMs,
		anchorX:   s.X,
	}
	if t.spinner != nil {
		t.spinner.Stop()
	}
}

// ContactMove processes the next sample of the gesture. It returns a command
// when the move completes a qualifying excursion. Moves without a preceding
// ContactBegin are ignored.
func (t *Tracker) ContactMove(s PointerSample) (PlaybackCommand, bool) {
	st := &t.st
	if !st.inContact {
		return PlaybackCommand{}, false
	}

	dx := s.X - st.last.X
	dy := s.Y - st.last.Y

	// Direction reversals re-anchor at the turning point, i.e. the previous sample.
	if reversed(dy, st.lastDY) {
		st.anchorY = st.last.Y
		st.anchorMs = st.last.TimestampMs
		st.triggeredY = false
		if !t.cfg.SeparateAxisTriggers {
			st.triggeredX = false
		}
	}
	if reversed(dx, st.lastDX) {
		st.anchorX = st.last.X
		st.triggeredX = false
		if !t.cfg.SeparateAxisTriggers {
			st.triggeredY = false
		}
	}

	cmd, ok := t.detect(s, dy)

	if t.spinner != nil {
		t.spinner.Spin(dy, st.last.X)
	}

	st.last = s
	// Keep stale deltas across zero-motion samples so coarse input still
	// shows reversals.
	if dx != 0 {
		st.lastDX = dx
	}
	if dy != 0 {
		st.lastDY = dy
	}
	return cmd, ok
}

// ContactEnd finishes the gesture and lets the platter spin again.
func (t *Tracker) ContactEnd() {
	t.st.inContact = false
	if t.spinner != nil {
		t.spinner.Start()
	}
}

func (t *Tracker) detect(s PointerSample, dy float64) (PlaybackCommand, bool) {
	st := &t.st

	scratchArmed := !st.triggeredY
	sampleArmed := !st.triggeredX
	if !t.cfg.SeparateAxisTriggers {
		sampleArmed = scratchArmed
	}

	if scratchArmed {
		dist := math.Abs(s.Y - st.anchorY)
		prior := math.Abs(st.last.Y - st.anchorY)
		if crossed(prior, dist, t.cfg.ScratchThresholdPx) {
			elapsedMs := s.TimestampMs - st.anchorMs
			if elapsedMs <= 0 {
				return PlaybackCommand{}, false
			}
			kind := PlayBackward
			if dy < 0 {
				kind = PlayForward
			}
			t.markTriggered(true)
			return PlaybackCommand{
				Kind:     kind,
				Velocity: dist / (float64(elapsedMs) / 1000),
			}, true
		}
	}

	if sampleArmed {
		dist := math.Abs(s.X - st.anchorX)
		prior := math.Abs(st.last.X - st.anchorX)
		if crossed(prior, dist, t.cfg.SampleThresholdPx) {
			t.markTriggered(false)
			return PlaybackCommand{Kind: PlayOneShot}, true
		}
	}

	return PlaybackCommand{}, false
}

func (t *Tracker) markTriggered(vertical bool) {
	if !t.cfg.SeparateAxisTriggers {
		t.st.triggeredY = true
		t.st.triggeredX = true
		return
	}
	if vertical {
		t.st.triggeredY = true
	} else {
		t.st.triggeredX = true
	}
}

// reversed reports strictly opposite, non-zero signs.
func reversed(d, last float64) bool {
	return (d > 0 && last < 0) || (d < 0 && last > 0)
}

func crossed(prior, current, threshold float64) bool {
	return prior <= threshold && current > threshold
}
