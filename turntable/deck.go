// Package turntable interprets scratch gestures on a virtual record.
//
// A Deck ties together the three parts of the engine:
//   - Tracker filters the pointer stream into playback commands,
//   - PitchCurve maps scratch velocity to a playback rate,
//   - Platter animates the record and reacts to the finger.
//
// The package performs no I/O. Sounds are requested from a SamplePlayer and
// placements are pushed to a Renderer; both calls are fire-and-forget.
// A Deck is not safe for concurrent use: drive it from one goroutine and give
// it a Scheduler that delivers callbacks on that goroutine.
package turntable

import (
	"errors"
	"fmt"
	"log/slog"
)

// SamplePlayer plays clips of the active sample.
type SamplePlayer interface {
	// Play starts clip at the given playback rate (1.0 is the original speed).
	Play(clip ClipRef, pitch float64)
	// Load makes the clips of s available. It must not block on decoding.
	Load(s Sample)
}

// DeckConfig bundles the configuration of all engine parts, in pixels.
type DeckConfig struct {
	Tracker TrackerConfig
	Pitch   PitchCurve
	Platter PlatterConfig

	// InitialSample names the sample loaded at startup. Unknown or empty
	// names select the first catalog entry.
	InitialSample string
}

// DefaultDeckConfig returns the standard calibration for a display.
func DefaultDeckConfig(u UnitConverter) DeckConfig {
	return DeckConfig{
		Tracker: DefaultTrackerConfig(u),
		Pitch:   DefaultPitchCurve(u),
		Platter: DefaultPlatterConfig(),
	}
}

// Validate checks every part of the configuration.
func (c DeckConfig) Validate() error {
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	if err := c.Pitch.Validate(); err != nil {
		return err
	}
	return c.Platter.Validate()
}

// Playback describes a clip the deck asked the player to play.
type Playback struct {
	Command PlaybackCommand
	Sample  string
	Clip    ClipRef
	Pitch   float64
}

// Snapshot is a read-only view of the deck state.
type Snapshot struct {
	Sample    string
	Samples   []string
	Transform Transform
	Mode      Mode
	InContact bool
	HasPivot  bool
}

// ErrUnknownSample is returned when selecting a sample that is not in the catalog.
var ErrUnknownSample = errors.New("unknown sample")

// Deck is a scratchable turntable.
type Deck struct {
	cfg     DeckConfig
	catalog Catalog
	active  int
	player  SamplePlayer
	logger  *slog.Logger

	platter *Platter
	tracker *Tracker
}

// NewDeck validates cfg and builds a deck. If the catalog is not empty the
// initial sample is loaded into player. renderer, sched and logger may be nil.
func NewDeck(cfg DeckConfig, catalog Catalog, player SamplePlayer, renderer Renderer, sched Scheduler, logger *slog.Logger) (*Deck, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("deck config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	platter := NewPlatter(cfg.Platter, sched, renderer, logger)
	d := &Deck{
		cfg:     cfg,
		catalog: catalog,
		active:  catalog.Find(cfg.InitialSample),
		player:  player,
		logger:  logger,
		platter: platter,
		tracker: NewTracker(cfg.Tracker, platter),
	}
	if len(catalog) > 0 && player != nil {
		player.Load(catalog[d.active])
	}
	return d, nil
}

// Platter exposes the platter for inspection.
func (d *Deck) Platter() *Platter { return d.platter }

// Catalog returns the selectable samples.
func (d *Deck) Catalog() Catalog { return d.catalog }

// ActiveSample returns the selected sample; ok is false for an empty catalog.
func (d *Deck) ActiveSample() (Sample, bool) {
	if len(d.catalog) == 0 {
		return Sample{}, false
	}
	return d.catalog[d.active], true
}

// SelectSample makes the named sample active and loads it. Selecting the
// active sample again does not reload it.
func (d *Deck) SelectSample(name string) (Sample, error) {
	for i, s := range d.catalog {
		if s.DisplayName != name {
			continue
		}
		if i != d.active {
			d.active = i
			if d.player != nil {
				d.player.Load(s)
			}
			d.logger.Debug("sample selected", "sample", s.DisplayName, "index", i)
		}
		return s, nil
	}
	return Sample{}, fmt.Errorf("%w: %q", ErrUnknownSample, name)
}

// SetLayout fixes the platter pivot for the view geometry.
func (d *Deck) SetLayout(l Layout) { d.platter.SetLayout(l) }

// ContactBegin starts a gesture.
func (d *Deck) ContactBegin(s PointerSample) { d.tracker.ContactBegin(s) }

// ContactMove feeds a gesture sample and plays the resulting clip, if any.
func (d *Deck) ContactMove(s PointerSample) (Playback, bool) {
	cmd, ok := d.tracker.ContactMove(s)
	if !ok {
		return Playback{}, false
	}
	return d.play(cmd)
}

// ContactEnd finishes a gesture.
func (d *Deck) ContactEnd() { d.tracker.ContactEnd() }

// Pause stops the idle animation, e.g. when the host goes to the background.
func (d *Deck) Pause() { d.platter.Stop() }

// Resume restarts the idle animation unless a finger is on the record.
func (d *Deck) Resume() {
	if d.tracker.InContact() {
		return
	}
	d.platter.Start()
}

// Snapshot returns the current state.
func (d *Deck) Snapshot() Snapshot {
	snap := Snapshot{
		Samples:   d.catalog.Names(),
		Transform: d.platter.Transform(),
		Mode:      d.platter.Mode(),
		InContact: d.tracker.InContact(),
	}
	_, snap.HasPivot = d.platter.Pivot()
	if s, ok := d.ActiveSample(); ok {
		snap.Sample = s.DisplayName
	}
	return snap
}

func (d *Deck) play(cmd PlaybackCommand) (Playback, bool) {
	s, ok := d.ActiveSample()
	if !ok {
		d.logger.Debug("no sample loaded, dropping playback", "kind", cmd.Kind.String())
		return Playback{}, false
	}

	pb := Playback{Command: cmd, Sample: s.DisplayName}
	switch cmd.Kind {
	case PlayForward:
		pb.Clip = s.ForwardClip
		pb.Pitch = d.cfg.Pitch.Pitch(cmd.Velocity)
	case PlayBackward:
		pb.Clip = s.BackwardClip
		pb.Pitch = d.cfg.Pitch.Pitch(cmd.Velocity)
	case PlayOneShot:
		pb.Clip = s.MainClip
		pb.Pitch = d.cfg.Pitch.PitchMid
	default:
		return Playback{}, false
	}

	d.logger.Debug("play sound", "clip", string(pb.Clip), "pitch", pb.Pitch, "velocity", cmd.Velocity)
	if d.player != nil {
		d.player.Play(pb.Clip, pb.Pitch)
	}
	return pb, true
}
