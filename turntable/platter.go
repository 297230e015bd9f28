package turntable

import (
	"errors"
	"log/slog"
	"math"
	"time"
)

// Platter defaults.
const (
	DefaultTickInterval      = 60 * time.Millisecond
	DefaultSpinDegrees       = 10.0
	DefaultPullBackFactor    = 0.4
	DefaultPullBackOffset    = 0.5
	DefaultPullBackThreshold = -1.0
)

// Mode is the platter's rotation mode.
type Mode int

const (
	// ModeActive: idle ticking is suspended (platter held or paused).
	ModeActive Mode = iota
	// ModeIdle: the platter spins on its own.
	ModeIdle
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeActive:
		return "active"
	default:
		return "unknown"
	}
}

// Renderer receives every new placement of the platter artwork.
type Renderer interface {
	ApplyTransform(t Transform)
}

// PlatterConfig tunes idle spinning. Every field is used as given, so start
// from DefaultPlatterConfig; only a zero TickInterval takes the default.
type PlatterConfig struct {
	TickInterval time.Duration

	// SpinDegrees is the forward step per idle tick.
	SpinDegrees float64

	// After a scratch that ended with a delta below PullBackThreshold, idle
	// steps become delta*PullBackFactor - PullBackOffset until the delta
	// climbs back above the threshold.
	PullBackFactor    float64
	PullBackOffset    float64
	PullBackThreshold float64
}

// DefaultPlatterConfig returns the standard idle animation.
func DefaultPlatterConfig() PlatterConfig {
	return PlatterConfig{
		TickInterval:      DefaultTickInterval,
		SpinDegrees:       DefaultSpinDegrees,
		PullBackFactor:    DefaultPullBackFactor,
		PullBackOffset:    DefaultPullBackOffset,
		PullBackThreshold: DefaultPullBackThreshold,
	}
}

// Validate reports configuration that cannot produce a usable animation.
func (c PlatterConfig) Validate() error {
	if c.TickInterval < 0 {
		return errors.New("platter: tick interval must be >= 0")
	}
	if c.PullBackFactor < 0 || c.PullBackFactor >= 1 {
		return errors.New("platter: pull-back factor must be in [0, 1)")
	}
	if c.PullBackThreshold > 0 {
		return errors.New("platter: pull-back threshold must be <= 0")
	}
	return nil
}

// Platter owns the rotation of the record artwork.
//
// While idle it advances on a fixed cadence; while a gesture is active it is
// turned directly by Spin. All methods must be called from the goroutine that
// the Scheduler delivers callbacks on.
type Platter struct {
	cfg      PlatterConfig
	sched    Scheduler
	renderer Renderer
	logger   *slog.Logger

	layout    Layout
	translate Point
	pivot     Point
	hasPivot  bool

	angle     float64
	lastDelta float64
	mode      Mode

	// One outstanding tick at most. gen invalidates ticks that were
	// already handed to the scheduler when the platter was stopped.
	pending      Timer
	gen          uint64
	startPending bool
}

// NewPlatter returns a stopped platter without a pivot. renderer and logger may be nil.
func NewPlatter(cfg PlatterConfig, sched Scheduler, renderer Renderer, logger *slog.Logger) *Platter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Platter{
		cfg:      cfg,
		sched:    sched,
		renderer: renderer,
		logger:   logger,
		mode:     ModeActive,
	}
}

// SetLayout fixes the pivot for the given view geometry and publishes the
// current placement. A start requested before the first layout runs now.
func (p *Platter) SetLayout(l Layout) {
	p.layout = l
	p.translate, p.pivot = l.placement()
	p.hasPivot = true

	p.logger.Debug("platter layout",
		"view_width", l.ViewWidth,
		"view_height", l.ViewHeight,
		"content_width", l.ContentWidth,
		"content_height", l.ContentHeight,
		"translate_x", p.translate.X,
		"translate_y", p.translate.Y,
		"pivot_x", p.pivot.X,
		"pivot_y", p.pivot.Y)

	p.publish()

	if p.startPending {
		p.startPending = false
		p.schedule()
	}
}

// Start puts the platter into idle spinning. Without a pivot the request is
// remembered and replayed by SetLayout.
func (p *Platter) Start() {
	if !p.hasPivot {
		p.startPending = true
		return
	}
	p.schedule()
}

// Stop cancels idle spinning.
func (p *Platter) Stop() {
	p.startPending = false
	p.cancel()
	p.mode = ModeActive
}

// Spin turns the platter for a vertical finger movement dy at horizontal
// position x. The angle is the one of a right triangle with legs dy and the
// horizontal distance between x and the pivot; x on the pivot is a no-op.
func (p *Platter) Spin(dy, x float64) {
	if !p.hasPivot {
		return
	}
	b := x - p.pivot.X
	if b == 0 {
		return
	}
	p.Rotate(math.Atan(dy/b) * 180 / math.Pi)
}

// Rotate turns the platter by degrees and records the delta for pull-back.
func (p *Platter) Rotate(degrees float64) {
	p.angle += degrees
	p.lastDelta = degrees
	p.publish()
}

// Angle returns the accumulated rotation in degrees (unbounded).
func (p *Platter) Angle() float64 { return p.angle }

// LastDelta returns the most recently applied rotation step.
func (p *Platter) LastDelta() float64 { return p.lastDelta }

// Mode returns the current mode.
func (p *Platter) Mode() Mode { return p.mode }

// Pivot returns the rotation centre and whether a layout has been applied.
func (p *Platter) Pivot() (Point, bool) { return p.pivot, p.hasPivot }

// Transform returns the current placement of the artwork.
func (p *Platter) Transform() Transform {
	return Transform{
		TranslateX:    p.translate.X,
		TranslateY:    p.translate.Y,
		RotateDegrees: p.angle,
		PivotX:        p.pivot.X,
		PivotY:        p.pivot.Y,
	}
}

// idleStep is the angle of the next idle tick.
func (p *Platter) idleStep() float64 {
	if p.lastDelta < p.cfg.PullBackThreshold {
		return p.lastDelta*p.cfg.PullBackFactor - p.cfg.PullBackOffset
	}
	return p.cfg.SpinDegrees
}

func (p *Platter) schedule() {
	p.cancel()
	p.mode = ModeIdle
	if p.sched == nil {
		return
	}
	gen := p.gen
	p.pending = p.sched.AfterFunc(p.cfg.TickInterval, func() { p.tick(gen) })
}

func (p *Platter) cancel() {
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
	p.gen++
}

func (p *Platter) tick(gen uint64) {
	if gen != p.gen || p.mode != ModeIdle {
		return
	}
	p.pending = nil
	p.Rotate(p.idleStep())
	p.schedule()
}

func (p *Platter) publish() {
	if p.renderer == nil || !p.hasPivot {
		return
	}
	p.renderer.ApplyTransform(p.Transform())
}
