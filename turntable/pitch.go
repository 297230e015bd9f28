package turntable

import (
	"errors"
	"fmt"
)

// Pitch curve defaults. Velocities are in dp per second and get converted to
// pixels per second by DefaultPitchCurve.
const (
	defaultVelocityMinDP = 100.0
	defaultVelocityMidDP = 800.0
	defaultVelocityMaxDP = 3000.0
	defaultPitchMin      = 0.5
	defaultPitchMid      = 1.0
	defaultPitchMax      = 2.0
)

// PitchCurve maps a scratch velocity (pixels/second) to a playback rate.
//
// Below VelocityMin the pitch is PitchMin, above VelocityMax it is PitchMax.
// In between two linear segments meet at (VelocityMid, PitchMid).
type PitchCurve struct {
	VelocityMin float64
	VelocityMid float64
	VelocityMax float64

	PitchMin float64
	PitchMid float64
	PitchMax float64
}

// DefaultPitchCurve returns the standard calibration for a display.
func DefaultPitchCurve(u UnitConverter) PitchCurve {
	return PitchCurve{
		VelocityMin: float64(u.ToPixels(defaultVelocityMinDP)),
		VelocityMid: float64(u.ToPixels(defaultVelocityMidDP)),
		VelocityMax: float64(u.ToPixels(defaultVelocityMaxDP)),
		PitchMin:    defaultPitchMin,
		PitchMid:    defaultPitchMid,
		PitchMax:    defaultPitchMax,
	}
}

// Validate checks that breakpoints and pitches are ordered.
func (c PitchCurve) Validate() error {
	if c.VelocityMin < 0 {
		return errors.New("pitch curve: velocity min must be >= 0")
	}
	if !(c.VelocityMin <= c.VelocityMid && c.VelocityMid <= c.VelocityMax) {
		return errors.New("pitch curve: velocities must satisfy min <= mid <= max")
	}
	if !(c.PitchMin <= c.PitchMid && c.PitchMid <= c.PitchMax) {
		return errors.New("pitch curve: pitches must satisfy min <= mid <= max")
	}
	if c.PitchMin <= 0 {
		return fmt.Errorf("pitch curve: pitch min must be > 0, got %v", c.PitchMin)
	}
	return nil
}

// Pitch returns the playback rate for velocity v.
func (c PitchCurve) Pitch(v float64) float64 {
	switch {
	case v <= c.VelocityMin:
		return c.PitchMin
	case v <= c.VelocityMid:
		return lerp(c.VelocityMin, c.VelocityMid, c.PitchMin, c.PitchMid, v)
	case v <= c.VelocityMax:
		return lerp(c.VelocityMid, c.VelocityMax, c.PitchMid, c.PitchMax, v)
	default:
		return c.PitchMax
	}
}

// lerp maps v from [x0,x1] onto [y0,y1]. Callers guarantee x0 < v <= x1, so
// x1 > x0 and the division is safe.
func lerp(x0, x1, y0, y1, v float64) float64 {
	return (y1-y0)/(x1-x0)*(v-x0) + y0
}
