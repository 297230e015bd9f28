package turntable

import (
	"errors"
	"fmt"
)

// ErrInvalidScale is returned when a display scale factor is not positive.
var ErrInvalidScale = errors.New("display scale must be > 0")

// UnitConverter converts device-independent units (dp) into pixels for one display.
//
// The zero value is not usable; construct it with NewUnitConverter so the scale
// factor is known before any conversion happens.
type UnitConverter struct {
	scale float64
}

// NewUnitConverter returns a converter for the given display scale (pixels per dp).
func NewUnitConverter(scale float64) (UnitConverter, error) {
	if scale <= 0 {
		return UnitConverter{}, fmt.Errorf("%w: got %v", ErrInvalidScale, scale)
	}
	return UnitConverter{scale: scale}, nil
}

// MustUnitConverter is like NewUnitConverter but panics on an invalid scale.
func MustUnitConverter(scale float64) UnitConverter {
	u, err := NewUnitConverter(scale)
	if err != nil {
		panic(err)
	}
	return u
}

// Scale returns the pixels-per-dp factor.
func (u UnitConverter) Scale() float64 { return u.scale }

// ToPixels converts dp to whole pixels, rounding half up.
func (u UnitConverter) ToPixels(dp float64) int {
	if u.scale <= 0 {
		panic("turntable: UnitConverter used before initialization")
	}
	return int(dp*u.scale + 0.5)
}
