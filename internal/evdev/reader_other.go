//go:build !linux

package evdev

import (
	"context"
	"errors"
	"os"
)

var errUnsupported = errors.New("evdev: input devices are only supported on linux")

// DeviceEvent is a raw event tagged with the device it came from.
type DeviceEvent struct {
	Device string
	Event  Event
}

func QueryMapping(f *os.File, viewWidth, viewHeight float64) (Mapping, error) {
	return Mapping{}, errUnsupported
}

func ReadDevices(ctx context.Context, files []*os.File, out chan<- DeviceEvent) error {
	return errUnsupported
}
