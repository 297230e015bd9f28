package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"scratchd/internal/evdev"
	"scratchd/turntable"
)

// touchDevice is an opened evdev node with its coordinate decoder.
type touchDevice struct {
	path    string
	file    *os.File
	decoder *evdev.Decoder
}

// openTouchDevices opens every path and queries its axis ranges so raw
// coordinates land in view pixels.
func openTouchDevices(paths []string, viewWidth, viewHeight int, logger *slog.Logger) ([]touchDevice, error) {
	var devs []touchDevice
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeTouchDevices(devs)
			return nil, fmt.Errorf("open input device %s: %w", path, err)
		}

		m, err := evdev.QueryMapping(f, float64(viewWidth), float64(viewHeight))
		if err != nil {
			f.Close()
			closeTouchDevices(devs)
			return nil, fmt.Errorf("query input device %s: %w", path, err)
		}

		logger.Info("input device opened",
			"device", path,
			"x_min", m.X.Min, "x_max", m.X.Max,
			"y_min", m.Y.Min, "y_max", m.Y.Max,
		)
		devs = append(devs, touchDevice{path: path, file: f, decoder: evdev.NewDecoder(m)})
	}
	return devs, nil
}

func closeTouchDevices(devs []touchDevice) {
	for _, d := range devs {
		_ = d.file.Close()
	}
}

// runInput reads touch devices and translates contacts into daemon events.
// It blocks until ctx is canceled or a device fails.
func runInput(ctx context.Context, devs []touchDevice, events chan<- Event, logger *slog.Logger) error {
	defer closeTouchDevices(devs)

	files := make([]*os.File, len(devs))
	decoders := make(map[string]*evdev.Decoder, len(devs))
	for i, d := range devs {
		files[i] = d.file
		decoders[d.file.Name()] = d.decoder
	}

	raw := make(chan evdev.DeviceEvent, inputQueueSize)
	readErr := make(chan error, 1)
	go func() {
		readErr <- evdev.ReadDevices(ctx, files, raw)
	}()

	for {
		select {
		case <-ctx.Done():
			return <-readErr

		case err := <-readErr:
			if err != nil {
				logger.Warn("touch input stopped", "error", err)
			}
			return err

		case de := <-raw:
			ev, ok := decodeDeviceEvent(decoders, de)
			if !ok {
				continue
			}
			// A lost begin or end breaks the gesture, so wait for room.
			if !sendEvent(ctx, events, ev) {
				return <-readErr
			}
		}
	}
}

// decodeDeviceEvent feeds one raw event to its device decoder and returns
// the pointer event for a completed report.
func decodeDeviceEvent(decoders map[string]*evdev.Decoder, de evdev.DeviceEvent) (Event, bool) {
	dec, ok := decoders[de.Device]
	if !ok {
		return nil, false
	}
	c, ok := dec.Feed(de.Event)
	if !ok {
		return nil, false
	}
	return contactEvent(c), true
}

// sendEvent blocks until the loop accepts ev. It reports false when ctx
// ended first.
func sendEvent(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// contactEvent maps a decoded contact onto the daemon's pointer events.
func contactEvent(c evdev.Contact) Event {
	s := turntable.PointerSample{X: c.X, Y: c.Y, TimestampMs: c.TimeMs}
	switch c.Phase {
	case evdev.PhaseBegin:
		return ContactBegin(s)
	case evdev.PhaseMove:
		return ContactMove(s)
	default:
		return ContactEnd{TimestampMs: c.TimeMs}
	}
}
