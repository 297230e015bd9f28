package main

import "time"

// Default view geometry in pixels, a portrait phone-sized window.
const (
	defaultViewWidth   = 480
	defaultViewHeight  = 800
	defaultContentSize = 400
)

// Daemon loop sizing.
const (
	eventQueueSize = 256

	// snapshotTimeout bounds how long request handlers wait for the loop.
	snapshotTimeout = time.Second

	httpShutdownTimeout = 3 * time.Second

	// inputQueueSize buffers raw evdev events between the reader and decoders.
	inputQueueSize = 128
)
