package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scratchd/turntable"
)

// ============================================================================
// Daemon loop
// ============================================================================
//
// One goroutine owns the deck. Every input, including the platter's own tick
// timer, arrives as an Event on a single channel:
//   - applyEvent feeds the event to the deck
//   - the deck talks to a commandCollector instead of real outputs
//   - collected commands are executed by runEffect once the event is applied
//
// ============================================================================

// runDaemon processes events until ctx is canceled or events is closed.
// Commands already queued by the deck (e.g. the initial sample load) are
// executed before the first event is read.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	deck *turntable.Deck,
	collector *commandCollector,
	fx effectTargets,
	logger *slog.Logger,
) {
	if deck == nil || collector == nil {
		logger.Error("daemon started without a deck")
		return
	}

	flushCommands := func() {
		for _, cmd := range collector.drain() {
			runEffect(fx, cmd, logger)
		}
	}

	flushCommands()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			deck.Pause()
			flushCommands()
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			applyEvent(deck, collector, ev, logger)
			flushCommands()
		}
	}
}

// applyEvent feeds one event to the deck. It performs no I/O; outputs end up
// in collector.
func applyEvent(deck *turntable.Deck, collector *commandCollector, ev Event, logger *slog.Logger) {
	switch e := ev.(type) {
	case ContactBegin:
		deck.ContactBegin(turntable.PointerSample(e))

	case ContactMove:
		if pb, ok := deck.ContactMove(turntable.PointerSample(e)); ok {
			collector.push(CmdPublishPlayback{Playback: pb})
		}

	case ContactEnd:
		deck.ContactEnd()

	case SelectSample:
		before, _ := deck.ActiveSample()
		s, err := deck.SelectSample(e.Name)
		if err != nil {
			logger.Warn("select sample failed", "error", err)
			return
		}
		if s.DisplayName != before.DisplayName {
			collector.push(CmdPublishSampleChanged{Name: s.DisplayName})
		}

	case Pause:
		deck.Pause()

	case Resume:
		deck.Resume()

	case LayoutChanged:
		deck.SetLayout(e.Layout())

	case RequestStateSnapshot:
		collector.push(CmdPublishStateSnapshot{
			Snapshot: snapshotOf(deck, time.Now().UTC()),
			Reply:    e.Reply,
		})

	case scheduledCall:
		if e.f != nil {
			e.f()
		}

	default:
		logger.Warn("unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

// newLoopScheduler returns a scheduler whose callbacks run on the daemon loop.
func newLoopScheduler(ctx context.Context, events chan<- Event) *turntable.PostScheduler {
	return turntable.NewPostScheduler(func(f func()) {
		select {
		case events <- scheduledCall{f: f}:
		case <-ctx.Done():
		}
	})
}
