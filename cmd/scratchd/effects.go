package main

import (
	"log/slog"
	"time"

	"scratchd/turntable"
)

// effectTargets are the external systems commands act on. Either may be nil:
// without a player sounds are dropped, without a broadcast channel renderers
// are not updated.
type effectTargets struct {
	player     turntable.SamplePlayer
	broadcasts chan<- StateBroadcast

	// done releases a publish waiting on a full broadcast queue.
	done <-chan struct{}
}

// runEffect executes a single Command.
//
// It may perform I/O but never touches the deck; the daemon loop sequences
// event -> deck -> commands -> runEffect.
func runEffect(fx effectTargets, cmd Command, logger *slog.Logger) {
	now := time.Now().UTC()

	switch c := cmd.(type) {
	case CmdPlayClip:
		if fx.player == nil {
			logger.Debug("audio disabled, dropping clip", "clip", string(c.Clip))
			return
		}
		fx.player.Play(c.Clip, c.Pitch)

	case CmdLoadSample:
		if fx.player == nil {
			return
		}
		logger.Info("loading sample", "sample", c.Sample.DisplayName)
		fx.player.Load(c.Sample)

	case CmdPublishTransform:
		publish(fx, BroadcastTransform{Transform: c.Transform, At: now}, logger)

	case CmdPublishPlayback:
		publish(fx, BroadcastPlayback{Playback: c.Playback, At: now}, logger)

	case CmdPublishSampleChanged:
		publish(fx, BroadcastSampleChanged{Name: c.Name, At: now}, logger)

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the loop on a requester that went away.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}

// publish hands b to the broadcaster. Transforms are superseded by the next
// one and are dropped when the queue is full; every other update waits for
// room until fx.done.
func publish(fx effectTargets, b StateBroadcast, logger *slog.Logger) {
	if fx.broadcasts == nil {
		return
	}
	if _, ok := b.(BroadcastTransform); ok {
		select {
		case fx.broadcasts <- b:
		default:
			logger.Debug("broadcast queue full, dropping transform")
		}
		return
	}
	select {
	case fx.broadcasts <- b:
	case <-fx.done:
	}
}
