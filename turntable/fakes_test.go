package turntable

import (
	"sort"
	"time"
)

// manualScheduler runs callbacks only when the test advances its clock.
type manualScheduler struct {
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// pending counts timers that have neither fired nor been stopped.
func (s *manualScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// advance moves the clock forward, firing due timers in order.
func (s *manualScheduler) advance(d time.Duration) {
	end := s.now + d
	for {
		due := s.due(end)
		if due == nil {
			break
		}
		s.now = due.at
		due.fired = true
		due.f()
	}
	s.now = end
}

func (s *manualScheduler) due(end time.Duration) *manualTimer {
	var live []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= end {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].at < live[j].at })
	return live[0]
}

// recordingRenderer keeps every published transform.
type recordingRenderer struct {
	transforms []Transform
}

func (r *recordingRenderer) ApplyTransform(t Transform) {
	r.transforms = append(r.transforms, t)
}

func (r *recordingRenderer) last() Transform {
	if len(r.transforms) == 0 {
		return Transform{}
	}
	return r.transforms[len(r.transforms)-1]
}

// spinCall records one Spin invocation.
type spinCall struct {
	dy, x float64
}

// recordingSpinner is a Spinner test double.
type recordingSpinner struct {
	starts int
	stops  int
	spins  []spinCall
}

func (s *recordingSpinner) Start()             { s.starts++ }
func (s *recordingSpinner) Stop()              { s.stops++ }
func (s *recordingSpinner) Spin(dy, x float64) { s.spins = append(s.spins, spinCall{dy: dy, x: x}) }

// playCall records one Play invocation.
type playCall struct {
	clip  ClipRef
	pitch float64
}

// recordingPlayer is a SamplePlayer test double.
type recordingPlayer struct {
	plays []playCall
	loads []Sample
}

func (p *recordingPlayer) Play(clip ClipRef, pitch float64) {
	p.plays = append(p.plays, playCall{clip: clip, pitch: pitch})
}

func (p *recordingPlayer) Load(s Sample) { p.loads = append(p.loads, s) }
