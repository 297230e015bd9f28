package turntable

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop cancels the call. It reports whether the call was still pending.
	Stop() bool
}

// Scheduler runs delayed calls on the goroutine that owns the turntable.
//
// Implementations must never run f concurrently with other turntable calls:
// the components in this package hold no locks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// PostScheduler schedules with time.AfterFunc but hands the callback to post
// instead of running it on the timer goroutine. post is expected to enqueue f
// for the owning loop (for example by sending it on the loop's event channel).
type PostScheduler struct {
	post func(func())
}

// NewPostScheduler returns a scheduler that delivers callbacks through post.
func NewPostScheduler(post func(func())) *PostScheduler {
	return &PostScheduler{post: post}
}

// AfterFunc implements Scheduler.
func (s *PostScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { s.post(f) })
}
