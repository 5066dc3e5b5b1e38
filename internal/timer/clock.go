package timer

import (
	"sync"
	"time"
)

// Clock supplies high-resolution instants. An error means the clock is
// unavailable and the current attempt must be discarded.
type Clock interface {
	Now() (time.Time, error)
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() (time.Time, error) {
	return time.Now(), nil
}

// Cancel stops a scheduled callback. It is safe to call more than once.
type Cancel func()

// Scheduler starts periodic and one-shot callbacks.
//
// Callbacks must be delivered on the same goroutine that drives the Machine.
type Scheduler interface {
	Every(d time.Duration, fn func()) Cancel
	After(d time.Duration, fn func()) Cancel
}

// Dispatcher hands a callback to the goroutine that owns the Machine.
type Dispatcher func(fn func())

// TimeScheduler schedules with the time package and delivers each callback
// through a Dispatcher, such as a Bubble Tea program's Send.
type TimeScheduler struct {
	dispatch Dispatcher
}

// NewTimeScheduler returns a scheduler that delivers callbacks via dispatch.
func NewTimeScheduler(dispatch Dispatcher) *TimeScheduler {
	return &TimeScheduler{dispatch: dispatch}
}

// Every implements Scheduler.
func (s *TimeScheduler) Every(d time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.dispatch(fn)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// After implements Scheduler.
func (s *TimeScheduler) After(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, func() {
		s.dispatch(fn)
	})
	return func() {
		t.Stop()
	}
}
