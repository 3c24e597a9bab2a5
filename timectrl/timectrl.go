package timectrl

import (
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. Components
// depend on this abstraction rather than the concrete controller type,
// enabling testability.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// periodicTask fires at every multiple of its interval in simulation
// time.
type periodicTask struct {
	interval time.Duration
	next     time.Time
	fn       func(time.Time)
}

// TimeController drives simulation time and notifies registered
// listeners and periodic tasks. It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	listeners []func(time.Time)
	tasks     []*periodicTask
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// AddPeriodicTask registers a callback that fires whenever simulation
// time reaches a multiple of interval past the start time. Tasks due at
// the same instant run in registration order; that ordering is a
// property of the current implementation, not a contract.
func (tc *TimeController) AddPeriodicTask(interval time.Duration, fn func(time.Time)) {
	if interval <= 0 || fn == nil {
		return
	}
	tc.tasks = append(tc.tasks, &periodicTask{
		interval: interval,
		next:     tc.StartTime.Add(interval),
		fn:       fn,
	})
}

// Start runs the controller for the specified duration in a separate goroutine.
// It returns a channel that is closed when the controller finishes.
// Listeners and tasks must be registered before Start.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		tc.mu.Unlock()

		elapsed := time.Duration(0)

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			if ticker != nil {
				<-ticker.C
			}
			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			// Update currentTime under lock
			tc.mu.Lock()
			tc.currentTime = simTime
			tc.mu.Unlock()

			tc.step(simTime)
		}
	}()
	return done
}

// step delivers one tick: every listener first, then every periodic
// task that has come due, each catching up on missed multiples when the
// tick is coarser than its interval.
func (tc *TimeController) step(simTime time.Time) {
	for _, fn := range tc.listeners {
		fn(simTime)
	}
	for _, task := range tc.tasks {
		for !task.next.After(simTime) {
			task.fn(task.next)
			task.next = task.next.Add(task.interval)
		}
	}
}
