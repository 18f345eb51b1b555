// Package deadline provides one-shot timers that invoke a callback after a
// wall-clock duration has elapsed.
package deadline

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNilCallback     = errors.New("deadline: nil callback")
	ErrInvalidDuration = errors.New("deadline: duration must be positive")
)

// Timer invokes onFire exactly once, from a goroutine other than the
// caller's, after at least d has elapsed. There is no upper bound on the
// delay. Each call owns its callback; concurrent timers never share state.
//
// The returned stop func cancels a timer that has not fired yet and releases
// its goroutine. It is idempotent and a no-op once the timer has fired.
type Timer interface {
	Schedule(d time.Duration, onFire func()) (stop func(), err error)
}

// Func adapts a plain function to the Timer interface.
type Func func(d time.Duration, onFire func()) (func(), error)

func (f Func) Schedule(d time.Duration, onFire func()) (func(), error) { return f(d, onFire) }

func check(d time.Duration, onFire func()) error {
	if onFire == nil {
		return ErrNilCallback
	}
	if d <= 0 {
		return errors.Wrapf(ErrInvalidDuration, "got %s", d)
	}
	return nil
}

// AfterFunc schedules the callback on the runtime timer heap.
type AfterFunc struct{}

func (AfterFunc) Schedule(d time.Duration, onFire func()) (func(), error) {
	if err := check(d, onFire); err != nil {
		return nil, err
	}
	t := time.AfterFunc(d, onFire)
	return func() { t.Stop() }, nil
}

// Sleep parks a dedicated goroutine for d and then fires.
type Sleep struct{}

func (Sleep) Schedule(d time.Duration, onFire func()) (func(), error) {
	if err := check(d, onFire); err != nil {
		return nil, err
	}
	t := time.NewTimer(d)
	done := make(chan struct{})
	go func() {
		select {
		case <-t.C:
			onFire()
		case <-done:
			t.Stop()
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// BusyWait polls the clock from a dedicated goroutine, yielding between
// polls. It burns a CPU for the whole duration and skews the measurement; it
// is only a fallback for hosts without a working blocking sleep.
type BusyWait struct{}

func (BusyWait) Schedule(d time.Duration, onFire func()) (func(), error) {
	if err := check(d, onFire); err != nil {
		return nil, err
	}
	var stopped atomic.Bool
	start := time.Now()
	go func() {
		for time.Since(start) < d {
			if stopped.Load() {
				return
			}
			runtime.Gosched()
		}
		if !stopped.Load() {
			onFire()
		}
	}()
	return func() { stopped.Store(true) }, nil
}

var strategies = map[string]Timer{
	"afterfunc": AfterFunc{},
	"sleep":     Sleep{},
	"busywait":  BusyWait{},
}

// Default is the strategy used when none is configured.
const Default = "afterfunc"

// New returns the timer registered under name.
func New(name string) (Timer, error) {
	if name == "" {
		name = Default
	}
	t, ok := strategies[name]
	if !ok {
		return nil, errors.Errorf("unknown timer: %q (want one of %v)", name, Names())
	}
	return t, nil
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
