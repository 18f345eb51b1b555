package pingpong

import (
	"github.com/pion/logging"
)

// State is the driver's lifecycle state.
type State int

const (
	Running State = iota
	Stopping
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopping"
}

// Driver owns the benchmark loop. Each round it hands the current round
// number to the responder, waits for the acknowledgment and advances the
// counter. The responder only ever acknowledges.
type Driver struct {
	ch  *Channel
	log logging.LeveledLogger

	// Guarded by ch.mu.
	round         uint64
	stopRequested bool
	state         State
	finalCount    uint64

	skew   bool
	skewAt uint64
}

// NewDriver returns a driver in the Running state. log may be nil.
func NewDriver(ch *Channel, log logging.LeveledLogger) *Driver {
	return &Driver{ch: ch, log: log}
}

// InjectFault makes the driver send round+1 instead of round when it
// reaches round at. The responder must detect this as a sync fault.
func (d *Driver) InjectFault(at uint64) {
	d.ch.mu.Lock()
	d.skew, d.skewAt = true, at
	d.ch.mu.Unlock()
}

// RequestStop is the deadline callback. It only sets the stop flag under
// the channel lock and never blocks on driver progress.
func (d *Driver) RequestStop() {
	d.ch.mu.Lock()
	d.stopRequested = true
	d.ch.mu.Unlock()
}

// Run drives rounds until a stop is requested and returns the final count.
// It never initiates a round after observing the stop flag. On return the
// channel is closed so the responder can terminate.
func (d *Driver) Run() (uint64, error) {
	if d.log != nil {
		d.log.Debug("driver started")
	}
	for {
		d.ch.mu.Lock()
		iter := d.round
		sent := iter
		if d.skew && iter == d.skewAt {
			sent++
		}
		err := d.ch.handoffLocked(PartyDriver, sent)
		d.ch.mu.Unlock()
		if err != nil {
			return d.abort(err)
		}

		if _, err := d.ch.AwaitAndConsume(PartyDriver, iter); err != nil {
			return d.abort(err)
		}

		d.ch.mu.Lock()
		d.round++
		if d.stopRequested {
			d.state = Stopping
			d.finalCount = d.round
		}
		state, final := d.state, d.finalCount
		d.ch.mu.Unlock()

		if state == Stopping {
			d.ch.Close()
			if d.log != nil {
				d.log.Debugf("driver stopped after %d rounds", final)
			}
			return final, nil
		}
	}
}

func (d *Driver) abort(err error) (uint64, error) {
	d.ch.Close()
	d.ch.mu.Lock()
	d.state = Stopping
	d.finalCount = d.round
	n := d.finalCount
	d.ch.mu.Unlock()
	if d.log != nil {
		d.log.Errorf("driver aborted after %d rounds: %v", n, err)
	}
	return n, err
}

// State returns the driver's current state.
func (d *Driver) State() State {
	d.ch.mu.Lock()
	defer d.ch.mu.Unlock()
	return d.state
}

// FinalCount returns the recorded final count. It is zero until the driver
// has entered the Stopping state.
func (d *Driver) FinalCount() uint64 {
	d.ch.mu.Lock()
	defer d.ch.mu.Unlock()
	return d.finalCount
}
