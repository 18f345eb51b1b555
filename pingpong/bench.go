package pingpong

import (
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/pion/logging"
)

// DefaultShutdownGrace bounds how long Run waits for the responder after the
// driver has stopped.
const DefaultShutdownGrace = time.Second

// Config describes one benchmark run.
type Config struct {
	// Duration is the wall-clock length of the run.
	Duration time.Duration
	// Timer fires the stop request. Defaults to deadline.AfterFunc.
	Timer deadline.Timer
	// LoggerFactory creates the driver and responder loggers. Optional.
	LoggerFactory logging.LoggerFactory
	// ChannelOptions are passed to NewChannel.
	ChannelOptions []Option
	// FaultAt, when set, corrupts the round the driver sends at that round.
	FaultAt *uint64
	// ShutdownGrace defaults to DefaultShutdownGrace.
	ShutdownGrace time.Duration
}

// Result is the outcome of a run.
type Result struct {
	// FinalCount is the number of completed rounds when the stop was
	// observed.
	FinalCount uint64
	// Acknowledged is the number of rounds the responder handed back.
	Acknowledged uint64
	// Elapsed is the wall time between scheduling the deadline and the
	// driver stopping.
	Elapsed time.Duration
}

// Run starts the responder, schedules the deadline and runs the driver loop
// until the deadline fires. It returns after the responder has terminated,
// or with ErrResponderLeak if it does not terminate within the grace period.
func Run(cfg Config) (Result, error) {
	if cfg.Duration <= 0 {
		return Result{}, ErrInvalidDuration
	}
	timer := cfg.Timer
	if timer == nil {
		timer = deadline.AfterFunc{}
	}
	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	var dlog, rlog logging.LeveledLogger
	if cfg.LoggerFactory != nil {
		dlog = cfg.LoggerFactory.NewLogger("driver")
		rlog = cfg.LoggerFactory.NewLogger("responder")
	}

	ch := NewChannel(cfg.ChannelOptions...)
	driver := NewDriver(ch, dlog)
	if cfg.FaultAt != nil {
		driver.InjectFault(*cfg.FaultAt)
	}
	responder := NewResponder(ch, rlog)

	responderDone := make(chan error, 1)
	go func() { responderDone <- responder.Run() }()

	start := time.Now()
	stopTimer, err := timer.Schedule(cfg.Duration, driver.RequestStop)
	if err != nil {
		ch.Close()
		<-responderDone
		return Result{}, &ResourceError{Op: "schedule deadline", Err: err}
	}

	count, err := driver.Run()
	// A run aborted by a fault ends before the deadline.
	stopTimer()
	res := Result{FinalCount: count, Elapsed: time.Since(start)}

	select {
	case rerr := <-responderDone:
		if err == nil {
			err = rerr
		}
		res.Acknowledged = responder.Acknowledged()
	case <-time.After(grace):
		if err == nil {
			err = ErrResponderLeak
		}
	}
	return res, err
}
