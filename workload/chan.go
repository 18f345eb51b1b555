package workload

import (
	"sync/atomic"
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/Owanesh/wasmlabs/pingpong"
)

// Chan runs the same driver/responder protocol over two unbuffered
// channels. It is the baseline the condvar exchange is compared against.
type Chan struct{}

func (h *Chan) Setup() error {
	return nil
}

func (h *Chan) Run(d time.Duration, timer deadline.Timer) (pingpong.Result, error) {
	if d <= 0 {
		return pingpong.Result{}, pingpong.ErrInvalidDuration
	}
	ping := make(chan uint64)
	pong := make(chan uint64)

	var acked uint64
	responderDone := make(chan error, 1)
	go func() {
		for round := range ping {
			if round != acked {
				close(pong)
				responderDone <- &pingpong.SyncFault{
					Kind:     pingpong.FaultRoundMismatch,
					Party:    pingpong.PartyResponder,
					Expected: acked,
					Got:      round,
				}
				return
			}
			pong <- round
			acked++
		}
		responderDone <- nil
	}()

	var stop atomic.Bool
	start := time.Now()
	stopTimer, err := timer.Schedule(d, func() { stop.Store(true) })
	if err != nil {
		close(ping)
		<-responderDone
		return pingpong.Result{}, &pingpong.ResourceError{Op: "schedule deadline", Err: err}
	}
	defer stopTimer()

	var n uint64
	for {
		ping <- n
		got, ok := <-pong
		if !ok {
			break
		}
		if got != n {
			err = &pingpong.SyncFault{
				Kind:     pingpong.FaultRoundMismatch,
				Party:    pingpong.PartyDriver,
				Expected: n,
				Got:      got,
			}
			break
		}
		n++
		if stop.Load() {
			break
		}
	}
	res := pingpong.Result{FinalCount: n, Elapsed: time.Since(start)}
	close(ping)
	if rerr := <-responderDone; err == nil {
		err = rerr
	}
	res.Acknowledged = acked
	return res, err
}
