package pingpong

import (
	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// Responder acknowledges each round it is handed by handing the same value
// back. Rounds must arrive in strictly increasing order starting at zero.
type Responder struct {
	ch    *Channel
	log   logging.LeveledLogger
	acked uint64
}

// NewResponder returns a responder bound to ch. log may be nil.
func NewResponder(ch *Channel, log logging.LeveledLogger) *Responder {
	return &Responder{ch: ch, log: log}
}

// Run acknowledges rounds until the channel is closed. It returns nil on a
// normal shutdown and the sync fault otherwise.
func (r *Responder) Run() error {
	for {
		got, err := r.ch.AwaitAndConsume(PartyResponder, r.acked)
		if err == nil {
			err = r.ch.Handoff(PartyResponder, got)
		}
		if errors.Is(err, ErrClosed) {
			if r.log != nil {
				r.log.Debugf("responder stopped after %d rounds", r.acked)
			}
			return nil
		} else if err != nil {
			if r.log != nil {
				r.log.Errorf("responder aborted after %d rounds: %v", r.acked, err)
			}
			return err
		}
		r.acked++
	}
}

// Acknowledged returns the number of rounds handed back. Only valid once Run
// has returned.
func (r *Responder) Acknowledged() uint64 {
	return r.acked
}
