// Package pingpong implements a strictly alternating two-party exchange and
// the deadline-terminated benchmark loop built on top of it.
package pingpong

import "sync"

// Party identifies one of the two participants of a Channel.
type Party int

const (
	PartyDriver Party = iota
	PartyResponder
)

func (p Party) String() string {
	if p == PartyDriver {
		return "driver"
	}
	return "responder"
}

func (p Party) peer() Party { return 1 - p }

// Transition is one change of slot ownership.
type Transition struct {
	From  Party
	To    Party
	Round uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithObserver registers fn to be called for every hand-off. fn runs with
// the channel lock held and must not call back into the channel.
func WithObserver(fn func(Transition)) Option {
	return func(c *Channel) { c.observe = fn }
}

// WithWaitHook registers fn to be called, with the lock released, each time
// a party is about to park on its condition variable.
func WithWaitHook(fn func(Party)) Option {
	return func(c *Channel) { c.beforeWait = fn }
}

// Channel is a single-slot rendezvous between a driver and a responder.
//
// The slot is owned by exactly one party at a time. Handoff stores a round,
// marks it pending and passes ownership to the peer; AwaitAndConsume parks
// the caller until a hand-off addressed to it is pending. Each direction has
// its own condition variable and every wait is guarded by the pending
// predicate, so a signal issued before the peer starts waiting is not lost.
type Channel struct {
	mu      sync.Mutex
	wake    [2]*sync.Cond
	round   uint64
	owner   Party
	pending bool
	closed  bool
	fault   error

	observe    func(Transition)
	beforeWait func(Party)
}

// NewChannel returns a channel whose slot is owned by the driver.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{owner: PartyDriver}
	c.wake[PartyDriver] = sync.NewCond(&c.mu)
	c.wake[PartyResponder] = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handoff passes value to the peer of from. It returns once the peer has
// been signalled and does not wait for consumption.
func (c *Channel) Handoff(from Party, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handoffLocked(from, value)
}

func (c *Channel) handoffLocked(from Party, value uint64) error {
	if c.fault != nil {
		return c.fault
	}
	if c.closed {
		return ErrClosed
	}
	if c.owner != from {
		return c.failLocked(&SyncFault{Kind: FaultNotOwner, Party: from, Got: value})
	}
	if c.pending {
		return c.failLocked(&SyncFault{Kind: FaultDoubleHandoff, Party: from, Expected: c.round, Got: value})
	}
	c.round = value
	c.pending = true
	c.owner = from.peer()
	if c.observe != nil {
		c.observe(Transition{From: from, To: c.owner, Round: value})
	}
	c.wake[c.owner].Signal()
	return nil
}

// AwaitAndConsume blocks until a hand-off addressed to who is pending, then
// consumes it. A pending round different from expected is a sync fault.
// After Close it returns ErrClosed; after a fault it returns that fault.
func (c *Channel) AwaitAndConsume(who Party, expected uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delayed := false
	for !(c.pending && c.owner == who) {
		if c.fault != nil {
			return 0, c.fault
		}
		if c.closed {
			return 0, ErrClosed
		}
		if c.beforeWait != nil && !delayed {
			delayed = true
			c.mu.Unlock()
			c.beforeWait(who)
			c.mu.Lock()
			continue
		}
		c.wake[who].Wait()
		delayed = false
	}
	if c.fault != nil {
		return 0, c.fault
	}

	if c.round != expected {
		return c.round, c.failLocked(&SyncFault{
			Kind:     FaultRoundMismatch,
			Party:    who,
			Expected: expected,
			Got:      c.round,
		})
	}
	c.pending = false
	return c.round, nil
}

// Close wakes both parties and makes every later wait return ErrClosed. A
// hand-off that is already pending can still be consumed.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Channel) closeLocked() {
	c.closed = true
	c.wake[PartyDriver].Broadcast()
	c.wake[PartyResponder].Broadcast()
}

// failLocked records the first fault and shuts the channel down so the
// peer does not stay parked.
func (c *Channel) failLocked(err error) error {
	if c.fault == nil {
		c.fault = err
	}
	c.closeLocked()
	return c.fault
}

// Err returns the recorded sync fault, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault
}

// State returns a consistent snapshot of the slot.
func (c *Channel) State() (round uint64, owner Party, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round, c.owner, c.pending
}
