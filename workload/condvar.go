package workload

import (
	"fmt"
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/Owanesh/wasmlabs/pingpong"
	"github.com/pion/logging"
)

// CondVar is the mutex and condition variable exchange of package pingpong.
type CondVar struct {
	// WaitDelay is slept before every condition wait.
	WaitDelay time.Duration `yaml:"wait_delay"`
	// FaultAt corrupts the round sent at that round.
	FaultAt *uint64 `yaml:"fault_at"`
	// ShutdownGrace bounds the wait for the responder after the deadline.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	loggerFactory logging.LoggerFactory
}

func (c *CondVar) Setup() error {
	if c.WaitDelay < 0 {
		return fmt.Errorf("negative wait_delay: %s", c.WaitDelay)
	}
	return nil
}

func (c *CondVar) Run(d time.Duration, timer deadline.Timer) (pingpong.Result, error) {
	var opts []pingpong.Option
	if c.WaitDelay > 0 {
		delay := c.WaitDelay
		opts = append(opts, pingpong.WithWaitHook(func(pingpong.Party) { time.Sleep(delay) }))
	}
	return pingpong.Run(pingpong.Config{
		Duration:       d,
		Timer:          timer,
		LoggerFactory:  c.loggerFactory,
		ChannelOptions: opts,
		FaultAt:        c.FaultAt,
		ShutdownGrace:  c.ShutdownGrace,
	})
}
