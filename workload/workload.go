package workload

import (
	"fmt"
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/Owanesh/wasmlabs/pingpong"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Workload is a ping-pong exchange that runs until a deadline fires.
type Workload interface {
	Setup() error
	Run(d time.Duration, timer deadline.Timer) (pingpong.Result, error)
}

// Names lists the available workloads.
var Names = []string{"condvar", "chan"}

// New returns the workload called name configured from the yaml args.
func New(name string, args []byte, lf logging.LoggerFactory) (Workload, error) {
	var w Workload
	switch name {
	case "condvar":
		w = &CondVar{loggerFactory: lf}
	case "chan":
		w = &Chan{}
	default:
		return nil, fmt.Errorf("unknown workload: %q", name)
	}
	return w, yaml.Unmarshal(args, w)
}
