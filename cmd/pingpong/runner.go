package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/Owanesh/wasmlabs/internal"
	"github.com/Owanesh/wasmlabs/workload"
	"github.com/pion/logging"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type runOptions struct {
	workload   string
	timer      string
	unit       string
	args       string
	statsdAddr string
	profile    []string
	outdir     string
	meta       bool
	verbose    bool
	name       string
	id         string
	iteration  int
	faultAt    *uint64
}

// Runner executes a single benchmark run in the current process.
type Runner struct {
	internal.RunConfig
	internal.RunResult

	workload workload.Workload
	timer    deadline.Timer
	unit     internal.Unit
	meta     bool
	metrics  *Metrics
	log      logging.LeveledLogger
	stdout   io.Writer
	stderr   io.Writer
}

// newRunner validates o. Any error it returns is a usage error, and nothing
// has been started yet.
func newRunner(o runOptions, secs int, lf logging.LoggerFactory, stdout, stderr io.Writer) (*Runner, error) {
	unit, err := internal.ParseUnit(o.unit)
	if err != nil {
		return nil, usageError{err}
	}
	timer, err := deadline.New(o.timer)
	if err != nil {
		return nil, usageError{err}
	}
	profile, err := internal.ParseProfilers(o.profile)
	if err != nil {
		return nil, usageError{err}
	}
	w, err := workload.New(o.workload, []byte(o.args), lf)
	if err != nil {
		return nil, usageError{err}
	}
	if o.faultAt != nil {
		cv, ok := w.(*workload.CondVar)
		if !ok {
			return nil, usageError{fmt.Errorf("fault injection is not supported by workload %q", o.workload)}
		}
		cv.FaultAt = o.faultAt
	}
	if err := w.Setup(); err != nil {
		return nil, usageError{err}
	}

	name := o.name
	if name == "" {
		name = o.workload
	}
	r := &Runner{
		RunConfig: internal.RunConfig{
			ID:        o.id,
			Name:      name,
			Workload:  o.workload,
			Iteration: o.iteration,
			Duration:  time.Duration(secs) * time.Second,
			Timer:     o.timer,
			Unit:      unit.Label,
			Profile:   profile,
			Outdir:    o.outdir,
			Args:      o.args,
		},
		workload: w,
		timer:    timer,
		unit:     unit,
		meta:     o.meta,
		log:      lf.NewLogger("runner"),
		stdout:   stdout,
		stderr:   stderr,
	}
	r.metrics, err = newMetrics(o.statsdAddr, []string{"workload:" + o.workload, "timer:" + o.timer})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) Run() error {
	r.Start = time.Now()
	r.Env = internal.CurrentEnv()

	var err error
	if r.BeforeRusage, err = internal.GetRusage(); err != nil {
		return errors.Wrap(err, "getrusage")
	}

	prof := &Profiler{ProfileConfig: r.Profile, Outdir: r.Outdir}
	prof.Start()

	r.log.Debugf("running %s for %s with %s timer", r.Workload, r.RunConfig.Duration, r.Timer)
	res, runErr := r.workload.Run(r.RunConfig.Duration, r.timer)

	r.Profiles = prof.Stop()
	r.RunResult.Duration = res.Elapsed
	r.FinalCount = res.FinalCount
	r.Acknowledged = res.Acknowledged
	r.Rate = r.unit.Rate(res.FinalCount, res.Elapsed)
	r.Error = internal.ErrStr(runErr)

	if r.AfterRusage, err = internal.GetRusage(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "getrusage")
	}

	if runErr != nil {
		r.metrics.Fault(runErr)
	} else {
		fmt.Fprintln(r.stderr, internal.FormatCount(res.FinalCount, r.unit))
		r.metrics.Report(res, r.Rate)
	}

	if r.meta {
		data, err := yaml.Marshal(internal.RunMeta{RunConfig: r.RunConfig, RunResult: r.RunResult})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.stdout, "%s", data)
	}
	return runErr
}
