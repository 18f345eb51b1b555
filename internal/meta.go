package internal

import (
	"io/fs"
	"io/ioutil"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/host"
	"gopkg.in/yaml.v3"
)

func ReadMeta(dir string, cb func(*RunMeta) error) error {
	return filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if filepath.Base(path) == "meta.yaml" {
			data, err := ioutil.ReadFile(path)
			if err != nil {
				return err
			}
			meta := &RunMeta{}
			if err := yaml.Unmarshal(data, &meta); err != nil {
				return err
			}
			return cb(meta)
		}
		return nil
	})
}

type RunMeta struct {
	RunConfig `yaml:"config"`
	RunResult `yaml:"result"`
}

type RunConfig struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Workload  string        `yaml:"workload"`
	Iteration int           `yaml:"iteration"`
	Duration  time.Duration `yaml:"duration"`
	Timer     string        `yaml:"timer"`
	Unit      string        `yaml:"unit"`
	Profile   ProfileConfig `yaml:"profile"`
	Outdir    string        `yaml:"outdir"`
	Args      string        `yaml:"args"`
}

type RunResult struct {
	Start        time.Time     `yaml:"start"`
	Env          WorkloadEnv   `yaml:"env"`
	Duration     time.Duration `yaml:"duration"`
	FinalCount   uint64        `yaml:"final_count"`
	Acknowledged uint64        `yaml:"acknowledged"`
	Rate         float64       `yaml:"rate"`
	BeforeRusage Rusage        `yaml:"before_rusage"`
	AfterRusage  Rusage        `yaml:"after_rusage"`
	Profiles     []RunProfile  `yaml:"profiles"`
	Error        string        `yaml:"error,omitempty"`
}

type WorkloadEnv struct {
	GoVersion     string `yaml:"go_version"`
	GoOS          string `yaml:"go_os"`
	GoArch        string `yaml:"go_arch"`
	GoMaxProcs    int    `yaml:"go_max_procs"`
	GoNumCPU      int    `yaml:"go_num_cpu"`
	KernelVersion string `yaml:"kernel_version,omitempty"`
}

// CurrentEnv describes the running process. The kernel version is left
// empty when the host does not report one.
func CurrentEnv() WorkloadEnv {
	env := WorkloadEnv{
		GoVersion:  runtime.Version(),
		GoOS:       runtime.GOOS,
		GoArch:     runtime.GOARCH,
		GoMaxProcs: runtime.GOMAXPROCS(0),
		GoNumCPU:   runtime.NumCPU(),
	}
	if kv, err := host.KernelVersion(); err == nil {
		env.KernelVersion = kv
	}
	return env
}

// ContextSwitches returns the voluntary and involuntary context switches of
// the run.
func (r RunResult) ContextSwitches() int64 {
	d := r.AfterRusage.Sub(r.BeforeRusage)
	return d.VoluntaryContextSwitches + d.InvoluntaryContextSwitches
}

type RunProfile struct {
	Kind            string        `yaml:"kind"`
	File            string        `yaml:"file,omitempty"`
	Start           time.Time     `yaml:"start"`
	ProfileDuration time.Duration `yaml:"profile_duration,omitempty"`
	StopDuration    time.Duration `yaml:"stop_duration,omitempty"`
	Error           string        `yaml:"error,omitempty"`
}

type Rusage struct {
	User                       time.Duration `yaml:"user"`
	System                     time.Duration `yaml:"system"`
	MaxRSS                     int64         `yaml:"maxrss"` // Warning: kB in Linux, b in darwin
	SoftFaults                 int64         `yaml:"soft_faults"`
	HardFaults                 int64         `yaml:"hard_faults"`
	VoluntaryContextSwitches   int64         `yaml:"voluntary_context_switches"`
	InvoluntaryContextSwitches int64         `yaml:"involuntary_context_switches"`
}

// Sub returns the resource usage accumulated between before and r. MaxRSS
// is a high-water mark and is taken from r.
func (r Rusage) Sub(before Rusage) Rusage {
	return Rusage{
		User:                       r.User - before.User,
		System:                     r.System - before.System,
		MaxRSS:                     r.MaxRSS,
		SoftFaults:                 r.SoftFaults - before.SoftFaults,
		HardFaults:                 r.HardFaults - before.HardFaults,
		VoluntaryContextSwitches:   r.VoluntaryContextSwitches - before.VoluntaryContextSwitches,
		InvoluntaryContextSwitches: r.InvoluntaryContextSwitches - before.InvoluntaryContextSwitches,
	}
}
