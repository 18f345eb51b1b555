package internal

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

func ReadConfig(path string) (c Config, err error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err = yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	c.setDefaults()
	return c, c.Validate()
}

type Config struct {
	Repeat int
	Jobs   []JobConfig `yaml:"jobs"`
}

func (c *Config) setDefaults() {
	if c.Repeat == 0 {
		c.Repeat = 1
	}
	for jIdx := range c.Jobs {
		j := &c.Jobs[jIdx]
		if len(j.Workload) == 0 {
			j.Workload = append(j.Workload, "condvar")
		}
		if len(j.Timer) == 0 {
			j.Timer = append(j.Timer, "afterfunc")
		}
		if j.Unit == "" {
			j.Unit = "lps"
		}
		if len(j.Profile) == 0 {
			j.Profile = append(j.Profile, ProfileConfig{})
		}
		if len(j.Args) == 0 {
			j.Args = append(j.Args, yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
		}

		for pIdx := range j.Profile {
			prof := &j.Profile[pIdx]
			if prof.Block && prof.BlockRate == 0 {
				prof.BlockRate = 10000
			}
			if prof.Mutex && prof.MutexRate == 0 {
				prof.MutexRate = 10
			}
		}
	}
}

// Validate checks that every job can be turned into child invocations. The
// child only accepts whole, positive seconds.
func (c *Config) Validate() error {
	for _, j := range c.Jobs {
		if len(j.Duration) == 0 {
			return fmt.Errorf("job %q: no duration", j.Name)
		}
		for _, d := range j.Duration {
			if d < time.Second || d%time.Second != 0 {
				return fmt.Errorf("job %q: duration %s is not a positive number of seconds", j.Name, d)
			}
		}
		if _, err := ParseUnit(j.Unit); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
	}
	return nil
}

type JobConfig struct {
	Name     string          `yaml:"name"`
	Workload []string        `yaml:"workload"`
	Duration []time.Duration `yaml:"duration"`
	Timer    []string        `yaml:"timer"`
	Unit     string          `yaml:"unit"`
	Profile  []ProfileConfig `yaml:"profile"`
	Args     []yaml.Node     `yaml:"args"`
}

type ProfileConfig struct {
	CPU       bool `yaml:"cpu"`
	Block     bool `yaml:"block"`
	BlockRate int  `yaml:"block_rate"`
	Mutex     bool `yaml:"mutex"`
	MutexRate int  `yaml:"mutex_rate"`
	Goroutine bool `yaml:"goroutine"`
	Trace     bool `yaml:"trace"`
}

func (p ProfileConfig) Profilers() []string {
	var profilers []string
	if p.CPU {
		profilers = append(profilers, "cpu")
	}
	if p.Block {
		profilers = append(profilers, "block")
	}
	if p.Mutex {
		profilers = append(profilers, "mutex")
	}
	if p.Goroutine {
		profilers = append(profilers, "goroutine")
	}
	if p.Trace {
		profilers = append(profilers, "trace")
	}
	if len(profilers) == 0 {
		profilers = append(profilers, "none")
	}
	return profilers
}

// ParseProfilers is the inverse of Profilers.
func ParseProfilers(names []string) (ProfileConfig, error) {
	var p ProfileConfig
	for _, name := range names {
		switch name {
		case "cpu":
			p.CPU = true
		case "block":
			p.Block = true
		case "mutex":
			p.Mutex = true
		case "goroutine":
			p.Goroutine = true
		case "trace":
			p.Trace = true
		case "none", "":
		default:
			return p, fmt.Errorf("unknown profiler: %q", name)
		}
	}
	return p, nil
}
