package main

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Owanesh/wasmlabs/internal"
	"github.com/rs/xid"
	"gopkg.in/yaml.v3"
)

// Coordinator orchestrates the benchmarks described in a config file.
type Coordinator struct {
	// Config is the path to the yaml config file.
	Config string
	// Outdir is the path to the output directory.
	Outdir string
	// Bin is the path to the pingpong binary to use for spawning child
	// processes executing runs.
	Bin string
	// Enable verbose output
	Verbose bool

	Stdout io.Writer
	Stderr io.Writer
}

func (c *Coordinator) Run() error {
	config, err := internal.ReadConfig(c.Config)
	if err != nil {
		return usageError{err}
	}

	if err := os.RemoveAll(c.Outdir); err != nil {
		return err
	}

	runs, err := c.runConfigs(config)
	if err != nil {
		return err
	}

	var maxNameLength int
	var totalDuration time.Duration
	for _, run := range runs {
		if len(run.Name) > maxNameLength {
			maxNameLength = len(run.Name)
		}
		totalDuration += run.Duration
	}

	fmt.Fprintf(c.Stdout, "starting %d runs, expected duration: %s\n\n", len(runs), totalDuration)
	for _, run := range runs {
		if err := c.run(run, maxNameLength); err != nil {
			return err
		}
	}
	return nil
}

func (c Coordinator) runConfigs(config internal.Config) ([]internal.RunConfig, error) {
	dupeNames := map[string]int{}
	var runConfigs []internal.RunConfig
	for i := 0; i < config.Repeat; i++ {
		for _, jc := range config.Jobs {
			for _, workload := range jc.Workload {
				for _, duration := range jc.Duration {
					for _, timer := range jc.Timer {
						for _, profile := range jc.Profile {
							for _, args := range jc.Args {
								name := internal.Expand(jc.Name, map[string]interface{}{
									"iteration": i,
									"workload":  workload,
									"duration":  duration,
									"timer":     timer,
									"unit":      jc.Unit,
									"profilers": strings.Join(profile.Profilers(), ","),
								})

								dupeNames[name]++
								count := dupeNames[name]
								if count > 1 {
									name = fmt.Sprintf("%s.%d", name, count)
								}

								argsData, err := yaml.Marshal(&args)
								if err != nil {
									return nil, err
								}
								runConfigs = append(runConfigs, internal.RunConfig{
									ID:        xid.New().String(),
									Name:      name,
									Iteration: i,
									Workload:  workload,
									Duration:  duration,
									Timer:     timer,
									Unit:      jc.Unit,
									Profile:   profile,
									Args:      string(argsData),
									Outdir:    filepath.Join(c.Outdir, name),
								})
							}
						}
					}
				}
			}
		}
	}
	return runConfigs, nil
}

// childArgs is the command line of the child process executing rc.
func childArgs(rc internal.RunConfig) []string {
	profilers := rc.Profile.Profilers()
	if len(profilers) == 1 && profilers[0] == "none" {
		profilers = nil
	}
	return []string{
		"--meta",
		"--id", rc.ID,
		"--name", rc.Name,
		"--iteration", strconv.Itoa(rc.Iteration),
		"--workload", rc.Workload,
		"--timer", rc.Timer,
		"--unit", rc.Unit,
		"--profile", strings.Join(profilers, ","),
		"--outdir", rc.Outdir,
		"--args", rc.Args,
		strconv.Itoa(int(rc.Duration / time.Second)),
	}
}

func (c *Coordinator) run(rc internal.RunConfig, maxNameLength int) error {
	fmt.Fprintf(c.Stdout, "%s %s", rc.Name, strings.Repeat(" ", maxNameLength-len(rc.Name)))

	if err := os.MkdirAll(rc.Outdir, 0755); err != nil {
		return err
	}

	var out, errOut bytes.Buffer
	child := exec.Command(c.Bin, childArgs(rc)...)
	child.Stdout = &out
	child.Stderr = &errOut
	if c.Verbose {
		child.Stderr = io.MultiWriter(&errOut, c.Stderr)
		fmt.Fprintf(c.Stdout, "\n%s\n", strings.Join(child.Args, " "))
	}

	if err := child.Run(); err != nil {
		fmt.Fprintf(c.Stdout, "error: %s: %s\n", err, strings.TrimSpace(errOut.String()))
		return nil
	}

	metaPath := filepath.Join(rc.Outdir, "meta.yaml")
	if err := ioutil.WriteFile(metaPath, out.Bytes(), 0644); err != nil {
		return err
	}

	meta := &internal.RunMeta{}
	if err := yaml.Unmarshal(out.Bytes(), &meta); err != nil {
		fmt.Fprintf(c.Stdout, "error: %s\n", err)
		return nil
	}

	count, unit, err := internal.ScanCount(&errOut)
	if err != nil {
		fmt.Fprintf(c.Stdout, "error: %s\n", err)
		return nil
	}

	fmt.Fprintf(
		c.Stdout,
		"rounds=%d rate=%.0f/%s elapsed=%s\n",
		count,
		unit.Rate(count, meta.RunResult.Duration),
		unit.Label,
		internal.TruncateDuration(meta.RunResult.Duration),
	)
	return nil
}
