package main

import (
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/Owanesh/wasmlabs/internal"
)

// Profiler records the enabled profiles for the whole run and writes them
// to Outdir when stopped.
type Profiler struct {
	internal.ProfileConfig
	Outdir string

	profiles []internal.RunProfile
	bufs     map[string]*bytes.Buffer
}

type profiler struct {
	Kind    string
	Enabled func(internal.ProfileConfig) bool
	Init    func(internal.ProfileConfig)
	Reset   func()
	Start   func(io.Writer) error
	Stop    func(io.Writer) error
}

var profilers = []profiler{
	{
		Kind:    "cpu.pprof",
		Enabled: func(c internal.ProfileConfig) bool { return c.CPU },
		Start: func(w io.Writer) error {
			return pprof.StartCPUProfile(w)
		},
		Stop: func(_ io.Writer) error {
			pprof.StopCPUProfile()
			return nil
		},
	},

	{
		Kind:    "block.pprof",
		Enabled: func(c internal.ProfileConfig) bool { return c.Block },
		Init: func(c internal.ProfileConfig) {
			runtime.SetBlockProfileRate(c.BlockRate)
		},
		Reset: func() { runtime.SetBlockProfileRate(0) },
		Stop: func(w io.Writer) error {
			return pprof.Lookup("block").WriteTo(w, 0)
		},
	},

	{
		Kind:    "mutex.pprof",
		Enabled: func(c internal.ProfileConfig) bool { return c.Mutex },
		Init: func(c internal.ProfileConfig) {
			runtime.SetMutexProfileFraction(c.MutexRate)
		},
		Reset: func() { runtime.SetMutexProfileFraction(0) },
		Stop: func(w io.Writer) error {
			return pprof.Lookup("mutex").WriteTo(w, 0)
		},
	},

	{
		Kind:    "goroutine.pprof",
		Enabled: func(c internal.ProfileConfig) bool { return c.Goroutine },
		Stop: func(w io.Writer) error {
			return pprof.Lookup("goroutine").WriteTo(w, 0)
		},
	},

	{
		Kind:    "trace.out",
		Enabled: func(c internal.ProfileConfig) bool { return c.Trace },
		Start: func(w io.Writer) error {
			return trace.Start(w)
		},
		Stop: func(_ io.Writer) error {
			trace.Stop()
			return nil
		},
	},
}

func (p *Profiler) Start() {
	p.bufs = make(map[string]*bytes.Buffer)
	for _, prof := range profilers {
		if !prof.Enabled(p.ProfileConfig) {
			continue
		}
		if prof.Init != nil {
			prof.Init(p.ProfileConfig)
		}

		buf := new(bytes.Buffer)
		start := time.Now()
		var startErr error
		if prof.Start != nil {
			startErr = prof.Start(buf)
		}
		p.profiles = append(p.profiles, internal.RunProfile{
			Kind:  prof.Kind,
			Start: start,
			Error: internal.ErrStr(startErr),
		})
		p.bufs[prof.Kind] = buf
	}
}

// Stop ends all started profiles and writes them to Outdir. Failures are
// recorded on the returned profiles rather than returned.
func (p *Profiler) Stop() []internal.RunProfile {
	i := 0
	for _, prof := range profilers {
		if !prof.Enabled(p.ProfileConfig) {
			continue
		}
		record := &p.profiles[i]
		i++
		buf := p.bufs[prof.Kind]

		stop := time.Now()
		record.ProfileDuration = stop.Sub(record.Start)
		if prof.Stop != nil {
			if err := prof.Stop(buf); err != nil && record.Error == "" {
				record.Error = internal.ErrStr(err)
			}
		}
		if prof.Reset != nil {
			prof.Reset()
		}
		record.StopDuration = time.Since(stop)
		record.File = prof.Kind
		writErr := ioutil.WriteFile(filepath.Join(p.Outdir, record.File), buf.Bytes(), 0644)
		if writErr != nil && record.Error == "" {
			record.Error = internal.ErrStr(writErr)
		}
	}
	return p.profiles
}
