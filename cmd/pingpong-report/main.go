package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/Owanesh/wasmlabs/internal"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const usage = "usage: pingpong-report [-trace] [-db file] <outdir>"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		traceF = flag.Bool("trace", false, "Send the runs as spans to the local Datadog agent")
		dbF    = flag.String("db", "", "Append the runs to this SQLite database")
	)
	flag.Parse()
	if flag.Arg(0) == "" {
		return fmt.Errorf("error: no outdir (%s)", usage)
	}

	runs, err := readRuns(flag.Arg(0))
	if err != nil {
		return err
	}

	if *dbF != "" {
		if err := store(*dbF, runs); err != nil {
			return err
		}
	}
	if *traceF {
		sendTraces(runs)
	}
	printTable(os.Stdout, runs)
	return nil
}

func readRuns(dir string) ([]*internal.RunMeta, error) {
	var runs []*internal.RunMeta
	err := internal.ReadMeta(dir, func(meta *internal.RunMeta) error {
		runs = append(runs, meta)
		return nil
	})
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Name == runs[j].Name {
			return runs[i].Iteration < runs[j].Iteration
		}
		return runs[i].Name < runs[j].Name
	})
	return runs, err
}

func store(path string, runs []*internal.RunMeta) error {
	s, err := internal.OpenStore(path)
	if err != nil {
		return err
	}
	defer s.Close()
	for _, run := range runs {
		if err := s.Insert(run); err != nil {
			return err
		}
	}
	return nil
}

func sendTraces(runs []*internal.RunMeta) {
	tracer.Start(
		tracer.WithEnv("ci"),
		tracer.WithService("pingpong"),
		tracer.WithServiceVersion("dev"),
	)
	defer tracer.Stop()

	var start, end time.Time
	for _, run := range runs {
		r := run.RunResult
		if start.IsZero() || r.Start.Before(start) {
			start = r.Start
		}
		runEnd := r.Start.Add(r.Duration)
		if end.IsZero() || runEnd.After(end) {
			end = runEnd
		}
	}

	benchSpan := tracer.StartSpan(
		"bench",
		tracer.StartTime(start),
	)
	defer benchSpan.Finish(tracer.FinishTime(end))
	for _, run := range runs {
		r := run.RunResult
		runSpan := tracer.StartSpan(
			"run",
			tracer.ServiceName(run.Workload),
			tracer.StartTime(r.Start),
			tracer.ChildOf(benchSpan.Context()),
			tracer.Tag("iteration", run.Iteration),
			tracer.Tag("name", run.Name),
			tracer.Tag("timer", run.Timer),
			tracer.Tag("final_count", r.FinalCount),
			tracer.Tag("rate", r.Rate),
			tracer.Tag("profiles", run.Profile.Profilers()),
		)
		if r.Error != "" {
			runSpan.SetTag("error.msg", r.Error)
		}
		runSpan.Finish(tracer.FinishTime(r.Start.Add(r.Duration)))
	}
}

func printTable(w io.Writer, runs []*internal.RunMeta) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Name", "Workload", "Timer", "Duration", "Rounds", "Rate", "Unit", "Ctx Switches", "Error"})
	tw.SetBorder(false)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	for _, run := range runs {
		tw.Append([]string{
			run.Name,
			run.Workload,
			run.Timer,
			internal.TruncateDuration(run.RunResult.Duration).String(),
			strconv.FormatUint(run.FinalCount, 10),
			strconv.FormatFloat(run.Rate, 'f', 0, 64),
			run.Unit,
			strconv.FormatInt(run.ContextSwitches(), 10),
			run.Error,
		})
	}
	tw.Render()
}
