package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Owanesh/wasmlabs/internal"
	"github.com/Owanesh/wasmlabs/pingpong"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// childEnv makes the test binary act as the pingpong binary, so the
// coordinator can spawn it as a child.
const childEnv = "PINGPONG_TEST_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"0"},
		{"-1"},
		{"abc"},
		{"1.5"},
		{"10000000000"},
		{"20000000000"},
		{"1", "2"},
		{"--unit", "lph", "1"},
		{"--timer", "sundial", "1"},
		{"--workload", "pipe", "1"},
		{"--profile", "heap", "1"},
		{"--workload", "chan", "--inject-fault-at", "1", "1"},
		{"--no-such-flag", "1"},
		{"bench", "only-config"},
	} {
		start := time.Now()
		code, _, stderr := run(args...)
		assert.Equal(t, exitUsage, code, args)
		assert.Contains(t, stderr, usage, args)
		assert.NotContains(t, stderr, "COUNT|", args)
		assert.Less(t, time.Since(start), 500*time.Millisecond, args)
	}
}

func TestParseSeconds(t *testing.T) {
	secs, err := parseSeconds([]string{strconv.FormatInt(maxSeconds, 10)})
	require.NoError(t, err)
	assert.Equal(t, maxSeconds, int64(secs))
	assert.Greater(t, time.Duration(secs)*time.Second, time.Duration(0))

	_, err = parseSeconds([]string{strconv.FormatInt(maxSeconds+1, 10)})
	var uerr usageError
	assert.True(t, errors.As(err, &uerr))
}

func TestExitCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{usageError{errors.New("bad")}, exitUsage},
		{&pingpong.SyncFault{}, exitSyncFault},
		{errors.Wrap(&pingpong.SyncFault{Kind: pingpong.FaultNotOwner}, "run"), exitSyncFault},
		{&pingpong.ResourceError{Op: "schedule deadline", Err: errors.New("no timers")}, exitFailure},
		{pingpong.ErrResponderLeak, exitFailure},
		{errors.New("disk full"), exitFailure},
	} {
		assert.Equal(t, tc.want, exitCode(tc.err), "%v", tc.err)
	}
}

func TestResourceFailureExitStatus(t *testing.T) {
	began := time.Now()
	code, _, stderr := run("--statsd", "127.0.0.1:999999", "1")
	assert.Equal(t, exitFailure, code, stderr)
	assert.Contains(t, stderr, "statsd client")
	assert.NotContains(t, stderr, usage)
	assert.NotContains(t, stderr, "COUNT|")
	assert.Less(t, time.Since(began), 500*time.Millisecond)
}

func TestMalformedEnvFile(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("PINGPONG_TIMER=\"busywait\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := start([]string{env}, []string{"1"}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code, stderr.String())
	assert.Contains(t, stderr.String(), "unterminated quoted value")
	assert.NotContains(t, stderr.String(), usage)
	assert.Empty(t, stdout.String())
}

func TestRunReportsCount(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for a second")
	}
	start := time.Now()
	code, _, stderr := run("1")
	took := time.Since(start)
	require.Equal(t, exitOK, code, stderr)
	assert.GreaterOrEqual(t, took, time.Second)
	assert.LessOrEqual(t, took, 1500*time.Millisecond)

	n, unit, err := internal.ScanCount(strings.NewReader(stderr))
	require.NoError(t, err)
	assert.Greater(t, n, uint64(0))
	assert.Equal(t, internal.Unit{Count: 1, Label: "lps"}, unit)
}

func TestRunFaultExitStatus(t *testing.T) {
	code, _, stderr := run("--inject-fault-at", "3", "60")
	assert.Equal(t, exitSyncFault, code)
	assert.NotEqual(t, exitUsage, code)
	assert.Contains(t, stderr, "responder sync error: expect 3, got 4")
	assert.NotContains(t, stderr, "COUNT|")
}

func TestRunMeta(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for a second")
	}
	dir := t.TempDir()
	code, stdout, stderr := run("--meta", "--workload", "chan", "--unit", "lpm", "--profile", "mutex", "--outdir", dir, "1")
	require.Equal(t, exitOK, code, stderr)

	var meta internal.RunMeta
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &meta))
	assert.Equal(t, "chan", meta.Workload)
	assert.Equal(t, time.Second, meta.RunConfig.Duration)
	assert.Equal(t, "lpm", meta.Unit)
	assert.Empty(t, meta.Error)

	n, unit, err := internal.ScanCount(strings.NewReader(stderr))
	require.NoError(t, err)
	assert.Equal(t, meta.FinalCount, n)
	assert.Equal(t, meta.FinalCount, meta.Acknowledged)
	assert.Equal(t, "lpm", unit.Label)

	require.Len(t, meta.Profiles, 1)
	assert.Equal(t, "mutex.pprof", meta.Profiles[0].File)
	_, err = os.Stat(filepath.Join(dir, "mutex.pprof"))
	assert.NoError(t, err)
}

func TestCoordinatorRun(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a child for a second")
	}
	t.Setenv(childEnv, "1")

	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
jobs:
  - name: "${workload}-${timer}"
    workload: [chan]
    duration: [1s]
`), 0644))

	var stdout, stderr bytes.Buffer
	c := &Coordinator{
		Bin:    os.Args[0],
		Config: config,
		Outdir: filepath.Join(dir, "out"),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(filepath.Join(dir, "out", "chan-afterfunc", "meta.yaml"))
	require.NoError(t, err, stdout.String())
	var meta internal.RunMeta
	require.NoError(t, yaml.Unmarshal(data, &meta))
	assert.Equal(t, "chan-afterfunc", meta.Name)
	assert.NotEmpty(t, meta.ID)
	assert.Greater(t, meta.FinalCount, uint64(0))

	assert.Contains(t, stdout.String(), "starting 1 runs")
	assert.Contains(t, stdout.String(), fmt.Sprintf("rounds=%d ", meta.FinalCount))
	assert.Contains(t, stdout.String(), "/lps elapsed=")
	assert.NotContains(t, stdout.String(), "error:")
}

func TestCoordinatorRejectsBadConfig(t *testing.T) {
	config := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte("jobs:\n  - name: x\n    duration: [1500ms]\n"), 0644))

	code, _, stderr := run("bench", config, filepath.Join(t.TempDir(), "out"))
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "is not a positive number of seconds")
}

func TestRunConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repeat: 2
jobs:
  - name: "${workload}-${timer}"
    workload: [condvar, chan]
    duration: [2s]
    timer: [afterfunc, sleep]
`), 0644))
	config, err := internal.ReadConfig(path)
	require.NoError(t, err)

	c := Coordinator{Outdir: "out"}
	runs, err := c.runConfigs(config)
	require.NoError(t, err)
	require.Len(t, runs, 8)

	assert.Equal(t, "condvar-afterfunc", runs[0].Name)
	assert.Equal(t, "condvar-sleep", runs[1].Name)
	assert.Equal(t, "condvar-afterfunc.2", runs[4].Name)
	assert.Equal(t, filepath.Join("out", "condvar-afterfunc.2"), runs[4].Outdir)
	assert.Equal(t, 1, runs[4].Iteration)
	assert.NotEqual(t, runs[0].ID, runs[4].ID)

	args := childArgs(runs[0])
	assert.Equal(t, "2", args[len(args)-1])
	assert.Contains(t, args, "--meta")
}
