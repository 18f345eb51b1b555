package main

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/Owanesh/wasmlabs/pingpong"
	"github.com/pkg/errors"
	"github.com/tebeka/atexit"
)

// Metrics sends run results to dogstatsd.
type Metrics struct {
	client statsd.ClientInterface
}

// newMetrics returns a no-op sink when addr is empty. The client is flushed
// and closed when the process exits through atexit.
func newMetrics(addr string, tags []string) (*Metrics, error) {
	if addr == "" {
		return &Metrics{client: &statsd.NoOpClient{}}, nil
	}
	client, err := statsd.New(addr, statsd.WithNamespace("pingpong."), statsd.WithTags(tags))
	if err != nil {
		return nil, &pingpong.ResourceError{Op: "statsd client", Err: err}
	}
	m := &Metrics{client: client}
	atexit.Register(func() { m.Close() })
	return m, nil
}

// Close flushes buffered metrics and releases the client.
func (m *Metrics) Close() error {
	return m.client.Close()
}

func (m *Metrics) Report(res pingpong.Result, rate float64) {
	m.client.Gauge("final_count", float64(res.FinalCount), nil, 1)
	m.client.Gauge("rate", rate, nil, 1)
	m.client.Timing("elapsed", res.Elapsed, nil, 1)
}

func (m *Metrics) Fault(err error) {
	kind := "other"
	var fault *pingpong.SyncFault
	if errors.As(err, &fault) {
		kind = fault.Kind.String()
	}
	m.client.Incr("errors", []string{"kind:" + kind}, 1)
}
