package pingpong

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Owanesh/wasmlabs/deadline"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	res, err := Run(Config{Duration: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Greater(t, res.FinalCount, uint64(0))
	assert.Equal(t, res.FinalCount, res.Acknowledged)
	assert.GreaterOrEqual(t, res.Elapsed, 100*time.Millisecond)
}

func TestRunInvalidDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		_, err := Run(Config{Duration: d})
		assert.Equal(t, ErrInvalidDuration, err, d)
	}
}

func TestRunTimerFailure(t *testing.T) {
	cause := errors.New("no timers left")
	_, err := Run(Config{
		Duration: time.Second,
		Timer:    deadline.Func(func(time.Duration, func()) (func(), error) { return nil, cause }),
	})
	var rerr *ResourceError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "schedule deadline", rerr.Op)
	assert.True(t, errors.Is(err, cause))
}

// randomDelay returns a wait hook that sleeps up to max before each park.
func randomDelay(max time.Duration) func(Party) {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func(Party) {
		mu.Lock()
		d := time.Duration(rng.Int63n(int64(max)))
		mu.Unlock()
		time.Sleep(d)
	}
}

func TestRunStrictAlternation(t *testing.T) {
	for _, max := range []time.Duration{time.Microsecond, 50 * time.Microsecond, time.Millisecond} {
		var transitions []Transition
		res, err := Run(Config{
			Duration: 50 * time.Millisecond,
			ChannelOptions: []Option{
				WithObserver(func(tr Transition) { transitions = append(transitions, tr) }),
				WithWaitHook(randomDelay(max)),
			},
		})
		require.NoError(t, err)

		// Every round is one driver hand-off followed by its echo.
		require.Equal(t, int(2*res.FinalCount), len(transitions), max)
		for i, tr := range transitions {
			want := Transition{From: PartyDriver, To: PartyResponder, Round: uint64(i / 2)}
			if i%2 == 1 {
				want.From, want.To = PartyResponder, PartyDriver
			}
			require.Equal(t, want, tr, "transition %d", i)
		}
	}
}

func TestRunNoLostWakeup(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for a second")
	}
	done := make(chan error, 1)
	go func() {
		_, err := Run(Config{
			Duration:       time.Second,
			ChannelOptions: []Option{WithWaitHook(randomDelay(2 * time.Millisecond))},
		})
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("benchmark hung under delayed waits")
	}
}

func TestRunDeadlineAccuracy(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for a second")
	}
	for _, name := range deadline.Names() {
		timer, err := deadline.New(name)
		require.NoError(t, err)

		start := time.Now()
		res, err := Run(Config{Duration: time.Second, Timer: timer})
		took := time.Since(start)
		require.NoError(t, err, name)
		assert.GreaterOrEqual(t, took, time.Second, name)
		assert.LessOrEqual(t, took, 1500*time.Millisecond, name)
		assert.Greater(t, res.FinalCount, uint64(0), name)
	}
}

func TestRunFaultInjection(t *testing.T) {
	at := uint64(3)
	res, err := Run(Config{Duration: time.Minute, FaultAt: &at})
	require.True(t, errors.Is(err, ErrSyncFault))

	var fault *SyncFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, FaultRoundMismatch, fault.Kind)
	assert.Equal(t, PartyResponder, fault.Party)
	assert.Equal(t, uint64(3), fault.Expected)
	assert.Equal(t, uint64(4), fault.Got)
	assert.Equal(t, uint64(3), res.FinalCount)
	assert.Equal(t, uint64(3), res.Acknowledged)
}

func TestRunFaultCancelsDeadline(t *testing.T) {
	var stopped int32
	at := uint64(2)
	_, err := Run(Config{
		Duration: time.Minute,
		FaultAt:  &at,
		Timer: deadline.Func(func(d time.Duration, onFire func()) (func(), error) {
			stop, err := deadline.BusyWait{}.Schedule(d, onFire)
			return func() {
				atomic.AddInt32(&stopped, 1)
				stop()
			}, err
		}),
	})
	require.True(t, errors.Is(err, ErrSyncFault))
	assert.Equal(t, int32(1), atomic.LoadInt32(&stopped))
}

func TestDriverStopsAfterRequest(t *testing.T) {
	var handoffs int
	ch := NewChannel(WithObserver(func(tr Transition) {
		if tr.From == PartyDriver {
			handoffs++
		}
	}))
	driver := NewDriver(ch, nil)
	responder := NewResponder(ch, nil)

	done := make(chan error, 1)
	go func() { done <- responder.Run() }()

	assert.Equal(t, Running, driver.State())
	driver.RequestStop()
	n, err := driver.Run()
	require.NoError(t, err)

	// The stop is checked after each completed round, so exactly one
	// round runs and no further hand-off is initiated.
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uint64(1), driver.FinalCount())
	assert.Equal(t, Stopping, driver.State())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("responder leaked after shutdown")
	}
	assert.Equal(t, 1, handoffs)
	assert.Equal(t, uint64(1), responder.Acknowledged())
}

// BenchmarkRoundTrip measures one hand-off and acknowledgment per iteration
// without the deadline machinery.
func BenchmarkRoundTrip(b *testing.B) {
	ch := NewChannel()
	responder := NewResponder(ch, nil)
	done := make(chan error, 1)
	go func() { done <- responder.Run() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ch.Handoff(PartyDriver, uint64(i)); err != nil {
			b.Fatal(err)
		}
		if _, err := ch.AwaitAndConsume(PartyDriver, uint64(i)); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	ch.Close()
	if err := <-done; err != nil {
		b.Fatal(err)
	}
}
