package resttimer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTickCountsDownToExpiry(t *testing.T) {
	var fired int
	timer := New(3, OnExpire(func() { fired++ }))

	timer.Tick()
	assert.Equal(t, Snapshot{Remaining: 2, Total: 3, State: Running}, timer.Snapshot())
	timer.Tick()
	timer.Tick()
	assert.Equal(t, Expired, timer.Snapshot().State)
	assert.Equal(t, 0, timer.Snapshot().Remaining)
	assert.Equal(t, 1, fired)

	// Further ticks neither go negative nor fire again.
	timer.Tick()
	assert.Equal(t, 0, timer.Snapshot().Remaining)
	assert.Equal(t, 1, fired)
}

func TestTogglePauseKeepsRemaining(t *testing.T) {
	timer := New(60)
	timer.Tick()

	timer.TogglePause()
	assert.Equal(t, Paused, timer.Snapshot().State)
	for i := 0; i < 5; i++ {
		timer.Tick()
	}
	assert.Equal(t, 59, timer.Snapshot().Remaining)

	timer.TogglePause()
	assert.Equal(t, Running, timer.Snapshot().State)
	timer.Tick()
	assert.Equal(t, 58, timer.Snapshot().Remaining)
}

func TestSkipFiresOnce(t *testing.T) {
	var fired int
	timer := New(30, OnExpire(func() { fired++ }))

	timer.Skip()
	timer.Skip()
	timer.Tick()
	assert.Equal(t, 1, fired)
	assert.Equal(t, Expired, timer.Snapshot().State)
}

func TestExtendRearmsExpired(t *testing.T) {
	var fired int
	timer := New(1, OnExpire(func() { fired++ }))
	timer.Tick()
	require.Equal(t, 1, fired)

	timer.Extend()
	snap := timer.Snapshot()
	assert.Equal(t, Running, snap.State)
	assert.Equal(t, ExtendSeconds, snap.Remaining)

	for i := 0; i < ExtendSeconds; i++ {
		timer.Tick()
	}
	assert.Equal(t, 2, fired, "re-armed timer completes again")
}

func TestExtendWhilePaused(t *testing.T) {
	timer := New(5)
	timer.TogglePause()
	timer.Extend()
	assert.Equal(t, Snapshot{Remaining: 15, Total: 15, State: Paused}, timer.Snapshot())
}

func TestZeroDurationNeverFires(t *testing.T) {
	var fired int
	timer := New(0, OnExpire(func() { fired++ }))
	timer.Start()
	timer.Skip()
	timer.Stop()
	assert.Equal(t, Expired, timer.Snapshot().State)
	assert.Zero(t, fired)
}

func TestStartRunsUntilExpired(t *testing.T) {
	expired := make(chan struct{})
	var ticks atomic.Int32
	timer := New(3,
		WithInterval(time.Millisecond),
		OnTick(func(Snapshot) { ticks.Add(1) }),
		OnExpire(func() { close(expired) }),
	)
	timer.Start()
	timer.Start()

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not expire")
	}
	timer.Stop()
	assert.Equal(t, int32(2), ticks.Load())
}

func TestExtendRestartsLoopAfterExpiry(t *testing.T) {
	var mu sync.Mutex
	var fired int
	done := make(chan struct{}, 2)
	timer := New(1,
		WithInterval(time.Millisecond),
		OnExpire(func() {
			mu.Lock()
			fired++
			mu.Unlock()
			done <- struct{}{}
		}),
	)
	timer.Start()
	<-done

	timer.Extend()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("extended timer did not expire")
	}
	timer.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, fired)
}

func TestStopIsSynchronousAndIdempotent(t *testing.T) {
	var calls atomic.Int32
	timer := New(3600,
		WithInterval(time.Millisecond),
		OnTick(func(Snapshot) { calls.Add(1) }),
		OnExpire(func() { calls.Add(1) }),
	)
	timer.Start()
	time.Sleep(10 * time.Millisecond)

	timer.Stop()
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	timer.Stop()

	assert.Equal(t, after, calls.Load(), "no callback after Stop returned")

	timer.Tick()
	timer.Skip()
	timer.Extend()
	assert.Equal(t, after, calls.Load())
}
