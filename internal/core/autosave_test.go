package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesToLatest(t *testing.T) {
	var mu sync.Mutex
	latest := 0
	var writes []int

	d := NewDebouncer(100*time.Millisecond, func() {
		mu.Lock()
		defer mu.Unlock()
		writes = append(writes, latest)
	})

	for i := 1; i <= 3; i++ {
		mu.Lock()
		latest = i
		mu.Unlock()
		d.Schedule()
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(writes) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, writes)
}

func TestDebouncerFlushAndStop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func() { calls.Add(1) })

	assert.False(t, d.Flush(), "nothing pending")

	d.Schedule()
	assert.True(t, d.Pending())
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())

	d.Schedule()
	d.Stop()
	assert.False(t, d.Pending())
	assert.False(t, d.Flush())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncerSeparateWindowsWriteTwice(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	d.Schedule()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	d.Schedule()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerFlushWaitsForRunningCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	d := NewDebouncer(time.Millisecond, func() {
		close(started)
		<-release
		finished.Store(true)
	})

	d.Schedule()
	<-started

	flushed := make(chan bool)
	go func() { flushed <- d.Flush() }()

	select {
	case <-flushed:
		t.Fatal("Flush returned while the timer-started call was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.False(t, <-flushed)
	assert.True(t, finished.Load())
}
