package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierEnqueueDedup(t *testing.T) {
	f := NewFrontier(16)

	assert.True(t, f.Enqueue(Task{URL: "http://a.com/1", Depth: 0}))
	assert.False(t, f.Enqueue(Task{URL: "http://a.com/1", Depth: 2}), "same address enqueues once")
	assert.Equal(t, 1, f.Len())
}

func TestFrontierEnqueueConcurrentAtMostOnce(t *testing.T) {
	f := NewFrontier(256)

	const goroutines = 32
	var wg sync.WaitGroup
	var accepted sync.Map
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				url := fmt.Sprintf("http://a.com/%d", j)
				if f.Enqueue(Task{URL: url}) {
					_, loaded := accepted.LoadOrStore(url, n)
					assert.False(t, loaded, "address %s accepted twice", url)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, f.Len())
}

func TestFrontierVisitedBlocksEnqueue(t *testing.T) {
	f := NewFrontier(16)

	require.True(t, f.MarkVisited("http://a.com/done"))
	assert.False(t, f.MarkVisited("http://a.com/done"))
	assert.False(t, f.Enqueue(Task{URL: "http://a.com/done"}), "visited address never re-enters the queue")
}

func TestFrontierDequeueTimeout(t *testing.T) {
	f := NewFrontier(4)

	start := time.Now()
	_, ok := f.Dequeue(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFrontierDequeueCancelled(t *testing.T) {
	f := NewFrontier(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := f.Dequeue(ctx, time.Minute)
	assert.False(t, ok)
}

func TestFrontierDropsWhenFull(t *testing.T) {
	f := NewFrontier(1)

	require.True(t, f.Enqueue(Task{URL: "http://a.com/1"}))
	assert.False(t, f.Enqueue(Task{URL: "http://a.com/2"}), "full queue drops instead of blocking")

	_, _, dropped := f.Counts()
	assert.Equal(t, int64(1), dropped)

	// The dropped task still consumed its dedup slot, so Wait only owes the
	// queued task.
	task, ok := f.Dequeue(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "http://a.com/1", task.URL)
	f.TaskDone()

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after all tasks were handled")
	}
}

func TestFrontierWaitBlocksUntilTaskDone(t *testing.T) {
	f := NewFrontier(4)
	require.True(t, f.Enqueue(Task{URL: "http://a.com/1"}))

	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()

	_, ok := f.Dequeue(context.Background(), time.Second)
	require.True(t, ok)

	select {
	case <-done:
		t.Fatal("Wait returned while a task was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	f.TaskDone()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after TaskDone")
	}
}
