package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Frontier is the FIFO work queue of crawl tasks plus the visited and
// enqueued sets. The sets grow monotonically for the crawl's lifetime and
// each address enters each set at most once. Pending-task accounting lets the
// engine observe when every queued task has been fully handled.
type Frontier struct {
	mu       sync.Mutex
	enqueued map[string]struct{}
	visited  map[string]struct{}

	tasks   chan Task
	pending sync.WaitGroup
	dropped atomic.Int64
}

// NewFrontier builds a frontier whose queue holds up to queueDepth tasks.
func NewFrontier(queueDepth int) *Frontier {
	if queueDepth <= 0 {
		queueDepth = 4096
	}
	return &Frontier{
		enqueued: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		tasks:    make(chan Task, queueDepth),
	}
}

// Enqueue adds a task unless its address was ever enqueued or visited before.
// Returns true when the task was queued. A full queue drops the task (counted,
// the address stays marked) instead of blocking the discovering worker.
func (f *Frontier) Enqueue(t Task) bool {
	f.mu.Lock()
	if _, seen := f.enqueued[t.URL]; seen {
		f.mu.Unlock()
		return false
	}
	if _, seen := f.visited[t.URL]; seen {
		f.mu.Unlock()
		return false
	}
	f.enqueued[t.URL] = struct{}{}
	f.mu.Unlock()

	f.pending.Add(1)
	select {
	case f.tasks <- t:
		return true
	default:
		f.pending.Done()
		f.dropped.Add(1)
		frontierDropped.Inc()
		return false
	}
}

// Dequeue waits up to wait for a task. ok=false means timeout or cancellation.
// The caller must call TaskDone once the dequeued task is fully handled.
func (f *Frontier) Dequeue(ctx context.Context, wait time.Duration) (Task, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case t := <-f.tasks:
		return t, true
	case <-timer.C:
		return Task{}, false
	case <-ctx.Done():
		return Task{}, false
	}
}

// TaskDone marks one previously dequeued task as fully handled.
func (f *Frontier) TaskDone() {
	f.pending.Done()
}

// Wait blocks until every enqueued task has been handled.
func (f *Frontier) Wait() {
	f.pending.Wait()
}

// MarkVisited records the address as visited. Returns false if it was already
// visited; check and mark are one atomic step.
func (f *Frontier) MarkVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.visited[url]; seen {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

// Visited reports whether the address was already visited.
func (f *Frontier) Visited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, seen := f.visited[url]
	return seen
}

// Len returns the number of tasks currently queued.
func (f *Frontier) Len() int { return len(f.tasks) }

// Counts returns the enqueued-set size, visited-set size, and dropped count.
func (f *Frontier) Counts() (enqueued, visited, dropped int64) {
	f.mu.Lock()
	e, v := int64(len(f.enqueued)), int64(len(f.visited))
	f.mu.Unlock()
	return e, v, f.dropped.Load()
}
