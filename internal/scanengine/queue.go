package scanengine

import (
	"container/heap"
	"sync"

	"github.com/xanadossd/avscan-core/internal/types"
)

// taskHeap orders *types.FileTask by Priority, breaking ties by Seq (stable
// enqueue order) — the heap.Interface half of the priority queue.
type taskHeap []*types.FileTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq() < h[j].Seq()
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*types.FileTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// priorityQueue is a goroutine-safe wrapper over taskHeap, with a monotonic
// sequence counter so equal-priority tasks dispatch in enqueue order (spec
// §4.6: "ties broken by enqueue order, stable").
type priorityQueue struct {
	mu   sync.Mutex
	h    taskHeap
	next uint64
}

func newPriorityQueue() *priorityQueue {
	q := &priorityQueue{}
	heap.Init(&q.h)
	return q
}

func (q *priorityQueue) push(t *types.FileTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.SetSeq(q.next)
	q.next++
	heap.Push(&q.h, t)
}

// pop returns the next task in priority order, or nil if the queue is
// empty.
func (q *priorityQueue) pop() *types.FileTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*types.FileTask)
}

func (q *priorityQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// drain empties the queue without returning its contents, used when a
// scan is cancelled (spec §5: "drops pending tasks without invoking the
// detection engine").
func (q *priorityQueue) drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.h.Len()
	q.h = q.h[:0]
	return n
}
