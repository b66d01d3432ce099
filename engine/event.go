// Package engine implements the discrete-event core: the global event queue,
// the System that dispatches events to arrays, and the Simulator adaptive
// loop that drives iterations and aggregates results.
package engine

import "container/heap"

// Event is one scheduled disk transition: its kind (fail vs. repair) is
// inferred from the target disk's current state at dispatch time, not
// stored explicitly.
type Event struct {
	Time     float64
	DiskIdx  int
	ArrayIdx int
}

// eventQueue is a min-heap of Events ordered by absolute time, replacing
// the original implementation's "re-sort a descending vector on every
// out-of-order insert" approach with a proper O(log n) push/pop.
type eventQueue []Event

func (q eventQueue) Len() int            { return len(q) }
func (q eventQueue) Less(i, j int) bool  { return q[i].Time < q[j].Time }
func (q eventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(Event)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func newEventQueue() *eventQueue {
	q := make(eventQueue, 0)
	heap.Init(&q)
	return &q
}

func (q *eventQueue) push(e Event) {
	heap.Push(q, e)
}

func (q *eventQueue) pop() (Event, bool) {
	if q.Len() == 0 {
		return Event{}, false
	}
	return heap.Pop(q).(Event), true
}
