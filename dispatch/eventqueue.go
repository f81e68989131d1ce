// Min-heap of scheduled events keyed by (timestamp, event id).
// Built on container/heap, see https://pkg.go.dev/container/heap

package dispatch

import (
	"container/heap"
	"time"
)

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

// Less orders by timestamp with the monotone event id as tie-break, which
// gives deterministic FIFO draining for events scheduled at the same instant.
func (h eventHeap) Less(i, j int) bool {
	if h[i].Timestamp.Equal(h[j].Timestamp) {
		return h[i].ID < h[j].ID
	}
	return h[i].Timestamp.Before(h[j].Timestamp)
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue owns the scheduled-event heap and the monotone id counter.
// It is not safe for concurrent use; the dispatch core is single-writer.
type EventQueue struct {
	heap   eventHeap
	nextID int64
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Len returns the number of scheduled events.
func (q *EventQueue) Len() int { return len(q.heap) }

// Schedule assigns the next event id and pushes the event onto the heap.
// It returns the scheduled event.
func (q *EventQueue) Schedule(ev Event) *Event {
	q.nextID++
	ev.ID = q.nextID
	scheduled := &ev
	heap.Push(&q.heap, scheduled)
	return scheduled
}

// Peek returns the earliest event without removing it, or nil when empty.
func (q *EventQueue) Peek() *Event {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// PopIfDue removes and returns the earliest event iff its timestamp is at or
// before now. Returns nil otherwise.
func (q *EventQueue) PopIfDue(now time.Time) *Event {
	if len(q.heap) == 0 || q.heap[0].Timestamp.After(now) {
		return nil
	}
	return heap.Pop(&q.heap).(*Event)
}
