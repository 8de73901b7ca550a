// Package timequeue implements the cancellable, tie-broken min-priority
// event queue that drives a Grid's simulation clock. Entries are keyed by
// (time, sequence); ties are broken FIFO by insertion order. Cancellation is
// tombstone-based: the heap entry is left in place and skipped on dequeue
// once its backing payload has been removed from the data table.
package timequeue

import (
	"container/heap"
	"errors"

	"fizgrid/idgen"
)

// ErrPastTime is returned when an event is scheduled before the queue's
// current time.
var ErrPastTime = errors.New("timequeue: event time is before current time")

// Payload is the event body carried by a scheduled entry. Implementations
// are the tagged variants entity/grid schedule (plan-route, realize-route).
type Payload interface {
	isTimeQueuePayload()
}

// heapItem is the (time, sequence, id) triple stored in the heap itself.
// The payload lives in the data table so cancellation never has to search
// or reorder the heap.
type heapItem struct {
	time float64
	seq  uint64
	id   uint64
}

type itemHeap []heapItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() any          { old := *h; n := len(old); v := old[n-1]; *h = old[:n-1]; return v }

// Entry is a fully resolved queue entry returned by Peek/Pop/Drain.
type Entry struct {
	Time    float64
	ID      uint64
	Payload Payload
}

// TimeQueue is a cancellable min-heap of (time, sequence) keyed events. Event
// ids and tie-breaking sequence numbers each come from their own idgen.IdGen
// so one counter's cancellations never perturb the other's ordering.
type TimeQueue struct {
	heap itemHeap
	data map[uint64]Payload
	time float64
	ids  *idgen.IdGen
	seqs *idgen.IdGen
}

// New returns an empty queue with current time 0.
func New() *TimeQueue {
	return &TimeQueue{data: make(map[uint64]Payload), ids: idgen.New(), seqs: idgen.New()}
}

// Time reports the queue's current time (the fire time of the last event
// popped or drained; 0 before anything has been popped).
func (q *TimeQueue) Time() float64 { return q.time }

// Add schedules payload at the given time and returns its id. time must be
// >= the queue's current time.
func (q *TimeQueue) Add(time float64, payload Payload) (uint64, error) {
	if time < q.time {
		return 0, ErrPastTime
	}
	id := q.ids.Next()
	seq := q.seqs.Next()
	q.data[id] = payload
	heap.Push(&q.heap, heapItem{time: time, seq: seq, id: id})
	return id, nil
}

// Cancel removes a scheduled payload from the data table. It returns the
// removed payload and true, or (nil, false) if the id was already fired or
// cancelled. The stale heap entry is left in place; it is skipped the next
// time it is popped.
func (q *TimeQueue) Cancel(id uint64) (Payload, bool) {
	p, ok := q.data[id]
	if !ok {
		return nil, false
	}
	delete(q.data, id)
	return p, true
}

// dropStale discards heap entries whose payload has already been removed
// from the data table (cancelled events), without advancing q.time.
func (q *TimeQueue) dropStale() {
	for len(q.heap) > 0 {
		top := q.heap[0]
		if _, ok := q.data[top.id]; ok {
			return
		}
		heap.Pop(&q.heap)
	}
}

// PeekNext returns the next live event without removing it or advancing the
// queue's time.
func (q *TimeQueue) PeekNext() (Entry, bool) {
	q.dropStale()
	if len(q.heap) == 0 {
		return Entry{}, false
	}
	top := q.heap[0]
	return Entry{Time: top.time, ID: top.id, Payload: q.data[top.id]}, true
}

// PopNext removes and returns the next live event, advancing the queue's
// time to that event's fire time.
func (q *TimeQueue) PopNext() (Entry, bool) {
	q.dropStale()
	if len(q.heap) == 0 {
		return Entry{}, false
	}
	top := heap.Pop(&q.heap).(heapItem)
	payload, ok := q.data[top.id]
	if !ok {
		// Raced with a cancellation between dropStale and here; retry.
		return q.PopNext()
	}
	delete(q.data, top.id)
	q.time = top.time
	return Entry{Time: top.time, ID: top.id, Payload: payload}, true
}

// DrainSameTime pops every live event scheduled at the next fire time, in
// FIFO order, as a single batch. This is the simulator's primary driver
// step: events sharing an instant are processed together so their mutual
// cancellations observe a consistent state.
func (q *TimeQueue) DrainSameTime() []Entry {
	first, ok := q.PopNext()
	if !ok {
		return nil
	}
	batch := []Entry{first}
	for {
		next, ok := q.PeekNext()
		if !ok || next.Time != first.Time {
			break
		}
		entry, _ := q.PopNext()
		batch = append(batch, entry)
	}
	return batch
}
