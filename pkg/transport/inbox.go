package transport

import (
	"container/list"
	"sync"
)

// Inbox is the FIFO hand-off between I/O goroutines and the simulation.
type Inbox struct {
	mu    sync.Mutex
	items *list.List
	limit int
}

// NewInbox creates an inbox. A positive limit bounds the number of queued
// datagrams; Push drops when full.
func NewInbox(limit int) *Inbox {
	return &Inbox{
		items: list.New(),
		limit: limit,
	}
}

// Push appends d and reports whether it was queued.
func (q *Inbox) Push(d Datagram) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && q.items.Len() >= q.limit {
		return false
	}
	q.items.PushBack(d)
	return true
}

func (q *Inbox) Pop() (Datagram, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		return Datagram{}, false
	}
	q.items.Remove(front)
	return front.Value.(Datagram), true
}

func (q *Inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Inbox) Clear() {
	q.mu.Lock()
	q.items.Init()
	q.mu.Unlock()
}
