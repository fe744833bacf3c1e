// Package dedup provides the bounded seen-ID window each platform adapter
// uses to drop orders it has already handed downstream. The window is a
// deliberate approximation: once an ID is evicted the same order will be
// treated as new again.
package dedup

import "bidflow/internal/model"

// Window is a fixed-capacity FIFO set of order IDs. It is owned by a single
// adapter instance and is not safe for concurrent use.
type Window struct {
	capacity int
	ring     []string
	head     int
	seen     map[string]struct{}
}

// NewWindow creates a window holding at most capacity IDs. Non-positive
// capacities fall back to 500.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 500
	}
	return &Window{
		capacity: capacity,
		ring:     make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// FilterNew returns the orders not yet seen, in input order, recording their
// IDs. Orders without an ID are dropped.
func (w *Window) FilterNew(orders []model.Order) []model.Order {
	fresh := make([]model.Order, 0, len(orders))
	for _, order := range orders {
		if order.OrderID == "" {
			continue
		}
		if _, ok := w.seen[order.OrderID]; ok {
			continue
		}
		fresh = append(fresh, order)
		w.insert(order.OrderID)
	}
	return fresh
}

// Contains reports whether the ID is currently in the window.
func (w *Window) Contains(id string) bool {
	_, ok := w.seen[id]
	return ok
}

// Len returns the number of IDs currently held.
func (w *Window) Len() int {
	return len(w.seen)
}

func (w *Window) insert(id string) {
	if len(w.ring) < w.capacity {
		w.ring = append(w.ring, id)
		w.seen[id] = struct{}{}
		return
	}
	// At capacity: overwrite the oldest slot.
	oldest := w.ring[w.head]
	delete(w.seen, oldest)
	w.ring[w.head] = id
	w.head = (w.head + 1) % w.capacity
	w.seen[id] = struct{}{}
}
