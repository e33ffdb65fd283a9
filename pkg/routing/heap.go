package routing

import "math"

// MinHeap is a concrete-typed min-heap for Dijkstra priority queues.
// Avoids interface boxing overhead of container/heap. Equal weights pop the
// lower node first so searches are deterministic.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node   uint32
	Weight float64
}

func (a PQItem) less(b PQItem) bool {
	return a.Weight < b.Weight || (a.Weight == b.Weight && a.Node < b.Node)
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, weight float64) {
	h.items = append(h.items, PQItem{node, weight})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

// PeekWeight returns the smallest queued weight, +Inf when empty.
func (h *MinHeap) PeekWeight() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Weight
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.items[i].less(h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].less(h.items[smallest]) {
			smallest = left
		}
		if right < n && h.items[right].less(h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
