package ch

import "container/heap"

// Priority queue for contraction ordering. Lower priority contracts first;
// equal priorities go to the lower node id.

type pqEntry struct {
	node     uint32
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}

// nodeQueue wraps priorityQueue with per-node entry lookup so neighbor
// priorities can be updated in place.
type nodeQueue struct {
	pq      priorityQueue
	entries []*pqEntry // by node; nil once popped
}

func newNodeQueue(numNodes int) *nodeQueue {
	return &nodeQueue{
		pq:      make(priorityQueue, 0, numNodes),
		entries: make([]*pqEntry, numNodes),
	}
}

func (q *nodeQueue) Len() int { return q.pq.Len() }

// init loads all entries at once in O(n).
func (q *nodeQueue) init(priorities []int, include func(uint32) bool) {
	q.pq = q.pq[:0]
	for i, p := range priorities {
		node := uint32(i)
		if !include(node) {
			continue
		}
		e := &pqEntry{node: node, priority: p, index: len(q.pq)}
		q.entries[i] = e
		q.pq = append(q.pq, e)
	}
	heap.Init(&q.pq)
}

func (q *nodeQueue) push(node uint32, priority int) {
	e := &pqEntry{node: node, priority: priority}
	q.entries[node] = e
	heap.Push(&q.pq, e)
}

func (q *nodeQueue) pop() (uint32, int) {
	e := heap.Pop(&q.pq).(*pqEntry)
	q.entries[e.node] = nil
	return e.node, e.priority
}

// update changes the priority of a queued node. Nodes not in the queue are
// ignored.
func (q *nodeQueue) update(node uint32, priority int) {
	e := q.entries[node]
	if e == nil || e.priority == priority {
		return
	}
	e.priority = priority
	heap.Fix(&q.pq, e.index)
}
