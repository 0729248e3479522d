// Package merger combines per-shard match lists, each already in key order,
// into one ordered list.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/ranker"
)

// Merge performs a k-way merge of sorted lists. A positive limit stops after
// that many matches.
func Merge(lists [][]ranker.Match, limit int) []ranker.Match {
	total := 0
	h := make(cursorHeap, 0, len(lists))
	for i, l := range lists {
		if len(l) > 0 {
			h = append(h, cursor{list: i})
			total += len(l)
		}
	}
	if limit > 0 && limit < total {
		total = limit
	}
	if len(h) == 1 {
		return lists[h[0].list][:total]
	}
	mh := &mergeHeap{lists: lists, cursors: h}
	heap.Init(mh)

	out := make([]ranker.Match, 0, total)
	for mh.Len() > 0 && len(out) < total {
		c := &mh.cursors[0]
		out = append(out, lists[c.list][c.pos])
		c.pos++
		if c.pos == len(lists[c.list]) {
			heap.Pop(mh)
		} else {
			heap.Fix(mh, 0)
		}
	}
	return out
}

type cursor struct {
	list int
	pos  int
}

type cursorHeap []cursor

type mergeHeap struct {
	lists   [][]ranker.Match
	cursors cursorHeap
}

func (h *mergeHeap) Len() int { return len(h.cursors) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	return ranker.Less(h.lists[a.list][a.pos], h.lists[b.list][b.pos])
}

func (h *mergeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *mergeHeap) Push(x any) {
	h.cursors = append(h.cursors, x.(cursor))
}

func (h *mergeHeap) Pop() any {
	old := h.cursors
	n := len(old)
	item := old[n-1]
	h.cursors = old[:n-1]
	return item
}
