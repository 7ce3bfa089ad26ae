// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package heap selects the best elements of a stream without sorting all of them.
package heap

import (
	"container/heap"
)

type _heap[T any] struct {
	elems   []T
	compare func(a, b T) int
}

func (h *_heap[T]) Len() int {
	return len(h.elems)
}

// Less puts the lowest ranked element on top.
func (h *_heap[T]) Less(i, j int) bool {
	return h.compare(h.elems[i], h.elems[j]) < 0
}

func (h *_heap[T]) Swap(i, j int) {
	h.elems[i], h.elems[j] = h.elems[j], h.elems[i]
}

func (h *_heap[T]) Push(x any) {
	h.elems = append(h.elems, x.(T))
}

func (h *_heap[T]) Pop() any {
	old := h.elems
	n := len(old)
	x := old[n-1]
	h.elems = old[:n-1]
	return x
}

// TopKFilter filters out top k items. compare(a, b) > 0 means a ranks above b.
type TopKFilter[T any] struct {
	_heap[T]
	k int
}

// NewTopKFilter creates a top k filter.
func NewTopKFilter[T any](k int, compare func(a, b T) int) *TopKFilter[T] {
	return &TopKFilter[T]{_heap: _heap[T]{compare: compare}, k: k}
}

// Push pushes the element x onto the heap.
// The complexity is O(log k).
func (filter *TopKFilter[T]) Push(item T) {
	if filter.k <= 0 {
		return
	}
	if filter.Len() < filter.k {
		heap.Push(&filter._heap, item)
	} else if filter.compare(item, filter.elems[0]) > 0 {
		filter.elems[0] = item
		heap.Fix(&filter._heap, 0)
	}
}

// PopAll pops all items in the filter in decreasing rank.
func (filter *TopKFilter[T]) PopAll() []T {
	items := make([]T, filter.Len())
	for i := len(items) - 1; i >= 0; i-- {
		items[i] = heap.Pop(&filter._heap).(T)
	}
	return items
}
