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

// Package fpgrowth mines frequent itemsets with the FP-Growth algorithm.
//
// The prefix tree is stored in an arena: nodes live in a slice and refer to each
// other by index. Conditional trees are mined from an explicit work stack, so the
// depth of the search does not grow the goroutine stack.
package fpgrowth

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/gorse-io/playlist/dataset"
	"github.com/gorse-io/playlist/model"
	"github.com/juju/errors"
)

const epsilon = 1e-9

// MinCount returns the smallest number of transactions an itemset must appear in
// to reach minSupport.
func MinCount(minSupport float64, numTransactions int) int {
	count := int(math.Ceil(minSupport*float64(numTransactions) - epsilon))
	return max(count, 1)
}

type node struct {
	item   int32
	count  int
	parent int32
	link   int32 // next node of the same item
}

type tree struct {
	nodes    []node
	children map[uint64]int32
	heads    map[int32]int32
	counts   map[int32]int
}

func newTree() *tree {
	return &tree{
		nodes:    []node{{item: -1, parent: -1, link: -1}},
		children: make(map[uint64]int32),
		heads:    make(map[int32]int32),
		counts:   make(map[int32]int),
	}
}

// insert adds a path of items ordered by ascending rank.
func (t *tree) insert(path []int32, count int) {
	cur := int32(0)
	for _, item := range path {
		key := uint64(uint32(cur))<<32 | uint64(uint32(item))
		child, exist := t.children[key]
		if exist {
			t.nodes[child].count += count
		} else {
			link, hasHead := t.heads[item]
			if !hasHead {
				link = -1
			}
			child = int32(len(t.nodes))
			t.nodes = append(t.nodes, node{item: item, count: count, parent: cur, link: link})
			t.heads[item] = child
			t.children[key] = child
		}
		t.counts[item] += count
		cur = child
	}
}

// items returns the items of the tree from the least frequent to the most frequent.
func (t *tree) items() []int32 {
	items := make([]int32, 0, len(t.counts))
	for item := range t.counts {
		items = append(items, item)
	}
	slices.Sort(items)
	slices.Reverse(items)
	return items
}

// conditional builds the conditional tree of item, keeping items that reach minCount.
func (t *tree) conditional(item int32, minCount int) *tree {
	type prefix struct {
		path  []int32
		count int
	}
	var (
		prefixes []prefix
		counts   = make(map[int32]int)
	)
	for n := t.heads[item]; n >= 0; n = t.nodes[n].link {
		count := t.nodes[n].count
		var path []int32
		for p := t.nodes[n].parent; p > 0; p = t.nodes[p].parent {
			path = append(path, t.nodes[p].item)
			counts[t.nodes[p].item] += count
		}
		if len(path) > 0 {
			slices.Reverse(path)
			prefixes = append(prefixes, prefix{path: path, count: count})
		}
	}
	cond := newTree()
	for _, p := range prefixes {
		path := p.path[:0]
		for _, i := range p.path {
			if counts[i] >= minCount {
				path = append(path, i)
			}
		}
		if len(path) > 0 {
			cond.insert(path, p.count)
		}
	}
	return cond
}

// Miner finds every itemset whose support reaches MinSupport.
type Miner struct {
	minSupport float64
	maxLength  int
}

// NewMiner creates a miner. maxLength bounds the size of itemsets, 0 means unlimited.
func NewMiner(minSupport float64, maxLength int) (*Miner, error) {
	if math.IsNaN(minSupport) || minSupport <= 0 || minSupport > 1 {
		return nil, errors.NotValidf("min_support %v outside (0, 1]", minSupport)
	}
	if maxLength < 0 {
		return nil, errors.NotValidf("max_length %v", maxLength)
	}
	return &Miner{minSupport: minSupport, maxLength: maxLength}, nil
}

// Mine returns frequent itemsets in canonical order: by size, then by items. Items of
// each itemset are sorted lexicographically.
func (m *Miner) Mine(ctx context.Context, transactions []dataset.Transaction) ([]model.Itemset, error) {
	n := len(transactions)
	if n == 0 {
		return []model.Itemset{}, nil
	}
	minCount := MinCount(m.minSupport, n)

	// count single items
	itemCounts := make(map[string]int)
	for _, transaction := range transactions {
		for _, item := range transaction {
			itemCounts[item]++
		}
	}
	// rank frequent items by descending count, ties by name
	names := make([]string, 0, len(itemCounts))
	for item, count := range itemCounts {
		if count >= minCount {
			names = append(names, item)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		if itemCounts[a] != itemCounts[b] {
			return itemCounts[b] - itemCounts[a]
		}
		return strings.Compare(a, b)
	})
	ranks := make(map[string]int32, len(names))
	for i, name := range names {
		ranks[name] = int32(i)
	}

	// build prefix tree
	root := newTree()
	path := make([]int32, 0)
	for i, transaction := range transactions {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Trace(err)
			}
		}
		path = path[:0]
		for _, item := range transaction {
			if rank, ok := ranks[item]; ok {
				path = append(path, rank)
			}
		}
		if len(path) > 0 {
			slices.Sort(path)
			path = slices.Compact(path)
			root.insert(path, 1)
		}
	}

	// mine conditional trees
	type task struct {
		tree   *tree
		suffix []int32
	}
	var (
		stack    = []task{{tree: root}}
		itemsets []model.Itemset
	)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, item := range top.tree.items() {
			count := top.tree.counts[item]
			suffix := make([]int32, len(top.suffix)+1)
			copy(suffix, top.suffix)
			suffix[len(top.suffix)] = item
			items := make([]string, len(suffix))
			for i, rank := range suffix {
				items[i] = names[rank]
			}
			slices.Sort(items)
			itemsets = append(itemsets, model.Itemset{
				Items:   items,
				Support: float64(count) / float64(n),
			})
			if m.maxLength > 0 && len(suffix) >= m.maxLength {
				continue
			}
			if cond := top.tree.conditional(item, minCount); len(cond.counts) > 0 {
				stack = append(stack, task{tree: cond, suffix: suffix})
			}
		}
	}

	slices.SortFunc(itemsets, CompareItemsets)
	if itemsets == nil {
		itemsets = []model.Itemset{}
	}
	return itemsets, nil
}

// CompareItemsets orders itemsets by size, then by items.
func CompareItemsets(a, b model.Itemset) int {
	if len(a.Items) != len(b.Items) {
		return len(a.Items) - len(b.Items)
	}
	return slices.Compare(a.Items, b.Items)
}
