// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"container/heap"

	"github.com/pkg/errors"
)

// TopologicalOrder returns the indices of the live nodes such that every node comes after the
// producers of its inputs. Among the nodes that are ready at the same time the one with the lowest
// index goes first, so the order is deterministic.
//
// It returns an error if the graph has a cycle.
func (g *Graph) TopologicalOrder() ([]NodeIndex, error) {
	inDegree := make([]int, len(g.nodes))
	for _, node := range g.nodes {
		if node == nil {
			continue
		}
		for _, input := range node.inputs {
			if input == "" {
				continue
			}
			if _, found := g.producers[input]; found {
				inDegree[node.index]++
			}
		}
	}

	ready := &indexHeap{}
	for _, node := range g.nodes {
		if node != nil && inDegree[node.index] == 0 {
			heap.Push(ready, node.index)
		}
	}

	order := make([]NodeIndex, 0, g.numNodes)
	for ready.Len() > 0 {
		idx := heap.Pop(ready).(NodeIndex)
		order = append(order, idx)
		for _, output := range g.nodes[idx].outputs {
			if output == "" {
				continue
			}
			for _, consumer := range g.consumers[output] {
				inDegree[consumer]--
				if inDegree[consumer] == 0 {
					heap.Push(ready, consumer)
				}
			}
		}
	}
	if len(order) != g.numNodes {
		return nil, errors.Errorf("graph %q has a cycle: only %d of %d nodes could be sorted",
			g.name, len(order), g.numNodes)
	}
	return order, nil
}

// indexHeap is a min-heap of node indices.
type indexHeap []NodeIndex

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(NodeIndex)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
