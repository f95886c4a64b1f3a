// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nodeunit

import (
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	opDequantizeLinear = "DequantizeLinear"
	opQuantizeLinear   = "QuantizeLinear"
)

// qdqSelector lists which inputs of a target operator must (or may) come from a DequantizeLinear
// for the node to form a QDQ group.
type qdqSelector struct {
	required []int
	optional []int
}

// qdqSelectors per target op type. Targets are matched both in the ONNX domain and, after the layout
// transformation, in the NHWC domain.
var qdqSelectors = map[string]qdqSelector{
	"Conv":        {required: []int{0, 1}, optional: []int{2}},
	"AveragePool": {required: []int{0}},
	"MaxPool":     {required: []int{0}},
	"Softmax":     {required: []int{0}},
}

// IsQDQTarget returns whether op type/domain can be the target of a QDQ group.
func IsQDQTarget(domain, opType string) bool {
	if domain != graph.DomainONNX && domain != graph.DomainNHWC {
		return false
	}
	_, found := qdqSelectors[opType]
	return found
}

func isQuantizeOp(node *graph.Node, opType string) bool {
	return node != nil && node.OpType == opType &&
		(node.Domain == graph.DomainONNX || node.Domain == graph.DomainMicrosoft)
}

// GetAllNodeUnits partitions the nodes of the graph into NodeUnits.
//
// It returns the units, in the topological order of their first node, and a map from every node
// index to its unit. It only fails if the graph has a cycle.
func GetAllNodeUnits(g *graph.Graph) ([]*NodeUnit, map[graph.NodeIndex]*NodeUnit, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to group nodes into units")
	}
	byNode := make(map[graph.NodeIndex]*NodeUnit, g.NumNodes())

	// QDQ groups first, so DequantizeLinear/QuantizeLinear nodes visited before their target are
	// not taken as single nodes.
	for _, idx := range order {
		node := g.Node(idx)
		if _, grouped := byNode[idx]; grouped || !IsQDQTarget(node.Domain, node.OpType) {
			continue
		}
		unit := tryQDQGroup(node, byNode)
		if unit == nil {
			continue
		}
		for _, member := range unit.Nodes() {
			byNode[member.Index()] = unit
		}
		if klog.V(2).Enabled() {
			klog.Infof("nodeunit: %s", unit)
		}
	}

	units := make([]*NodeUnit, 0, g.NumNodes())
	listed := make(map[*NodeUnit]bool, g.NumNodes())
	for _, idx := range order {
		unit, found := byNode[idx]
		if !found {
			unit = NewSingleNode(g.Node(idx))
			byNode[idx] = unit
		}
		if !listed[unit] {
			listed[unit] = true
			units = append(units, unit)
		}
	}
	return units, byNode, nil
}

// tryQDQGroup returns the QDQ group with target as its operator, or nil if the surrounding nodes
// don't form one.
func tryQDQGroup(target *graph.Node, byNode map[graph.NodeIndex]*NodeUnit) *NodeUnit {
	g := target.Graph()
	selector := qdqSelectors[target.OpType]
	dq := make(map[int]*graph.Node)
	matchInput := func(i int) (ok bool) {
		input := target.Input(i)
		if input == "" {
			return false
		}
		producer := g.Producer(input)
		if !isQuantizeOp(producer, opDequantizeLinear) {
			return false
		}
		if _, grouped := byNode[producer.Index()]; grouped {
			return false
		}
		if g.SoleConsumer(input) != target || g.IsGraphOutput(input) {
			return false
		}
		dq[i] = producer
		return true
	}
	for _, i := range selector.required {
		if !matchInput(i) {
			return nil
		}
	}
	for _, i := range selector.optional {
		matchInput(i)
	}

	var q []*graph.Node
	for _, output := range target.Outputs() {
		if output == "" {
			continue
		}
		if g.IsGraphOutput(output) {
			return nil
		}
		consumer := g.SoleConsumer(output)
		if !isQuantizeOp(consumer, opQuantizeLinear) || consumer.Input(0) != output {
			return nil
		}
		if _, grouped := byNode[consumer.Index()]; grouped {
			return nil
		}
		q = append(q, consumer)
	}
	if len(q) == 0 {
		return nil
	}
	return newQDQGroup(target, dq, q)
}
