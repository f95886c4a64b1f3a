// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nodeunit groups graph nodes into the units backends make support decisions on.
//
// A NodeUnit is either a single node, or a QDQ group: a target operator whose inputs come from
// DequantizeLinear nodes and whose outputs go to QuantizeLinear nodes. A backend that supports the
// quantized version of the target takes the whole group, replacing it with one QLinear operator.
//
// GetAllNodeUnits partitions all the nodes of a graph into units: every node belongs to exactly one.
package nodeunit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/capgraph/pkg/core/graph"
)

// Type of NodeUnit.
type Type int

const (
	// SingleNode is a unit with one node.
	SingleNode Type = iota

	// QDQGroup is a target node with its DequantizeLinear inputs and QuantizeLinear outputs.
	QDQGroup
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case SingleNode:
		return "SingleNode"
	case QDQGroup:
		return "QDQGroup"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// QuantParam holds the names of the scale and zero-point tensors of a quantized value.
type QuantParam struct {
	Scale, ZeroPoint string
}

// IODef is one input or output of a unit: for QDQ groups it's the quantized tensor, along with its
// quantization parameters.
type IODef struct {
	Name  string
	Quant *QuantParam
}

// NodeUnit is a single node, or a QDQ group, identified by its target node.
type NodeUnit struct {
	unitType    Type
	target      *graph.Node
	inputNodes  []*graph.Node
	outputNodes []*graph.Node
	inputs      []IODef
	outputs     []IODef
}

// UnitType returns whether it's a SingleNode or a QDQGroup.
func (u *NodeUnit) UnitType() Type { return u.unitType }

// Node returns the target node: the node itself for SingleNode units, the quantized operator
// for QDQGroup units.
func (u *NodeUnit) Node() *graph.Node { return u.target }

// Index of the target node, which identifies the unit.
func (u *NodeUnit) Index() graph.NodeIndex { return u.target.Index() }

// OpType of the target node.
func (u *NodeUnit) OpType() string { return u.target.OpType }

// Domain of the target node.
func (u *NodeUnit) Domain() string { return u.target.Domain }

// SinceVersion of the target node.
func (u *NodeUnit) SinceVersion() int { return u.target.SinceVersion }

// InputNodes returns the DequantizeLinear nodes of a QDQ group, in target input order.
// Empty for SingleNode units.
func (u *NodeUnit) InputNodes() []*graph.Node { return u.inputNodes }

// OutputNodes returns the QuantizeLinear nodes of a QDQ group, in target output order.
// Empty for SingleNode units.
func (u *NodeUnit) OutputNodes() []*graph.Node { return u.outputNodes }

// Inputs of the unit. For a QDQ group the inputs fed through a DequantizeLinear are reported as the
// quantized tensor with its quantization parameters.
func (u *NodeUnit) Inputs() []IODef { return u.inputs }

// Outputs of the unit. For a QDQ group these are the outputs of the QuantizeLinear nodes.
func (u *NodeUnit) Outputs() []IODef { return u.outputs }

// Nodes returns all nodes of the unit: DequantizeLinear nodes, then the target, then the
// QuantizeLinear nodes.
func (u *NodeUnit) Nodes() []*graph.Node {
	nodes := make([]*graph.Node, 0, len(u.inputNodes)+1+len(u.outputNodes))
	nodes = append(nodes, u.inputNodes...)
	nodes = append(nodes, u.target)
	return append(nodes, u.outputNodes...)
}

// String implements fmt.Stringer.
func (u *NodeUnit) String() string {
	if u.unitType == SingleNode {
		return fmt.Sprintf("SingleNode[%s]", u.target)
	}
	parts := make([]string, 0, len(u.inputNodes)+len(u.outputNodes)+1)
	for _, n := range u.Nodes() {
		parts = append(parts, fmt.Sprintf("#%d %s", n.Index(), n.OpType))
	}
	return fmt.Sprintf("QDQGroup[%s]", strings.Join(parts, ", "))
}

// NewSingleNode creates a SingleNode unit for the node. Support checks use it to evaluate a node
// on its own, regardless of the group it may belong to.
func NewSingleNode(node *graph.Node) *NodeUnit {
	u := &NodeUnit{unitType: SingleNode, target: node}
	for _, input := range node.Inputs() {
		u.inputs = append(u.inputs, IODef{Name: input})
	}
	for _, output := range node.Outputs() {
		u.outputs = append(u.outputs, IODef{Name: output})
	}
	return u
}

// newQDQGroup creates a unit for the target node, with dq mapping target input index to the
// DequantizeLinear node producing it, and q listing the QuantizeLinear nodes for each output.
func newQDQGroup(target *graph.Node, dq map[int]*graph.Node, q []*graph.Node) *NodeUnit {
	u := &NodeUnit{unitType: QDQGroup, target: target}
	for i, input := range target.Inputs() {
		dqNode, found := dq[i]
		if !found {
			u.inputs = append(u.inputs, IODef{Name: input})
			continue
		}
		if !slices.Contains(u.inputNodes, dqNode) {
			u.inputNodes = append(u.inputNodes, dqNode)
		}
		u.inputs = append(u.inputs, IODef{Name: dqNode.Input(0), Quant: quantParam(dqNode)})
	}
	for _, qNode := range q {
		u.outputNodes = append(u.outputNodes, qNode)
		u.outputs = append(u.outputs, IODef{Name: qNode.Output(0), Quant: quantParam(qNode)})
	}
	return u
}

func quantParam(node *graph.Node) *QuantParam {
	return &QuantParam{Scale: node.Input(1), ZeroPoint: node.Input(2)}
}
