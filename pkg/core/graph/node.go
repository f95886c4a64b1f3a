// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Well-known operator domains.
const (
	// DomainONNX is the default ONNX operator domain ("ai.onnx" is normalized to it).
	DomainONNX = ""

	// DomainMicrosoft hosts contrib operators, like the quantized QLinear* ops.
	DomainMicrosoft = "com.microsoft"

	// DomainNHWC is the internal domain layout-sensitive operators are moved to once their
	// tensors are converted to channels-last layout.
	DomainNHWC = "com.ms.internal.nhwc"
)

// NodeIndex identifies a node within its Graph. Indices are never reused: a node removed from the
// graph leaves a hole, and new nodes always get a fresh index.
type NodeIndex int

// InvalidNodeIndex is returned when there is no node.
const InvalidNodeIndex NodeIndex = -1

// Node is one operator in the Graph.
//
// OpType, Domain, SinceVersion and Attributes are exported and may be inspected freely. Inputs and
// outputs are only changed through the Graph, since it keeps the producer/consumer maps in sync.
type Node struct {
	graph *Graph
	index NodeIndex

	// Name of the node, optional and not necessarily unique.
	Name string

	// OpType is the operator type, e.g. "Conv", "Relu", "Softmax".
	OpType string

	// Domain of the operator, see DomainONNX and friends.
	Domain string

	// SinceVersion is the opset version of the operator definition this node was built against.
	SinceVersion int

	// Attributes of the operator.
	Attributes Attributes

	inputs, outputs []string

	// backend is the name of the backend the node has been assigned to, "" if unassigned.
	backend string
}

// Index of the node in its graph.
func (n *Node) Index() NodeIndex { return n.index }

// Graph the node belongs to.
func (n *Node) Graph() *Graph { return n.graph }

// Inputs returns the names of the input tensors. An empty name is an omitted optional input.
//
// The returned slice must not be modified.
func (n *Node) Inputs() []string { return n.inputs }

// Outputs returns the names of the output tensors. The returned slice must not be modified.
func (n *Node) Outputs() []string { return n.outputs }

// Input returns the i-th input name, or "" if there is no such input.
func (n *Node) Input(i int) string {
	if i < 0 || i >= len(n.inputs) {
		return ""
	}
	return n.inputs[i]
}

// Output returns the i-th output name, or "" if there is no such output.
func (n *Node) Output(i int) string {
	if i < 0 || i >= len(n.outputs) {
		return ""
	}
	return n.outputs[i]
}

// Backend returns the name of the backend the node is assigned to, or "" if unassigned.
func (n *Node) Backend() string { return n.backend }

// IsAssigned returns whether the node has been assigned to some backend.
func (n *Node) IsAssigned() bool { return n.backend != "" }

// AssignBackend tags the node as assigned to the given backend. Use "" to unassign.
func (n *Node) AssignBackend(backend string) { n.backend = backend }

// SetDomain moves the node to another operator domain, as done by layout transformations that
// replace an operator by its channels-last variant.
func (n *Node) SetDomain(domain string) { n.Domain = domain }

// IsOp returns whether the node has the given domain and op type.
func (n *Node) IsOp(domain, opType string) bool {
	return n.Domain == domain && n.OpType == opType
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "#%d ", n.index)
	if n.Domain != DomainONNX {
		sb.WriteString(n.Domain)
		sb.WriteString(".")
	}
	sb.WriteString(n.OpType)
	if n.Name != "" {
		_, _ = fmt.Fprintf(&sb, " %q", n.Name)
	}
	_, _ = fmt.Fprintf(&sb, " (%s) -> (%s)", strings.Join(n.inputs, ", "), strings.Join(n.outputs, ", "))
	if n.backend != "" {
		_, _ = fmt.Fprintf(&sb, " @%s", n.backend)
	}
	return sb.String()
}

// NodeDef describes a node to be added with Graph.AddNode.
type NodeDef struct {
	Name         string
	OpType       string
	Domain       string
	SinceVersion int
	Inputs       []string
	Outputs      []string
	Attributes   Attributes

	// Backend pre-assigns the new node, "" for unassigned.
	Backend string
}

// Def returns the NodeDef that would recreate this node.
func (n *Node) Def() NodeDef {
	return NodeDef{
		Name:         n.Name,
		OpType:       n.OpType,
		Domain:       n.Domain,
		SinceVersion: n.SinceVersion,
		Inputs:       slices.Clone(n.inputs),
		Outputs:      slices.Clone(n.outputs),
		Attributes:   n.Attributes.Clone(),
		Backend:      n.backend,
	}
}
