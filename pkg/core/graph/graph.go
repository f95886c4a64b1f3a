// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph models the tensor computation graph that backends claim nodes from.
//
// A Graph is a directed acyclic graph of operator nodes (Node) connected by named tensors. It
// mirrors the ONNX IR closely enough for partitioning and graph rewrites:
//
//   - Each Node has an op type, a domain, an opset version, attributes and ordered lists of input and
//     output tensor names. An empty input name is an omitted optional input.
//   - Each tensor is produced by at most one node (or is a graph input / initializer), and may be
//     consumed by any number of nodes.
//   - Nodes are stored in an arena indexed by NodeIndex. Removed nodes leave a hole, so indices taken
//     before a removal remain valid for the surviving nodes, but any rewrite may invalidate indices of
//     the nodes it touched.
//   - Each node carries an optional backend tag (Node.Backend): "" means unassigned.
//
// # Error Handling
//
// Graph construction methods (AddNode, RemoveNode, ...) return errors for inconsistent requests,
// e.g. a tensor produced twice. Accessors never fail: they return nil or zero values for things that
// don't exist.
package graph

import (
	"slices"

	"github.com/pkg/errors"
)

// Graph is the computation graph. It is not safe for concurrent use.
type Graph struct {
	name string

	// nodes is the arena; removed nodes are nil.
	nodes    []*Node
	numNodes int

	inputs       []string
	outputs      []string
	valueInfo    map[string]*TensorInfo
	initializers map[string]*Initializer

	// producers maps a tensor name to the node producing it.
	producers map[string]NodeIndex

	// consumers maps a tensor name to the nodes consuming it, one entry per input slot, so a node
	// using the same tensor twice is listed twice.
	consumers map[string][]NodeIndex
}

// New creates an empty graph with the given name.
func New(name string) *Graph {
	return &Graph{
		name:         name,
		valueInfo:    make(map[string]*TensorInfo),
		initializers: make(map[string]*Initializer),
		producers:    make(map[string]NodeIndex),
		consumers:    make(map[string][]NodeIndex),
	}
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// AddInput declares a graph input with the given tensor information.
func (g *Graph) AddInput(name string, info TensorInfo) error {
	if name == "" {
		return errors.New("graph input with empty name")
	}
	if slices.Contains(g.inputs, name) {
		return errors.Errorf("graph %q already has input %q", g.name, name)
	}
	if _, found := g.producers[name]; found {
		return errors.Errorf("graph %q: input %q is already produced by node #%d", g.name, name, g.producers[name])
	}
	g.inputs = append(g.inputs, name)
	g.valueInfo[name] = info.Clone()
	return nil
}

// AddOutput marks the tensor name as a graph output. The tensor doesn't need to be produced yet.
func (g *Graph) AddOutput(name string) error {
	if name == "" {
		return errors.New("graph output with empty name")
	}
	if slices.Contains(g.outputs, name) {
		return errors.Errorf("graph %q already has output %q", g.name, name)
	}
	g.outputs = append(g.outputs, name)
	return nil
}

// AddInitializer adds a constant tensor to the graph.
func (g *Graph) AddInitializer(init Initializer) error {
	if init.Name == "" {
		return errors.New("initializer with empty name")
	}
	if _, found := g.initializers[init.Name]; found {
		return errors.Errorf("graph %q already has initializer %q", g.name, init.Name)
	}
	if _, found := g.producers[init.Name]; found {
		return errors.Errorf("graph %q: initializer %q is already produced by node #%d",
			g.name, init.Name, g.producers[init.Name])
	}
	c := init.Clone()
	g.initializers[init.Name] = &c
	g.valueInfo[init.Name] = &TensorInfo{DType: init.DType, Shape: StaticShape(init.Dims...)}
	return nil
}

// SetValueInfo sets the type/shape information of a tensor.
func (g *Graph) SetValueInfo(name string, info TensorInfo) {
	g.valueInfo[name] = info.Clone()
}

// Inputs returns the names of the graph inputs. The returned slice must not be modified.
func (g *Graph) Inputs() []string { return g.inputs }

// Outputs returns the names of the graph outputs. The returned slice must not be modified.
func (g *Graph) Outputs() []string { return g.outputs }

// IsGraphOutput returns whether the tensor is one of the graph outputs.
func (g *Graph) IsGraphOutput(name string) bool {
	return slices.Contains(g.outputs, name)
}

// ValueInfo returns the type and shape information for the tensor, or nil if it's not known.
func (g *Graph) ValueInfo(name string) *TensorInfo {
	return g.valueInfo[name]
}

// Initializer returns the constant tensor with the given name, or nil.
func (g *Graph) Initializer(name string) *Initializer {
	return g.initializers[name]
}

// IsConstant returns whether the tensor is an initializer.
func (g *Graph) IsConstant(name string) bool {
	_, found := g.initializers[name]
	return found
}

// AddNode creates a new node with a fresh index.
//
// It fails if any of the outputs is already produced by another node, is a graph input or an
// initializer.
func (g *Graph) AddNode(def NodeDef) (*Node, error) {
	if def.OpType == "" {
		return nil, errors.Errorf("graph %q: AddNode(%q) with empty op type", g.name, def.Name)
	}
	seen := make(map[string]bool, len(def.Outputs))
	for _, output := range def.Outputs {
		if output == "" {
			continue
		}
		if seen[output] {
			return nil, errors.Errorf("graph %q: node %q lists output %q twice", g.name, def.Name, output)
		}
		seen[output] = true
		if producer, found := g.producers[output]; found {
			return nil, errors.Errorf("graph %q: output %q of new node %q is already produced by node #%d",
				g.name, output, def.Name, producer)
		}
		if slices.Contains(g.inputs, output) || g.IsConstant(output) {
			return nil, errors.Errorf("graph %q: output %q of new node %q is a graph input or initializer",
				g.name, output, def.Name)
		}
	}

	node := &Node{
		graph:        g,
		index:        NodeIndex(len(g.nodes)),
		Name:         def.Name,
		OpType:       def.OpType,
		Domain:       def.Domain,
		SinceVersion: def.SinceVersion,
		Attributes:   def.Attributes.Clone(),
		inputs:       slices.Clone(def.Inputs),
		outputs:      slices.Clone(def.Outputs),
		backend:      def.Backend,
	}
	if node.Attributes == nil {
		node.Attributes = make(Attributes)
	}
	g.nodes = append(g.nodes, node)
	g.numNodes++
	for _, input := range node.inputs {
		if input == "" {
			continue
		}
		g.consumers[input] = append(g.consumers[input], node.index)
	}
	for _, output := range node.outputs {
		if output == "" {
			continue
		}
		g.producers[output] = node.index
	}
	return node, nil
}

// RemoveNode removes the node from the graph, along with its edges. The tensors it produced are left
// without a producer, so the caller is expected to rewire any consumers.
func (g *Graph) RemoveNode(idx NodeIndex) error {
	node := g.Node(idx)
	if node == nil {
		return errors.Errorf("graph %q: RemoveNode(#%d): no such node", g.name, idx)
	}
	for _, input := range node.inputs {
		if input == "" {
			continue
		}
		list := g.consumers[input]
		if pos := slices.Index(list, idx); pos >= 0 {
			list = slices.Delete(list, pos, pos+1)
		}
		if len(list) == 0 {
			delete(g.consumers, input)
		} else {
			g.consumers[input] = list
		}
	}
	for _, output := range node.outputs {
		if output == "" {
			continue
		}
		if g.producers[output] == idx {
			delete(g.producers, output)
		}
	}
	g.nodes[idx] = nil
	g.numNodes--
	node.graph = nil
	return nil
}

// Node returns the node with the given index, or nil if it doesn't exist or was removed.
func (g *Graph) Node(idx NodeIndex) *Node {
	if idx < 0 || int(idx) >= len(g.nodes) {
		return nil
	}
	return g.nodes[idx]
}

// Nodes returns the live nodes in index order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, g.numNodes)
	for _, node := range g.nodes {
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// NumNodes returns the number of live nodes.
func (g *Graph) NumNodes() int { return g.numNodes }

// MaxNodeIndex returns one past the largest index ever assigned. Useful to size per-node tables.
func (g *Graph) MaxNodeIndex() int { return len(g.nodes) }

// Producer returns the node producing the tensor, or nil if it's a graph input, an initializer
// or unknown.
func (g *Graph) Producer(tensor string) *Node {
	idx, found := g.producers[tensor]
	if !found {
		return nil
	}
	return g.nodes[idx]
}

// Consumers returns the nodes consuming the tensor, one entry per input slot that uses it.
func (g *Graph) Consumers(tensor string) []*Node {
	list := g.consumers[tensor]
	nodes := make([]*Node, 0, len(list))
	for _, idx := range list {
		nodes = append(nodes, g.nodes[idx])
	}
	return nodes
}

// SoleConsumer returns the only consumer of the tensor, or nil if there are zero or more than one
// consuming input slots.
func (g *Graph) SoleConsumer(tensor string) *Node {
	list := g.consumers[tensor]
	if len(list) != 1 {
		return nil
	}
	return g.nodes[list[0]]
}

// NumOutputEdges returns the number of edges going out of the node to other nodes.
func (g *Graph) NumOutputEdges(node *Node) int {
	var count int
	for _, output := range node.outputs {
		count += len(g.consumers[output])
	}
	return count
}
