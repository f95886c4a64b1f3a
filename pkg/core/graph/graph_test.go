// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// chainGraph builds X -> Relu(a) -> Sigmoid(b) -> Y, plus a Neg(c) reading X and producing Z.
func chainGraph(t *testing.T) *Graph {
	g := New("chain")
	require.NoError(t, g.AddInput("X", TensorInfo{DType: dtypes.Float32, Shape: StaticShape(2, 3)}))
	_, err := g.AddNode(NodeDef{Name: "a", OpType: "Relu", Inputs: []string{"X"}, Outputs: []string{"A"}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{Name: "b", OpType: "Sigmoid", Inputs: []string{"A"}, Outputs: []string{"Y"}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{Name: "c", OpType: "Neg", Inputs: []string{"X"}, Outputs: []string{"Z"}})
	require.NoError(t, err)
	require.NoError(t, g.AddOutput("Y"))
	require.NoError(t, g.AddOutput("Z"))
	return g
}

func TestGraphEdges(t *testing.T) {
	g := chainGraph(t)
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 3, g.MaxNodeIndex())

	a, b := g.Node(0), g.Node(1)
	require.NotNil(t, a)
	assert.Equal(t, "Relu", a.OpType)
	assert.Same(t, g, a.Graph())
	assert.Same(t, a, g.Producer("A"))
	assert.Nil(t, g.Producer("X"), "graph inputs have no producer")
	assert.Same(t, b, g.SoleConsumer("A"))
	assert.Nil(t, g.SoleConsumer("X"), "X has two consumers")
	assert.Len(t, g.Consumers("X"), 2)
	assert.Equal(t, 1, g.NumOutputEdges(a))
	assert.Equal(t, 0, g.NumOutputEdges(b))
	assert.True(t, g.IsGraphOutput("Y"))
	assert.False(t, g.IsGraphOutput("A"))
	assert.Equal(t, 2, g.ValueInfo("X").Shape.Rank())
	assert.Nil(t, g.Node(10))
	assert.Nil(t, g.Node(-1))
}

func TestGraphAddNodeErrors(t *testing.T) {
	g := chainGraph(t)
	_, err := g.AddNode(NodeDef{Name: "dup", OpType: "Relu", Inputs: []string{"X"}, Outputs: []string{"A"}})
	require.Error(t, err, "A is already produced")
	_, err = g.AddNode(NodeDef{Name: "input", OpType: "Relu", Inputs: []string{"A"}, Outputs: []string{"X"}})
	require.Error(t, err, "X is a graph input")
	_, err = g.AddNode(NodeDef{Name: "twice", OpType: "Split", Inputs: []string{"A"}, Outputs: []string{"S", "S"}})
	require.Error(t, err)
	_, err = g.AddNode(NodeDef{Name: "noop", Inputs: []string{"A"}, Outputs: []string{"T"}})
	require.Error(t, err, "empty op type")
	require.NoError(t, g.AddInitializer(Initializer{Name: "W", DType: dtypes.Float32, Dims: []int{2}, Floats: []float32{1, 2}}))
	_, err = g.AddNode(NodeDef{Name: "const", OpType: "Relu", Inputs: []string{"A"}, Outputs: []string{"W"}})
	require.Error(t, err, "W is an initializer")
	assert.Equal(t, 3, g.NumNodes(), "failed AddNode calls must not change the graph")
}

func TestGraphRemoveNode(t *testing.T) {
	g := chainGraph(t)
	require.NoError(t, g.RemoveNode(1))
	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, 3, g.MaxNodeIndex(), "indices are never reused")
	assert.Nil(t, g.Node(1))
	assert.Nil(t, g.Producer("Y"))
	assert.Empty(t, g.Consumers("A"))
	require.Error(t, g.RemoveNode(1), "removing twice")

	// The output Y can be produced by a new node, with a fresh index.
	n, err := g.AddNode(NodeDef{Name: "b2", OpType: "Tanh", Inputs: []string{"A"}, Outputs: []string{"Y"}})
	require.NoError(t, err)
	assert.Equal(t, NodeIndex(3), n.Index())
	var names []string
	for _, node := range g.Nodes() {
		names = append(names, node.Name)
	}
	assert.Equal(t, []string{"a", "c", "b2"}, names)
}

func TestGraphRepeatedInput(t *testing.T) {
	g := New("square")
	require.NoError(t, g.AddInput("X", TensorInfo{DType: dtypes.Float32}))
	mul, err := g.AddNode(NodeDef{OpType: "Mul", Inputs: []string{"X", "X"}, Outputs: []string{"Y"}})
	require.NoError(t, err)
	assert.Len(t, g.Consumers("X"), 2)
	assert.Nil(t, g.SoleConsumer("X"), "two input slots count as two consumers")
	require.NoError(t, g.RemoveNode(mul.Index()))
	assert.Empty(t, g.Consumers("X"))
}

func TestTopologicalOrder(t *testing.T) {
	g := New("topo")
	require.NoError(t, g.AddInput("X", TensorInfo{DType: dtypes.Float32}))
	// Added in reverse dependency order: #0 consumes #1's output which consumes #2's output.
	_, err := g.AddNode(NodeDef{Name: "last", OpType: "Relu", Inputs: []string{"B"}, Outputs: []string{"C"}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{Name: "middle", OpType: "Relu", Inputs: []string{"A"}, Outputs: []string{"B"}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{Name: "first", OpType: "Relu", Inputs: []string{"X"}, Outputs: []string{"A"}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{Name: "side", OpType: "Neg", Inputs: []string{"X", ""}, Outputs: []string{"D"}})
	require.NoError(t, err)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeIndex{2, 1, 0, 3}, order)

	// Ties are broken by the lowest index.
	order, err = chainGraph(t).TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeIndex{0, 1, 2}, order)
}

func TestTopologicalOrderCycle(t *testing.T) {
	g := New("cycle")
	_, err := g.AddNode(NodeDef{OpType: "Relu", Inputs: []string{"B"}, Outputs: []string{"A"}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeDef{OpType: "Relu", Inputs: []string{"A"}, Outputs: []string{"B"}})
	require.NoError(t, err)
	_, err = g.TopologicalOrder()
	require.Error(t, err)
}

func TestNodeString(t *testing.T) {
	g := chainGraph(t)
	n := g.Node(0)
	assert.Equal(t, `#0 Relu "a" (X) -> (A)`, n.String())
	n.AssignBackend("xnnpack")
	n.SetDomain(DomainNHWC)
	assert.True(t, n.IsAssigned())
	assert.True(t, n.IsOp(DomainNHWC, "Relu"))
	assert.Equal(t, `#0 com.ms.internal.nhwc.Relu "a" (X) -> (A) @xnnpack`, n.String())

	def := n.Def()
	def.Inputs[0] = "changed"
	assert.Equal(t, "X", n.Input(0), "Def returns copies")
	assert.Equal(t, "", n.Input(5))
	assert.Equal(t, "xnnpack", def.Backend)
}

func TestInitializer(t *testing.T) {
	g := New("init")
	require.NoError(t, g.AddInitializer(Initializer{Name: "min", DType: dtypes.Float32, Dims: []int{}, Floats: []float32{-1}}))
	require.NoError(t, g.AddInitializer(Initializer{Name: "zp", DType: dtypes.Uint8, Dims: []int{1}, Ints: []int64{128}}))
	require.NoError(t, g.AddInitializer(Initializer{Name: "w", DType: dtypes.Float32, Dims: []int{2, 2}, Floats: []float32{1, 2, 3, 4}}))
	require.Error(t, g.AddInitializer(Initializer{Name: "w", DType: dtypes.Float32}))

	assert.True(t, g.IsConstant("min"))
	assert.False(t, g.IsConstant("max"))
	v, ok := g.Initializer("min").ScalarFloat()
	assert.True(t, ok)
	assert.Equal(t, float32(-1), v)
	v, ok = g.Initializer("zp").ScalarFloat()
	assert.True(t, ok)
	assert.Equal(t, float32(128), v)
	_, ok = g.Initializer("w").ScalarFloat()
	assert.False(t, ok)
	_, ok = g.Initializer("missing").ScalarFloat()
	assert.False(t, ok)
	require.NoError(t, g.AddInitializer(Initializer{Name: "half", DType: dtypes.Float16, Dims: []int{},
		Ints: []int64{int64(float16.Fromfloat32(6).Bits())}}))
	v, ok = g.Initializer("half").ScalarFloat()
	assert.True(t, ok)
	assert.Equal(t, float32(6), v)

	info := g.ValueInfo("w")
	require.NotNil(t, info)
	assert.True(t, info.Shape.IsStatic())
	assert.Contains(t, info.String(), "[2, 2]")
	assert.Equal(t, 0, g.ValueInfo("min").Shape.Rank())
}

func TestShape(t *testing.T) {
	var unknown Shape
	assert.Equal(t, -1, unknown.Rank())
	assert.False(t, unknown.IsStatic())
	assert.Equal(t, "[?]", unknown.String())

	s := Shape{{Param: "batch"}, {Value: 3}, {Value: -1}}
	assert.Equal(t, 3, s.Rank())
	assert.False(t, s.IsStatic())
	assert.False(t, s[0].IsStatic())
	assert.True(t, s[1].IsStatic())
	assert.Equal(t, "[batch, 3, ?]", s.String())
}
