// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages that depend on the graph package.
//
// Builder wraps a graph.Graph and fails the test on any construction error, and the fixture
// functions build the small graphs used across the partitioning, fusion and backend tests.
package graphtest

import (
	"testing"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

// Builder builds a graph for tests. Any error fails the test immediately.
type Builder struct {
	t testing.TB
	G *graph.Graph
}

// New creates a Builder for an empty graph.
func New(t testing.TB, name string) *Builder {
	return &Builder{t: t, G: graph.New(name)}
}

// Shape converts dims to a graph.Shape: a negative dimension is unknown.
func Shape(dims ...int) graph.Shape {
	shape := make(graph.Shape, len(dims))
	for i, d := range dims {
		shape[i] = graph.Dim{Value: d}
	}
	return shape
}

// Input declares a graph input. With no dims given the rank is unknown.
func (b *Builder) Input(name string, dtype dtypes.DType, dims ...int) *Builder {
	b.t.Helper()
	var shape graph.Shape
	if dims != nil {
		shape = Shape(dims...)
	}
	require.NoError(b.t, b.G.AddInput(name, graph.TensorInfo{DType: dtype, Shape: shape}))
	return b
}

// Value sets the value info of an intermediate tensor.
func (b *Builder) Value(name string, dtype dtypes.DType, dims ...int) *Builder {
	var shape graph.Shape
	if dims != nil {
		shape = Shape(dims...)
	}
	b.G.SetValueInfo(name, graph.TensorInfo{DType: dtype, Shape: shape})
	return b
}

// Output marks the tensors as graph outputs.
func (b *Builder) Output(names ...string) *Builder {
	b.t.Helper()
	for _, name := range names {
		require.NoError(b.t, b.G.AddOutput(name))
	}
	return b
}

// Const adds a float32 initializer.
func (b *Builder) Const(name string, dims []int, values ...float32) *Builder {
	b.t.Helper()
	require.NoError(b.t, b.G.AddInitializer(graph.Initializer{
		Name: name, DType: dtypes.Float32, Dims: dims, Floats: values}))
	return b
}

// ConstUint8 adds a uint8 initializer, used for quantization zero points.
func (b *Builder) ConstUint8(name string, dims []int, values ...int64) *Builder {
	b.t.Helper()
	require.NoError(b.t, b.G.AddInitializer(graph.Initializer{
		Name: name, DType: dtypes.Uint8, Dims: dims, Ints: values}))
	return b
}

// Node adds a node.
func (b *Builder) Node(def graph.NodeDef) *graph.Node {
	b.t.Helper()
	node, err := b.G.AddNode(def)
	require.NoError(b.t, err)
	return node
}

// Op adds an ONNX domain node with the given name, inputs, outputs and attributes.
func (b *Builder) Op(opType, name string, version int, inputs, outputs []string, attrs graph.Attributes) *graph.Node {
	b.t.Helper()
	return b.Node(graph.NodeDef{
		Name:         name,
		OpType:       opType,
		SinceVersion: version,
		Inputs:       inputs,
		Outputs:      outputs,
		Attributes:   attrs,
	})
}

// LoadYAML loads a graph fixture, failing the test on error.
func LoadYAML(t testing.TB, path string) *graph.Graph {
	t.Helper()
	g, err := graph.LoadYAML(path)
	require.NoError(t, err)
	return g
}

// PoolAttributes returns the attributes of a valid 2D pooling with the given kernel.
func PoolAttributes(kernelH, kernelW int64) graph.Attributes {
	return graph.Attributes{
		"kernel_shape": graph.IntsAttr(kernelH, kernelW),
		"auto_pad":     graph.StringAttr("VALID"),
	}
}

// AveragePool builds X[1,3,8,8] -> AveragePool("pool") -> P, optionally followed by Relu("relu") -> Y.
// Without the Relu, P is the graph output.
func AveragePool(t testing.TB, kernelH, kernelW int64, withRelu bool) *graph.Graph {
	b := New(t, "average_pool")
	b.Input("X", dtypes.Float32, 1, 3, 8, 8)
	b.Op("AveragePool", "pool", 11, []string{"X"}, []string{"P"}, PoolAttributes(kernelH, kernelW))
	if !withRelu {
		b.Output("P")
		return b.G
	}
	b.Op("Relu", "relu", 14, []string{"P"}, []string{"Y"}, nil)
	b.Output("Y")
	return b.G
}

// WhereSoftmax builds Where("where")(Cond, X, Fill) -> M -> Softmax("softmax", axis=-1) -> Y, with X of
// shape [2,4,8].
func WhereSoftmax(t testing.TB) *graph.Graph {
	b := New(t, "where_softmax")
	b.Input("Cond", dtypes.Bool, 2, 4, 8)
	b.Input("X", dtypes.Float32, 2, 4, 8)
	b.Const("Fill", []int{}, -10000)
	b.Value("M", dtypes.Float32, 2, 4, 8)
	b.Op("Where", "where", 16, []string{"Cond", "X", "Fill"}, []string{"M"}, nil)
	b.Op("Softmax", "softmax", 13, []string{"M"}, []string{"Y"}, graph.Attributes{"axis": graph.IntAttr(-1)})
	b.Output("Y")
	return b.G
}

// QDQAveragePool builds a quantized average pooling:
//
//	Xq(uint8) -> DequantizeLinear("dq") -> Xf -> AveragePool("pool") -> Pf -> QuantizeLinear("q") -> Yq(uint8)
func QDQAveragePool(t testing.TB) *graph.Graph {
	b := New(t, "qdq_average_pool")
	b.Input("Xq", dtypes.Uint8, 1, 3, 8, 8)
	b.Const("x_scale", []int{}, 0.05).ConstUint8("x_zero_point", []int{}, 128)
	b.Const("y_scale", []int{}, 0.05).ConstUint8("y_zero_point", []int{}, 128)
	b.Value("Xf", dtypes.Float32, 1, 3, 8, 8)
	b.Value("Pf", dtypes.Float32, 1, 3, 6, 6)
	b.Value("Yq", dtypes.Uint8, 1, 3, 6, 6)
	b.Op("DequantizeLinear", "dq", 13, []string{"Xq", "x_scale", "x_zero_point"}, []string{"Xf"}, nil)
	b.Op("AveragePool", "pool", 11, []string{"Xf"}, []string{"Pf"}, PoolAttributes(3, 3))
	b.Op("QuantizeLinear", "q", 13, []string{"Pf", "y_scale", "y_zero_point"}, []string{"Yq"}, nil)
	b.Output("Yq")
	return b.G
}

// ConvClip builds X[1,3,8,8] -> Conv("conv", W[8,3,3,3], B[8]) -> C -> Clip("clip", 0, 6) -> Y.
func ConvClip(t testing.TB) *graph.Graph {
	b := New(t, "conv_clip")
	b.Input("X", dtypes.Float32, 1, 3, 8, 8)
	b.Const("W", []int{8, 3, 3, 3}, make([]float32, 8*3*3*3)...)
	b.Const("B", []int{8}, make([]float32, 8)...)
	b.Const("clip_min", []int{}, 0).Const("clip_max", []int{}, 6)
	b.Value("C", dtypes.Float32, 1, 8, 6, 6)
	b.Op("Conv", "conv", 11, []string{"X", "W", "B"}, []string{"C"}, graph.Attributes{
		"kernel_shape": graph.IntsAttr(3, 3),
	})
	b.Op("Clip", "clip", 13, []string{"C", "clip_min", "clip_max"}, []string{"Y"}, nil)
	b.Output("Y")
	return b.G
}
