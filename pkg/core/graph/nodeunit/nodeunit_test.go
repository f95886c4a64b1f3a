// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nodeunit

import (
	"testing"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/graphtest"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIndices(nodes []*graph.Node) []graph.NodeIndex {
	indices := make([]graph.NodeIndex, len(nodes))
	for i, n := range nodes {
		indices[i] = n.Index()
	}
	return indices
}

func TestSingleNodes(t *testing.T) {
	g := graphtest.AveragePool(t, 3, 3, true)
	units, byNode, err := GetAllNodeUnits(g)
	require.NoError(t, err)
	require.Len(t, units, 2)
	require.Len(t, byNode, 2)
	for i, unit := range units {
		assert.Equal(t, SingleNode, unit.UnitType())
		assert.Equal(t, graph.NodeIndex(i), unit.Index())
		assert.Same(t, unit, byNode[unit.Index()])
		assert.Empty(t, unit.InputNodes())
		assert.Empty(t, unit.OutputNodes())
		assert.Len(t, unit.Nodes(), 1)
	}
	pool := units[0]
	assert.Equal(t, "AveragePool", pool.OpType())
	assert.Equal(t, []IODef{{Name: "X"}}, pool.Inputs())
	assert.Equal(t, []IODef{{Name: "P"}}, pool.Outputs())
	assert.Equal(t, 11, pool.SinceVersion())
	assert.Equal(t, graph.DomainONNX, pool.Domain())
}

func TestQDQGroup(t *testing.T) {
	g := graphtest.QDQAveragePool(t)
	units, byNode, err := GetAllNodeUnits(g)
	require.NoError(t, err)
	require.Len(t, units, 1)
	unit := units[0]
	assert.Equal(t, QDQGroup, unit.UnitType())
	assert.Equal(t, "QDQGroup", unit.UnitType().String())
	assert.Equal(t, graph.NodeIndex(1), unit.Index(), "the AveragePool is the target")
	assert.Equal(t, []graph.NodeIndex{0}, nodeIndices(unit.InputNodes()))
	assert.Equal(t, []graph.NodeIndex{2}, nodeIndices(unit.OutputNodes()))
	assert.Equal(t, []graph.NodeIndex{0, 1, 2}, nodeIndices(unit.Nodes()))
	for idx := range 3 {
		assert.Same(t, unit, byNode[graph.NodeIndex(idx)])
	}
	require.Len(t, unit.Inputs(), 1)
	assert.Equal(t, IODef{Name: "Xq", Quant: &QuantParam{Scale: "x_scale", ZeroPoint: "x_zero_point"}}, unit.Inputs()[0])
	require.Len(t, unit.Outputs(), 1)
	assert.Equal(t, IODef{Name: "Yq", Quant: &QuantParam{Scale: "y_scale", ZeroPoint: "y_zero_point"}}, unit.Outputs()[0])
	assert.Equal(t, "QDQGroup[#0 DequantizeLinear, #1 AveragePool, #2 QuantizeLinear]", unit.String())

	// Still grouped once the target moves to the NHWC domain.
	g.Node(1).SetDomain(graph.DomainNHWC)
	units, _, err = GetAllNodeUnits(g)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, QDQGroup, units[0].UnitType())
}

func TestQDQGroupRejected(t *testing.T) {
	t.Run("intermediate graph output", func(t *testing.T) {
		g := graphtest.QDQAveragePool(t)
		require.NoError(t, g.AddOutput("Xf"))
		units, _, err := GetAllNodeUnits(g)
		require.NoError(t, err)
		assert.Len(t, units, 3)
		for _, unit := range units {
			assert.Equal(t, SingleNode, unit.UnitType())
		}
	})

	t.Run("dequantized value used elsewhere", func(t *testing.T) {
		g := graphtest.QDQAveragePool(t)
		_, err := g.AddNode(graph.NodeDef{OpType: "Relu", Inputs: []string{"Xf"}, Outputs: []string{"R"}})
		require.NoError(t, err)
		units, _, err := GetAllNodeUnits(g)
		require.NoError(t, err)
		assert.Len(t, units, 4)
	})

	t.Run("no quantized output", func(t *testing.T) {
		b := graphtest.New(t, "dq_only")
		b.Input("Xq", dtypes.Uint8, 1, 3, 8, 8)
		b.Const("s", []int{}, 0.1).ConstUint8("zp", []int{}, 0)
		b.Op("DequantizeLinear", "dq", 13, []string{"Xq", "s", "zp"}, []string{"Xf"}, nil)
		b.Op("MaxPool", "pool", 12, []string{"Xf"}, []string{"Y"}, graphtest.PoolAttributes(2, 2))
		b.Output("Y")
		units, byNode, err := GetAllNodeUnits(b.G)
		require.NoError(t, err)
		assert.Len(t, units, 2)
		assert.Equal(t, SingleNode, byNode[1].UnitType())
	})

	t.Run("not a target", func(t *testing.T) {
		b := graphtest.New(t, "dq_relu_q")
		b.Input("Xq", dtypes.Uint8, 4)
		b.Const("s", []int{}, 0.1).ConstUint8("zp", []int{}, 0)
		b.Op("DequantizeLinear", "dq", 13, []string{"Xq", "s", "zp"}, []string{"Xf"}, nil)
		b.Op("Relu", "relu", 14, []string{"Xf"}, []string{"Rf"}, nil)
		b.Op("QuantizeLinear", "q", 13, []string{"Rf", "s", "zp"}, []string{"Yq"}, nil)
		b.Output("Yq")
		units, _, err := GetAllNodeUnits(b.G)
		require.NoError(t, err)
		assert.Len(t, units, 3)
		assert.False(t, IsQDQTarget(graph.DomainONNX, "Relu"))
		assert.False(t, IsQDQTarget(graph.DomainMicrosoft, "Conv"))
		assert.True(t, IsQDQTarget(graph.DomainNHWC, "Conv"))
	})
}

func TestQDQConvWithBias(t *testing.T) {
	b := graphtest.New(t, "qdq_conv")
	b.Input("Xq", dtypes.Uint8, 1, 3, 8, 8)
	b.Const("s", []int{}, 0.1).ConstUint8("zp", []int{}, 0)
	b.ConstUint8("Wq", []int{4, 3, 3, 3}, make([]int64, 4*3*3*3)...)
	b.Const("B", []int{4}, 0, 0, 0, 0)
	b.Op("DequantizeLinear", "dq_x", 13, []string{"Xq", "s", "zp"}, []string{"Xf"}, nil)
	b.Op("DequantizeLinear", "dq_w", 13, []string{"Wq", "s", "zp"}, []string{"Wf"}, nil)
	b.Op("Conv", "conv", 11, []string{"Xf", "Wf", "B"}, []string{"Cf"}, nil)
	b.Op("QuantizeLinear", "q", 13, []string{"Cf", "s", "zp"}, []string{"Yq"}, nil)
	b.Output("Yq")

	units, _, err := GetAllNodeUnits(b.G)
	require.NoError(t, err)
	require.Len(t, units, 1)
	unit := units[0]
	assert.Equal(t, []graph.NodeIndex{0, 1, 2, 3}, nodeIndices(unit.Nodes()))
	require.Len(t, unit.Inputs(), 3)
	assert.Equal(t, "Xq", unit.Inputs()[0].Name)
	assert.Equal(t, "Wq", unit.Inputs()[1].Name)
	assert.Equal(t, IODef{Name: "B"}, unit.Inputs()[2], "bias is not quantized here")
}

func TestCycle(t *testing.T) {
	g := graph.New("cycle")
	_, err := g.AddNode(graph.NodeDef{OpType: "Relu", Inputs: []string{"B"}, Outputs: []string{"A"}})
	require.NoError(t, err)
	_, err = g.AddNode(graph.NodeDef{OpType: "Relu", Inputs: []string{"A"}, Outputs: []string{"B"}})
	require.NoError(t, err)
	_, _, err = GetAllNodeUnits(g)
	require.Error(t, err)
}
