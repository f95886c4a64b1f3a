// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"testing"

	"github.com/gomlx/capgraph/backends"
	"github.com/gomlx/capgraph/backends/xnnpack"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/graphtest"
	"github.com/gomlx/capgraph/pkg/fusion"
	"github.com/gomlx/capgraph/pkg/partition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newXnnpack(t *testing.T, config string) backends.Backend {
	t.Helper()
	b, err := xnnpack.New(config)
	require.NoError(t, err)
	return b
}

func TestConvBlock(t *testing.T) {
	g := graphtest.LoadYAML(t, "testdata/conv_block.yaml")
	result, err := Run(g, newXnnpack(t, ""), Options{})
	require.NoError(t, err)
	assert.True(t, result.Fused, "Where+Softmax fused")
	assert.Equal(t, []graph.NodeIndex{0, 1, 2}, result.Requests.Nodes())
	assert.Empty(t, result.MissingKernels)

	// Final graph: #2 MaxPool, #5 FusedSoftmax and #6 the Conv fused with its Clip.
	require.Equal(t, 3, g.NumNodes())
	conv := g.Producer("R")
	require.NotNil(t, conv)
	assert.Equal(t, graph.NodeIndex(6), conv.Index())
	assert.True(t, conv.IsOp(graph.DomainNHWC, "Conv"))
	assert.Equal(t, []string{"X", "W", "B"}, conv.Inputs())
	assert.Equal(t, "Clip", conv.Attributes.String(partition.AttrActivation, ""))
	assert.Equal(t, []float32{0, 6}, conv.Attributes.Floats(partition.AttrActivationParams))

	pool := g.Node(2)
	require.NotNil(t, pool)
	assert.True(t, pool.IsOp(graph.DomainNHWC, "MaxPool"))

	softmax := g.Producer("Y")
	assert.True(t, softmax.IsOp(graph.DomainMicrosoft, fusion.FusedSoftmaxOpType))
	assert.False(t, softmax.IsAssigned())

	require.Len(t, result.Claims, 2)
	assert.Equal(t, []graph.NodeIndex{6}, result.Claims[0].Nodes())
	assert.Equal(t, []graph.NodeIndex{2}, result.Claims[1].Nodes())
	assert.Equal(t, []graph.NodeIndex{2, 6}, result.Nodes)
}

func TestQDQAveragePool(t *testing.T) {
	g := graphtest.QDQAveragePool(t)
	result, err := Run(g, newXnnpack(t, ""), Options{})
	require.NoError(t, err)
	assert.False(t, result.Fused)
	require.Len(t, result.Claims, 1)
	assert.Equal(t, []graph.NodeIndex{0, 1, 2}, result.Claims[0].Nodes())
	assert.Empty(t, result.MissingKernels)

	require.Equal(t, 1, g.NumNodes())
	qlinear := g.Producer("Yq")
	assert.True(t, qlinear.IsOp(graph.DomainMicrosoft, "QLinearAveragePool"))
	assert.Equal(t, xnnpack.ProviderName, qlinear.Backend())
	assert.Equal(t, int64(1), qlinear.Attributes.Int("channels_last", 0))
	assert.Equal(t, []graph.NodeIndex{3}, result.Nodes)
}

func TestNoQDQOption(t *testing.T) {
	g := graphtest.QDQAveragePool(t)
	result, err := Run(g, newXnnpack(t, "noqdq"), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Claims)
	assert.Empty(t, result.Nodes)
	assert.Equal(t, 3, g.NumNodes())
}

func TestSkipFusion(t *testing.T) {
	g := graphtest.WhereSoftmax(t)
	result, err := Run(g, newXnnpack(t, ""), Options{SkipFusion: true})
	require.NoError(t, err)
	assert.False(t, result.Fused)
	// The Softmax alone is supported: rank 3, over the last axis.
	assert.Equal(t, []graph.NodeIndex{1}, result.Nodes)
	assert.True(t, g.Node(1).IsOp(graph.DomainONNX, "Softmax"), "Softmax is not layout sensitive")
}

func TestProducerAssignedElsewhere(t *testing.T) {
	g := graphtest.AveragePool(t, 3, 3, true)
	g.Node(0).AssignBackend("CPUExecutionProvider")
	result, err := Run(g, newXnnpack(t, ""), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Claims)
	assert.Empty(t, result.Nodes)
	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, "CPUExecutionProvider", g.Node(0).Backend())
	assert.False(t, g.Node(1).IsAssigned())
}

func TestLayoutSensitiveOps(t *testing.T) {
	g := graphtest.AveragePool(t, 3, 3, false)
	result, err := Run(g, newXnnpack(t, ""), Options{LayoutSensitiveOps: []string{}})
	require.NoError(t, err)
	assert.True(t, g.Node(0).IsOp(graph.DomainONNX, "AveragePool"))
	// There is no AveragePool kernel in the ONNX domain.
	assert.Len(t, result.MissingKernels, 1)
	require.Len(t, result.Claims, 1)
	assert.True(t, result.WithoutKernel.Has(result.Claims[0].ID()))
}

func TestMaterializeWithoutMetaDef(t *testing.T) {
	g := graphtest.AveragePool(t, 3, 3, false)
	p := partition.New(xnnpack.ProviderName, newXnnpack(t, ""))
	requests, err := p.PreLayout(g)
	require.NoError(t, err)
	require.Len(t, requests.Claims(), 1)
	_, err = Materialize(g, xnnpack.ProviderName, requests.Claims()[0])
	require.Error(t, err)
	assert.Equal(t, 1, g.NumNodes())
}

func TestClaimOpTypes(t *testing.T) {
	g := graphtest.QDQAveragePool(t)
	result, err := Run(g, newXnnpack(t, ""), Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"DequantizeLinear", "AveragePool", "QuantizeLinear"}}, result.ClaimOpTypes)
	assert.Empty(t, result.WithoutKernel)
}
