// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fusion

import (
	"github.com/gomlx/capgraph/pkg/core/graph"
)

// FusedSoftmaxOpType is the operator replacing a Where followed by a Softmax, in DomainMicrosoft.
const FusedSoftmaxOpType = "FusedSoftmax"

// softmaxRank returns the rank of the Softmax input, or -1 if unknown.
func softmaxRank(node *graph.Node) int {
	info := node.Graph().ValueInfo(node.Input(0))
	if info == nil {
		return -1
	}
	return info.Shape.Rank()
}

// softmaxAxis returns the axis of the Softmax node, normalized to be non-negative if the rank is
// known.
func softmaxAxis(node *graph.Node) int {
	defaultAxis := int64(-1)
	if node.SinceVersion < 13 {
		defaultAxis = 1
	}
	axis := int(node.Attributes.Int("axis", defaultAxis))
	if rank := softmaxRank(node); rank > 0 && axis < 0 {
		axis += rank
	}
	return axis
}

// isSoftmaxOnLastAxis checks that the Softmax normalizes over its last axis only. Before opset 13
// Softmax flattens its input to 2D around the axis, which is the same only for the last axis.
func isSoftmaxOnLastAxis(node *graph.Node) bool {
	axis := softmaxAxis(node)
	if rank := softmaxRank(node); rank > 0 {
		return axis >= 0 && axis == rank-1
	}
	return axis == -1
}

// FusedSoftmaxPattern matches a Where (the masking of the logits) feeding the data input of a
// Softmax over the last axis.
func FusedSoftmaxPattern() Pattern {
	return Pattern{
		Name: FusedSoftmaxOpType,
		Steps: []Step{
			{OpType: "Where"},
			{OpType: "Softmax", Input: 0, Check: isSoftmaxOnLastAxis},
		},
		Fuse: func(matched []*graph.Node) graph.NodeDef {
			where, softmax := matched[0], matched[1]
			attrs := where.Attributes.Merge(softmax.Attributes)
			attrs["axis"] = graph.IntAttr(int64(softmaxAxis(softmax)))
			return graph.NodeDef{
				Name:         softmax.Name,
				OpType:       FusedSoftmaxOpType,
				Domain:       graph.DomainMicrosoft,
				SinceVersion: 1,
				Attributes:   attrs,
			}
		},
	}
}

// NewFusedSoftmax returns the transformer fusing Where+Softmax into FusedSoftmax.
func NewFusedSoftmax(compatibleBackends ...string) *PatternTransformer {
	return NewPatternTransformer(FusedSoftmaxPattern(), compatibleBackends...)
}

// Default returns the transformers applied before partitioning.
func Default(compatibleBackends ...string) []Transformer {
	return []Transformer{NewFusedSoftmax(compatibleBackends...)}
}
