// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partition

import (
	"fmt"
	"math"

	"github.com/gomlx/capgraph/backends"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/partition/claims"
	"github.com/pkg/errors"
)

// Attributes added to the MetaDef of a node fused with its trailing activation.
const (
	// AttrActivation holds the activation name, see backends.ActivationType.
	AttrActivation = "activation"

	// AttrActivationParams holds the [min, max] output clamp values of the activation.
	AttrActivationParams = "activation_params"
)

// ActivationBounds returns the output clamp values implementing the Relu or Clip node.
//
// Relu is (0, +Inf). Clip takes its bounds from the min/max inputs (opset >= 11), which must be
// constants, or from the min/max attributes before that; missing bounds default to the float32 range.
func ActivationBounds(node *graph.Node) (minValue, maxValue float32, err error) {
	switch backends.ActivationFromOpType(node.OpType) {
	case backends.ActivationRelu:
		return 0, float32(math.Inf(1)), nil
	case backends.ActivationClip:
		minValue, maxValue = -math.MaxFloat32, math.MaxFloat32
		if node.SinceVersion < 11 {
			minValue = node.Attributes.Float("min", minValue)
			maxValue = node.Attributes.Float("max", maxValue)
			return minValue, maxValue, nil
		}
		g := node.Graph()
		for i, bound := range []*float32{&minValue, &maxValue} {
			name := node.Input(i + 1)
			if name == "" {
				continue
			}
			value, ok := g.Initializer(name).ScalarFloat()
			if !ok {
				return 0, 0, errors.Errorf("%s: bound %q is not a constant scalar", node, name)
			}
			*bound = value
		}
		return minValue, maxValue, nil
	default:
		return 0, 0, errors.Errorf("%s is not a fusable activation", node)
	}
}

// FuseActivation returns the MetaDef of the producer fused with its trailing activation: the
// producer operator, taking the producer inputs and yielding the activation outputs, with the
// activation and its clamp values as extra attributes.
func FuseActivation(backend string, producer, activation *graph.Node) (*claims.MetaDef, error) {
	minValue, maxValue, err := ActivationBounds(activation)
	if err != nil {
		return nil, err
	}
	name := producer.Name
	if name == "" {
		name = fmt.Sprintf("node%d", producer.Index())
	}
	attrs := producer.Attributes.Merge(graph.Attributes{
		AttrActivation:       graph.StringAttr(activation.OpType),
		AttrActivationParams: graph.FloatsAttr(minValue, maxValue),
	})
	return &claims.MetaDef{
		Name:         fmt.Sprintf("%s_%s_%s", backend, name, activation.OpType),
		OpType:       producer.OpType,
		Domain:       producer.Domain,
		SinceVersion: producer.SinceVersion,
		Inputs:       producer.Def().Inputs,
		Outputs:      activation.Def().Outputs,
		Attributes:   attrs,
	}, nil
}
