// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partition

import (
	"fmt"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/gomlx/capgraph/pkg/partition/claims"
)

// FuseQDQGroup returns the MetaDef of the QLinear operator replacing a QDQ group.
//
// Its inputs are each quantized input followed by its scale and zero point, then the output scale
// and zero point, then the inputs that were not quantized (like a Conv bias). Its outputs are the
// quantized outputs.
func FuseQDQGroup(backend string, unit *nodeunit.NodeUnit) *claims.MetaDef {
	target := unit.Node()
	meta := &claims.MetaDef{
		Name:         fmt.Sprintf("%s_QLinear%s_%d", backend, target.OpType, target.Index()),
		OpType:       "QLinear" + target.OpType,
		Domain:       graph.DomainMicrosoft,
		SinceVersion: 1,
		Attributes:   target.Attributes.Clone(),
	}
	if meta.Attributes == nil {
		meta.Attributes = make(graph.Attributes)
	}
	switch target.OpType {
	case "Conv":
		meta.Domain = graph.DomainNHWC
		meta.SinceVersion = 10
	case "Softmax":
		// QLinearSoftmax implements both the opset < 13 and the opset >= 13 semantics.
		meta.Attributes["opset"] = graph.IntAttr(int64(target.SinceVersion))
	}
	if target.Domain == graph.DomainNHWC && target.OpType != "Conv" {
		meta.Attributes["channels_last"] = graph.IntAttr(1)
	}

	var plain []string
	for _, input := range unit.Inputs() {
		if input.Quant == nil {
			if input.Name != "" {
				plain = append(plain, input.Name)
			}
			continue
		}
		meta.Inputs = append(meta.Inputs, input.Name, input.Quant.Scale, input.Quant.ZeroPoint)
	}
	for _, output := range unit.Outputs() {
		meta.Outputs = append(meta.Outputs, output.Name)
		if output.Quant != nil {
			meta.Inputs = append(meta.Inputs, output.Quant.Scale, output.Quant.ZeroPoint)
		}
	}
	meta.Inputs = append(meta.Inputs, plain...)
	return meta
}
