package xnnpack

import (
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/core/graph/nodeunit"
	"github.com/gomlx/gopjrt/dtypes"
)

// isPaddingSupported returns whether the auto_pad attribute can be expressed by XNNPACK.
// SAME_LOWER is not supported.
func isPaddingSupported(attrs graph.Attributes) bool {
	switch attrs.String("auto_pad", "NOTSET") {
	case "NOTSET", "VALID", "SAME_UPPER":
		return true
	default:
		return false
	}
}

// inputShape returns the shape of the i-th input of the target node, falling back to the unit
// input (the quantized tensor for QDQ groups) if the former is not known.
func inputShape(unit *nodeunit.NodeUnit, i int) graph.Shape {
	g := unit.Node().Graph()
	if info := g.ValueInfo(unit.Node().Input(i)); info != nil && info.Shape != nil {
		return info.Shape
	}
	inputs := unit.Inputs()
	if i < len(inputs) {
		if info := g.ValueInfo(inputs[i].Name); info != nil {
			return info.Shape
		}
	}
	return nil
}

// ioDType returns the dtype of a unit input or output: from its value info if known, otherwise from
// the zero point of its quantization parameters.
func ioDType(g *graph.Graph, io nodeunit.IODef) dtypes.DType {
	if info := g.ValueInfo(io.Name); info != nil && info.DType != dtypes.InvalidDType {
		return info.DType
	}
	if io.Quant != nil {
		if zp := g.Initializer(io.Quant.ZeroPoint); zp != nil {
			return zp.DType
		}
	}
	return dtypes.InvalidDType
}

// isDTypeSupported checks the data types of the unit's first input and first output: float32 for
// single nodes, uint8 for QDQ groups.
func isDTypeSupported(unit *nodeunit.NodeUnit) bool {
	inputs, outputs := unit.Inputs(), unit.Outputs()
	if len(inputs) == 0 || len(outputs) == 0 {
		return false
	}
	g := unit.Node().Graph()
	want := dtypes.Float32
	if unit.UnitType() == nodeunit.QDQGroup {
		want = dtypes.Uint8
	}
	if ioDType(g, inputs[0]) != want {
		return false
	}
	outputDType := ioDType(g, outputs[0])
	return outputDType == want || (outputDType == dtypes.InvalidDType && want == dtypes.Float32)
}

// isKernel2D returns whether the kernel_shape attribute is 2D and not 1x1.
func isKernel2D(attrs graph.Attributes) bool {
	kernel := attrs.Ints("kernel_shape")
	return len(kernel) == 2 && !(kernel[0] == 1 && kernel[1] == 1)
}

// numOutputs returns the number of outputs actually used by the node.
func numOutputs(node *graph.Node) int {
	var count int
	for _, output := range node.Outputs() {
		if output != "" {
			count++
		}
	}
	return count
}
