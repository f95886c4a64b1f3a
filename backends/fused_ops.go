// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// ActivationType specifies the activation function fused into a preceding operator.
type ActivationType int

const (
	ActivationNone ActivationType = iota
	ActivationRelu
	ActivationClip
)

// String returns the name of the activation, as used in the "activation" attribute of fused
// operators.
func (a ActivationType) String() string {
	switch a {
	case ActivationNone:
		return "None"
	case ActivationRelu:
		return "Relu"
	case ActivationClip:
		return "Clip"
	default:
		return "Unknown"
	}
}

// ActivationFromOpType returns the activation implemented by the ONNX operator, or ActivationNone.
func ActivationFromOpType(opType string) ActivationType {
	switch opType {
	case "Relu":
		return ActivationRelu
	case "Clip":
		return ActivationClip
	default:
		return ActivationNone
	}
}
