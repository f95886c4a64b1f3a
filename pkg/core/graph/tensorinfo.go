// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Dim is one dimension of a tensor shape: either a static value, or a symbolic dimension (Param)
// whose value is only known at run time, like "batch_size".
type Dim struct {
	Value int
	Param string
}

// IsStatic returns whether the dimension value is known.
func (d Dim) IsStatic() bool { return d.Param == "" && d.Value >= 0 }

// String implements fmt.Stringer.
func (d Dim) String() string {
	if d.Param != "" {
		return d.Param
	}
	if d.Value < 0 {
		return "?"
	}
	return fmt.Sprintf("%d", d.Value)
}

// Shape of a tensor. A nil Shape means the rank is unknown; an empty non-nil Shape is a scalar.
type Shape []Dim

// StaticShape creates a shape with all dimensions known.
func StaticShape(dims ...int) Shape {
	s := make(Shape, len(dims))
	for i, d := range dims {
		s[i] = Dim{Value: d}
	}
	return s
}

// Rank returns the number of dimensions, or -1 if the rank is unknown.
func (s Shape) Rank() int {
	if s == nil {
		return -1
	}
	return len(s)
}

// IsStatic returns whether the rank and every dimension is known.
func (s Shape) IsStatic() bool {
	if s == nil {
		return false
	}
	for _, d := range s {
		if !d.IsStatic() {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	if s == nil {
		return "[?]"
	}
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TensorInfo holds the element type and shape of a tensor.
type TensorInfo struct {
	DType dtypes.DType
	Shape Shape
}

// Clone returns a deep copy.
func (t TensorInfo) Clone() *TensorInfo {
	return &TensorInfo{DType: t.DType, Shape: slices.Clone(t.Shape)}
}

// String implements fmt.Stringer.
func (t *TensorInfo) String() string {
	if t == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("(%s)%s", t.DType, t.Shape)
}

// Initializer is a constant tensor stored in the graph, like weights, quantization scales or the
// min/max values of a Clip.
//
// Only the representations needed by graph rewrites are kept: Floats for float tensors and Ints for
// integer ones. Float16 tensors keep their raw bits in Ints, as ONNX stores them.
type Initializer struct {
	Name   string
	DType  dtypes.DType
	Dims   []int
	Floats []float32
	Ints   []int64
}

// Clone returns a deep copy.
func (i Initializer) Clone() Initializer {
	i.Dims = slices.Clone(i.Dims)
	i.Floats = slices.Clone(i.Floats)
	i.Ints = slices.Clone(i.Ints)
	return i
}

// Size returns the number of elements.
func (i *Initializer) Size() int {
	size := 1
	for _, d := range i.Dims {
		size *= d
	}
	return size
}

// ScalarFloat returns the value of a one-element float initializer.
func (i *Initializer) ScalarFloat() (float32, bool) {
	if i == nil || i.Size() != 1 {
		return 0, false
	}
	switch {
	case len(i.Floats) == 1:
		return i.Floats[0], true
	case len(i.Ints) == 1:
		if i.DType == dtypes.Float16 {
			return float16.Frombits(uint16(i.Ints[0])).Float32(), true
		}
		return float32(i.Ints[0]), true
	}
	return 0, false
}
