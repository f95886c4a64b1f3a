// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/exp/constraints"
)

// AttributeType enumerates the attribute value kinds supported.
type AttributeType int

const (
	AttrUndefined AttributeType = iota
	AttrInt
	AttrInts
	AttrFloat
	AttrFloats
	AttrString
)

// String implements fmt.Stringer.
func (t AttributeType) String() string {
	switch t {
	case AttrInt:
		return "int"
	case AttrInts:
		return "ints"
	case AttrFloat:
		return "float"
	case AttrFloats:
		return "floats"
	case AttrString:
		return "string"
	default:
		return "undefined"
	}
}

// Attribute is one operator attribute value. Only the field matching Type is meaningful.
type Attribute struct {
	Type   AttributeType
	I      int64
	Ints   []int64
	F      float32
	Floats []float32
	S      string
}

// Equal returns whether both attributes have the same type and value.
func (a Attribute) Equal(b Attribute) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case AttrInt:
		return a.I == b.I
	case AttrInts:
		return slices.Equal(a.Ints, b.Ints)
	case AttrFloat:
		return a.F == b.F
	case AttrFloats:
		return slices.Equal(a.Floats, b.Floats)
	case AttrString:
		return a.S == b.S
	}
	return true
}

// String implements fmt.Stringer.
func (a Attribute) String() string {
	switch a.Type {
	case AttrInt:
		return fmt.Sprintf("%d", a.I)
	case AttrInts:
		return fmt.Sprintf("%v", a.Ints)
	case AttrFloat:
		return fmt.Sprintf("%g", a.F)
	case AttrFloats:
		return fmt.Sprintf("%g", a.Floats)
	case AttrString:
		return fmt.Sprintf("%q", a.S)
	}
	return "<undefined>"
}

// IntAttr creates an int attribute.
func IntAttr(v int64) Attribute { return Attribute{Type: AttrInt, I: v} }

// IntsAttr creates an ints attribute.
func IntsAttr(v ...int64) Attribute { return Attribute{Type: AttrInts, Ints: slices.Clone(v)} }

// FloatAttr creates a float attribute.
func FloatAttr(v float32) Attribute { return Attribute{Type: AttrFloat, F: v} }

// FloatsAttr creates a floats attribute.
func FloatsAttr(v ...float32) Attribute { return Attribute{Type: AttrFloats, Floats: slices.Clone(v)} }

// StringAttr creates a string attribute.
func StringAttr(v string) Attribute { return Attribute{Type: AttrString, S: v} }

// Attributes maps attribute names to values.
type Attributes map[string]Attribute

// Has returns whether the attribute is set.
func (a Attributes) Has(name string) bool {
	_, found := a[name]
	return found
}

// Int returns the int attribute, or defaultValue if not set or of a different type.
func (a Attributes) Int(name string, defaultValue int64) int64 {
	attr, found := a[name]
	if !found || attr.Type != AttrInt {
		return defaultValue
	}
	return attr.I
}

// Ints returns the ints attribute, or nil if not set or of a different type.
func (a Attributes) Ints(name string) []int64 {
	attr, found := a[name]
	if !found || attr.Type != AttrInts {
		return nil
	}
	return attr.Ints
}

// Float returns the float attribute, or defaultValue if not set or of a different type.
func (a Attributes) Float(name string, defaultValue float32) float32 {
	attr, found := a[name]
	if !found || attr.Type != AttrFloat {
		return defaultValue
	}
	return attr.F
}

// Floats returns the floats attribute, or nil if not set or of a different type.
func (a Attributes) Floats(name string) []float32 {
	attr, found := a[name]
	if !found || attr.Type != AttrFloats {
		return nil
	}
	return attr.Floats
}

// String returns the string attribute, or defaultValue if not set or of a different type.
func (a Attributes) String(name, defaultValue string) string {
	attr, found := a[name]
	if !found || attr.Type != AttrString {
		return defaultValue
	}
	return attr.S
}

// Clone returns a deep copy. Cloning nil returns nil.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	c := make(Attributes, len(a))
	for name, attr := range a {
		attr.Ints = slices.Clone(attr.Ints)
		attr.Floats = slices.Clone(attr.Floats)
		c[name] = attr
	}
	return c
}

// Merge returns a copy of a with the attributes of other added. Values in other take precedence.
func (a Attributes) Merge(other Attributes) Attributes {
	merged := a.Clone()
	if merged == nil {
		merged = make(Attributes, len(other))
	}
	maps.Copy(merged, other.Clone())
	return merged
}

// Equal returns whether both have the same set of attributes with equal values.
func (a Attributes) Equal(b Attributes) bool {
	return maps.EqualFunc(a, b, Attribute.Equal)
}

// Names returns the sorted attribute names.
func (a Attributes) Names() []string {
	return slices.Sorted(maps.Keys(a))
}

// FormatAttributes returns the attributes in a stable "name=value" form.
func FormatAttributes(a Attributes) string {
	parts := make([]string, 0, len(a))
	for _, name := range a.Names() {
		parts = append(parts, name+"="+a[name].String())
	}
	return strings.Join(parts, ", ")
}

// IntsAs converts the ints attribute to a slice of another integer type. It returns nil if the
// attribute is not set.
func IntsAs[T constraints.Integer](a Attributes, name string) []T {
	values := a.Ints(name)
	if values == nil {
		return nil
	}
	converted := make([]T, len(values))
	for i, v := range values {
		converted[i] = T(v)
	}
	return converted
}
