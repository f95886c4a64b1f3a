// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"os"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The YAML description of a graph is meant for test fixtures and for the command line tools:
//
//	name: pool_relu
//	inputs:
//	  - {name: X, dtype: float32, shape: [N, 3, 8, 8]}
//	outputs: [Y]
//	initializers:
//	  - {name: clip_max, dtype: float32, dims: [], floats: [6]}
//	nodes:
//	  - name: pool
//	    op: AveragePool
//	    version: 11
//	    inputs: [X]
//	    outputs: [P]
//	    attributes:
//	      kernel_shape: {ints: [3, 3]}
//
// Shape dimensions are either integers or names of symbolic dimensions ("?" for an unnamed unknown
// dimension). Values listed under "values" only set the value info of intermediate tensors.

type yamlGraph struct {
	Name         string            `yaml:"name"`
	Inputs       []yamlValue       `yaml:"inputs"`
	Outputs      []string          `yaml:"outputs"`
	Initializers []yamlInitializer `yaml:"initializers"`
	Values       []yamlValue       `yaml:"values"`
	Nodes        []yamlNode        `yaml:"nodes"`
}

type yamlValue struct {
	Name  string `yaml:"name"`
	DType string `yaml:"dtype"`
	Shape []any  `yaml:"shape"`
}

type yamlInitializer struct {
	Name   string    `yaml:"name"`
	DType  string    `yaml:"dtype"`
	Dims   []int     `yaml:"dims"`
	Floats []float32 `yaml:"floats"`
	Ints   []int64   `yaml:"ints"`
}

type yamlNode struct {
	Name       string                   `yaml:"name"`
	Op         string                   `yaml:"op"`
	Domain     string                   `yaml:"domain"`
	Version    int                      `yaml:"version"`
	Backend    string                   `yaml:"backend"`
	Inputs     []string                 `yaml:"inputs"`
	Outputs    []string                 `yaml:"outputs"`
	Attributes map[string]yamlAttribute `yaml:"attributes"`
}

type yamlAttribute struct {
	I      *int64    `yaml:"i"`
	Ints   []int64   `yaml:"ints"`
	F      *float32  `yaml:"f"`
	Floats []float32 `yaml:"floats"`
	S      *string   `yaml:"s"`
}

var dtypeNames = map[string]dtypes.DType{
	"bool":    dtypes.Bool,
	"int8":    dtypes.Int8,
	"int16":   dtypes.Int16,
	"int32":   dtypes.Int32,
	"int64":   dtypes.Int64,
	"uint8":   dtypes.Uint8,
	"uint16":  dtypes.Uint16,
	"uint32":  dtypes.Uint32,
	"uint64":  dtypes.Uint64,
	"float16": dtypes.Float16,
	"float32": dtypes.Float32,
	"float64": dtypes.Float64,
}

// ParseDType converts a lower-case type name (e.g. "float32") to a DType.
func ParseDType(name string) (dtypes.DType, error) {
	if name == "" {
		return dtypes.InvalidDType, nil
	}
	dtype, found := dtypeNames[strings.ToLower(name)]
	if !found {
		return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

// LoadYAML reads a graph described in YAML from the file.
func LoadYAML(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read graph from %q", path)
	}
	g, err := ParseYAML(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "while parsing %q", path)
	}
	return g, nil
}

// ParseYAML builds a graph from its YAML description.
func ParseYAML(data []byte) (*Graph, error) {
	var desc yamlGraph
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal graph YAML")
	}
	g := New(desc.Name)
	for _, v := range desc.Inputs {
		info, err := v.tensorInfo()
		if err != nil {
			return nil, err
		}
		if err := g.AddInput(v.Name, info); err != nil {
			return nil, err
		}
	}
	for _, init := range desc.Initializers {
		dtype, err := ParseDType(init.DType)
		if err != nil {
			return nil, errors.WithMessagef(err, "initializer %q", init.Name)
		}
		dims := init.Dims
		if dims == nil {
			dims = []int{}
		}
		err = g.AddInitializer(Initializer{
			Name: init.Name, DType: dtype, Dims: dims, Floats: init.Floats, Ints: init.Ints})
		if err != nil {
			return nil, err
		}
	}
	for _, v := range desc.Values {
		info, err := v.tensorInfo()
		if err != nil {
			return nil, err
		}
		g.SetValueInfo(v.Name, info)
	}
	for _, n := range desc.Nodes {
		attrs := make(Attributes, len(n.Attributes))
		for name, a := range n.Attributes {
			attr, err := a.attribute()
			if err != nil {
				return nil, errors.WithMessagef(err, "node %q attribute %q", n.Name, name)
			}
			attrs[name] = attr
		}
		domain := n.Domain
		if domain == "ai.onnx" {
			domain = DomainONNX
		}
		_, err := g.AddNode(NodeDef{
			Name:         n.Name,
			OpType:       n.Op,
			Domain:       domain,
			SinceVersion: n.Version,
			Inputs:       n.Inputs,
			Outputs:      n.Outputs,
			Attributes:   attrs,
			Backend:      n.Backend,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, output := range desc.Outputs {
		if err := g.AddOutput(output); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (v yamlValue) tensorInfo() (TensorInfo, error) {
	dtype, err := ParseDType(v.DType)
	if err != nil {
		return TensorInfo{}, errors.WithMessagef(err, "value %q", v.Name)
	}
	info := TensorInfo{DType: dtype}
	if v.Shape == nil {
		return info, nil
	}
	info.Shape = make(Shape, len(v.Shape))
	for i, d := range v.Shape {
		switch dim := d.(type) {
		case int:
			info.Shape[i] = Dim{Value: dim}
		case string:
			if dim == "?" {
				info.Shape[i] = Dim{Value: -1}
			} else {
				info.Shape[i] = Dim{Param: dim}
			}
		default:
			return TensorInfo{}, errors.Errorf("value %q: invalid dimension #%d: %v", v.Name, i, d)
		}
	}
	return info, nil
}

func (a yamlAttribute) attribute() (Attribute, error) {
	var (
		attr  Attribute
		count int
	)
	if a.I != nil {
		attr = IntAttr(*a.I)
		count++
	}
	if a.Ints != nil {
		attr = IntsAttr(a.Ints...)
		count++
	}
	if a.F != nil {
		attr = FloatAttr(*a.F)
		count++
	}
	if a.Floats != nil {
		attr = FloatsAttr(a.Floats...)
		count++
	}
	if a.S != nil {
		attr = StringAttr(*a.S)
		count++
	}
	if count != 1 {
		return Attribute{}, errors.Errorf("exactly one of i, ints, f, floats or s must be set, got %d", count)
	}
	return attr, nil
}
