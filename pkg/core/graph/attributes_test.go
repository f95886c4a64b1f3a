// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributes(t *testing.T) {
	attrs := Attributes{
		"kernel_shape": IntsAttr(3, 3),
		"ceil_mode":    IntAttr(0),
		"alpha":        FloatAttr(0.5),
		"auto_pad":     StringAttr("VALID"),
		"params":       FloatsAttr(0, float32(math.Inf(1))),
	}
	assert.True(t, attrs.Has("ceil_mode"))
	assert.False(t, attrs.Has("strides"))
	assert.Equal(t, int64(0), attrs.Int("ceil_mode", 7))
	assert.Equal(t, int64(7), attrs.Int("strides", 7))
	assert.Equal(t, int64(7), attrs.Int("alpha", 7), "wrong type returns the default")
	assert.Equal(t, []int64{3, 3}, attrs.Ints("kernel_shape"))
	assert.Nil(t, attrs.Ints("pads"))
	assert.Equal(t, float32(0.5), attrs.Float("alpha", 1))
	assert.Equal(t, float32(1), attrs.Float("beta", 1))
	assert.Equal(t, "VALID", attrs.String("auto_pad", "NOTSET"))
	assert.Equal(t, "NOTSET", attrs.String("pad_mode", "NOTSET"))
	assert.Len(t, attrs.Floats("params"), 2)
	assert.Equal(t, []int{3, 3}, IntsAs[int](attrs, "kernel_shape"))
	assert.Nil(t, IntsAs[int32](attrs, "pads"))
	assert.Equal(t, []string{"alpha", "auto_pad", "ceil_mode", "kernel_shape", "params"}, attrs.Names())
	assert.Equal(t, `alpha=0.5, auto_pad="VALID", ceil_mode=0, kernel_shape=[3 3], params=[0 +Inf]`,
		FormatAttributes(attrs))
}

func TestAttributesCloneAndMerge(t *testing.T) {
	attrs := Attributes{"kernel_shape": IntsAttr(3, 3), "ceil_mode": IntAttr(0)}
	clone := attrs.Clone()
	clone["kernel_shape"].Ints[0] = 1
	assert.Equal(t, []int64{3, 3}, attrs.Ints("kernel_shape"), "Clone must be deep")
	assert.True(t, attrs.Equal(Attributes{"kernel_shape": IntsAttr(3, 3), "ceil_mode": IntAttr(0)}))
	assert.False(t, attrs.Equal(clone))
	assert.Nil(t, Attributes(nil).Clone())

	merged := attrs.Merge(Attributes{"ceil_mode": IntAttr(1), "activation": StringAttr("Relu")})
	assert.Equal(t, int64(1), merged.Int("ceil_mode", 0), "values of the argument win")
	assert.Equal(t, "Relu", merged.String("activation", ""))
	assert.Equal(t, int64(0), attrs.Int("ceil_mode", -1), "Merge doesn't change the receiver")
	assert.Len(t, Attributes(nil).Merge(attrs), 2)

	assert.False(t, IntAttr(1).Equal(FloatAttr(1)))
	assert.True(t, FloatsAttr(1, 2).Equal(FloatsAttr(1, 2)))
	assert.Equal(t, "undefined", AttrUndefined.String())
	assert.Equal(t, "<undefined>", Attribute{}.String())
}
