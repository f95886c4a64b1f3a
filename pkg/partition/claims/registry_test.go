// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package claims

import (
	"testing"

	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireViolation(t *testing.T, err error, kind error, node graph.NodeIndex) *Violation {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var v *Violation
	require.True(t, errors.As(err, &v), "expected a *Violation, got %T: %v", err, err)
	assert.Equal(t, node, v.Node)
	return v
}

func TestInsertDuplicate(t *testing.T) {
	r := NewRegistry()
	c := r.NewClaim()
	require.NoError(t, r.Insert(c, 5))
	err := r.Insert(c, 5)
	v := requireViolation(t, err, ErrDuplicateNode, 5)
	assert.Equal(t, c.ID(), v.Claim)
	assert.Contains(t, err.Error(), "#5")
	assert.Equal(t, []graph.NodeIndex{5}, c.Nodes(), "failed insertion leaves the claim unchanged")
}

func TestSingleOwner(t *testing.T) {
	r := NewRegistry()
	a, err := r.Request(1)
	require.NoError(t, err)
	b := r.NewClaim()
	v := requireViolation(t, r.Insert(b, 1), ErrNodeAlreadyClaimed, 1)
	assert.Equal(t, a.ID(), v.Claim)
	_, err = r.Request(1)
	requireViolation(t, err, ErrNodeAlreadyClaimed, 1)

	require.NoError(t, r.Insert(b, 2))
	assert.Same(t, a, r.ClaimOf(1))
	assert.Same(t, b, r.ClaimOf(2))
	assert.Nil(t, r.ClaimOf(3))
	assert.True(t, r.IsClaimed(2))
	assert.False(t, r.IsClaimed(3))
	assert.Equal(t, 2, r.NumClaimed())
}

func TestExtend(t *testing.T) {
	r := NewRegistry()
	pool, err := r.Request(0)
	require.NoError(t, err)
	c, err := r.Extend(0, 1)
	require.NoError(t, err)
	assert.Same(t, pool, c)
	assert.Equal(t, []graph.NodeIndex{0, 1}, pool.Nodes())
	assert.Same(t, pool, r.ClaimOf(1))

	_, err = r.Extend(7, 8)
	v := requireViolation(t, err, ErrFusionTargetNotClaimed, 8)
	assert.Equal(t, -1, v.Claim)
	assert.False(t, r.IsClaimed(8))

	_, err = r.Extend(0, 1)
	requireViolation(t, err, ErrDuplicateNode, 1)
}

func TestDecisions(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, Undecided, r.Decision(3))
	assert.False(t, r.IsDecided(3))
	require.NoError(t, r.Decide(3, true))
	require.NoError(t, r.Decide(3, true), "same decision again is fine")
	assert.Equal(t, Accepted, r.Decision(3))
	requireViolation(t, r.Decide(3, false), ErrConflictingDecision, 3)
	assert.Equal(t, Accepted, r.Decision(3), "conflicting decision doesn't overwrite")

	require.NoError(t, r.Decide(4, false))
	assert.Equal(t, Rejected, r.Decision(4))
	assert.True(t, r.IsDecided(4))
	assert.Equal(t, 2, r.NumDecided())
	assert.Equal(t, "Rejected", Rejected.String())
}

func TestClaims(t *testing.T) {
	r := NewRegistry()
	_ = r.NewClaim() // Left empty.
	c1, err := r.Request(4)
	require.NoError(t, err)
	c2, err := r.Request(2)
	require.NoError(t, err)
	c2.MetaDef = &MetaDef{
		Name:         "xnnpack_pool_Relu",
		OpType:       "AveragePool",
		SinceVersion: 11,
		Inputs:       []string{"X"},
		Outputs:      []string{"Y"},
		Attributes:   graph.Attributes{"activation": graph.StringAttr("Relu")},
	}
	claims := r.Claims()
	require.Len(t, claims, 2, "empty claims are not listed")
	assert.Same(t, c1, claims[0])
	assert.Same(t, c2, claims[1])
	assert.Equal(t, "claim 1 [4]", c1.String())
	assert.Equal(t, `claim 2 [2] fused as xnnpack_pool_Relu:AveragePool(v11)[activation="Relu"] (X) -> (Y)`, c2.String())
}
