// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTilde(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)
	got, err := ReplaceTilde("~/graphs/model.yaml")
	require.NoError(t, err)
	assert.Equal(t, path.Join(usr.HomeDir, "graphs/model.yaml"), got)

	got, err = ReplaceTilde("graphs/model.yaml")
	require.NoError(t, err)
	assert.Equal(t, "graphs/model.yaml", got)

	_, err = ReplaceTilde("~no_such_user_for_sure/model.yaml")
	require.Error(t, err)
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("name: g\n"), 0o644))
	got, err := ResolveFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, filePath, got)

	_, err = ResolveFile(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "not found")
}
