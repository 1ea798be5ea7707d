// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	exists, err := FileExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, MustFileExists(dir))

	isDir, err := IsDir(dir)
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestReplaceTildeInDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err := ReplaceTildeInDir("~/datasets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "datasets"), got)
	assert.Equal(t, "./datasets", MustReplaceTildeInDir("./datasets"))
}

func TestGlobOneLevel(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"top.png", "b/2.png", "a/1.png", "a/0.png", "a/deep/x.png", "a/skip.jpg"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte{0}, 0o644))
	}
	files, err := GlobOneLevel(dir, "*.png")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a", "0.png"), files[0])
	assert.Equal(t, filepath.Join(dir, "a", "1.png"), files[1])
	assert.Equal(t, filepath.Join(dir, "b", "2.png"), files[2])
}
