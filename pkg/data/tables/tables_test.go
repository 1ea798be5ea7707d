// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "table.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAttributes(t *testing.T) {
	path := writeFile(t, "2\nSmiling  Young\n000001.jpg -1  1\n000002.jpg  1 -1\n\n")
	table, err := Load(path, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Smiling", "Young"}, table.Header)
	assert.Equal(t, []string{"000001.jpg", "000002.jpg"}, table.Index)
	assert.Equal(t, [][]int64{{-1, 1}, {1, -1}}, table.Data)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, 2, table.NumCols())

	df := table.DataFrame("image_id")
	assert.Equal(t, []string{"image_id", "Smiling", "Young"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []float64{-1, 1}, df.Col("Smiling").Float())
}

func TestLoadNoHeader(t *testing.T) {
	table, err := Load(writeFile(t, "000001.jpg 0\n000002.jpg 2\n"), NoHeader)
	require.NoError(t, err)
	assert.Empty(t, table.Header)
	assert.Equal(t, [][]int64{{0}, {2}}, table.Data)
	assert.Equal(t, []string{"image_id", "col_0"}, table.DataFrame("image_id").Names())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "a 1\nb x\n"), NoHeader)
	require.Error(t, err)
	_, err = Load(writeFile(t, "a 1\nb 1 2\n"), NoHeader)
	require.Error(t, err)
	_, err = Load(writeFile(t, "a 1\n"), 3)
	require.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), NoHeader)
	require.Error(t, err)
}

func TestLoadIDMap(t *testing.T) {
	path := writeFile(t, "idx orig_idx orig_file\n0 119613 119614.jpg\n1 99094 099095.jpg\n")
	idMap, err := LoadIDMap(path, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"119614.jpg": "0.jpg", "099095.jpg": "1.jpg"}, idMap)

	_, err = LoadIDMap(writeFile(t, "h\n0 1\n"), 0)
	require.Error(t, err)
}
