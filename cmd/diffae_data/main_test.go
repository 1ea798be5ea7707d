// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/diffae/pkg/config"
	"github.com/gomlx/diffae/pkg/data/tables"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/faces/facestest"
	"github.com/gomlx/diffae/pkg/faces/hdtf"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command line with args, returning its output and the loaded configuration.
func run(t *testing.T, args ...string) (string, *config.Config, error) {
	var cfg *config.Config
	root := newRootCmd(&cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), cfg, err
}

func createFrames(t *testing.T, root string, n int) {
	for i := range n {
		facestest.WriteImage(t, filepath.Join(hdtf.DefaultFramesDir(root), "clip", fmt.Sprintf("%03d.png", i)), 16, 12, uint8(8*i))
	}
}

func TestStatsCommand(t *testing.T) {
	root := t.TempDir()
	createFrames(t, root, 10)
	out, cfg, err := run(t, "--data_root", root, "--dataset", "hdtf", "--split", "test", "stats")
	require.NoError(t, err)
	assert.Equal(t, faces.Test, cfg.Dataset.Split)
	assert.Contains(t, out, "hdtf-test")
	assert.Contains(t, out, "16x12")

	// hdtf has no attributes to plot.
	_, _, err = run(t, "--data_root", root, "--dataset", "hdtf", "stats", "--plot", filepath.Join(root, "attrs.png"))
	assert.True(t, errors.Is(err, faces.ErrValue))
}

func TestCheckCommand(t *testing.T) {
	root := t.TempDir()
	_, _, err := run(t, "--data_root", root, "--dataset", "hdtf", "check")
	assert.True(t, errors.Is(err, faces.ErrIntegrity))

	createFrames(t, root, 3)
	out, _, err := run(t, "--data_root", root, "--dataset", "hdtf", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "3 frames")

	out, _, err = run(t, "--data_root", root, "--dataset", "celebahq", "check")
	assert.True(t, errors.Is(err, faces.ErrIntegrity))
	assert.Contains(t, out, "list_eval_partition.txt")
	assert.Contains(t, out, "missing")

	_, _, err = run(t, "--data_root", root, "--dataset", "ffhq", "check")
	assert.True(t, errors.Is(err, faces.ErrNotImplemented))
}

func TestConfigAndSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := fmt.Sprintf("general: {data_root: %q}\ndataset: {name: hdtf, split: test}\nbatch_size: 8\n", dir)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	createFrames(t, dir, 5)

	_, cfg, err := run(t, "--config", path, "--set", "batch_size=4;split=train", "check")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.General.DataRoot)
	assert.Equal(t, "hdtf", cfg.Dataset.Name)
	assert.Equal(t, faces.Train, cfg.Dataset.Split)
	assert.Equal(t, 4, cfg.BatchSize)

	// Flags take precedence over the file.
	_, cfg, err = run(t, "--config", path, "--dataset", "celeba", "--no_download", "stats")
	require.Error(t, err)
	assert.Equal(t, "celeba", cfg.Dataset.Name)
	assert.Equal(t, faces.Test, cfg.Dataset.Split)
	assert.False(t, cfg.Dataset.Download)
	assert.True(t, errors.Is(err, faces.ErrIntegrity))
}

func TestAttributeStats(t *testing.T) {
	table := &tables.Table{
		Header: []string{"Smiling", "Young", "Bald"},
		Index:  []string{"0.jpg", "1.jpg", "2.jpg", "3.jpg"},
		Data:   [][]int64{{1, 1, 0}, {0, 1, 0}, {1, 1, 0}, {0, 1, 1}},
	}
	stats := attributeStats(table.DataFrame("image_id"))
	require.Len(t, stats, 3)
	assert.Equal(t, attrStat{Name: "Young", Positives: 4, Fraction: 1}, stats[0])
	assert.Equal(t, attrStat{Name: "Smiling", Positives: 2, Fraction: 0.5}, stats[1])
	assert.Equal(t, attrStat{Name: "Bald", Positives: 1, Fraction: 0.25}, stats[2])

	plotPath := filepath.Join(t.TempDir(), "attributes.png")
	require.NoError(t, plotAttributes("test", stats, plotPath))
	info, err := os.Stat(plotPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://x", databaseURL("postgres://x"))
	t.Setenv("POSTGRES_HOST", "")
	assert.Equal(t, "postgres://localhost:5432/diffae", databaseURL(""))
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "faces")
	t.Setenv("POSTGRES_PORT", "")
	assert.Equal(t, "postgres://u:p@db:5432/faces", databaseURL(""))
}
