// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const example = `
general:
  device: "go"
  data_root: /data/faces
dataset:
  name: celebahq
  split: Test
  download: false
batch_size: 32
train:
  dataset:
    - name: Resize
      params: {size: 128}
    - name: D2CCrop
test:
  dataset:
    - {name: Resize, params: {size: [128, 96]}}
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(example), 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "go", cfg.General.Device)
	assert.Equal(t, "/data/faces", cfg.General.DataRoot)
	assert.Equal(t, "celebahq", cfg.Dataset.Name)
	assert.Equal(t, faces.Test, cfg.Dataset.Split)
	assert.False(t, cfg.Dataset.Download)
	assert.Equal(t, 32, cfg.BatchSize)

	train, err := cfg.Transforms(ModeTrain)
	require.NoError(t, err)
	require.Len(t, train, 2)
	assert.Equal(t, "Resize", train[0].Name)
	assert.Equal(t, 128, train[0].Params["size"])
	assert.Equal(t, "D2CCrop", train[1].Name)

	test, err := cfg.Transforms(ModeTest)
	require.NoError(t, err)
	require.Len(t, test, 1)
	assert.Equal(t, []any{128, 96}, test[0].Params["size"])

	_, err = cfg.Transforms("valid")
	assert.True(t, errors.Is(err, faces.ErrValue))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("dataset: {name: hdtf}"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDataRoot, cfg.General.DataRoot)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, faces.Train, cfg.Dataset.Split)
	assert.True(t, cfg.Dataset.Download)
	assert.Empty(t, cfg.Train.Dataset)
}

func TestParseErrors(t *testing.T) {
	for _, contents := range []string{
		"batch_size: 0",
		"dataset: {split: training}",
		"general: [1, 2]",
	} {
		_, err := Parse([]byte(contents))
		assert.Truef(t, errors.Is(err, faces.ErrConfiguration), "Parse(%q) returned %v", contents, err)
	}
}

func TestContextSettings(t *testing.T) {
	cfg := Default()
	ctx := cfg.Context()
	_, err := commandline.ParseContextSettings(ctx, "dataset=celeba;split=valid;batch_size=16")
	require.NoError(t, err)
	require.NoError(t, cfg.FromContext(ctx))
	assert.Equal(t, "celeba", cfg.Dataset.Name)
	assert.Equal(t, faces.Valid, cfg.Dataset.Split)
	assert.Equal(t, 16, cfg.BatchSize)

	_, err = commandline.ParseContextSettings(ctx, "split=everything")
	require.NoError(t, err)
	assert.True(t, errors.Is(cfg.FromContext(ctx), faces.ErrValue))
}
