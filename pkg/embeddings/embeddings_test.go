// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/faces/facestest"
	"github.com/gomlx/diffae/pkg/faces/loader"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/simplego"
)

// meanColor encodes each image as its mean RGB color.
var meanColor = EncoderFn(func(_ *context.Context, images *Node) *Node {
	return ReduceMean(images, 1, 2)
})

func newSource(n int) *facestest.Dataset {
	ds := &facestest.Dataset{Width: 4, Height: 3}
	for i := range n {
		ds.Grays = append(ds.Grays, uint8(i*10))
		ds.Labels = append(ds.Labels, []int64{int64(i), int64(i % 2)})
	}
	return ds
}

func TestNew(t *testing.T) {
	backend := backends.MustNew()
	ds, err := New(backend, nil, loader.New(newSource(5), 2), meanColor, WithProgressBar(false))
	require.NoError(t, err)
	assert.Equal(t, "facestest", ds.Name())
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 3, ds.FeatureDim())
	assert.Equal(t, 2, ds.LabelDim())
	for i := range 5 {
		feature, label, err := ds.Item(i)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{float32(i*10) / 255, float32(i*10) / 255, float32(i*10) / 255}, feature, 1e-5)
		assert.Equal(t, []float32{float32(i), float32(i % 2)}, label)
	}
	_, _, err = ds.Item(5)
	require.Error(t, err)
}

// failingDataset fails reading one of its samples.
type failingDataset struct {
	*facestest.Dataset
	failAt int
}

func (ds failingDataset) Item(i int) (faces.Sample, error) {
	if i == ds.failAt {
		return faces.Sample{}, errors.New("corrupted image")
	}
	return ds.Dataset.Item(i)
}

func TestNewSourceError(t *testing.T) {
	backend := backends.MustNew()
	source := failingDataset{Dataset: newSource(4), failAt: 3}
	_, err := New(backend, nil, loader.New(source, 2), meanColor, WithProgressBar(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted image")
	assert.Contains(t, err.Error(), "batch #1")
}

func TestCache(t *testing.T) {
	backend := backends.MustNew()
	path := filepath.Join(t.TempDir(), "cache", "facestest.bin")
	builds := 0
	build := func() (*Dataset, error) {
		builds++
		return New(backend, nil, loader.New(newSource(3), 2), meanColor, WithProgressBar(false))
	}
	first, err := NewCached(path, build)
	require.NoError(t, err)
	second, err := NewCached(path, build)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Equal(t, first.Name(), second.Name())
	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.features, second.features)
	assert.Equal(t, first.labels, second.labels)

	mds, err := second.InMemory(backend, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, mds.NumExamples())

	_, err = Load(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
