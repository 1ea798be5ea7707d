// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"image"
	"io"
	"testing"

	"github.com/gomlx/diffae/pkg/faces/facestest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeDataset(n int) *facestest.Dataset {
	ds := &facestest.Dataset{Width: 4, Height: 2}
	for i := range n {
		ds.Grays = append(ds.Grays, uint8(i*10))
		ds.Labels = append(ds.Labels, []int64{int64(i), int64(i % 2)})
	}
	return ds
}

// collect yields until io.EOF, returning the first pixel of each image and the first label column.
func collect(t *testing.T, ds train.Dataset) (batchSizes []int, pixels []float32, labels []int64) {
	for {
		_, inputs, labelsT, err := ds.Yield()
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		require.Len(t, labelsT, 1)
		dims := inputs[0].Shape().Dimensions
		require.Equal(t, dtypes.Float32, inputs[0].DType())
		require.Equal(t, []int{dims[0], 2, 4, 3}, dims)
		batchSizes = append(batchSizes, dims[0])
		flat := tensors.MustCopyFlatData[float32](inputs[0])
		for b := range dims[0] {
			pixels = append(pixels, flat[b*2*4*3])
		}
		require.Equal(t, []int{dims[0], 2}, labelsT[0].Shape().Dimensions)
		flatLabels := tensors.MustCopyFlatData[int64](labelsT[0])
		for b := range dims[0] {
			labels = append(labels, flatLabels[2*b])
		}
		inputs[0].MustFinalizeAll()
		labelsT[0].MustFinalizeAll()
	}
}

func TestLoader(t *testing.T) {
	l := New(newFakeDataset(5), 2)
	var _ train.Dataset = l
	assert.Equal(t, 3, l.NumBatches())
	assert.Equal(t, 5, l.NumSamples())

	sizes, pixels, labels := collect(t, l)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, labels)
	require.Len(t, pixels, 5)
	assert.InDelta(t, 40.0/255.0, pixels[4], 1e-6)

	// Exhausted until Reset.
	_, _, _, err := l.Yield()
	assert.Equal(t, io.EOF, err)
	l.Reset()
	sizes, _, _ = collect(t, l)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestLoaderDropIncompleteAndShuffle(t *testing.T) {
	l := New(newFakeDataset(7), 3).DropIncomplete(true).Shuffle(42).Parallelism(2)
	assert.Equal(t, 2, l.NumBatches())
	assert.Equal(t, 6, l.NumSamples())
	sizes, _, labels := collect(t, l)
	assert.Equal(t, []int{3, 3}, sizes)
	seen := map[int64]bool{}
	for _, label := range labels {
		assert.False(t, seen[label], "label %d yielded twice", label)
		seen[label] = true
	}
}

func TestLoaderNormalize(t *testing.T) {
	l := New(newFakeDataset(2), 2).Normalize([]float64{0.5}, []float64{0.5})
	_, pixels, _ := collect(t, l)
	assert.InDelta(t, -1.0, pixels[0], 1e-6)
	assert.InDelta(t, (10.0/255.0-0.5)/0.5, pixels[1], 1e-6)
}

func TestLoaderErrors(t *testing.T) {
	_, err := LabelsToTensor([][]int64{{1, 2}, {1}})
	require.Error(t, err)

	ds := newFakeDataset(2)
	l := New(ds, 2)
	img0, _ := ds.Item(0)
	other := &facestest.Dataset{Width: 3, Height: 3, Grays: []uint8{0}, Labels: [][]int64{{0}}}
	img1, _ := other.Item(0)
	_, err = l.ImagesToTensor([]image.Image{img0.Image, img1.Image})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Resize")
}
