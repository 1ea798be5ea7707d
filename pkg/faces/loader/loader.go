// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package loader converts a faces.Dataset into batches of tensors: it implements train.Dataset,
// so it can be fed to GoMLX trainers, evaluators and to the embeddings extraction.
//
// Each batch yields one input, the images shaped `[batch_size, height, width, 3]` (Float32, values
// in [0, 1], optionally normalized), and one label, shaped `[batch_size, label_size]` (Int64).
package loader

import (
	"image"
	"io"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Normalizer is implemented by transform pipelines that carry a normalization step, see
// transforms.Compose.
type Normalizer interface {
	Normalization() (mean, std []float64, ok bool)
}

// Loader yields batches of a faces.Dataset. It implements train.Dataset.
type Loader struct {
	ds             faces.Dataset
	batchSize      int
	dropIncomplete bool
	shuffle        bool
	rng            *rand.Rand
	mean, std      []float32
	parallelism    int

	mu    sync.Mutex
	order []int
	next  int
}

// New creates a Loader over ds, yielding batches of batchSize samples in the dataset order.
func New(ds faces.Dataset, batchSize int) *Loader {
	l := &Loader{
		ds:          ds,
		batchSize:   max(batchSize, 1),
		parallelism: runtime.NumCPU(),
	}
	l.Reset()
	return l
}

// DropIncomplete configures whether the last batch is dropped if it has fewer than batchSize samples.
func (l *Loader) DropIncomplete(drop bool) *Loader {
	l.dropIncomplete = drop
	return l
}

// Shuffle the order of the samples at every Reset, using the given seed.
func (l *Loader) Shuffle(seed uint64) *Loader {
	l.shuffle = true
	l.rng = rand.New(rand.NewPCG(seed, seed+1))
	l.Reset()
	return l
}

// Parallelism sets the number of images decoded in parallel. It defaults to the number of CPUs.
func (l *Loader) Parallelism(n int) *Loader {
	l.parallelism = max(n, 1)
	return l
}

// Normalize the image tensors with `(x - mean[c]) / std[c]` per channel c.
func (l *Loader) Normalize(mean, std []float64) *Loader {
	l.mean, l.std = make([]float32, 3), make([]float32, 3)
	for c := range 3 {
		l.mean[c], l.std[c] = float32(mean[c%len(mean)]), float32(std[c%len(std)])
	}
	return l
}

// NormalizeFrom takes the normalization of the transform pipeline, if it has one.
func (l *Loader) NormalizeFrom(n Normalizer) *Loader {
	if mean, std, ok := n.Normalization(); ok {
		l.Normalize(mean, std)
	}
	return l
}

// NumBatches returns the number of batches yielded per epoch.
func (l *Loader) NumBatches() int {
	n := l.ds.Len()
	if l.dropIncomplete {
		return n / l.batchSize
	}
	return (n + l.batchSize - 1) / l.batchSize
}

// NumSamples returns the number of samples yielded per epoch.
func (l *Loader) NumSamples() int {
	if l.dropIncomplete {
		return l.NumBatches() * l.batchSize
	}
	return l.ds.Len()
}

// Name implements train.Dataset.
func (l *Loader) Name() string { return l.ds.Name() }

// Reset implements train.Dataset. It restarts from the first batch, reshuffling if configured.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.ds.Len()
	if len(l.order) != n {
		l.order = make([]int, n)
	}
	for i := range l.order {
		l.order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) { l.order[i], l.order[j] = l.order[j], l.order[i] })
	}
	l.next = 0
}

// nextIndices returns the indices of the next batch, or io.EOF.
func (l *Loader) nextIndices() ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := len(l.order) - l.next
	if remaining == 0 || (l.dropIncomplete && remaining < l.batchSize) {
		return nil, io.EOF
	}
	size := min(remaining, l.batchSize)
	indices := slices.Clone(l.order[l.next : l.next+size])
	l.next += size
	return indices, nil
}

// NextBatch reads the samples of the next batch, decoding them in parallel.
// It returns io.EOF at the end of the epoch.
func (l *Loader) NextBatch() (images []image.Image, labels [][]int64, err error) {
	indices, err := l.nextIndices()
	if err != nil {
		return nil, nil, err
	}
	images = make([]image.Image, len(indices))
	labels = make([][]int64, len(indices))
	var g errgroup.Group
	g.SetLimit(l.parallelism)
	for i, idx := range indices {
		g.Go(func() error {
			sample, err := l.ds.Item(idx)
			if err != nil {
				return errors.WithMessagef(err, "reading %s sample #%d", l.ds.Name(), idx)
			}
			images[i], labels[i] = sample.Image, sample.Label
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, nil, err
	}
	return images, labels, nil
}

// Yield implements train.Dataset. The spec is nil.
func (l *Loader) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	images, labelRows, err := l.NextBatch()
	if err != nil {
		return nil, nil, nil, err
	}
	imagesT, err := l.ImagesToTensor(images)
	if err != nil {
		return nil, nil, nil, err
	}
	labelsT, err := LabelsToTensor(labelRows)
	if err != nil {
		imagesT.MustFinalizeAll()
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{imagesT}, []*tensors.Tensor{labelsT}, nil
}

// ImagesToTensor converts the images to a Float32 tensor shaped `[batch_size, height, width, 3]`,
// with values in [0, 1], normalized if configured.
//
// All images must have the same size.
func (l *Loader) ImagesToTensor(images []image.Image) (*tensors.Tensor, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to convert to tensor")
	}
	size := images[0].Bounds().Size()
	for i, img := range images[1:] {
		if img.Bounds().Size() != size {
			return nil, errors.Errorf("image #%d of the batch is %v, but image #0 is %v: "+
				"use a Resize or crop transform to make them the same size", i+1, img.Bounds().Size(), size)
		}
	}
	var t *tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		t = timage.ToTensor(dtypes.Float32).Batch(images)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "converting images to tensor")
	}
	if t == nil {
		return nil, errors.New("failed converting images to tensor")
	}
	if l.mean != nil {
		tensors.MustMutableFlatData[float32](t, func(flat []float32) {
			for i := range flat {
				c := i % 3
				flat[i] = (flat[i] - l.mean[c]) / l.std[c]
			}
		})
	}
	return t, nil
}

// LabelsToTensor converts the labels to an Int64 tensor shaped `[batch_size, label_size]`.
// All labels must have the same length.
func LabelsToTensor(labels [][]int64) (*tensors.Tensor, error) {
	if len(labels) == 0 {
		return nil, errors.New("no labels to convert to tensor")
	}
	labelSize := len(labels[0])
	flat := make([]int64, 0, len(labels)*labelSize)
	for i, label := range labels {
		if len(label) != labelSize {
			return nil, errors.Errorf("label #%d has size %d, but label #0 has size %d", i, len(label), labelSize)
		}
		flat = append(flat, label...)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(labels), labelSize), nil
}
