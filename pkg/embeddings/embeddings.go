// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package embeddings precomputes the feature vectors of a dataset of images with an Encoder,
// and serves them as a dataset of (feature, label) pairs.
//
// The extraction is a single pass over a batched source (see package loader): every batch is
// encoded in inference mode, the features are copied to host memory, and the device buffers are
// freed. The result can be cached to disk (Save, Load, NewCached) and used as a drop-in replacement
// for the images dataset in training (InMemory).
package embeddings

import (
	"io"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Dataset of precomputed features and their labels: the i-th feature and label correspond to the
// i-th image yielded by the source used to create it. It is read-only after creation.
type Dataset struct {
	name                 string
	featureDim, labelDim int
	features, labels     []float32
}

type config struct {
	progressBar bool
}

// Option for New.
type Option func(*config)

// WithProgressBar enables or disables the progress bar. It is enabled by default.
func WithProgressBar(enabled bool) Option {
	return func(c *config) { c.progressBar = enabled }
}

// Batcher is optionally implemented by the source to inform the number of batches, used in the
// progress bar.
type Batcher interface {
	NumBatches() int
}

// New creates the embeddings dataset by encoding every image of source with encoder.
//
// The source must yield one input (the images batch) and one label tensor per batch. It is Reset
// before extraction and consumed until io.EOF. The encoder runs in inference mode
// (context.Context.SetTraining(false)) on the given backend. If ctx is nil a new one is created.
//
// Any error (from the source or the encoder) aborts the extraction: there are no retries.
func New(backend backends.Backend, ctx *context.Context, source train.Dataset, encoder Encoder, opts ...Option) (*Dataset, error) {
	cfg := &config{progressBar: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if ctx == nil {
		ctx = context.New()
	}
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, images *Node) *Node {
		ctx.SetTraining(images.Graph(), false)
		features := encoder.Encode(ctx, images)
		features = ConvertDType(features, dtypes.Float32)
		if features.Rank() != 2 {
			batchSize := features.Shape().Dimensions[0]
			features = Reshape(features, batchSize, features.Shape().Size()/batchSize)
		}
		return features
	})
	if err != nil {
		return nil, errors.WithMessage(err, "creating the encoder executor")
	}
	defer exec.Finalize()

	var bar *progressbar.ProgressBar
	if cfg.progressBar {
		total := -1
		if b, ok := source.(Batcher); ok {
			total = b.NumBatches()
		}
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Extracting features..."),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		defer func() { _ = bar.Close() }()
	}

	ds := &Dataset{name: source.Name()}
	source.Reset()
	for batchIdx := 0; ; batchIdx++ {
		_, inputs, labels, err := source.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "reading batch #%d of %q", batchIdx, source.Name())
		}
		err = ds.appendBatch(exec, inputs, labels)
		for _, t := range append(inputs, labels...) {
			t.MustFinalizeAll()
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "encoding batch #%d of %q", batchIdx, source.Name())
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	klog.V(1).Infof("extracted %d features of dimension %d from %q", ds.Len(), ds.featureDim, ds.name)
	return ds, nil
}

// appendBatch encodes the images and appends the features and labels to the dataset.
func (ds *Dataset) appendBatch(exec *context.Exec, inputs, labels []*tensors.Tensor) error {
	if len(inputs) != 1 || len(labels) != 1 {
		return errors.Errorf("expected 1 input and 1 label per batch, got %d inputs and %d labels", len(inputs), len(labels))
	}
	var outputs []*tensors.Tensor
	err := exceptions.TryCatch[error](func() { outputs = exec.MustExec(inputs[0]) })
	if err != nil {
		return err
	}
	features := outputs[0]
	defer features.MustFinalizeAll()
	batchSize, featureDim := features.Shape().Dimensions[0], features.Shape().Dimensions[1]
	if ds.featureDim == 0 {
		ds.featureDim = featureDim
	} else if ds.featureDim != featureDim {
		return errors.Errorf("encoder returned %d features, but previous batches had %d", featureDim, ds.featureDim)
	}
	labelsFlat, err := toFloat32(labels[0])
	if err != nil {
		return err
	}
	labelBatch := 1
	if labels[0].Rank() > 0 {
		labelBatch = labels[0].Shape().Dimensions[0]
	}
	if labelBatch != batchSize {
		return errors.Errorf("batch has %d images but %d labels", batchSize, labelBatch)
	}
	labelDim := len(labelsFlat) / max(batchSize, 1)
	if len(ds.features) == 0 {
		ds.labelDim = labelDim
	} else if ds.labelDim != labelDim {
		return errors.Errorf("labels have dimension %d, but previous batches had %d", labelDim, ds.labelDim)
	}
	// Copying the flat data transfers the features to host memory.
	tensors.MustConstFlatData[float32](features, func(flat []float32) {
		ds.features = append(ds.features, flat...)
	})
	ds.labels = append(ds.labels, labelsFlat...)
	return nil
}

// toFloat32 returns the contents of the tensor converted to float32.
func toFloat32(t *tensors.Tensor) (flat []float32, err error) {
	convert := func(n int, get func(i int) float32) {
		flat = make([]float32, n)
		for i := range flat {
			flat[i] = get(i)
		}
	}
	switch t.DType() {
	case dtypes.Float32:
		flat = tensors.MustCopyFlatData[float32](t)
	case dtypes.Float64:
		tensors.MustConstFlatData[float64](t, func(v []float64) { convert(len(v), func(i int) float32 { return float32(v[i]) }) })
	case dtypes.Int64:
		tensors.MustConstFlatData[int64](t, func(v []int64) { convert(len(v), func(i int) float32 { return float32(v[i]) }) })
	case dtypes.Int32:
		tensors.MustConstFlatData[int32](t, func(v []int32) { convert(len(v), func(i int) float32 { return float32(v[i]) }) })
	default:
		err = errors.Errorf("labels with dtype %s are not supported", t.DType())
	}
	return
}

// Name of the dataset the features were extracted from.
func (ds *Dataset) Name() string { return ds.name }

// Len returns the number of samples.
func (ds *Dataset) Len() int {
	if ds.featureDim == 0 {
		return 0
	}
	return len(ds.features) / ds.featureDim
}

// FeatureDim returns the dimension of the feature vectors.
func (ds *Dataset) FeatureDim() int { return ds.featureDim }

// LabelDim returns the dimension of the labels.
func (ds *Dataset) LabelDim() int { return ds.labelDim }

// Item returns the feature vector and the label (as float32) of the i-th sample.
// The returned slices share the dataset storage and must not be modified.
func (ds *Dataset) Item(i int) (feature, label []float32, err error) {
	if i < 0 || i >= ds.Len() {
		return nil, nil, errors.Errorf("index %d out of range for embeddings of %q with %d samples", i, ds.name, ds.Len())
	}
	fStart, lStart := i*ds.featureDim, i*ds.labelDim
	return ds.features[fStart : fStart+ds.featureDim : fStart+ds.featureDim],
		ds.labels[lStart : lStart+ds.labelDim : lStart+ds.labelDim], nil
}

// Tensors returns the features shaped `[num_samples, feature_dim]` and labels shaped
// `[num_samples, label_dim]` as new tensors, owned by the caller.
func (ds *Dataset) Tensors() (features, labels *tensors.Tensor) {
	features = tensors.FromFlatDataAndDimensions(ds.features, ds.Len(), ds.featureDim)
	labels = tensors.FromFlatDataAndDimensions(ds.labels, ds.Len(), ds.labelDim)
	return
}

// FromData creates a dataset from per-sample features and labels. All features must have the same
// dimension, and so must all labels.
func FromData(name string, features, labels [][]float32) (*Dataset, error) {
	if len(features) != len(labels) {
		return nil, errors.Errorf("%d features but %d labels", len(features), len(labels))
	}
	ds := &Dataset{name: name}
	for i := range features {
		if i == 0 {
			ds.featureDim, ds.labelDim = len(features[0]), len(labels[0])
			if ds.featureDim == 0 {
				return nil, errors.New("features cannot be empty")
			}
		}
		if len(features[i]) != ds.featureDim || len(labels[i]) != ds.labelDim {
			return nil, errors.Errorf("sample #%d has feature/label dimensions %d/%d, expected %d/%d",
				i, len(features[i]), len(labels[i]), ds.featureDim, ds.labelDim)
		}
		ds.features = append(ds.features, features[i]...)
		ds.labels = append(ds.labels, labels[i]...)
	}
	return ds, nil
}
