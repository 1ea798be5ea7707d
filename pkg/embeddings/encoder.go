// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"github.com/gomlx/gomlx/examples/inceptionv3"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Encoder builds the graph that computes one feature vector per image.
//
// images are shaped `[batch_size, height, width, 3]`, and the returned features must have the
// batch as the first axis: any other axes are flattened.
type Encoder interface {
	Encode(ctx *context.Context, images *Node) *Node
}

// EncoderFn implements Encoder with a function.
type EncoderFn func(ctx *context.Context, images *Node) *Node

// Encode implements Encoder.
func (fn EncoderFn) Encode(ctx *context.Context, images *Node) *Node { return fn(ctx, images) }

// InceptionV3 encodes images with the ImageNet pre-trained InceptionV3 model, mean pooled
// over the spatial axes into 2048 features.
type InceptionV3 struct {
	// WeightsDir where the pre-trained weights are downloaded to.
	WeightsDir string

	// ImageSize the images are resized to, if they are not already this size. It must be between 75 and 299.
	ImageSize int

	// MaxValue of the input images, 1.0 for images in [0, 1].
	MaxValue float64
}

// NewInceptionV3 creates the InceptionV3 encoder with images resized to 299x299 and values in [0, 1].
func NewInceptionV3(weightsDir string) *InceptionV3 {
	return &InceptionV3{WeightsDir: weightsDir, ImageSize: 299, MaxValue: 1.0}
}

// Prepare downloads the pre-trained weights, if not yet there.
func (e *InceptionV3) Prepare() error {
	if e.ImageSize < 75 || e.ImageSize > 299 {
		return errors.Errorf("InceptionV3 image size must be between 75 and 299, got %d", e.ImageSize)
	}
	return errors.WithMessage(inceptionv3.DownloadAndUnpackWeights(e.WeightsDir), "preparing InceptionV3 weights")
}

// Encode implements Encoder.
func (e *InceptionV3) Encode(ctx *context.Context, images *Node) *Node {
	dims := images.Shape().Clone().Dimensions
	if dims[1] != e.ImageSize || dims[2] != e.ImageSize {
		dims[1], dims[2] = e.ImageSize, e.ImageSize
		images = Interpolate(images, dims...).Done()
	}
	images = inceptionv3.PreprocessImage(images, e.MaxValue, timage.ChannelsLast)
	return inceptionv3.BuildGraph(ctx.In("inceptionv3"), images).
		SetPooling(inceptionv3.MeanPooling).
		ClassificationTop(false).
		PreTrained(e.WeightsDir).
		ChannelsAxis(timage.ChannelsLast).
		Trainable(false).
		Done()
}
