// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hdtf implements a dataset over frames extracted from the HDTF talking-face videos.
//
// Frames are PNG files stored one directory level below the frames directory, one subdirectory
// per video. They are split deterministically: the first 80% (in lexicographic path order) are
// the train split, the rest the test split. There are no labels, every frame has label [0].
package hdtf

import (
	"path/filepath"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BaseFolder of the frames under the datasets root, see DefaultFramesDir.
const BaseFolder = "hdtf/frames_xf"

// Options used to create the dataset.
type Options struct {
	// FramesDir is the directory with one subdirectory of PNG frames per video.
	FramesDir string

	// Split must be faces.Train or faces.Test.
	Split faces.Split

	// Transform applied to the frames, if not nil.
	Transform faces.Transform
}

// DefaultFramesDir returns the frames directory under the given datasets root.
func DefaultFramesDir(root string) string {
	return filepath.Join(root, BaseFolder)
}

// Dataset of HDTF frames. It implements faces.Dataset.
type Dataset struct {
	opts  Options
	files []string
	total int
}

var _ faces.Dataset = (*Dataset)(nil)

// New scans opts.FramesDir for frames and selects the ones of the split.
//
// It returns an error wrapping faces.ErrValue for splits other than train and test, and
// faces.ErrIntegrity if the frames directory doesn't exist.
func New(opts Options) (*Dataset, error) {
	if opts.Split != faces.Train && opts.Split != faces.Test {
		return nil, errors.Wrapf(faces.ErrValue, "HDTF only has train and test splits, got %s", opts.Split)
	}
	dir, err := fsutil.ReplaceTildeInDir(opts.FramesDir)
	if err != nil {
		return nil, err
	}
	isDir, err := fsutil.IsDir(dir)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, errors.Wrapf(faces.ErrIntegrity, "HDTF frames directory %q not found", dir)
	}
	files, err := fsutil.GlobOneLevel(dir, "*.png")
	if err != nil {
		return nil, errors.WithMessagef(err, "scanning HDTF frames in %q", dir)
	}
	if len(files) == 0 {
		klog.Warningf("No HDTF frames found in %q", dir)
	}
	cut := SplitPoint(len(files))
	ds := &Dataset{opts: opts, total: len(files)}
	if opts.Split == faces.Train {
		ds.files = files[:cut]
	} else {
		ds.files = files[cut:]
	}
	klog.V(1).Infof("HDTF split %s: %d of %d frames", opts.Split, len(ds.files), len(files))
	return ds, nil
}

// SplitPoint returns the number of frames in the train split, floor(0.8 * total).
func SplitPoint(total int) int {
	return total * 8 / 10
}

// Name implements faces.Dataset.
func (ds *Dataset) Name() string { return "hdtf-" + ds.opts.Split.String() }

// Len implements faces.Dataset.
func (ds *Dataset) Len() int { return len(ds.files) }

// Total number of frames discovered, in both splits.
func (ds *Dataset) Total() int { return ds.total }

// Files of the frames in the split.
func (ds *Dataset) Files() []string { return ds.files }

// Item implements faces.Dataset.
func (ds *Dataset) Item(i int) (faces.Sample, error) {
	if i < 0 || i >= len(ds.files) {
		return faces.Sample{}, errors.Errorf("index %d out of range for %s with %d frames", i, ds.Name(), len(ds.files))
	}
	img, err := faces.LoadRGB(ds.files[i])
	if err != nil {
		return faces.Sample{}, err
	}
	sample := faces.Sample{Image: img, Label: []int64{0}}
	if ds.opts.Transform != nil {
		sample.Image = ds.opts.Transform.Apply(sample.Image)
	}
	return sample, nil
}
