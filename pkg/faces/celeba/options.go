// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package celeba

import (
	"context"
	"path/filepath"

	"github.com/gomlx/diffae/pkg/data/downloader"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options used to create the CelebA and CelebA-HQ datasets.
type Options struct {
	// Root directory of the datasets: the files of each dataset are stored in a base folder under it.
	Root string

	// Split to use.
	Split faces.Split

	// TargetTypes of the label, concatenated in the order given.
	TargetTypes []faces.TargetType

	// Transform applied to the images, if not nil.
	Transform faces.Transform

	// TargetTransform applied to the labels, if not nil. It requires TargetTypes.
	TargetTransform faces.TargetTransform

	// Download the files that are missing.
	Download bool

	// Downloader used if Download is set. If nil, downloader.New() is used.
	Downloader *downloader.Downloader
}

// Validate the options and returns the base directory of the dataset.
func (opts *Options) Validate(baseFolder string) (baseDir string, err error) {
	if len(opts.TargetTypes) == 0 && opts.TargetTransform != nil {
		return "", errors.Wrap(faces.ErrConfiguration, "target transform is specified but no target type is given")
	}
	if opts.Split < faces.Train || opts.Split > faces.All {
		return "", errors.Wrapf(faces.ErrValue, "invalid split %s", opts.Split)
	}
	root, err := fsutil.ReplaceTildeInDir(opts.Root)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, baseFolder), nil
}

// CheckIntegrity returns whether every non-archive file is present in baseDir with the expected
// checksum, and whether the extracted imageDir (relative to baseDir) exists.
func CheckIntegrity(baseDir string, files []downloader.File, imageDir string) bool {
	for _, f := range files {
		if f.IsArchive() {
			continue
		}
		if !downloader.CheckIntegrity(filepath.Join(baseDir, f.Name), f.Checksum) {
			klog.V(1).Infof("integrity check failed for %q", f.Name)
			return false
		}
	}
	isDir, err := fsutil.IsDir(filepath.Join(baseDir, imageDir))
	return err == nil && isDir
}

// Prepare downloads the dataset files if requested and missing, and then verifies their integrity.
//
// It returns an error wrapping faces.ErrIntegrity if the files are missing or corrupted.
func (opts *Options) Prepare(ctx context.Context, baseDir string, files []downloader.File, imageDir string) error {
	if opts.Download {
		if CheckIntegrity(baseDir, files, imageDir) {
			klog.Infof("Files already downloaded and verified")
		} else {
			d := opts.Downloader
			if d == nil {
				d = downloader.New()
			}
			if err := d.DownloadAll(ctx, baseDir, files); err != nil {
				return errors.WithMessagef(err, "downloading dataset into %q", baseDir)
			}
		}
	}
	if !CheckIntegrity(baseDir, files, imageDir) {
		return errors.Wrapf(faces.ErrIntegrity,
			"Dataset not found or corrupted in %q. You can use download=true to download it", baseDir)
	}
	return nil
}

// ApplyTransforms applies the image and target transforms of the options to the sample.
func (opts *Options) ApplyTransforms(sample faces.Sample) faces.Sample {
	if opts.Transform != nil {
		sample.Image = opts.Transform.Apply(sample.Image)
	}
	if len(opts.TargetTypes) > 0 && opts.TargetTransform != nil {
		sample.Label = opts.TargetTransform(sample.Label)
	}
	return sample
}

// AttrToBinary maps the {-1, 1} attribute encoding to {0, 1}, with floor((v+1)/2), in place.
func AttrToBinary(rows [][]int64) {
	for _, row := range rows {
		for j, v := range row {
			row[j] = floorDiv(v+1, 2)
		}
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// UnknownTargetError returns the error for target types not supported by a dataset.
func UnknownTargetError(tt faces.TargetType) error {
	return errors.Wrapf(faces.ErrValue, "Target type %q is not recognized.", string(tt))
}
