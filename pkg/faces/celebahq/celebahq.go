// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package celebahq implements the CelebA-HQ dataset: 30,000 high-resolution (1024x1024) images
// selected from CelebA, distributed as part of CelebAMask-HQ.
//
// The train/valid/test splits are the ones of the original CelebA images, resolved through
// the CelebA-HQ to CelebA mapping table. Only the "attr" target type is supported.
package celebahq

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/diffae/pkg/data/downloader"
	"github.com/gomlx/diffae/pkg/data/tables"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/faces/celeba"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options used to create the dataset. They are the same as for CelebA.
type Options = celeba.Options

const (
	// BaseFolder under the datasets root.
	BaseFolder = "celebahq"

	// ImageDir with the extracted images, relative to the base folder.
	ImageDir = "CelebAMask-HQ/CelebA-HQ-img"

	// MappingFile maps the CelebA-HQ indices to the original CelebA file names.
	MappingFile = "CelebAMask-HQ/CelebA-HQ-to-CelebA-mapping.txt"

	// AttributesFile holds the attributes of the CelebA-HQ images.
	AttributesFile = "CelebAMask-HQ/CelebAMask-HQ-attribute-anno.txt"
)

// Files of the dataset. The partition table is the one of CelebA.
var Files = []downloader.File{
	{DriveID: "1badu11NqxGf6qM3PTTooQDJvQbejgbTv", Checksum: "b08032b342a8e0cf84c273db2b52eef3", Name: "CelebAMask-HQ.zip"},
	{DriveID: "0B7EVK8r0v71pY0NSMzRuSXJEVkk", Checksum: "d32c9cbf5e040fd4025c592c306e6668", Name: "list_eval_partition.txt"},
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Dataset of CelebA-HQ images. It implements faces.Dataset.
type Dataset struct {
	opts      Options
	baseDir   string
	filenames []string
	attr      [][]int64
	attrNames []string
}

var _ faces.Dataset = (*Dataset)(nil)

// New creates the CelebA-HQ dataset, downloading it first if opts.Download is set and the files
// are missing.
//
// For the faces.All split the attributes are not looked up, and are left all 0.
func New(ctx context.Context, opts Options) (*Dataset, error) {
	baseDir, err := opts.Validate(BaseFolder)
	if err != nil {
		return nil, err
	}
	if err = opts.Prepare(ctx, baseDir, Files, ImageDir); err != nil {
		return nil, err
	}

	splits, err := tables.Load(filepath.Join(baseDir, "list_eval_partition.txt"), tables.NoHeader)
	if err != nil {
		return nil, errors.WithMessage(err, "loading CelebA-HQ partitions")
	}
	idMap, err := tables.LoadIDMap(filepath.Join(baseDir, MappingFile), 0)
	if err != nil {
		return nil, errors.WithMessage(err, "loading CelebA-HQ mapping")
	}
	attr, err := tables.Load(filepath.Join(baseDir, AttributesFile), 1)
	if err != nil {
		return nil, errors.WithMessage(err, "loading CelebA-HQ attributes")
	}

	ds := &Dataset{opts: opts, baseDir: baseDir, attrNames: attr.Header}
	for row, original := range splits.Index {
		if opts.Split != faces.All && (len(splits.Data[row]) == 0 || splits.Data[row][0] != int64(opts.Split)) {
			continue
		}
		if hq, found := idMap[original]; found {
			ds.filenames = append(ds.filenames, hq)
		}
	}

	ds.attr = make([][]int64, len(ds.filenames))
	for i := range ds.attr {
		ds.attr[i] = make([]int64, attr.NumCols())
	}
	if opts.Split != faces.All {
		for i, filename := range ds.filenames {
			num, err := strconv.Atoi(nonDigits.ReplaceAllString(filename, ""))
			if err != nil || num >= attr.NumRows() {
				return nil, errors.Wrapf(faces.ErrIntegrity, "CelebA-HQ image %q has no attributes in %q (%d rows)",
					filename, AttributesFile, attr.NumRows())
			}
			copy(ds.attr[i], attr.Data[num])
		}
	}
	celeba.AttrToBinary(ds.attr)
	klog.V(1).Infof("CelebA-HQ split %s: %d images", opts.Split, len(ds.filenames))
	return ds, nil
}

// Name implements faces.Dataset.
func (ds *Dataset) Name() string { return "celebahq-" + ds.opts.Split.String() }

// Len implements faces.Dataset.
func (ds *Dataset) Len() int { return len(ds.filenames) }

// Filenames of the CelebA-HQ images in the split, in the order of the CelebA partition table.
func (ds *Dataset) Filenames() []string { return ds.filenames }

// AttrNames returns the names of the attributes.
func (ds *Dataset) AttrNames() []string { return ds.attrNames }

// Attr returns the attribute rows, aligned with Filenames.
func (ds *Dataset) Attr() [][]int64 { return ds.attr }

// AttrFrame returns the attributes as a DataFrame, with the file names in column "image_id".
func (ds *Dataset) AttrFrame() dataframe.DataFrame {
	t := &tables.Table{Header: ds.attrNames, Index: ds.filenames, Data: ds.attr}
	return t.DataFrame("image_id")
}

// Item implements faces.Dataset.
//
// It returns an error wrapping faces.ErrValue if a target type other than "attr" was requested.
func (ds *Dataset) Item(i int) (faces.Sample, error) {
	if i < 0 || i >= len(ds.filenames) {
		return faces.Sample{}, errors.Errorf("index %d out of range for %s with %d images", i, ds.Name(), len(ds.filenames))
	}
	img, err := faces.LoadRGB(filepath.Join(ds.baseDir, ImageDir, ds.filenames[i]))
	if err != nil {
		return faces.Sample{}, err
	}
	var label []int64
	for _, tt := range ds.opts.TargetTypes {
		if tt != faces.Attr {
			return faces.Sample{}, celeba.UnknownTargetError(tt)
		}
		label = append(label, ds.attr[i]...)
	}
	return ds.opts.ApplyTransforms(faces.Sample{Image: img, Label: label}), nil
}
