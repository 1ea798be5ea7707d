// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package celeba implements the CelebA (Large-scale CelebFaces Attributes) dataset, with the
// aligned and cropped 178x218 images.
//
// The files are downloaded from Google Drive into `<root>/celeba`, and the labels can be any
// combination of the 40 binary attributes, the identity, the bounding box and the 5 landmarks.
package celeba

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/diffae/pkg/data/downloader"
	"github.com/gomlx/diffae/pkg/data/tables"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// BaseFolder under the datasets root.
	BaseFolder = "celeba"

	// ImageDir with the extracted images, relative to the base folder.
	ImageDir = "img_align_celeba"
)

// Files of the dataset.
var Files = []downloader.File{
	{DriveID: "0B7EVK8r0v71pZjFTYXZWM3FlRnM", Checksum: "00d2c5bc6d35e252742224ab0c1e8fcb", Name: "img_align_celeba.zip"},
	{DriveID: "0B7EVK8r0v71pblRyaVFSWGxPY0U", Checksum: "75e246fa4810816ffd6ee81facbd244c", Name: "list_attr_celeba.txt"},
	{DriveID: "1_ee_0u7vcNLOfNLegJRHmolfH5ICW-XS", Checksum: "32bd1bd63d3c78cd57e08160ec5ed1e2", Name: "identity_CelebA.txt"},
	{DriveID: "0B7EVK8r0v71pbThiMVRxWXZ4dU0", Checksum: "00566efa6fedff7a56946cd1c10f1c16", Name: "list_bbox_celeba.txt"},
	{DriveID: "0B7EVK8r0v71pd0FJY3Blby1HUTQ", Checksum: "cc24ecafdb5b50baae59b03474781f8c", Name: "list_landmarks_align_celeba.txt"},
	{DriveID: "0B7EVK8r0v71pY0NSMzRuSXJEVkk", Checksum: "d32c9cbf5e040fd4025c592c306e6668", Name: "list_eval_partition.txt"},
}

// Dataset of CelebA images. It implements faces.Dataset.
type Dataset struct {
	opts      Options
	baseDir   string
	filenames []string
	attrNames []string
	targets   map[faces.TargetType][][]int64
}

var _ faces.Dataset = (*Dataset)(nil)

// New creates the CelebA dataset, downloading it first if opts.Download is set and the files
// are missing.
func New(ctx context.Context, opts Options) (*Dataset, error) {
	baseDir, err := opts.Validate(BaseFolder)
	if err != nil {
		return nil, err
	}
	if err = opts.Prepare(ctx, baseDir, Files, ImageDir); err != nil {
		return nil, err
	}
	ds := &Dataset{opts: opts, baseDir: baseDir, targets: make(map[faces.TargetType][][]int64)}

	load := func(name string, header int) (*tables.Table, error) {
		t, err := tables.Load(filepath.Join(baseDir, name), header)
		if err != nil {
			return nil, errors.WithMessagef(err, "loading CelebA %q", name)
		}
		return t, nil
	}
	splits, err := load("list_eval_partition.txt", tables.NoHeader)
	if err != nil {
		return nil, err
	}
	loaded := make(map[faces.TargetType]*tables.Table)
	for _, target := range []struct {
		tt     faces.TargetType
		file   string
		header int
	}{
		{faces.Identity, "identity_CelebA.txt", tables.NoHeader},
		{faces.BBox, "list_bbox_celeba.txt", 1},
		{faces.Landmarks, "list_landmarks_align_celeba.txt", 1},
		{faces.Attr, "list_attr_celeba.txt", 1},
	} {
		t, err := load(target.file, target.header)
		if err != nil {
			return nil, err
		}
		if t.NumRows() != splits.NumRows() {
			return nil, errors.Wrapf(faces.ErrIntegrity, "CelebA %q has %d rows, but the partition table has %d",
				target.file, t.NumRows(), splits.NumRows())
		}
		loaded[target.tt] = t
	}
	ds.attrNames = loaded[faces.Attr].Header

	// Rows of all tables are aligned with the partition table.
	var selected []int
	for row, values := range splits.Data {
		if opts.Split == faces.All || (len(values) > 0 && values[0] == int64(opts.Split)) {
			selected = append(selected, row)
		}
	}
	ds.filenames = make([]string, len(selected))
	for i, row := range selected {
		ds.filenames[i] = splits.Index[row]
	}
	for tt, t := range loaded {
		rows := make([][]int64, len(selected))
		for i, row := range selected {
			rows[i] = slices.Clone(t.Data[row])
		}
		ds.targets[tt] = rows
	}
	AttrToBinary(ds.targets[faces.Attr])
	klog.V(1).Infof("CelebA split %s: %d images", opts.Split, len(ds.filenames))
	return ds, nil
}

// Name implements faces.Dataset.
func (ds *Dataset) Name() string { return "celeba-" + ds.opts.Split.String() }

// Len implements faces.Dataset.
func (ds *Dataset) Len() int { return len(ds.filenames) }

// Filenames of the images in the split, in order.
func (ds *Dataset) Filenames() []string { return ds.filenames }

// AttrNames returns the names of the 40 attributes.
func (ds *Dataset) AttrNames() []string { return ds.attrNames }

// Target returns the label rows of the given target type, aligned with Filenames.
func (ds *Dataset) Target(tt faces.TargetType) [][]int64 { return ds.targets[tt] }

// AttrFrame returns the attributes (in {0, 1}) as a DataFrame, with the file names in column "image_id".
func (ds *Dataset) AttrFrame() dataframe.DataFrame {
	t := &tables.Table{Header: ds.attrNames, Index: ds.filenames, Data: ds.targets[faces.Attr]}
	return t.DataFrame("image_id")
}

// Item implements faces.Dataset.
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
		rows, found := ds.targets[tt]
		if !found {
			return faces.Sample{}, UnknownTargetError(tt)
		}
		label = append(label, rows[i]...)
	}
	return ds.opts.ApplyTransforms(faces.Sample{Image: img, Label: label}), nil
}
