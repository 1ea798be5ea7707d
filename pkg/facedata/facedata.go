// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package facedata creates the face datasets by name: "celeba", "celebahq" and "hdtf".
package facedata

import (
	"context"
	"path/filepath"

	"github.com/gomlx/diffae/pkg/config"
	"github.com/gomlx/diffae/pkg/data/downloader"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/faces/celeba"
	"github.com/gomlx/diffae/pkg/faces/celebahq"
	"github.com/gomlx/diffae/pkg/faces/hdtf"
	"github.com/gomlx/diffae/pkg/transforms"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Dataset names.
const (
	CelebA   = "celeba"
	CelebAHQ = "celebahq"
	HDTF     = "hdtf"
)

// Names of the supported datasets.
var Names = []string{CelebA, CelebAHQ, HDTF}

type options struct {
	root        string
	download    bool
	targetTypes []faces.TargetType
	framesDir   string
	downloader  *downloader.Downloader
}

// Option for New.
type Option func(*options)

// WithRoot sets the root directory of the datasets. It defaults to config.DefaultDataRoot.
func WithRoot(root string) Option { return func(o *options) { o.root = root } }

// WithDownload sets whether missing files are downloaded. It defaults to true.
func WithDownload(download bool) Option { return func(o *options) { o.download = download } }

// WithTargetTypes sets the label targets of the CelebA datasets. It defaults to faces.Attr.
func WithTargetTypes(tts ...faces.TargetType) Option {
	return func(o *options) { o.targetTypes = tts }
}

// WithFramesDir sets the frames directory of the hdtf dataset. It defaults to hdtf.DefaultFramesDir(root).
func WithFramesDir(dir string) Option { return func(o *options) { o.framesDir = dir } }

// WithDownloader sets the downloader used by the CelebA datasets.
func WithDownloader(d *downloader.Downloader) Option { return func(o *options) { o.downloader = d } }

// New creates the dataset with the given name and split. The transform is applied to every image, it can be nil.
//
// Unknown names return an error wrapping faces.ErrNotImplemented.
func New(ctx context.Context, name string, split faces.Split, transform faces.Transform, opts ...Option) (faces.Dataset, error) {
	o := &options{
		root:        config.DefaultDataRoot,
		download:    true,
		targetTypes: []faces.TargetType{faces.Attr},
	}
	for _, opt := range opts {
		opt(o)
	}
	klog.V(1).Infof("creating dataset %q, split %s, under %q", name, split, o.root)
	celebaOpts := celeba.Options{
		Root:        o.root,
		Split:       split,
		TargetTypes: o.targetTypes,
		Transform:   transform,
		Download:    o.download,
		Downloader:  o.downloader,
	}
	var ds faces.Dataset
	var err error
	switch name {
	case CelebA:
		ds, err = nonNil(celeba.New(ctx, celebaOpts))
	case CelebAHQ:
		ds, err = nonNil(celebahq.New(ctx, celebaOpts))
	case HDTF:
		framesDir := o.framesDir
		if framesDir == "" {
			framesDir = hdtf.DefaultFramesDir(o.root)
		}
		ds, err = nonNil(hdtf.New(hdtf.Options{FramesDir: framesDir, Split: split, Transform: transform}))
	default:
		return nil, errors.Wrapf(faces.ErrNotImplemented, "Dataset name `%s` is not supported.", name)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "creating dataset %q", name)
	}
	return ds, nil
}

// nonNil converts the concrete dataset to the interface, without returning a typed nil on errors.
func nonNil[D faces.Dataset](ds D, err error) (faces.Dataset, error) {
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// FromConfig creates the dataset selected in cfg with the transform pipeline of mode
// (config.ModeTrain or config.ModeTest). The pipeline is also returned, so its normalization can
// be passed on to the loader.
func FromConfig(ctx context.Context, cfg *config.Config, mode string, opts ...Option) (faces.Dataset, *transforms.Compose, error) {
	specs, err := cfg.Transforms(mode)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := transforms.Build(specs)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "building %s transforms", mode)
	}
	opts = append([]Option{WithRoot(cfg.General.DataRoot), WithDownload(cfg.Dataset.Download)}, opts...)
	if cfg.Dataset.FramesDir != "" {
		framesDir := cfg.Dataset.FramesDir
		if !filepath.IsAbs(framesDir) {
			framesDir = filepath.Join(cfg.General.DataRoot, framesDir)
		}
		opts = append(opts, WithFramesDir(framesDir))
	}
	ds, err := New(ctx, cfg.Dataset.Name, cfg.Dataset.Split, pipeline, opts...)
	if err != nil {
		return nil, nil, err
	}
	return ds, pipeline, nil
}
