// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML experiment configuration: the device, the dataset selection and
// the transform pipelines of the train and test modes.
//
// Example:
//
//	general: {device: "xla:cpu", data_root: ./datasets}
//	dataset: {name: celebahq, split: train, download: true}
//	batch_size: 64
//	train:
//	  dataset:
//	    - {name: Resize, params: {size: 128}}
//	    - {name: D2CCrop}
//	test:
//	  dataset:
//	    - {name: Resize, params: {size: 128}}
//
// The scalar values can also be overridden as GoMLX context hyperparameters, see Config.Context.
package config

import (
	"os"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/support/fsutil"
	"github.com/gomlx/diffae/pkg/transforms"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultDataRoot  = "./datasets"
	DefaultBatchSize = 64
)

// Modes of the transform pipelines.
const (
	ModeTrain = "train"
	ModeTest  = "test"
)

// Config of an experiment.
type Config struct {
	General   General `yaml:"general"`
	Dataset   Dataset `yaml:"dataset"`
	BatchSize int     `yaml:"batch_size"`
	Train     Mode    `yaml:"train"`
	Test      Mode    `yaml:"test"`
}

// General settings.
type General struct {
	// Device is the GoMLX backend configuration, e.g. "xla:cuda" or "go". Empty selects the default backend.
	Device string `yaml:"device"`

	// DataRoot is the directory under which the datasets are stored. "~" is expanded.
	DataRoot string `yaml:"data_root"`
}

// Dataset selection.
type Dataset struct {
	Name     string      `yaml:"name"`
	Split    faces.Split `yaml:"split"`
	Download bool        `yaml:"download"`

	// FramesDir overrides the location of the hdtf frames.
	FramesDir string `yaml:"frames_dir"`
}

// Mode holds the transform pipeline of one mode.
type Mode struct {
	Dataset []transforms.Spec `yaml:"dataset"`
}

// Default returns the configuration used for missing values.
func Default() *Config {
	return &Config{
		General:   General{DataRoot: DefaultDataRoot},
		Dataset:   Dataset{Split: faces.Train, Download: true},
		BatchSize: DefaultBatchSize,
	}
}

// Load the configuration from the YAML file at path. Values not in the file take the Default ones.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration")
	}
	return Parse(contents)
}

// Parse the YAML configuration.
func Parse(contents []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, errors.Wrapf(faces.ErrConfiguration, "parsing configuration: %v", err)
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Wrapf(faces.ErrConfiguration, "batch_size must be positive, got %d", cfg.BatchSize)
	}
	root, err := fsutil.ReplaceTildeInDir(cfg.General.DataRoot)
	if err != nil {
		return nil, err
	}
	cfg.General.DataRoot = root
	return cfg, nil
}

// Transforms returns the transform specs of the given mode, ModeTrain or ModeTest.
func (c *Config) Transforms(mode string) ([]transforms.Spec, error) {
	switch mode {
	case ModeTrain:
		return c.Train.Dataset, nil
	case ModeTest:
		return c.Test.Dataset, nil
	}
	return nil, errors.Wrapf(faces.ErrValue, "mode must be %q or %q, got %q", ModeTrain, ModeTest, mode)
}

// Backend creates the GoMLX backend for General.Device.
func (c *Config) Backend() (backends.Backend, error) {
	var backend backends.Backend
	var err error
	if c.General.Device == "" {
		backend, err = backends.New()
	} else {
		backend, err = backends.NewWithConfig(c.General.Device)
	}
	return backend, errors.WithMessagef(err, "creating backend for device %q", c.General.Device)
}

// Context hyperparameter keys mirroring the scalar configuration values.
const (
	ParamDevice    = "device"
	ParamDataRoot  = "data_root"
	ParamDataset   = "dataset"
	ParamSplit     = "split"
	ParamBatchSize = "batch_size"
)

// Context returns a new GoMLX context with the scalar configuration values set as hyperparameters,
// so they can be overridden with commandline.ParseContextSettings and read back with FromContext.
func (c *Config) Context() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamDevice:    c.General.Device,
		ParamDataRoot:  c.General.DataRoot,
		ParamDataset:   c.Dataset.Name,
		ParamSplit:     c.Dataset.Split.String(),
		ParamBatchSize: c.BatchSize,
	})
	return ctx
}

// FromContext updates the configuration from the hyperparameters of ctx, see Context.
func (c *Config) FromContext(ctx *context.Context) error {
	c.General.Device = context.GetParamOr(ctx, ParamDevice, c.General.Device)
	c.General.DataRoot = context.GetParamOr(ctx, ParamDataRoot, c.General.DataRoot)
	c.Dataset.Name = context.GetParamOr(ctx, ParamDataset, c.Dataset.Name)
	c.BatchSize = context.GetParamOr(ctx, ParamBatchSize, c.BatchSize)
	split, err := faces.ParseSplit(context.GetParamOr(ctx, ParamSplit, c.Dataset.Split.String()))
	if err != nil {
		return err
	}
	c.Dataset.Split = split
	if c.BatchSize <= 0 {
		return errors.Wrapf(faces.ErrConfiguration, "batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}
