// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Save the dataset to path: the name followed by the features and labels tensors, gob encoded.
func (ds *Dataset) Save(path string) error {
	features, labels := ds.Tensors()
	defer features.MustFinalizeAll()
	defer labels.MustFinalizeAll()
	err := exceptions.TryCatch[error](func() {
		must.M(os.MkdirAll(filepath.Dir(path), 0777))
		f := must.M1(os.Create(path))
		enc := gob.NewEncoder(f)
		must.M(enc.Encode(ds.name))
		must.M(features.GobSerialize(enc))
		must.M(labels.GobSerialize(enc))
		must.M(f.Close())
	})
	return errors.WithMessagef(err, "while saving embeddings of %q to %q", ds.name, path)
}

// Load a dataset previously saved with Dataset.Save.
func Load(path string) (ds *Dataset, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening embeddings file")
	}
	defer func() { _ = f.Close() }()
	ds = &Dataset{}
	err = exceptions.TryCatch[error](func() {
		dec := gob.NewDecoder(f)
		must.M(dec.Decode(&ds.name))
		features := must.M1(tensors.GobDeserialize(dec))
		defer features.MustFinalizeAll()
		labels := must.M1(tensors.GobDeserialize(dec))
		defer labels.MustFinalizeAll()
		if features.Rank() != 2 || labels.Rank() != 2 || features.Shape().Dimensions[0] != labels.Shape().Dimensions[0] {
			exceptions.Panicf("invalid shapes for features %s and labels %s", features.Shape(), labels.Shape())
		}
		ds.featureDim, ds.labelDim = features.Shape().Dimensions[1], labels.Shape().Dimensions[1]
		ds.features = tensors.MustCopyFlatData[float32](features)
		ds.labels = tensors.MustCopyFlatData[float32](labels)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "while loading embeddings from %q", path)
	}
	return ds, nil
}

// NewCached loads the dataset from path if it exists. Otherwise, it calls build and saves the
// result to path for future use.
func NewCached(path string, build func() (*Dataset, error)) (*Dataset, error) {
	if _, err := os.Stat(path); err == nil {
		klog.V(1).Infof("loading cached embeddings from %q", path)
		return Load(path)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking embeddings cache %q", path)
	}
	ds, err := build()
	if err != nil {
		return nil, err
	}
	if err = ds.Save(path); err != nil {
		return nil, err
	}
	return ds, nil
}

// InMemory returns a GoMLX in-memory dataset with the features as input and the labels as label,
// yielding batches of batchSize. Use its Shuffle and Infinite methods for training.
func (ds *Dataset) InMemory(backend backends.Backend, batchSize int) (*datasets.InMemoryDataset, error) {
	features, labels := ds.Tensors()
	mds, err := datasets.InMemoryFromData(backend, "embeddings-"+ds.name, []any{features}, []any{labels})
	if err != nil {
		return nil, errors.WithMessagef(err, "creating in-memory dataset of embeddings of %q", ds.name)
	}
	return mds.BatchSize(batchSize, false), nil
}
