// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package faces defines the common contract of the face image datasets: an indexable
// collection of (image, label) samples, the splits and target types, and the error kinds
// returned by the dataset adapters.
//
// The adapters themselves live in the sub-packages celeba, celebahq and hdtf.
package faces

import (
	"fmt"
	"image"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds returned (wrapped) by the dataset adapters. Use errors.Is to test for them.
var (
	// ErrConfiguration is returned for invalid configurations: unknown transforms, invalid
	// transform parameters, a target transform without target types, etc.
	ErrConfiguration = errors.New("configuration error")

	// ErrIntegrity is returned when the dataset files are missing or corrupted.
	ErrIntegrity = errors.New("integrity error")

	// ErrValue is returned for out-of-domain values, like unknown split or target type names.
	ErrValue = errors.New("value error")

	// ErrNotImplemented is returned for datasets that are not supported.
	ErrNotImplemented = errors.New("not implemented")
)

// Sample is one example of a dataset.
type Sample struct {
	// Image decoded as RGB, after the dataset transform was applied.
	Image image.Image

	// Label associated with the image, after the target transform was applied.
	Label []int64
}

// Dataset is an indexable collection of samples. Implementations are immutable after
// construction and Item is safe for concurrent use.
type Dataset interface {
	// Name of the dataset, used in logs.
	Name() string

	// Len returns the number of samples.
	Len() int

	// Item returns the sample at index i, in the range [0, Len()).
	Item(i int) (Sample, error)
}

// Transform is applied to an image when a sample is read. See package transforms.
type Transform interface {
	Apply(img image.Image) image.Image
}

// TargetTransform is applied to the label when a sample is read.
type TargetTransform func(label []int64) []int64

// Split selects a subset of a dataset.
type Split int

const (
	Train Split = iota
	Valid
	Test
	All
)

var splitNames = []string{"train", "valid", "test", "all"}

// String implements fmt.Stringer.
func (s Split) String() string {
	if s < 0 || int(s) >= len(splitNames) {
		return fmt.Sprintf("Split(%d)", int(s))
	}
	return splitNames[s]
}

// ParseSplit converts a case-insensitive split name to a Split.
// It returns an ErrValue error for unknown names.
func ParseSplit(name string) (Split, error) {
	lower := strings.ToLower(name)
	for i, n := range splitNames {
		if n == lower {
			return Split(i), nil
		}
	}
	return Train, errors.Wrapf(ErrValue, "unknown split %q, valid values are %s", name, strings.Join(splitNames, ", "))
}

// UnmarshalText implements encoding.TextUnmarshaler, so splits can be used in configuration files.
func (s *Split) UnmarshalText(text []byte) error {
	split, err := ParseSplit(string(text))
	if err != nil {
		return err
	}
	*s = split
	return nil
}

// TargetType selects the type of label returned by a dataset.
type TargetType string

const (
	Attr      TargetType = "attr"
	Identity  TargetType = "identity"
	BBox      TargetType = "bbox"
	Landmarks TargetType = "landmarks"
)

// ParseTargetTypes converts the target type names to TargetType, validating them against the given
// valid ones. It returns an ErrValue error for unknown names.
func ParseTargetTypes(names []string, valid ...TargetType) ([]TargetType, error) {
	targets := make([]TargetType, 0, len(names))
	for _, name := range names {
		tt := TargetType(name)
		found := false
		for _, v := range valid {
			if v == tt {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(ErrValue, "unknown target type %q", name)
		}
		targets = append(targets, tt)
	}
	return targets, nil
}
