// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transforms builds image transform pipelines from configuration lists.
//
// Each entry of the list names a transform and its parameters, e.g. in YAML:
//
//	- name: Resize
//	  params: {size: 128}
//	- name: RandomHorizontalFlip
//	  params: {p: 0.5}
//	- name: D2CCrop
//
// Names are resolved against the standard transforms (Resize, CenterCrop, RandomCrop,
// RandomHorizontalFlip, RandomVerticalFlip, RandomRotation, Pad, Grayscale, ColorJitter,
// GaussianBlur, ToTensor, Normalize) and then against the custom D2CCrop.
package transforms

import (
	"fmt"
	"image"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Transform is an image-to-image transformation. It must be safe for concurrent use.
type Transform = faces.Transform

// Spec describes one transform of a pipeline.
type Spec struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// Compose applies a list of transforms in order.
type Compose struct {
	Transforms []Transform
}

// Apply implements Transform.
func (c *Compose) Apply(img image.Image) image.Image {
	for _, t := range c.Transforms {
		img = t.Apply(img)
	}
	return img
}

// String lists the composed transforms.
func (c *Compose) String() string {
	parts := make([]string, len(c.Transforms))
	for i, t := range c.Transforms {
		parts[i] = fmt.Sprintf("%v", t)
	}
	return "Compose(" + strings.Join(parts, ", ") + ")"
}

// Normalization returns the mean and standard deviation (per channel) of the last Normalize
// transform in the pipeline, and whether there is one.
//
// Normalization is applied when the images are converted to tensors, see package loader.
func (c *Compose) Normalization() (mean, std []float64, ok bool) {
	for i := len(c.Transforms) - 1; i >= 0; i-- {
		if n, isNormalize := c.Transforms[i].(*Normalize); isNormalize {
			return n.Mean, n.Std, true
		}
	}
	return nil, nil, false
}

// Builder of a transform given its parameters.
type Builder func(params Params, rng *RNG) (Transform, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register a transform builder under the given name. It overrides any previous registration.
func Register(name string, builder Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = builder
}

// Names of the registered standard transforms, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Builder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, found := registry[name]
	return b, found
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	seed    uint64
	hasSeed bool
}

// WithSeed makes the random transforms deterministic.
func WithSeed(seed uint64) BuildOption {
	return func(c *buildConfig) {
		c.seed = seed
		c.hasSeed = true
	}
}

// Build the pipeline described by specs: the transforms are applied in the order given.
//
// It returns an error wrapping faces.ErrConfiguration if a name can't be resolved or if
// the parameters of a transform are invalid.
func Build(specs []Spec, opts ...BuildOption) (*Compose, error) {
	cfg := &buildConfig{seed: uint64(time.Now().UnixNano())}
	for _, opt := range opts {
		opt(cfg)
	}
	rng := NewRNG(cfg.seed)
	c := &Compose{Transforms: make([]Transform, 0, len(specs))}
	for i, spec := range specs {
		builder, found := lookup(spec.Name)
		if !found {
			if spec.Name != D2CCropName {
				return nil, errors.Wrapf(faces.ErrConfiguration, "transform %q is not defined", spec.Name)
			}
			builder = buildD2CCrop
		}
		t, err := builder(Params(spec.Params), rng)
		if err != nil {
			return nil, errors.WithMessagef(err, "transform #%d %q", i, spec.Name)
		}
		c.Transforms = append(c.Transforms, t)
	}
	klog.V(1).Infof("transforms: %s", c)
	return c, nil
}

// RNG is a random number generator safe for concurrent use, shared by the random transforms
// of a pipeline.
type RNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

// Float64 returns a uniform random value in [0, 1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

// Uniform returns a uniform random value in [low, high).
func (r *RNG) Uniform(low, high float64) float64 {
	return low + (high-low)*r.Float64()
}

// IntN returns a uniform random value in [0, n).
func (r *RNG) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}
