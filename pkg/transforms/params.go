// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"sort"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/pkg/errors"
)

// Params of a transform, as decoded from the configuration: numbers may be int or float64,
// and lists are []any.
type Params map[string]any

// CheckKnown returns an error if params has a key not in known.
func (p Params) CheckKnown(known ...string) error {
	var unknown []string
	for key := range p {
		found := false
		for _, k := range known {
			if k == key {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Wrapf(faces.ErrConfiguration, "unknown parameters %q, valid parameters are %q", unknown, known)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// Float returns the parameter as float64, or def if it is not set.
func (p Params) Float(key string, def float64) (float64, error) {
	v, found := p[key]
	if !found || v == nil {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, errors.Wrapf(faces.ErrConfiguration, "parameter %q must be a number, got %#v", key, v)
	}
	return f, nil
}

// Int returns the parameter as int, or def if it is not set.
func (p Params) Int(key string, def int) (int, error) {
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, errors.Wrapf(faces.ErrConfiguration, "parameter %q must be an integer, got %g", key, f)
	}
	return int(f), nil
}

// Floats returns the parameter as a list of float64. A single number is returned as a list of one element.
// It returns nil if the parameter is not set.
func (p Params) Floats(key string) ([]float64, error) {
	v, found := p[key]
	if !found || v == nil {
		return nil, nil
	}
	if f, ok := toFloat(v); ok {
		return []float64{f}, nil
	}
	var list []any
	switch l := v.(type) {
	case []any:
		list = l
	case []float64:
		return l, nil
	case []int:
		floats := make([]float64, len(l))
		for i, n := range l {
			floats[i] = float64(n)
		}
		return floats, nil
	default:
		return nil, errors.Wrapf(faces.ErrConfiguration, "parameter %q must be a number or a list of numbers, got %#v", key, v)
	}
	floats := make([]float64, len(list))
	for i, elem := range list {
		f, ok := toFloat(elem)
		if !ok {
			return nil, errors.Wrapf(faces.ErrConfiguration, "parameter %q[%d] must be a number, got %#v", key, i, elem)
		}
		floats[i] = f
	}
	return floats, nil
}

// Size returns a (height, width) parameter given either as one number (square) or a list of two.
// If the parameter is a single number, single is true.
func (p Params) Size(key string) (height, width int, single bool, err error) {
	values, err := p.Floats(key)
	if err != nil {
		return
	}
	switch len(values) {
	case 1:
		height, width, single = int(values[0]), int(values[0]), true
	case 2:
		height, width = int(values[0]), int(values[1])
	default:
		err = errors.Wrapf(faces.ErrConfiguration, "parameter %q must be a size or a [height, width] pair, got %v", key, p[key])
		return
	}
	if height <= 0 || width <= 0 {
		err = errors.Wrapf(faces.ErrConfiguration, "parameter %q must be positive, got %v", key, p[key])
	}
	return
}

// Range returns a (low, high) parameter given either as a single value v, in which case it
// returns center-v, center+v (clipped to minValue), or as a list of two values.
// If the parameter is not set, it returns ok=false.
func (p Params) Range(key string, center, minValue float64) (low, high float64, ok bool, err error) {
	values, err := p.Floats(key)
	if err != nil || values == nil {
		return
	}
	switch len(values) {
	case 1:
		if values[0] < 0 {
			err = errors.Wrapf(faces.ErrConfiguration, "parameter %q must be non-negative, got %g", key, values[0])
			return
		}
		low, high = max(center-values[0], minValue), center+values[0]
	case 2:
		low, high = values[0], values[1]
	default:
		err = errors.Wrapf(faces.ErrConfiguration, "parameter %q must be a number or a [min, max] pair, got %v", key, p[key])
		return
	}
	if low > high {
		err = errors.Wrapf(faces.ErrConfiguration, "parameter %q has min > max: %v", key, p[key])
		return
	}
	ok = true
	return
}

// Text returns the parameter as a string, or def if it is not set.
func (p Params) Text(key, def string) (string, error) {
	v, found := p[key]
	if !found || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(faces.ErrConfiguration, "parameter %q must be a string, got %#v", key, v)
	}
	return s, nil
}
