// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"
	"image"
)

// D2CCropName is the name used in configurations for the D2CCrop transform.
const D2CCropName = "D2CCrop"

// D2CCrop crops the 128x128 face region of the aligned CelebA images (178x218), centered at
// column 89 and row 121.
//
// Rows are in [X1, X2) and columns in [Y1, Y2). Regions outside of the image are filled with black.
type D2CCrop struct {
	X1, X2, Y1, Y2 int
}

// NewD2CCrop returns the crop with the fixed CelebA geometry.
func NewD2CCrop() *D2CCrop {
	const cx, cy, half = 89, 121, 64
	return &D2CCrop{X1: cy - half, X2: cy + half, Y1: cx - half, Y2: cx + half}
}

func buildD2CCrop(params Params, _ *RNG) (Transform, error) {
	if err := params.CheckKnown(); err != nil {
		return nil, err
	}
	return NewD2CCrop(), nil
}

// Apply implements Transform.
func (c *D2CCrop) Apply(img image.Image) image.Image {
	origin := img.Bounds().Min
	rect := image.Rect(c.Y1, c.X1, c.Y2, c.X2).Add(origin)
	return cropPadded(img, rect)
}

func (c *D2CCrop) String() string {
	return fmt.Sprintf("D2CCrop(x1=%d, x2=%d, y1=%d, y2=%d)", c.X1, c.X2, c.Y1, c.Y2)
}
