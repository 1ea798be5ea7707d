// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package faces

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Decoders for the formats not included in the standard library, frames are sometimes
	// extracted as webp, bmp or tiff.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadRGB decodes the image file and returns it as an opaque *image.NRGBA with origin (0, 0).
//
// Any alpha channel is discarded (not composited), and gray or paletted images are expanded
// to the 3 color channels.
func LoadRGB(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", path)
	}
	return ToRGB(img), nil
}

// ToRGB converts img to an opaque *image.NRGBA with origin (0, 0).
func ToRGB(img image.Image) *image.NRGBA {
	rgb := imaging.Clone(img)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xFF
	}
	return rgb
}
