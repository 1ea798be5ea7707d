// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package facestest holds test utilities to create small synthetic face datasets on disk.
package facestest

import (
	"crypto/md5"
	"encoding/hex"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/diffae/pkg/data/downloader"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/stretchr/testify/require"
)

// WriteImage writes a width x height image filled with the gray level, encoded according to the file
// extension (.png or .jpg), creating the directories as needed.
func WriteImage(t testing.TB, path string, width, height int, gray uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = gray, gray, gray, 0xFF
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	if strings.HasSuffix(path, ".png") {
		require.NoError(t, png.Encode(f, img))
	} else {
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
	}
	require.NoError(t, f.Close())
}

// WriteFile writes contents to path, creating the directories as needed, and returns its MD5 checksum.
func WriteFile(t testing.TB, path, contents string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	sum := md5.Sum([]byte(contents))
	return hex.EncodeToString(sum[:])
}

// WithChecksums returns a copy of files where the checksum of the files in checksums is replaced.
func WithChecksums(files []downloader.File, checksums map[string]string) []downloader.File {
	out := make([]downloader.File, len(files))
	for i, f := range files {
		if sum, found := checksums[f.Name]; found {
			f.Checksum = sum
		}
		out[i] = f
	}
	return out
}

// Gray returns the gray level of the center pixel of the image, rounded to a multiple of 8 to
// absorb JPEG compression.
func Gray(img image.Image) uint8 {
	b := img.Bounds()
	c := color.GrayModel.Convert(img.At((b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2)).(color.Gray)
	return uint8((int(c.Y) + 4) / 8 * 8)
}

// Dataset is an in-memory faces.Dataset: sample i is a Width x Height image with gray level
// Grays[i] and label Labels[i].
type Dataset struct {
	Width, Height int
	Grays         []uint8
	Labels        [][]int64
}

// Name implements faces.Dataset.
func (ds *Dataset) Name() string { return "facestest" }

// Len implements faces.Dataset.
func (ds *Dataset) Len() int { return len(ds.Grays) }

// Item implements faces.Dataset.
func (ds *Dataset) Item(i int) (faces.Sample, error) {
	img := image.NewNRGBA(image.Rect(0, 0, ds.Width, ds.Height))
	g := ds.Grays[i]
	for j := 0; j < len(img.Pix); j += 4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = g, g, g, 0xFF
	}
	return faces.Sample{Image: img, Label: ds.Labels[i]}, nil
}
