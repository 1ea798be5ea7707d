// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package celeba

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/faces/facestest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createFakeCelebA creates 4 images: 2 in train, 1 in valid and 1 in test.
func createFakeCelebA(t *testing.T) (root string) {
	root = t.TempDir()
	baseDir := filepath.Join(root, BaseFolder)
	names := []string{"000001.jpg", "000002.jpg", "000003.jpg", "000004.jpg"}
	splits := []int{0, 0, 1, 2}
	var partition, identity, bbox, landmarks, attr string
	attr = "4\nSmiling Young\n"
	bbox = "4\nimage_id x_1 y_1 width height\n"
	landmarks = "4\nlefteye_x lefteye_y\n"
	for i, name := range names {
		partition += fmt.Sprintf("%s %d\n", name, splits[i])
		identity += fmt.Sprintf("%s %d\n", name, 100+i)
		bbox += fmt.Sprintf("%s %d %d 10 20\n", name, i, i)
		landmarks += fmt.Sprintf("%s  %d  %d\n", name, 60+i, 70+i)
		attr += fmt.Sprintf("%s %2d %2d\n", name, 1-2*(i%2), -1)
		facestest.WriteImage(t, filepath.Join(baseDir, ImageDir, name), 178, 218, uint8(8*(i+1)))
	}
	checksums := map[string]string{
		"list_eval_partition.txt":         facestest.WriteFile(t, filepath.Join(baseDir, "list_eval_partition.txt"), partition),
		"identity_CelebA.txt":             facestest.WriteFile(t, filepath.Join(baseDir, "identity_CelebA.txt"), identity),
		"list_bbox_celeba.txt":            facestest.WriteFile(t, filepath.Join(baseDir, "list_bbox_celeba.txt"), bbox),
		"list_landmarks_align_celeba.txt": facestest.WriteFile(t, filepath.Join(baseDir, "list_landmarks_align_celeba.txt"), landmarks),
		"list_attr_celeba.txt":            facestest.WriteFile(t, filepath.Join(baseDir, "list_attr_celeba.txt"), attr),
	}
	original := Files
	Files = facestest.WithChecksums(Files, checksums)
	t.Cleanup(func() { Files = original })
	return root
}

func TestCelebA(t *testing.T) {
	root := createFakeCelebA(t)
	ctx := context.Background()

	train, err := New(ctx, Options{Root: root, Split: faces.Train, TargetTypes: []faces.TargetType{faces.Attr, faces.Identity}})
	require.NoError(t, err)
	assert.Equal(t, 2, train.Len())
	assert.Equal(t, []string{"000001.jpg", "000002.jpg"}, train.Filenames())
	assert.Equal(t, []string{"Smiling", "Young"}, train.AttrNames())
	assert.Equal(t, "celeba-train", train.Name())

	sample, err := train.Item(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 101}, sample.Label)
	assert.Equal(t, uint8(16), facestest.Gray(sample.Image))
	assert.Equal(t, 178, sample.Image.Bounds().Dx())

	all, err := New(ctx, Options{Root: root, Split: faces.All, TargetTypes: []faces.TargetType{faces.BBox, faces.Landmarks}})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())
	sample, err = all.Item(3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 3, 10, 20, 63, 73}, sample.Label)
	for _, row := range all.Target(faces.Attr) {
		for _, v := range row {
			assert.Contains(t, []int64{0, 1}, v)
		}
	}
	df := all.AttrFrame()
	assert.Equal(t, 4, df.Nrow())
	assert.Equal(t, []float64{1, 0, 1, 0}, df.Col("Smiling").Float())

	test, err := New(ctx, Options{Root: root, Split: faces.Test})
	require.NoError(t, err)
	assert.Equal(t, []string{"000004.jpg"}, test.Filenames())
	sample, err = test.Item(0)
	require.NoError(t, err)
	assert.Empty(t, sample.Label)

	_, err = test.Item(1)
	require.Error(t, err)
}

func TestCelebATransforms(t *testing.T) {
	root := createFakeCelebA(t)
	opts := Options{
		Root:            root,
		Split:           faces.Valid,
		TargetTypes:     []faces.TargetType{faces.Attr},
		TargetTransform: func(label []int64) []int64 { return label[:1] },
	}
	ds, err := New(context.Background(), opts)
	require.NoError(t, err)
	sample, err := ds.Item(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, sample.Label)

	ds.opts.TargetTypes = []faces.TargetType{"segmentation"}
	_, err = ds.Item(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faces.ErrValue))
	assert.Contains(t, err.Error(), `Target type "segmentation" is not recognized.`)
}

func TestCelebAErrors(t *testing.T) {
	// Missing files.
	_, err := New(context.Background(), Options{Root: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, faces.ErrIntegrity))
	assert.Contains(t, err.Error(), "Dataset not found or corrupted")

	// Target transform without target types.
	_, err = New(context.Background(), Options{Root: t.TempDir(), TargetTransform: func(l []int64) []int64 { return l }})
	require.Error(t, err)
	assert.True(t, errors.Is(err, faces.ErrConfiguration))

	// Corrupted table.
	root := createFakeCelebA(t)
	facestest.WriteFile(t, filepath.Join(root, BaseFolder, "list_attr_celeba.txt"), "corrupted")
	_, err = New(context.Background(), Options{Root: root})
	assert.True(t, errors.Is(err, faces.ErrIntegrity))
}

func TestAttrToBinary(t *testing.T) {
	rows := [][]int64{{-1, 1}, {1, -1}}
	AttrToBinary(rows)
	assert.Equal(t, [][]int64{{0, 1}, {1, 0}}, rows)
	assert.Equal(t, int64(-1), floorDiv(-1, 2))
	assert.Equal(t, int64(0), floorDiv(0, 2))
}
