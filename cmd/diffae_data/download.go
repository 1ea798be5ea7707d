// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/diffae/pkg/config"
	"github.com/gomlx/diffae/pkg/data/downloader"
	"github.com/gomlx/diffae/pkg/facedata"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/gomlx/diffae/pkg/faces/celeba"
	"github.com/gomlx/diffae/pkg/faces/celebahq"
	"github.com/gomlx/diffae/pkg/faces/hdtf"
	"github.com/gomlx/diffae/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDownloadCmd(cfg **config.Config) *cobra.Command {
	var parallelism int
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Downloads, verifies and extracts the files of the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			d := downloader.New().Parallelism(parallelism)
			opts := append(datasetOptions(c), facedata.WithDownload(true), facedata.WithDownloader(d))
			ds, err := facedata.New(cmd.Context(), c.Dataset.Name, c.Dataset.Split, nil, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s images\n", ds.Name(), humanize.Comma(int64(ds.Len())))
			return nil
		},
	}
	cmd.Flags().IntVar(&parallelism, "parallelism", 2, "Number of files downloaded in parallel.")
	return cmd
}

// fileCheck is the result of the verification of one dataset file.
type fileCheck struct {
	Name, Status string
	Size         int64
	OK           bool
}

// checkFiles verifies the files of the named dataset under root, without downloading anything.
// framesDir overrides the location of the hdtf frames, if not empty.
func checkFiles(root, name, framesDir string) ([]fileCheck, error) {
	var baseFolder, imageDir string
	var files []downloader.File
	switch name {
	case facedata.CelebA:
		baseFolder, imageDir, files = celeba.BaseFolder, celeba.ImageDir, celeba.Files
	case facedata.CelebAHQ:
		baseFolder, imageDir, files = celebahq.BaseFolder, celebahq.ImageDir, celebahq.Files
	case facedata.HDTF:
		dir := framesDir
		if dir == "" {
			dir = hdtf.DefaultFramesDir(root)
		}
		if isDir, err := fsutil.IsDir(dir); err != nil || !isDir {
			return []fileCheck{{Name: dir, Status: "missing"}}, nil
		}
		frames, err := fsutil.GlobOneLevel(dir, "*.png")
		if err != nil {
			return nil, err
		}
		return []fileCheck{{Name: dir, Status: fmt.Sprintf("%d frames", len(frames)), OK: len(frames) > 0}}, nil
	default:
		return nil, errors.Wrapf(faces.ErrNotImplemented, "Dataset name `%s` is not supported.", name)
	}
	baseDir := filepath.Join(root, baseFolder)
	var checks []fileCheck
	for _, f := range files {
		path := filepath.Join(baseDir, f.Name)
		check := fileCheck{Name: f.Name}
		size, exists := fileSize(path)
		check.Size = size
		switch {
		case !exists && f.IsArchive():
			// Archives may have been removed after extraction.
			check.Status, check.OK = "not present", true
		case !exists:
			check.Status = "missing"
		case f.IsArchive():
			check.Status, check.OK = "present", true
		case downloader.CheckIntegrity(path, f.Checksum):
			check.Status, check.OK = "verified", true
		default:
			check.Status = "checksum mismatch"
		}
		checks = append(checks, check)
	}
	imageCheck := fileCheck{Name: imageDir + "/", Status: "missing"}
	if isDir, err := fsutil.IsDir(filepath.Join(baseDir, imageDir)); err == nil && isDir {
		imageCheck.Status, imageCheck.OK = "extracted", true
	}
	return append(checks, imageCheck), nil
}

func fileSize(path string) (size int64, exists bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

func newCheckCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verifies the files of the dataset, without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			checks, err := checkFiles(c.General.DataRoot, c.Dataset.Name, c.Dataset.FramesDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Files of %q", c.Dataset.Name)))
			table := newTable([]string{"File", "Size", "Status"}, lipgloss.Left, lipgloss.Right, lipgloss.Left)
			failed := 0
			for _, check := range checks {
				size := ""
				if check.Size > 0 {
					size = humanize.Bytes(uint64(check.Size))
				}
				table.AddRow(!check.OK, check.Name, size, check.Status)
				if !check.OK {
					failed++
				}
			}
			fmt.Fprintln(out, table.Render())
			if failed > 0 {
				return errors.Wrapf(faces.ErrIntegrity, "%d check(s) failed for %q", failed, c.Dataset.Name)
			}
			return nil
		},
	}
}
