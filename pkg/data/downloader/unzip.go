// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Unzip extracts zipFile under baseDir. Entries that already exist with the same size are
// skipped, so re-running it after an interruption only extracts what is missing.
//
// Entries that would escape baseDir (e.g.: "../x") are rejected.
func Unzip(zipFile, baseDir string, showProgressBar bool) error {
	r, err := zip.OpenReader(zipFile)
	if err != nil {
		return errors.Wrapf(err, "failed to open zip file %q", zipFile)
	}
	defer func() { _ = r.Close() }()

	var bar *progressbar.ProgressBar
	if showProgressBar {
		bar = progressbar.NewOptions(len(r.File),
			progressbar.OptionSetDescription("Extracting "+filepath.Base(zipFile)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		defer func() { _ = bar.Close() }()
	}
	cleanBase := filepath.Clean(baseDir) + string(os.PathSeparator)
	for _, f := range r.File {
		target := filepath.Join(baseDir, f.Name)
		if !strings.HasPrefix(target+string(os.PathSeparator), cleanBase) {
			return errors.Errorf("zip file %q has an invalid entry %q", zipFile, f.Name)
		}
		if err = extractEntry(f, target); err != nil {
			return errors.WithMessagef(err, "while extracting %q", zipFile)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	klog.V(1).Infof("extracted %d entries of %q into %q", len(r.File), zipFile, baseDir)
	return nil
}

func extractEntry(f *zip.File, target string) error {
	if f.FileInfo().IsDir() {
		return errors.Wrapf(os.MkdirAll(target, 0777), "failed to create directory %q", target)
	}
	if info, err := os.Stat(target); err == nil && info.Size() == int64(f.UncompressedSize64) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0777); err != nil {
		return errors.Wrapf(err, "failed to create directory %q", filepath.Dir(target))
	}
	src, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open entry %q", f.Name)
	}
	defer func() { _ = src.Close() }()
	dst, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", target)
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return errors.Wrapf(err, "failed to write %q", target)
	}
	return errors.Wrapf(dst.Close(), "failed closing %q", target)
}
