// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package downloader provides functions for downloading, verifying and extracting dataset files.
//
// Files can be fetched from plain URLs or from Google Drive (by file id), and are verified with
// MD5 or SHA256 checksums, which is how the public face datasets publish them.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/diffae/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// DefaultDriveURL is the prefix to which a Google Drive file id is appended to download it.
// The `confirm=t` skips the "can't scan this file for viruses" page of large files.
const DefaultDriveURL = "https://drive.usercontent.google.com/download?export=download&confirm=t&id="

// File describes one file of a dataset: where to get it from, its checksum and its local name.
type File struct {
	// DriveID is the Google Drive id of the file. Either DriveID or URL must be set.
	DriveID string

	// URL is used if DriveID is empty.
	URL string

	// Checksum is the hex encoded MD5 or SHA256 of the file. Empty skips verification.
	Checksum string

	// Name of the file, relative to the dataset base folder.
	Name string
}

// IsArchive returns whether the file is an archive to be extracted, as opposed to a file used directly.
func (f File) IsArchive() bool {
	ext := strings.ToLower(filepath.Ext(f.Name))
	return ext == ".zip" || ext == ".7z"
}

// Downloader holds the configuration used to fetch files.
// The zero value is not usable, create it with New.
type Downloader struct {
	client          *http.Client
	driveURL        string
	showProgressBar bool
	parallelism     int
}

// New creates a Downloader with the default http client, progress bars enabled and up to 2
// files downloaded in parallel.
func New() *Downloader {
	return &Downloader{
		client: &http.Client{
			CheckRedirect: func(r *http.Request, via []*http.Request) error {
				r.URL.Opaque = r.URL.Path
				return nil
			},
		},
		driveURL:        DefaultDriveURL,
		showProgressBar: true,
		parallelism:     2,
	}
}

// WithClient sets the http client used for the downloads.
func (d *Downloader) WithClient(client *http.Client) *Downloader {
	d.client = client
	return d
}

// WithDriveURL changes the prefix used to download Google Drive files (see DefaultDriveURL).
func (d *Downloader) WithDriveURL(prefix string) *Downloader {
	d.driveURL = prefix
	return d
}

// ProgressBar enables or disables the progress bars.
func (d *Downloader) ProgressBar(enabled bool) *Downloader {
	d.showProgressBar = enabled
	return d
}

// Parallelism sets the maximum number of files fetched concurrently by DownloadAll.
// Values < 1 are taken as 1.
func (d *Downloader) Parallelism(n int) *Downloader {
	d.parallelism = max(n, 1)
	return d
}

// URLFor returns the URL from where to fetch the file.
func (d *Downloader) URLFor(f File) string {
	if f.DriveID != "" {
		return d.driveURL + f.DriveID
	}
	return f.URL
}

// Download file from url and save it at the given path.
// It attempts to create the directory if it doesn't yet exist.
//
// The contents are first written to a temporary file in the same directory, and renamed
// to filePath only once the download completes, so an interrupted download never leaves
// a partial file behind.
func (d *Downloader) Download(ctx context.Context, url, filePath string) (size int64, err error) {
	filePath, err = fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(filePath)
	if err = os.MkdirAll(dir, 0777); err != nil {
		return 0, errors.Wrapf(err, "failed to create the directory for the path: %q", dir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid url %q", url)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "failed downloading %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("failed downloading %q: http status %q", url, resp.Status)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		// Google Drive answers with an HTML page, instead of the file, when the daily quota is exceeded.
		return 0, errors.Errorf("downloading %q returned an HTML page instead of the file: "+
			"the Google Drive quota may have been exceeded, try again later or download %q manually",
			url, filepath.Base(filePath))
	}

	file, err := os.CreateTemp(dir, filepath.Base(filePath)+".*.partial")
	if err != nil {
		return 0, errors.Wrapf(err, "failed creating temporary file in %q", dir)
	}
	tmpPath := file.Name()
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	if d.showProgressBar {
		size, err = CopyWithProgressBar(file, resp.Body, resp.ContentLength)
	} else {
		size, err = io.Copy(file, resp.Body)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "downloading %q to %q", url, filePath)
	}
	if err = file.Close(); err != nil {
		return 0, errors.Wrapf(err, "failed closing %q", tmpPath)
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		return 0, errors.Wrapf(err, "failed renaming %q to %q", tmpPath, filePath)
	}
	klog.V(1).Infof("downloaded %q (%s) to %q", url, humanize.Bytes(uint64(size)), filePath)
	return size, nil
}

// DownloadIfMissing will check if the path exists already, and if not it will download the file
// from the given URL.
//
// If checkHash is provided, it checks that the file has the hash or fail.
func (d *Downloader) DownloadIfMissing(ctx context.Context, url, filePath, checkHash string) error {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return err
	}
	exists, err := fsutil.FileExists(filePath)
	if err != nil {
		return err
	}
	if !exists {
		klog.Infof("Downloading %s ...", url)
		if _, err = d.Download(ctx, url, filePath); err != nil {
			return err
		}
	}
	if checkHash == "" {
		return nil
	}
	return ValidateChecksum(filePath, checkHash)
}

// DownloadAll fetches every missing file into baseDir, verifying checksums, and extracts the
// archives among them into baseDir.
//
// Up to Parallelism files are downloaded concurrently, and the first error cancels the others.
func (d *Downloader) DownloadAll(ctx context.Context, baseDir string, files []File) error {
	baseDir, err := fsutil.ReplaceTildeInDir(baseDir)
	if err != nil {
		return err
	}
	worker := *d
	if d.parallelism > 1 && len(files) > 1 {
		// Concurrent progress bars garble each other.
		worker.showProgressBar = false
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for _, f := range files {
		g.Go(func() error {
			filePath := filepath.Join(baseDir, f.Name)
			if err := worker.DownloadIfMissing(gCtx, d.URLFor(f), filePath, f.Checksum); err != nil {
				return errors.WithMessagef(err, "while fetching %q", f.Name)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	for _, f := range files {
		if !f.IsArchive() {
			continue
		}
		if err = Unzip(filepath.Join(baseDir, f.Name), baseDir, d.showProgressBar); err != nil {
			return err
		}
	}
	return nil
}

// copyBytesBar copies bytes from an io.Reader to an io.Writer while displaying a progressbar.
// It requires knowing the contentLength.
type copyBytesBar struct {
	w                             io.Writer
	bar                           *progressbar.ProgressBar
	amountWritten                 int64
	barUnit, numUnits, addedUnits int64
}

func newCopyBytesBar(w io.Writer, contentLength int64) *copyBytesBar {
	bar := &copyBytesBar{w: w, barUnit: 1}
	for contentLength > bar.barUnit*1024*1024 {
		bar.barUnit *= 1024
	}
	bar.numUnits = (contentLength + bar.barUnit - 1) / bar.barUnit
	bar.bar = progressbar.NewOptions64(bar.numUnits,
		progressbar.OptionSetDescription(humanize.IBytes(uint64(contentLength))),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	return bar
}

// Write implements io.Write, while updating the progress bar.
func (bar *copyBytesBar) Write(p []byte) (n int, err error) {
	n, err = bar.w.Write(p)
	bar.amountWritten += int64(n)
	toUnits := bar.amountWritten / bar.barUnit
	if toUnits > bar.addedUnits {
		_ = bar.bar.Add64(toUnits - bar.addedUnits)
		bar.addedUnits = toUnits
	}
	return
}

// CopyWithProgressBar is similar to io.Copy, but updates the progress bar with the amount
// of data copied.
//
// If contentLength is unknown (<= 0), a byte counter spinner is displayed instead.
func CopyWithProgressBar(dst io.Writer, src io.Reader, contentLength int64) (n int64, err error) {
	if contentLength <= 0 {
		spinner := progressbar.DefaultBytes(-1, "downloading")
		n, err = io.Copy(io.MultiWriter(dst, spinner), src)
		_ = spinner.Close()
		fmt.Fprintln(os.Stderr)
		return
	}
	bar := newCopyBytesBar(dst, contentLength)
	n, err = io.Copy(bar, src)
	if bar.addedUnits < bar.numUnits {
		_ = bar.bar.Add64(bar.numUnits - bar.addedUnits)
	}
	_ = bar.bar.Close()
	fmt.Fprintln(os.Stderr)
	return
}
