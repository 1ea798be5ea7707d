// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"archive/zip"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	var sb strings.Builder
	w := zip.NewWriter(&sb)
	for name, contents := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return []byte(sb.String())
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	data := []byte("list_eval_partition")
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	assert.True(t, CheckIntegrity(path, md5Hex(data)))
	assert.True(t, CheckIntegrity(path, strings.ToUpper(sha256Hex(data))))
	assert.True(t, CheckIntegrity(path, ""))
	assert.False(t, CheckIntegrity(path, md5Hex([]byte("other"))))
	assert.False(t, CheckIntegrity(filepath.Join(dir, "missing"), ""))
	assert.False(t, CheckIntegrity(dir, ""))

	require.NoError(t, ValidateChecksum(path, sha256Hex(data)))
	_, err := Checksum(path, 10)
	require.Error(t, err)

	// Mismatches delete the file.
	require.Error(t, ValidateChecksum(path, md5Hex([]byte("other"))))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadAll(t *testing.T) {
	table := []byte("000001.jpg 0\n000002.jpg 2\n")
	archive := zipBytes(t, map[string]string{"img/000001.jpg": "a", "img/000002.jpg": "bb"})
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Query().Get("id") {
		case "table":
			_, _ = w.Write(table)
		case "archive":
			_, _ = w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	d := New().WithDriveURL(server.URL + "/?id=").ProgressBar(false)
	files := []File{
		{DriveID: "archive", Checksum: md5Hex(archive), Name: "images.zip"},
		{DriveID: "table", Checksum: md5Hex(table), Name: "list_eval_partition.txt"},
	}
	require.NoError(t, d.DownloadAll(context.Background(), dir, files))
	assert.Equal(t, int32(2), requests.Load())

	got, err := os.ReadFile(filepath.Join(dir, "img", "000002.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "bb", string(got))
	assert.True(t, CheckIntegrity(filepath.Join(dir, "list_eval_partition.txt"), md5Hex(table)))

	// Second call finds everything in place and doesn't fetch anything.
	require.NoError(t, d.DownloadAll(context.Background(), dir, files))
	assert.Equal(t, int32(2), requests.Load())

	// Missing remote file.
	err = d.DownloadAll(context.Background(), dir, []File{{DriveID: "nope", Name: "nope.txt"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.txt")
	_, err = os.Stat(filepath.Join(dir, "nope.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadQuotaPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>Quota exceeded</html>"))
	}))
	defer server.Close()
	d := New().ProgressBar(false)
	_, err := d.Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "x.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestUnzipRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(zipPath, zipBytes(t, map[string]string{"../evil.txt": "x"}), 0o644))
	require.Error(t, Unzip(zipPath, filepath.Join(dir, "out"), false))
}
