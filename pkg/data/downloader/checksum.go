// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package downloader

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Checksum returns the hex encoded hash of the file contents.
//
// The hash function is selected by the length of the expected checksum: 32 hex digits is MD5,
// 64 is SHA256.
func Checksum(path string, hexLen int) (string, error) {
	var hasher hash.Hash
	switch hexLen {
	case 2 * md5.Size:
		hasher = md5.New()
	case 2 * sha256.Size:
		hasher = sha256.New()
	default:
		return "", errors.Errorf("unknown checksum with %d hex digits, only MD5 (32) and SHA256 (64) are supported", hexLen)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %q for checksum", path)
	}
	defer func() { _ = f.Close() }()
	if _, err = io.Copy(hasher, f); err != nil {
		return "", errors.Wrapf(err, "failed to read %q for checksum", path)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ValidateChecksum verifies that the checksum of the file in the given path matches the checksum
// given. If it fails, it will remove the file (!) and return an error.
func ValidateChecksum(path, checkHash string) error {
	checkHash = strings.ToLower(checkHash)
	fileHash, err := Checksum(path, len(checkHash))
	if err != nil {
		return err
	}
	if fileHash != checkHash {
		err = errors.Errorf("file %q hash is %q, but expected %q, deleting file", path, fileHash, checkHash)
		if e2 := os.Remove(path); e2 != nil {
			klog.Errorf("Failed to remove %q, which failed checksum test. Please remove it. %+v", path, e2)
		}
		return err
	}
	return nil
}

// CheckIntegrity returns whether the file exists and, if checkHash is not empty, whether its
// checksum matches. Unlike ValidateChecksum it never removes anything.
func CheckIntegrity(path, checkHash string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if checkHash == "" {
		return true
	}
	fileHash, err := Checksum(path, len(checkHash))
	if err != nil {
		klog.V(1).Infof("integrity check of %q: %v", path, err)
		return false
	}
	return fileHash == strings.ToLower(checkHash)
}
