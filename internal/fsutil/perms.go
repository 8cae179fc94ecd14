// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package fsutil creates files in the apecho data directory. The directory
// holds the ledger snapshot and the authority keypair, so everything is
// private to the owning user (0600 files, 0700 dirs).
package fsutil

import (
	"fmt"
	"os"
)

// DataDirPerm is the permission mode for data directories.
const DataDirPerm os.FileMode = 0700

// DataFilePerm is the permission mode for data files.
const DataFilePerm os.FileMode = 0600

// MkdirAll creates a directory and all parents with data permissions.
// The mode is applied with chmod after creation so umask cannot widen or
// narrow it. Existing parents are left alone.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, DataDirPerm); err != nil {
		return err
	}
	return os.Chmod(path, DataDirPerm)
}

// WriteFile writes data to path with data permissions, replacing any
// existing content.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, DataFilePerm); err != nil {
		return err
	}
	return os.Chmod(path, DataFilePerm)
}

// CreateFile opens path with flag and data permissions. Pass os.O_EXCL to
// refuse overwriting an existing file. Caller closes the file.
func CreateFile(path string, flag int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, DataFilePerm)
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(DataFilePerm); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	return f, nil
}
