// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage is where exported files are written before they are attached.
type Storage interface {
	// CacheDir is a writable directory for transient files.
	CacheDir() string
	WriteText(path, content string) error
}

// DirStorage stores files under a local directory.
type DirStorage struct {
	Dir string
}

// NewCacheStorage returns a DirStorage rooted at dir, or at the user's
// cache directory when dir is empty.
func NewCacheStorage(dir string) (*DirStorage, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locate user cache dir: %w", err)
		}
		dir = filepath.Join(base, "track_logger")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &DirStorage{Dir: dir}, nil
}

func (s *DirStorage) CacheDir() string { return s.Dir }

// WriteText replaces the file at path with content. The write goes through
// a temporary file so readers never see a half-written export.
func (s *DirStorage) WriteText(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
