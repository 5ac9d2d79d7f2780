/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backup relocates originals into a _BAK folder next to them before
// they are rewritten in place, and moves them back when processing fails.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirName is the sibling folder originals are stashed into.
const DirName = "_BAK"

// ErrExists is returned by Stash when a backup of the file is already
// present, which means the file was processed by an earlier run.
var ErrExists = errors.New("backup already exists")

// Path returns the backup location for the given file.
func Path(file string) string {
	return filepath.Join(filepath.Dir(file), DirName, filepath.Base(file))
}

// Stash moves file into the _BAK folder, creating it if needed. When a backup
// of the same name is already there the file is left untouched and ErrExists
// is returned.
func Stash(file string) (string, error) {
	bpath := Path(file)
	if _, err := os.Stat(bpath); err == nil {
		return bpath, ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(bpath), 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	if err := move(file, bpath); err != nil {
		return "", fmt.Errorf("stash %s: %w", file, err)
	}
	return bpath, nil
}

// Restore moves the stashed original back over the (possibly half-written)
// output file.
func Restore(file string) error {
	bpath := Path(file)
	if _, err := os.Stat(bpath); err != nil {
		return fmt.Errorf("no backup for %s: %w", file, err)
	}
	_ = os.Remove(file)
	if err := move(bpath, file); err != nil {
		return fmt.Errorf("restore %s: %w", file, err)
	}
	return nil
}

// Discard removes the stashed original. The _BAK folder itself is removed
// once it is empty.
func Discard(file string) error {
	bpath := Path(file)
	if err := os.Remove(bpath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard backup of %s: %w", file, err)
	}
	// best effort; fails while other backups remain
	_ = os.Remove(filepath.Dir(bpath))
	return nil
}

// move renames src to dst, falling back to copy+remove across filesystems.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = sf.Close() }()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(df, sf); err != nil {
		_ = df.Close()
		return err
	}
	if err := df.Sync(); err != nil {
		_ = df.Close()
		return err
	}
	if err := df.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
