/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestStashMovesOriginal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shot.0001.exr")
	writeFile(t, file, "original")

	bpath, err := Stash(file)
	if err != nil {
		t.Fatalf("Stash error: %v", err)
	}
	if bpath != filepath.Join(dir, DirName, "shot.0001.exr") {
		t.Fatalf("unexpected backup path %s", bpath)
	}
	if _, err := os.Stat(file); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("original still present after stash")
	}
	b, err := os.ReadFile(bpath)
	if err != nil || string(b) != "original" {
		t.Fatalf("backup content mismatch: %q %v", b, err)
	}
}

func TestStashRefusesWhenBackupExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shot.0001.exr")
	writeFile(t, file, "new run")
	if err := os.MkdirAll(filepath.Join(dir, DirName), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, DirName, "shot.0001.exr"), "old run")

	if _, err := Stash(file); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	// original must be untouched
	if b, _ := os.ReadFile(file); string(b) != "new run" {
		t.Fatalf("original modified on refused stash")
	}
}

func TestRestoreBringsOriginalBack(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shot.0001.exr")
	writeFile(t, file, "original")

	if _, err := Stash(file); err != nil {
		t.Fatalf("Stash error: %v", err)
	}
	// simulate a half-written output
	writeFile(t, file, "broken")

	if err := Restore(file); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	b, err := os.ReadFile(file)
	if err != nil || string(b) != "original" {
		t.Fatalf("restored content mismatch: %q %v", b, err)
	}
	if _, err := os.Stat(Path(file)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup still present after restore")
	}
}

func TestDiscardRemovesBackupAndEmptyDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shot.0001.exr")
	writeFile(t, file, "original")

	if _, err := Stash(file); err != nil {
		t.Fatalf("Stash error: %v", err)
	}
	if err := Discard(file); err != nil {
		t.Fatalf("Discard error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DirName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("_BAK dir should be removed when empty")
	}

	// discarding again is a no-op
	if err := Discard(file); err != nil {
		t.Fatalf("second Discard error: %v", err)
	}
}
