/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sequence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFrameOf(t *testing.T) {
	cases := []struct {
		path  string
		frame int
		ok    bool
	}{
		{"shot010_beauty.0101.exr", 101, true},
		{"/renders/shot010_beauty_0101.exr", 101, true},
		{"plate.00012345.EXR", 12345, true},
		{"beauty.exr", 0, false},
		{"beauty.101.exr", 0, false}, // fewer than 4 digits is not a frame
		{"v002_comp.1001.tif", 1001, true},
	}
	for _, c := range cases {
		f, ok := FrameOf(c.path)
		if ok != c.ok || f != c.frame {
			t.Errorf("FrameOf(%q) = %d,%v want %d,%v", c.path, f, ok, c.frame, c.ok)
		}
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		in      string
		pattern string
		ok      bool
	}{
		{"shot.0101.exr", "shot.%04d.exr", true},
		{"shot.####.exr", "shot.%04d.exr", true},
		{"shot.########.exr", "shot.%08d.exr", true},
		{"/r/s010/beauty.000123.exr", "/r/s010/beauty.%06d.exr", true},
		{"beauty.exr", "", false},
	}
	for _, c := range cases {
		p, ok := Detect(c.in)
		if ok != c.ok || p != c.pattern {
			t.Errorf("Detect(%q) = %q,%v want %q,%v", c.in, p, ok, c.pattern, c.ok)
		}
	}
}

func TestFramePath(t *testing.T) {
	if got := FramePath("shot.%04d.exr", 7); got != "shot.0007.exr" {
		t.Fatalf("FramePath = %q", got)
	}
	if got := FramePath("plain.exr", 7); got != "plain.exr" {
		t.Fatalf("FramePath on non-pattern = %q", got)
	}
}

func TestParseRange(t *testing.T) {
	got, err := ParseRange("1-4,3-5,10")
	if err != nil {
		t.Fatalf("ParseRange error: %v", err)
	}
	want := []int{1, 2, 3, 4, 5, 10}
	if len(got) != len(want) {
		t.Fatalf("ParseRange = %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseRange = %v want %v", got, want)
		}
	}

	if _, err := ParseRange("10-5"); err == nil {
		t.Fatalf("expected error for inverted span")
	}
	if _, err := ParseRange("a-b"); err == nil {
		t.Fatalf("expected error for non-numeric span")
	}
	if _, err := ParseRange(""); err == nil {
		t.Fatalf("expected error for empty range")
	}
}

func writeFrames(t *testing.T, dir string, frames ...string) {
	t.Helper()
	for _, f := range frames {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
}

func TestFindGlobsSequence(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "shot.0001.exr", "shot.0002.exr", "shot.0004.exr", "other.exr")

	files, err := Find(filepath.Join(dir, "shot.0001.exr"), "")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Find returned %d files: %v", len(files), files)
	}
	first, last, ok := Bounds(files)
	if !ok || first != 1 || last != 4 {
		t.Fatalf("Bounds = %d,%d,%v", first, last, ok)
	}
}

func TestFindWithRangeSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "shot.0001.exr", "shot.0003.exr")

	files, err := Find(filepath.Join(dir, "shot.####.exr"), "1-3")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Find returned %d files: %v", len(files), files)
	}
}

func TestFindSingleFileWithoutFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "beauty.exr")

	files, err := Find(filepath.Join(dir, "beauty.exr"), "")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Find returned %v", files)
	}
}
