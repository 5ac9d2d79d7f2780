/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-openexr/exr"
)

func writeTestEXR(t *testing.T, path string) {
	t.Helper()
	const size = 8
	h := exr.NewScanlineHeader(size, size)
	h.SetCompression(exr.CompressionZIP)

	fb := exr.NewRGBAFrameBuffer(size, size, true)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fb.SetPixel(x, y, 0.5, 0.5, 0.5, 1.0)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	w, err := exr.NewScanlineWriter(f, h)
	if err != nil {
		t.Fatalf("NewScanlineWriter: %v", err)
	}
	w.SetFrameBuffer(fb.ToFrameBuffer())
	if err := w.WritePixels(0, size-1); err != nil {
		t.Fatalf("WritePixels: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWriteContactSheet(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"shot.0001.exr", "shot.0002.exr", "shot.0003.exr"} {
		p := filepath.Join(dir, name)
		writeTestEXR(t, p)
		files = append(files, p)
	}
	out := filepath.Join(dir, "sheet.pdf")

	if err := WriteContactSheet(files, out, SheetOptions{Title: "shot"}); err != nil {
		t.Fatalf("WriteContactSheet: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestWriteContactSheetUnreadableFrame(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "shot.0001.exr")
	writeTestEXR(t, good)
	bad := filepath.Join(dir, "shot.0002.exr")
	if err := os.WriteFile(bad, []byte("not an exr"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "sheet.pdf")

	if err := WriteContactSheet([]string{good, bad}, out, SheetOptions{}); err != nil {
		t.Fatalf("WriteContactSheet: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("sheet missing: %v", err)
	}
}

func TestWriteContactSheetEmpty(t *testing.T) {
	if err := WriteContactSheet(nil, filepath.Join(t.TempDir(), "sheet.pdf"), SheetOptions{}); err == nil {
		t.Error("expected error for empty file list")
	}
}
