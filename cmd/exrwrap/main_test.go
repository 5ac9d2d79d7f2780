/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-openexr/exr"

	"exrwrap/internal/job"
	applog "exrwrap/internal/log"
)

func writeFrame(t *testing.T, path string) {
	t.Helper()

	h := exr.NewScanlineHeader(4, 4)
	h.SetCompression(exr.CompressionNone)

	fb := exr.NewRGBAFrameBuffer(4, 4, true)
	fb.SetPixel(1, 1, 1.0, 0.5, 0.25, 1.0)

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
	if err := w.WritePixels(0, 3); err != nil {
		t.Fatalf("WritePixels: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestProcessToOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shot.0001.exr")
	writeFrame(t, src)

	outDir := filepath.Join(dir, "out")
	l := applog.WithComponent("test")
	sum := processToOutput(l, []string{src}, outDir, false, job.Options{})
	if sum.Processed != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 processed", sum)
	}
	if _, err := os.Stat(filepath.Join(outDir, "shot.0001.exr")); err != nil {
		t.Fatalf("output frame missing: %v", err)
	}
}

func TestProcessToOutputPattern(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "shot.0001.exr"),
		filepath.Join(dir, "shot.0002.exr"),
	}
	for _, f := range files {
		writeFrame(t, f)
	}

	l := applog.WithComponent("test")
	out := filepath.Join(dir, "clean", "clean.%04d.exr")
	sum := processToOutput(l, files, out, false, job.Options{})
	if sum.Processed != 2 || sum.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 processed", sum)
	}
	for _, name := range []string{"clean.0001.exr", "clean.0002.exr"} {
		if _, err := os.Stat(filepath.Join(dir, "clean", name)); err != nil {
			t.Fatalf("output frame %s missing: %v", name, err)
		}
	}
}

func TestProcessToOutputHashPattern(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shot.0007.exr")
	writeFrame(t, src)

	l := applog.WithComponent("test")
	out := filepath.Join(dir, "clean.####.exr")
	sum := processToOutput(l, []string{src}, out, false, job.Options{})
	if sum.Processed != 1 {
		t.Fatalf("summary = %+v, want 1 processed", sum)
	}
	if _, err := os.Stat(filepath.Join(dir, "clean.0007.exr")); err != nil {
		t.Fatalf("output frame missing: %v", err)
	}
}

func TestProcessToOutputPatternNoFrameNumber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plate.exr")
	writeFrame(t, src)

	l := applog.WithComponent("test")
	out := filepath.Join(dir, "clean.%04d.exr")
	sum := processToOutput(l, []string{src}, out, false, job.Options{})
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed for frameless input", sum)
	}
}

func TestProcessToOutputRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shot.0001.exr")
	writeFrame(t, src)

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	existing := filepath.Join(outDir, "shot.0001.exr")
	if err := os.WriteFile(existing, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l := applog.WithComponent("test")
	sum := processToOutput(l, []string{src}, outDir, false, job.Options{})
	if sum.Skipped != 1 {
		t.Fatalf("summary = %+v, want 1 skipped", sum)
	}
	b, err := os.ReadFile(existing)
	if err != nil || string(b) != "keep me" {
		t.Fatalf("existing output was touched: %q %v", b, err)
	}

	sum = processToOutput(l, []string{src}, outDir, true, job.Options{})
	if sum.Processed != 1 {
		t.Fatalf("summary = %+v, want 1 processed with overwrite", sum)
	}
}

func TestExpandInputsSingle(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "shot.0001.exr")
	writeFrame(t, src)

	files, err := expandInputs([]string{src, src}, "", true)
	if err != nil {
		t.Fatalf("expandInputs: %v", err)
	}
	if len(files) != 1 || files[0] != src {
		t.Fatalf("files = %v, want just %s", files, src)
	}
}

func TestExpandInputsSequence(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"shot.0001.exr", "shot.0002.exr", "shot.0003.exr"} {
		writeFrame(t, filepath.Join(dir, name))
	}

	files, err := expandInputs([]string{filepath.Join(dir, "shot.0001.exr")}, "1-2", false)
	if err != nil {
		t.Fatalf("expandInputs: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 frames", files)
	}
}
