/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package job runs the rewrap pipeline over a batch of frames. Each file is
// rewritten in place: the original moves into a sibling _BAK directory, the
// transformed file takes its path, and the backup is kept or discarded per
// the job options. A failure restores the original before moving on.
package job

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"exrwrap/internal/backup"
	applog "exrwrap/internal/log"
	"exrwrap/internal/rewrap"
)

// Processor transforms one file. It exists so tests can swap out the EXR
// pipeline; the zero value of Runner uses rewrap.ProcessFile.
type Processor func(src, dst string, opts rewrap.Options) (*rewrap.Result, error)

// Options controls a batch run.
type Options struct {
	Rewrap     rewrap.Options
	DryRun     bool // report what would happen without touching files
	KeepBackup bool // keep the _BAK copy after a successful rewrite
}

// Progress is called after each file with the running counts. done includes
// skipped and failed files.
type Progress func(done, total int, file string)

// FileResult records the outcome for a single frame.
type FileResult struct {
	File    string
	Skipped bool
	Reason  string
	Err     error
	Result  *rewrap.Result
}

// Summary aggregates a batch run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Results   []FileResult
}

// Runner executes batches. The zero value is usable.
type Runner struct {
	Process Processor
}

// Run processes files in order, stopping early only when ctx is canceled.
// Individual file failures are recorded in the summary and do not abort the
// batch.
func (r *Runner) Run(ctx context.Context, files []string, opts Options, progress Progress) (*Summary, error) {
	process := r.Process
	if process == nil {
		process = rewrap.ProcessFile
	}
	l := applog.WithComponent("job")

	sum := &Summary{Results: make([]FileResult, 0, len(files))}
	total := len(files)
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			l.Info("batch canceled", slog.Int("done", i), slog.Int("total", total))
			return sum, err
		}

		fr := r.runOne(l, file, opts, process)
		switch {
		case fr.Skipped:
			sum.Skipped++
		case fr.Err != nil:
			sum.Failed++
		default:
			sum.Processed++
		}
		sum.Results = append(sum.Results, fr)

		if progress != nil {
			progress(i+1, total, file)
		}
	}

	l.Info("batch done",
		slog.Int("processed", sum.Processed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
	)
	return sum, nil
}

func (r *Runner) runOne(l *slog.Logger, file string, opts Options, process Processor) FileResult {
	fr := FileResult{File: file}

	if !strings.EqualFold(filepath.Ext(file), ".exr") {
		fr.Skipped = true
		fr.Reason = "not an EXR file"
		l.Warn("skipping file", slog.String("file", file), slog.String("reason", fr.Reason))
		return fr
	}

	if opts.DryRun {
		fr.Skipped = true
		fr.Reason = "dry run"
		l.Info("dry run", slog.String("file", file))
		return fr
	}

	bak, err := backup.Stash(file)
	if errors.Is(err, backup.ErrExists) {
		// A leftover backup means the frame was processed before.
		fr.Skipped = true
		fr.Reason = "backup already exists"
		l.Warn("skipping file", slog.String("file", file), slog.String("reason", fr.Reason))
		return fr
	}
	if err != nil {
		fr.Err = fmt.Errorf("backup %s: %w", file, err)
		l.Error("backup failed", slog.String("file", file), slog.Any("err", err))
		return fr
	}

	res, err := process(bak, file, opts.Rewrap)
	if err != nil {
		fr.Err = fmt.Errorf("process %s: %w", file, err)
		l.Error("processing failed", slog.String("file", file), slog.Any("err", err))
		if rerr := backup.Restore(file); rerr != nil {
			l.Error("restore failed", slog.String("file", file), slog.Any("err", rerr))
			fr.Err = fmt.Errorf("%w; restore: %v", fr.Err, rerr)
		}
		return fr
	}
	fr.Result = res

	if !opts.KeepBackup {
		if derr := backup.Discard(file); derr != nil {
			l.Warn("discard backup failed", slog.String("file", file), slog.Any("err", derr))
		}
	}

	l.Info("file processed",
		slog.String("file", file),
		slog.Int("parts", res.Parts),
		slog.Bool("cropped", res.Cropped),
	)
	return fr
}
