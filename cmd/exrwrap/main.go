/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"exrwrap/internal/config"
	"exrwrap/internal/crash"
	"exrwrap/internal/history"
	"exrwrap/internal/job"
	applog "exrwrap/internal/log"
	"exrwrap/internal/report"
	"exrwrap/internal/rewrap"
	"exrwrap/internal/sequence"
	"exrwrap/internal/telemetry"
	"exrwrap/internal/version"
)

func usage() {
	fmt.Println("exrwrap — batch cleanup for OpenEXR render output")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  exrwrap [flags] <file-or-pattern>...       Process frames in place")
	fmt.Println("  exrwrap history [-limit N]                 Show recently processed files")
	fmt.Println("  exrwrap sheet [-F first-last] <out.pdf> <file-or-pattern>")
	fmt.Println("                                             Render a PDF contact sheet")
	fmt.Println("  exrwrap version|-v|--version               Show version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -F first-last   frame range, e.g. 1001-1099 or 1001-1010,1050")
	fmt.Println("  -o out          write results to a directory, or to an output sequence")
	fmt.Printf("                  (out.%%04d.exr or out.####.exr), instead of rewriting\n")
	fmt.Println("                  in place")
	fmt.Println("  -a              skip auto crop")
	fmt.Println("  -m              skip splitting layers into parts")
	fmt.Println("  -f              skip channel name fixes")
	fmt.Println("  -c name         re-encode with compression (none, rle, zips, zip, piz,")
	fmt.Println("                  pxr24, b44, b44a, dwaa, dwab)")
	fmt.Println("  -r              strip cryptomatte/id manifest attributes")
	fmt.Println("  -s              single file, do not expand the sequence")
	fmt.Println("  -y              overwrite existing files in the -o directory")
	fmt.Println("  -b              do not keep _BAK backups")
	fmt.Println("  -n              dry run")
	fmt.Println("  -v              verbose logging")
}

func main() {
	applog.Init(applog.FromEnv())
	defer crash.Recover()

	args := os.Args
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-version":
			fmt.Println("exrwrap — batch cleanup for OpenEXR render output")
			fmt.Println(version.String())
			return
		case "help", "--help", "-h":
			usage()
			return
		case "history":
			os.Exit(runHistory(args[2:]))
		case "sheet":
			os.Exit(runSheet(args[2:]))
		}
	}
	os.Exit(runProcess(args[1:]))
}

func runProcess(argv []string) int {
	fs := flag.NewFlagSet("exrwrap", flag.ExitOnError)
	fs.Usage = usage
	var (
		frameRange  = fs.String("F", "", "frame range")
		outDir      = fs.String("o", "", "output directory")
		skipCrop    = fs.Bool("a", false, "skip auto crop")
		skipSplit   = fs.Bool("m", false, "skip part split")
		skipFix     = fs.Bool("f", false, "skip channel fix")
		compression = fs.String("c", "", "compression")
		strip       = fs.Bool("r", false, "strip manifests")
		single      = fs.Bool("s", false, "single file")
		overwrite   = fs.Bool("y", false, "overwrite outputs")
		noBackup    = fs.Bool("b", false, "no backup")
		dryRun      = fs.Bool("n", false, "dry run")
		verbose     = fs.Bool("v", false, "verbose")
	)
	_ = fs.Parse(argv)

	if *verbose {
		lopts := applog.FromEnv()
		lopts.Level = "debug"
		applog.Init(lopts)
	}
	l := applog.WithComponent("cli")

	if fs.NArg() == 0 {
		fmt.Println("no input files")
		usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	comp := cfg.Processing.Compression
	if *compression != "" {
		comp = *compression
	}
	if _, _, err := rewrap.ParseCompression(comp); err != nil {
		fmt.Println("Error:", err)
		return 2
	}

	opts := job.Options{
		Rewrap: rewrap.Options{
			AutoCrop:       cfg.Processing.AutoCrop && !*skipCrop,
			SplitParts:     cfg.Processing.SplitParts && !*skipSplit,
			FixChannels:    cfg.Processing.FixChannels && !*skipFix,
			StripManifests: cfg.Processing.StripManifests || *strip,
			Compression:    comp,
		},
		DryRun:     *dryRun,
		KeepBackup: cfg.Processing.KeepBackup && !*noBackup,
	}

	files, err := expandInputs(fs.Args(), *frameRange, *single)
	if err != nil {
		fmt.Println("Error:", err)
		return 2
	}
	if len(files) == 0 {
		fmt.Println("no frames matched")
		return 1
	}
	l.Info("starting batch", slog.Int("files", len(files)), slog.Bool("dry_run", *dryRun))

	ledger := openLedger(l)
	defer func() { _ = ledger.Close() }()

	var sum *job.Summary
	if *outDir != "" {
		sum = processToOutput(l, files, *outDir, *overwrite, opts)
	} else {
		runner := &job.Runner{}
		sum, err = runner.Run(context.Background(), files, opts, func(done, total int, file string) {
			fmt.Printf("[%d/%d] %s\n", done, total, filepath.Base(file))
		})
		if err != nil {
			fmt.Println("Error:", err)
			return 1
		}
	}

	recordResults(l, ledger, sum, comp)
	telemetry.Event("batch_done", map[string]any{
		"files":     len(files),
		"processed": sum.Processed,
		"failed":    sum.Failed,
	})

	fmt.Printf("Done: %d processed, %d skipped, %d failed\n", sum.Processed, sum.Skipped, sum.Failed)
	if sum.Failed > 0 {
		return 1
	}
	return 0
}

// expandInputs turns arguments into a flat frame list. Patterns and paths
// with frame numbers expand to their sequence unless single is set.
func expandInputs(args []string, frameRange string, single bool) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, arg := range args {
		if single {
			if !seen[arg] {
				files = append(files, arg)
				seen[arg] = true
			}
			continue
		}
		pattern := arg
		if !sequence.IsPattern(arg) {
			if p, ok := sequence.Detect(arg); ok {
				pattern = p
			}
		}
		found, err := sequence.Find(pattern, frameRange)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if !seen[f] {
				files = append(files, f)
				seen[f] = true
			}
		}
	}
	return files, nil
}

// processToOutput writes results to a separate destination instead of
// rewriting in place, so no backups are involved. out is either a directory
// or a frame pattern (out.%04d.exr / out.####.exr) that gets the source
// frame number substituted.
func processToOutput(l *slog.Logger, files []string, out string, overwrite bool, opts job.Options) *job.Summary {
	sum := &job.Summary{}

	pattern := out
	isPattern := sequence.IsPattern(out)
	if !isPattern && strings.Contains(out, "#") {
		if p, ok := sequence.Detect(out); ok {
			pattern = p
			isPattern = true
		}
	}
	mkdir := out
	if isPattern {
		mkdir = filepath.Dir(pattern)
	}
	if err := os.MkdirAll(mkdir, 0o755); err != nil {
		fmt.Println("Error:", err)
		sum.Failed = len(files)
		return sum
	}
	total := len(files)
	for i, file := range files {
		fr := job.FileResult{File: file}
		var dst string
		if isPattern {
			frame, ok := sequence.FrameOf(file)
			if !ok {
				fr.Err = fmt.Errorf("no frame number in %s to fill %s", filepath.Base(file), pattern)
			}
			dst = sequence.FramePath(pattern, frame)
		} else {
			dst = filepath.Join(out, filepath.Base(file))
		}
		switch {
		case fr.Err != nil:
			l.Error("processing failed", slog.String("file", file), slog.Any("err", fr.Err))
		case opts.DryRun:
			fr.Skipped = true
			fr.Reason = "dry run"
		case !overwrite && exists(dst):
			fr.Skipped = true
			fr.Reason = "output exists"
			l.Warn("skipping file", slog.String("file", file), slog.String("reason", fr.Reason))
		default:
			res, err := rewrap.ProcessFile(file, dst, opts.Rewrap)
			if err != nil {
				fr.Err = err
				l.Error("processing failed", slog.String("file", file), slog.Any("err", err))
			} else {
				fr.Result = res
			}
		}
		switch {
		case fr.Skipped:
			sum.Skipped++
		case fr.Err != nil:
			sum.Failed++
		default:
			sum.Processed++
		}
		sum.Results = append(sum.Results, fr)
		fmt.Printf("[%d/%d] %s\n", i+1, total, filepath.Base(file))
	}
	return sum
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openLedger(l *slog.Logger) *history.Ledger {
	path, err := history.DefaultPath()
	if err != nil {
		l.Warn("history disabled", slog.Any("err", err))
		return nil
	}
	g, err := history.Open(path)
	if err != nil {
		l.Warn("history disabled", slog.Any("err", err))
		return nil
	}
	return g
}

func recordResults(l *slog.Logger, g *history.Ledger, sum *job.Summary, comp string) {
	if g == nil {
		return
	}
	ctx := context.Background()
	for _, fr := range sum.Results {
		e := history.Entry{File: fr.File, Compression: comp}
		switch {
		case fr.Err != nil:
			e.Status = "failed"
			e.Message = fr.Err.Error()
		case fr.Skipped:
			e.Status = "skipped"
			e.Message = fr.Reason
		default:
			e.Status = "ok"
			if fr.Result != nil {
				e.Parts = fr.Result.Parts
				e.Cropped = fr.Result.Cropped
				e.Stripped = fr.Result.StrippedAttrs
				e.Renamed = fr.Result.RenamedChannels
			}
		}
		if err := g.Record(ctx, e); err != nil {
			l.Warn("history record failed", slog.Any("err", err))
			return
		}
	}
}

func runHistory(argv []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 50, "max entries to show")
	_ = fs.Parse(argv)

	path, err := history.DefaultPath()
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	g, err := history.Open(path)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	defer func() { _ = g.Close() }()

	entries, err := g.List(context.Background(), *limit)
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Println("history is empty")
		return 0
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-7s %s", e.At.Local().Format("2006-01-02 15:04:05"), e.Status, e.File)
		if e.Status == "ok" {
			line += fmt.Sprintf("  parts=%d", e.Parts)
			if e.Cropped {
				line += " cropped"
			}
		} else if e.Message != "" {
			line += "  (" + e.Message + ")"
		}
		fmt.Println(line)
	}
	return 0
}

func runSheet(argv []string) int {
	fs := flag.NewFlagSet("sheet", flag.ExitOnError)
	frameRange := fs.String("F", "", "frame range")
	_ = fs.Parse(argv)

	if fs.NArg() < 2 {
		fmt.Println("sheet requires <out.pdf> and <file-or-pattern>")
		usage()
		return 2
	}
	outPath := fs.Arg(0)
	if !strings.HasSuffix(strings.ToLower(outPath), ".pdf") {
		outPath += ".pdf"
	}

	files, err := expandInputs(fs.Args()[1:], *frameRange, false)
	if err != nil {
		fmt.Println("Error:", err)
		return 2
	}
	if len(files) == 0 {
		fmt.Println("no frames matched")
		return 1
	}

	if err := report.WriteContactSheet(files, outPath, report.SheetOptions{}); err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	fmt.Printf("Wrote %s (%d frames)\n", outPath, len(files))
	return 0
}
