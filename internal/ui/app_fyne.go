//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"exrwrap/internal/config"
	"exrwrap/internal/crash"
	"exrwrap/internal/job"
	applog "exrwrap/internal/log"
	"exrwrap/internal/preset"
	"exrwrap/internal/preview"
	"exrwrap/internal/rewrap"
	"exrwrap/internal/sequence"
	"exrwrap/internal/version"
)

const sourceCompression = "source"

// Run starts the Fyne desktop UI. initialPath, when non-empty, is loaded as
// if picked through the file dialog.
func Run(initialPath string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))
	defer crash.Recover()

	cfg, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	fyneApp := app.NewWithID("exrwrap")
	w := fyneApp.NewWindow("EXR Wrapper")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 900)
	winH := prefs.IntWithFallback("window.height", 700)
	if winW < 640 {
		winW = 640
	}
	if winH < 480 {
		winH = 480
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	progress := widget.NewProgressBar()
	logView := widget.NewMultiLineEntry()
	logView.Wrapping = fyne.TextWrapWord
	appendLog := func(line string) {
		logView.SetText(logView.Text + line + "\n")
		logView.CursorRow = strings.Count(logView.Text, "\n")
	}

	// Input selection
	pathEntry := widget.NewEntry()
	pathEntry.SetPlaceHolder("path to .exr frame or sequence pattern")
	firstEntry := widget.NewEntry()
	firstEntry.SetPlaceHolder("first")
	lastEntry := widget.NewEntry()
	lastEntry.SetPlaceHolder("last")
	seqLabel := widget.NewLabel("no sequence loaded")

	previewImg := canvas.NewImageFromImage(nil)
	previewImg.FillMode = canvas.ImageFillContain
	previewImg.SetMinSize(fyne.NewSize(320, 180))

	var files []string
	loadSequence := func(path string) {
		if strings.TrimSpace(path) == "" {
			return
		}
		pattern, ok := sequence.Detect(path)
		if !ok {
			pattern = path
		}
		frameRange := ""
		if firstEntry.Text != "" && lastEntry.Text != "" {
			frameRange = firstEntry.Text + "-" + lastEntry.Text
		}
		found, err := sequence.Find(pattern, frameRange)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		files = found
		if first, last, ok := sequence.Bounds(files); ok {
			seqLabel.SetText(fmt.Sprintf("%d frames (%d-%d)", len(files), first, last))
			if firstEntry.Text == "" {
				firstEntry.SetText(strconv.Itoa(first))
			}
			if lastEntry.Text == "" {
				lastEntry.SetText(strconv.Itoa(last))
			}
		} else {
			seqLabel.SetText(fmt.Sprintf("%d file(s)", len(files)))
		}
		if len(files) > 0 {
			go func(frame string) {
				img, perr := preview.Render(frame, preview.Options{MaxDim: 512})
				fyne.Do(func() {
					if perr != nil {
						l.Warn("preview failed", slog.Any("err", perr))
						return
					}
					previewImg.Image = img
					previewImg.Refresh()
				})
			}(files[0])
		}
	}

	browseBtn := widget.NewButton("Browse…", func() {
		open := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if ur == nil {
				return
			}
			path := ur.URI().Path()
			_ = ur.Close()
			pathEntry.SetText(path)
			loadSequence(path)
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".exr"}))
		open.Show()
	})

	// Processing options
	autoCropCheck := widget.NewCheck("Auto crop data window", nil)
	autoCropCheck.SetChecked(cfg.Processing.AutoCrop)
	splitCheck := widget.NewCheck("Split layers into parts", nil)
	splitCheck.SetChecked(cfg.Processing.SplitParts)
	fixCheck := widget.NewCheck("Fix channel names", nil)
	fixCheck.SetChecked(cfg.Processing.FixChannels)
	stripCheck := widget.NewCheck("Strip manifest metadata", nil)
	stripCheck.SetChecked(cfg.Processing.StripManifests)
	backupCheck := widget.NewCheck("Keep backup (_BAK)", nil)
	backupCheck.SetChecked(cfg.Processing.KeepBackup)
	dryRunCheck := widget.NewCheck("Dry run", nil)

	compOptions := append([]string{sourceCompression}, rewrap.CompressionNames()...)
	compSelect := widget.NewSelect(compOptions, nil)
	if cfg.Processing.Compression != "" {
		compSelect.SetSelected(cfg.Processing.Compression)
	} else {
		compSelect.SetSelected(sourceCompression)
	}

	currentOptions := func() job.Options {
		comp := compSelect.Selected
		if comp == sourceCompression {
			comp = ""
		}
		return job.Options{
			Rewrap: rewrap.Options{
				AutoCrop:       autoCropCheck.Checked,
				SplitParts:     splitCheck.Checked,
				FixChannels:    fixCheck.Checked,
				StripManifests: stripCheck.Checked,
				Compression:    comp,
			},
			DryRun:     dryRunCheck.Checked,
			KeepBackup: backupCheck.Checked,
		}
	}

	// Presets
	presetSelect := widget.NewSelect(nil, nil)
	refreshPresets := func() {
		names, perr := preset.List()
		if perr != nil {
			l.Warn("list presets failed", slog.Any("err", perr))
			return
		}
		presetSelect.Options = names
		presetSelect.Refresh()
	}
	presetSelect.OnChanged = func(name string) {
		if name == "" {
			return
		}
		p, perr := preset.Load(name)
		if perr != nil {
			dialog.ShowError(perr, w)
			return
		}
		autoCropCheck.SetChecked(p.AutoCrop)
		splitCheck.SetChecked(p.SplitParts)
		fixCheck.SetChecked(p.FixChannels)
		stripCheck.SetChecked(p.StripManifests)
		backupCheck.SetChecked(p.KeepBackup)
		if p.Compression != "" {
			compSelect.SetSelected(p.Compression)
		} else {
			compSelect.SetSelected(sourceCompression)
		}
		status.SetText("Preset " + name + " loaded")
	}
	refreshPresets()

	savePresetBtn := widget.NewButton("Save preset…", func() {
		nameEntry := widget.NewEntry()
		dialog.ShowForm("Save Preset", "Save", "Cancel",
			[]*widget.FormItem{widget.NewFormItem("Name", nameEntry)},
			func(ok bool) {
				if !ok {
					return
				}
				opts := currentOptions()
				p := preset.Preset{
					Name:           nameEntry.Text,
					AutoCrop:       opts.Rewrap.AutoCrop,
					SplitParts:     opts.Rewrap.SplitParts,
					FixChannels:    opts.Rewrap.FixChannels,
					StripManifests: opts.Rewrap.StripManifests,
					KeepBackup:     opts.KeepBackup,
					Compression:    opts.Rewrap.Compression,
				}
				if serr := preset.Save(p); serr != nil {
					dialog.ShowError(serr, w)
					return
				}
				refreshPresets()
				status.SetText("Preset " + p.Name + " saved")
			}, w)
	})

	// Run / cancel
	var cancelRun context.CancelFunc
	runBtn := widget.NewButton("Run", nil)
	cancelBtn := widget.NewButton("Cancel", func() {
		if cancelRun != nil {
			cancelRun()
		}
	})
	cancelBtn.Disable()

	runBtn.OnTapped = func() {
		loadSequence(pathEntry.Text)
		if len(files) == 0 {
			dialog.ShowInformation("Run", "No frames to process.", w)
			return
		}
		opts := currentOptions()

		ctx, cancel := context.WithCancel(context.Background())
		cancelRun = cancel
		runBtn.Disable()
		cancelBtn.Enable()
		progress.SetValue(0)
		status.SetText("Processing…")
		appendLog(fmt.Sprintf("starting batch of %d frame(s)", len(files)))

		go func(batch []string, jo job.Options) {
			runner := &job.Runner{}
			sum, rerr := runner.Run(ctx, batch, jo, func(done, total int, file string) {
				fyne.Do(func() {
					progress.SetValue(float64(done) / float64(total))
					status.SetText(fmt.Sprintf("%d/%d %s", done, total, file))
				})
			})
			fyne.Do(func() {
				runBtn.Enable()
				cancelBtn.Disable()
				cancelRun = nil
				if rerr != nil {
					appendLog("batch canceled: " + rerr.Error())
					status.SetText("Canceled")
					return
				}
				for _, fr := range sum.Results {
					switch {
					case fr.Err != nil:
						appendLog("FAIL " + fr.File + ": " + fr.Err.Error())
					case fr.Skipped:
						appendLog("skip " + fr.File + " (" + fr.Reason + ")")
					default:
						appendLog("ok   " + fr.File)
					}
				}
				status.SetText(fmt.Sprintf("Done: %d processed, %d skipped, %d failed",
					sum.Processed, sum.Skipped, sum.Failed))
			})
		}(files, opts)
	}

	pathEntry.OnSubmitted = func(s string) { loadSequence(s) }

	// Dropping a frame anywhere on the window loads its sequence.
	w.SetOnDropped(func(_ fyne.Position, uris []fyne.URI) {
		if len(uris) == 0 {
			return
		}
		path := uris[0].Path()
		pathEntry.SetText(path)
		loadSequence(path)
	})

	inputRow := container.NewBorder(nil, nil, nil, browseBtn, pathEntry)
	rangeRow := container.NewHBox(widget.NewLabel("Frames"), firstEntry, widget.NewLabel("to"), lastEntry, seqLabel)
	optionsBox := container.NewVBox(
		autoCropCheck, splitCheck, fixCheck, stripCheck, backupCheck, dryRunCheck,
		container.NewHBox(widget.NewLabel("Compression"), compSelect),
		container.NewHBox(widget.NewLabel("Preset"), presetSelect, savePresetBtn),
	)
	buttonsRow := container.NewHBox(runBtn, cancelBtn)

	left := container.NewVBox(inputRow, rangeRow, optionsBox, buttonsRow, progress, status)
	content := container.NewHSplit(left, container.NewBorder(nil, nil, nil, nil,
		container.NewVSplit(previewImg, logView)))
	w.SetContent(content)

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	if initialPath != "" {
		pathEntry.SetText(initialPath)
		loadSequence(initialPath)
	}

	w.ShowAndRun()
	return nil
}
