/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package report renders a PDF contact sheet of a frame sequence so a
// supervisor can eyeball a batch before and after processing.
package report

import (
	"bytes"
	"fmt"
	"image/png"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"exrwrap/internal/preview"
)

// SheetOptions controls the contact sheet layout. Units are points.
type SheetOptions struct {
	Title    string
	Columns  int     // thumbnails per row, default 4
	Margin   float64 // page margin, default 36
	Exposure float64 // preview exposure in stops
}

// WriteContactSheet renders one thumbnail per file onto A4 pages and writes
// the PDF to outPath. Frames that fail to decode get a placeholder cell
// instead of aborting the sheet.
func WriteContactSheet(files []string, outPath string, opt SheetOptions) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to lay out")
	}
	cols := opt.Columns
	if cols <= 0 {
		cols = 4
	}
	margin := opt.Margin
	if margin <= 0 {
		margin = 36
	}
	title := opt.Title
	if title == "" {
		title = filepath.Base(files[0])
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAuthor("exrwrap", false)
	pdf.SetFont("Helvetica", "", 10)

	pageW, pageH := pdf.GetPageSize()
	cellW := (pageW - 2*margin) / float64(cols)
	imgW := cellW - 8
	imgH := imgW * 9 / 16 // landscape plate assumption; tall frames letterbox
	captionH := 14.0
	cellH := imgH + captionH + 10

	addPage := func() float64 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Text(margin, margin-10, title)
		pdf.SetFont("Helvetica", "", 8)
		return margin + 10
	}

	y := addPage()
	col := 0
	for i, file := range files {
		if y+cellH > pageH-margin {
			y = addPage()
			col = 0
		}
		x := margin + float64(col)*cellW

		if err := placeThumb(pdf, file, i, x+4, y, imgW, imgH, opt.Exposure); err != nil {
			pdf.SetDrawColor(180, 180, 180)
			pdf.Rect(x+4, y, imgW, imgH, "D")
			pdf.Text(x+8, y+imgH/2, "unreadable")
		}
		pdf.Text(x+4, y+imgH+captionH-4, filepath.Base(file))

		col++
		if col == cols {
			col = 0
			y += cellH
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func placeThumb(pdf *gofpdf.Fpdf, file string, idx int, x, y, w, h, exposure float64) error {
	img, err := preview.Render(file, preview.Options{MaxDim: 512, Exposure: exposure})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode thumb: %w", err)
	}

	name := fmt.Sprintf("thumb-%d", idx)
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)

	// Fit into the cell preserving aspect.
	b := img.Bounds()
	ar := float64(b.Dx()) / float64(b.Dy())
	dw, dh := w, w/ar
	if dh > h {
		dh = h
		dw = h * ar
	}
	pdf.ImageOptions(name, x+(w-dw)/2, y+(h-dh)/2, dw, dh, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return pdf.Error()
}
