/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package preview turns linear EXR frames into small display-ready images
// for the UI and the contact sheet. HDR values are exposed, gamma-corrected
// and clamped; nothing here is color-managed beyond that.
package preview

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/mrjoshuak/go-openexr/exr"
)

// Options controls tone mapping and sizing.
type Options struct {
	MaxDim   int     // longest edge of the thumbnail, 0 means no scaling
	Exposure float64 // stops applied before gamma
	Gamma    float64 // display gamma, 0 means 2.2
}

// Render reads the first part of the EXR at path and returns a tone-mapped
// 8-bit image.
func Render(path string, opt Options) (image.Image, error) {
	in, err := exr.OpenRGBAInputFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	hdr, err := in.ReadRGBA()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	img := toneMap(hdr, opt)
	if opt.MaxDim > 0 {
		img = scaleDown(img, opt.MaxDim)
	}
	return img, nil
}

// WritePNG renders a thumbnail and writes it as PNG.
func WritePNG(src, dst string, opt Options) error {
	img, err := Render(src, opt)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

func toneMap(hdr *exr.RGBAImage, opt Options) *image.NRGBA {
	gamma := opt.Gamma
	if gamma <= 0 {
		gamma = 2.2
	}
	gain := math.Pow(2, opt.Exposure)
	inv := 1.0 / gamma

	b := hdr.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := hdr.RGBA(x, y)
			i := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[i+0] = encode(float64(r), gain, inv)
			out.Pix[i+1] = encode(float64(g), gain, inv)
			out.Pix[i+2] = encode(float64(bl), gain, inv)
			out.Pix[i+3] = alpha8(float64(a))
		}
	}
	return out
}

func encode(v, gain, invGamma float64) uint8 {
	v *= gain
	if v <= 0 {
		return 0
	}
	v = math.Pow(v, invGamma)
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func alpha8(a float64) uint8 {
	if a <= 0 {
		return 0
	}
	if a >= 1 {
		return 255
	}
	return uint8(a*255 + 0.5)
}

func scaleDown(img *image.NRGBA, maxDim int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	var tw, th int
	if w >= h {
		tw = maxDim
		th = h * maxDim / w
	} else {
		th = maxDim
		tw = w * maxDim / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
