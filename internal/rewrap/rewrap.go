/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package rewrap rewrites OpenEXR files: cropping the data window to the
// content bounds, regrouping channels into one part per layer, repairing
// channel names, dropping manifest metadata, and re-encoding compression.
// All pixel and header I/O is delegated to github.com/mrjoshuak/go-openexr.
package rewrap

import (
	"fmt"
	"os"

	"github.com/mrjoshuak/go-openexr/exr"
)

// ProcessFile reads the EXR at src, applies the selected transforms, and
// writes the result to dst. src and dst must be different paths; callers
// that rewrite in place stash the original first.
//
// Files that are already multi-part are rewritten part by part (compression,
// channel fix, manifest strip, auto crop when all parts share one data
// window); parts are never regrouped. Deep parts are not supported.
func ProcessFile(src, dst string, opts Options) (*Result, error) {
	comp, override, err := ParseCompression(opts.Compression)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", src, err)
	}

	file, err := exr.OpenReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}

	for p := 0; p < file.NumParts(); p++ {
		t := partType(file.Header(p))
		if t == exr.PartTypeDeepScanline || t == exr.PartTypeDeepTiled {
			return nil, fmt.Errorf("%s: deep parts are not supported", src)
		}
	}

	if file.NumParts() > 1 {
		return copyMultiPart(file, dst, comp, override, opts)
	}
	return rewrapSinglePart(file, dst, comp, override, opts)
}

// rewrapSinglePart applies the full transform set to a single-part input.
func rewrapSinglePart(file *exr.File, dst string, comp exr.Compression, override bool, opts Options) (*Result, error) {
	h := file.Header(0)
	if h == nil {
		return nil, fmt.Errorf("missing header")
	}
	dw := h.DataWindow()
	cl := h.Channels()
	if cl == nil || cl.Len() == 0 {
		return nil, fmt.Errorf("no channels")
	}

	fb, _ := exr.AllocateChannels(cl, dw)
	if err := readPart(file, 0, h, fb, dw); err != nil {
		return nil, err
	}

	res := &Result{DataWindow: dw}

	outDW := dw
	if opts.AutoCrop {
		outDW, res.Cropped = ContentBounds(fb, cl, dw)
		res.DataWindow = outDW
	}

	var groups []LayerGroup
	if opts.SplitParts {
		groups = GroupByLayer(cl)
	} else {
		groups = []LayerGroup{{Name: DefaultPartName, Channels: channelSlice(cl)}}
	}
	res.Parts = len(groups)
	res.Multipart = len(groups) > 1

	outFile, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() { _ = outFile.Close() }()

	if len(groups) == 1 {
		err = writeSingleGroup(outFile, h, fb, outDW, groups[0], comp, override, opts, res)
	} else {
		err = writeGroupsMultiPart(outFile, h, fb, outDW, groups, comp, override, opts, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// readPart fills fb with the pixels of one non-deep part, reading tiles at
// the base level for tiled parts.
func readPart(file *exr.File, part int, h *exr.Header, fb *exr.FrameBuffer, dw exr.Box2i) error {
	if h.IsTiled() {
		reader, err := exr.NewTiledReaderPart(file, part)
		if err != nil {
			return fmt.Errorf("failed to create tiled reader: %w", err)
		}
		reader.SetFrameBuffer(fb)
		numTilesX := h.NumXTiles(0)
		numTilesY := h.NumYTiles(0)
		for ty := 0; ty < numTilesY; ty++ {
			for tx := 0; tx < numTilesX; tx++ {
				if err := reader.ReadTile(tx, ty); err != nil {
					return fmt.Errorf("failed to read tile (%d,%d): %w", tx, ty, err)
				}
			}
		}
		return nil
	}

	reader, err := exr.NewScanlineReaderPart(file, part)
	if err != nil {
		return fmt.Errorf("failed to create scanline reader: %w", err)
	}
	reader.SetFrameBuffer(fb)
	if err := reader.ReadPixels(int(dw.Min.Y), int(dw.Max.Y)); err != nil {
		return fmt.Errorf("failed to read pixels: %w", err)
	}
	return nil
}

// writeSingleGroup writes one scanline part holding all channels of the group.
func writeSingleGroup(outFile *os.File, srcH *exr.Header, srcFB *exr.FrameBuffer, outDW exr.Box2i, group LayerGroup, comp exr.Compression, override bool, opts Options, res *Result) error {
	channels := group.Channels
	var renamed int
	if opts.FixChannels {
		channels, renamed = fixChannelList(channels)
		res.RenamedChannels = renamed
	}

	h := buildPartHeader(srcH, channels, outDW, comp, override)
	res.StrippedAttrs = copyMetadata(srcH, h, opts.StripManifests)

	// Slices from AllocateChannels address absolute image coordinates, which
	// is also how the scanline writer reads them.
	outFB, _ := exr.AllocateChannels(h.Channels(), outDW)
	copyRegion(srcFB, group.Channels, outFB, channels, outDW, 0)

	writer, err := exr.NewScanlineWriter(outFile, h)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	writer.SetFrameBuffer(outFB)
	if err := writer.WritePixels(int(outDW.Min.Y), int(outDW.Max.Y)); err != nil {
		return fmt.Errorf("failed to write pixels: %w", err)
	}
	return writer.Close()
}

// writeGroupsMultiPart writes one scanline part per layer group. Metadata
// lands on the first part only.
func writeGroupsMultiPart(outFile *os.File, srcH *exr.Header, srcFB *exr.FrameBuffer, outDW exr.Box2i, groups []LayerGroup, comp exr.Compression, override bool, opts Options, res *Result) error {
	headers := make([]*exr.Header, len(groups))
	fixed := make([][]exr.Channel, len(groups))
	for i, g := range groups {
		channels := g.Channels
		if opts.FixChannels {
			var renamed int
			channels, renamed = fixChannelList(channels)
			res.RenamedChannels += renamed
		}
		fixed[i] = channels

		h := buildPartHeader(srcH, channels, outDW, comp, override)
		h.Set(&exr.Attribute{Name: exr.AttrNameName, Type: exr.AttrTypeString, Value: g.Name})
		h.Set(&exr.Attribute{Name: exr.AttrNameType, Type: exr.AttrTypeString, Value: exr.PartTypeScanline})
		if i == 0 {
			res.StrippedAttrs = copyMetadata(srcH, h, opts.StripManifests)
		}
		headers[i] = h
	}

	mpOut, err := exr.NewMultiPartOutputFile(outFile, headers)
	if err != nil {
		return fmt.Errorf("failed to create multi-part file: %w", err)
	}

	// The multi-part writer reads rows starting at x=0, not at the data
	// window origin; allocate over a window shifted to x=0.
	writerDW := exr.Box2i{
		Min: exr.V2i{X: 0, Y: outDW.Min.Y},
		Max: exr.V2i{X: outDW.Width() - 1, Y: outDW.Max.Y},
	}
	numLines := int(outDW.Height())
	for i, g := range groups {
		outFB, _ := exr.AllocateChannels(headers[i].Channels(), writerDW)
		copyRegion(srcFB, g.Channels, outFB, fixed[i], outDW, -int(outDW.Min.X))
		if err := mpOut.SetFrameBuffer(i, outFB); err != nil {
			return fmt.Errorf("failed to set frame buffer: %w", err)
		}
		if err := mpOut.WritePixels(i, numLines); err != nil {
			return fmt.Errorf("failed to write part %d: %w", i, err)
		}
	}
	return mpOut.Close()
}

// copyRegion copies the outDW region of the source channels into the
// destination slices. Both buffers are addressed at absolute image
// coordinates; dstXOff shifts the destination x for the multi-part writer,
// which reads rows starting at x=0.
func copyRegion(srcFB *exr.FrameBuffer, srcChannels []exr.Channel, dstFB *exr.FrameBuffer, dstChannels []exr.Channel, outDW exr.Box2i, dstXOff int) {
	for ci := range srcChannels {
		src := srcFB.Get(srcChannels[ci].Name)
		dst := dstFB.Get(dstChannels[ci].Name)
		if src == nil || dst == nil {
			continue
		}
		for y := int(outDW.Min.Y); y <= int(outDW.Max.Y); y++ {
			for x := int(outDW.Min.X); x <= int(outDW.Max.X); x++ {
				dx := x + dstXOff
				switch srcChannels[ci].Type {
				case exr.PixelTypeUint:
					dst.SetUint32(dx, y, src.GetUint32(x, y))
				case exr.PixelTypeHalf:
					dst.SetHalf(dx, y, src.GetHalf(x, y))
				default:
					dst.SetFloat32(dx, y, src.GetFloat32(x, y))
				}
			}
		}
	}
}

// buildPartHeader assembles an output header that inherits the display
// geometry of the source.
func buildPartHeader(srcH *exr.Header, channels []exr.Channel, outDW exr.Box2i, comp exr.Compression, override bool) *exr.Header {
	h := exr.NewHeader()
	h.SetDataWindow(outDW)
	h.SetDisplayWindow(srcH.DisplayWindow())
	h.SetPixelAspectRatio(srcH.PixelAspectRatio())
	h.SetScreenWindowCenter(srcH.ScreenWindowCenter())
	h.SetScreenWindowWidth(srcH.ScreenWindowWidth())
	h.SetLineOrder(exr.LineOrderIncreasing)
	if override {
		h.SetCompression(comp)
	} else {
		h.SetCompression(srcH.Compression())
	}
	cl := exr.NewChannelList()
	for _, ch := range channels {
		cl.Add(ch)
	}
	h.SetChannels(cl)
	return h
}

// copyMultiPart rewrites an already multi-part file part by part. Tiled
// parts come out as scanline parts. Auto crop applies only when every part
// shares one data window; the bounds come from part 0 and shrink all parts
// together so the file stays geometrically aligned.
func copyMultiPart(file *exr.File, dst string, comp exr.Compression, override bool, opts Options) (*Result, error) {
	numParts := file.NumParts()
	res := &Result{Parts: numParts, Multipart: true}

	srcHeaders := make([]*exr.Header, numParts)
	fbs := make([]*exr.FrameBuffer, numParts)
	sharedDW := true
	for p := 0; p < numParts; p++ {
		srcH := file.Header(p)
		if srcH == nil {
			return nil, fmt.Errorf("missing header for part %d", p)
		}
		srcHeaders[p] = srcH
		dw := srcH.DataWindow()
		if dw != srcHeaders[0].DataWindow() {
			sharedDW = false
		}
		fb, _ := exr.AllocateChannels(srcH.Channels(), dw)
		if err := readPart(file, p, srcH, fb, dw); err != nil {
			return nil, fmt.Errorf("part %d: %w", p, err)
		}
		fbs[p] = fb
	}

	res.DataWindow = srcHeaders[0].DataWindow()
	cropDW := exr.Box2i{}
	if opts.AutoCrop && sharedDW {
		cropDW, res.Cropped = ContentBounds(fbs[0], srcHeaders[0].Channels(), srcHeaders[0].DataWindow())
		if res.Cropped {
			res.DataWindow = cropDW
		}
	}

	headers := make([]*exr.Header, numParts)
	srcChs := make([][]exr.Channel, numParts)
	dstChs := make([][]exr.Channel, numParts)
	for p := 0; p < numParts; p++ {
		srcH := srcHeaders[p]
		h := cloneHeader(srcH)
		if override {
			h.SetCompression(comp)
		}
		if opts.StripManifests {
			res.StrippedAttrs += stripManifestAttrs(h)
		}
		srcChs[p] = channelSlice(srcH.Channels())
		dstChs[p] = srcChs[p]
		if opts.FixChannels {
			fixedChs, renamed := fixChannelList(srcChs[p])
			dstChs[p] = fixedChs
			res.RenamedChannels += renamed
			if renamed > 0 {
				cl := exr.NewChannelList()
				for _, ch := range fixedChs {
					cl.Add(ch)
				}
				h.SetChannels(cl)
			}
		}
		if res.Cropped {
			h.SetDataWindow(cropDW)
		}
		// tiled parts come out as scanline
		h.Remove("tiles")
		h.Set(&exr.Attribute{Name: exr.AttrNameType, Type: exr.AttrTypeString, Value: exr.PartTypeScanline})
		if !h.Has(exr.AttrNameName) {
			h.Set(&exr.Attribute{Name: exr.AttrNameName, Type: exr.AttrTypeString, Value: fmt.Sprintf("part%d", p)})
		}
		headers[p] = h
	}

	outFile, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() { _ = outFile.Close() }()

	mpOut, err := exr.NewMultiPartOutputFile(outFile, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-part file: %w", err)
	}

	for p := 0; p < numParts; p++ {
		outDW := headers[p].DataWindow()
		writerDW := exr.Box2i{
			Min: exr.V2i{X: 0, Y: outDW.Min.Y},
			Max: exr.V2i{X: outDW.Width() - 1, Y: outDW.Max.Y},
		}
		outFB, _ := exr.AllocateChannels(headers[p].Channels(), writerDW)
		copyRegion(fbs[p], srcChs[p], outFB, dstChs[p], outDW, -int(outDW.Min.X))
		if err := mpOut.SetFrameBuffer(p, outFB); err != nil {
			return nil, fmt.Errorf("failed to set frame buffer: %w", err)
		}
		if err := mpOut.WritePixels(p, int(outDW.Height())); err != nil {
			return nil, fmt.Errorf("failed to write part %d: %w", p, err)
		}
	}
	if err := mpOut.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize output file: %w", err)
	}
	return res, nil
}

// channelSlice flattens a channel list preserving its order.
func channelSlice(cl *exr.ChannelList) []exr.Channel {
	out := make([]exr.Channel, 0, cl.Len())
	for i := 0; i < cl.Len(); i++ {
		out = append(out, cl.At(i))
	}
	return out
}

// cloneHeader creates a copy of a header with all attributes.
func cloneHeader(h *exr.Header) *exr.Header {
	newH := exr.NewHeader()
	for _, attr := range h.Attributes() {
		newH.Set(&exr.Attribute{Name: attr.Name, Type: attr.Type, Value: attr.Value})
	}
	return newH
}

// partType returns the type of a part, inferring it when the attribute is
// absent.
func partType(h *exr.Header) string {
	if attr := h.Get(exr.AttrNameType); attr != nil {
		if t, ok := attr.Value.(string); ok {
			return t
		}
	}
	if h.IsTiled() {
		return exr.PartTypeTiled
	}
	return exr.PartTypeScanline
}
