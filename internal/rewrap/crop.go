/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rewrap

import (
	"github.com/mrjoshuak/go-openexr/exr"
)

// ContentBounds scans every channel of a frame buffer for nonzero pixels and
// returns the tight bounding box in image coordinates. The frame buffer must
// have been allocated for the given data window; slices are addressed at
// absolute image coordinates on both axes.
//
// A frame that is zero everywhere collapses to a 1x1 window at the data
// window origin, so downstream tools still get a valid image.
func ContentBounds(fb *exr.FrameBuffer, cl *exr.ChannelList, dw exr.Box2i) (exr.Box2i, bool) {
	minX, maxX := int(dw.Min.X), int(dw.Max.X)
	minY, maxY := int(dw.Min.Y), int(dw.Max.Y)

	found := false
	bounds := exr.Box2i{}

	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		slice := fb.Get(ch.Name)
		if slice == nil {
			continue
		}
		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				if !nonzero(slice, ch.Type, x, y) {
					continue
				}
				ax := int32(x)
				ay := int32(y)
				if !found {
					bounds = exr.Box2i{Min: exr.V2i{X: ax, Y: ay}, Max: exr.V2i{X: ax, Y: ay}}
					found = true
					continue
				}
				if ax < bounds.Min.X {
					bounds.Min.X = ax
				}
				if ax > bounds.Max.X {
					bounds.Max.X = ax
				}
				if ay < bounds.Min.Y {
					bounds.Min.Y = ay
				}
				if ay > bounds.Max.Y {
					bounds.Max.Y = ay
				}
			}
		}
	}

	if !found {
		bounds = exr.Box2i{Min: dw.Min, Max: dw.Min}
	}
	return bounds, bounds != dw
}

func nonzero(slice *exr.Slice, t exr.PixelType, x, y int) bool {
	switch t {
	case exr.PixelTypeUint:
		return slice.GetUint32(x, y) != 0
	default:
		return slice.GetFloat32(x, y) != 0
	}
}
