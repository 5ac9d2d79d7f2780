/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rewrap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrjoshuak/go-openexr/exr"
)

// Options selects which transforms are applied to a file.
type Options struct {
	AutoCrop       bool   // shrink the data window to the nonzero content bounds
	SplitParts     bool   // one output part per channel layer
	FixChannels    bool   // rename nonconformant channel names (z -> Z)
	StripManifests bool   // drop cryptomatte/id manifest attributes
	Compression    string // output compression name; empty keeps the source setting
}

// Result summarizes what a ProcessFile call did.
type Result struct {
	Parts           int
	DataWindow      exr.Box2i
	Cropped         bool
	Multipart       bool
	StrippedAttrs   int
	RenamedChannels int
}

var compressionNames = map[string]exr.Compression{
	"none":  exr.CompressionNone,
	"rle":   exr.CompressionRLE,
	"zips":  exr.CompressionZIPS,
	"zip":   exr.CompressionZIP,
	"piz":   exr.CompressionPIZ,
	"pxr24": exr.CompressionPXR24,
	"b44":   exr.CompressionB44,
	"b44a":  exr.CompressionB44A,
	"dwaa":  exr.CompressionDWAA,
	"dwab":  exr.CompressionDWAB,
}

// CompressionNames lists the accepted compression names, sorted.
func CompressionNames() []string {
	names := make([]string, 0, len(compressionNames))
	for n := range compressionNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseCompression maps a user-supplied name to the library constant.
// An empty name means the source compression is kept (override=false).
func ParseCompression(name string) (c exr.Compression, override bool, err error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false, nil
	}
	c, ok := compressionNames[name]
	if !ok {
		return 0, false, fmt.Errorf("unknown compression %q (accepted: %s)", name, strings.Join(CompressionNames(), ", "))
	}
	return c, true, nil
}
