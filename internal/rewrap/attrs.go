/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rewrap

import (
	"strings"

	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/mrjoshuak/go-openexr/exrid"
)

// structuralAttrs are owned by the writer and never copied from the source.
var structuralAttrs = map[string]bool{
	"channels":           true,
	"compression":        true,
	"dataWindow":         true,
	"displayWindow":      true,
	"lineOrder":          true,
	"pixelAspectRatio":   true,
	"screenWindowCenter": true,
	"screenWindowWidth":  true,
	"tiles":              true,
	"type":               true,
	"name":               true,
	"version":            true,
	"chunkCount":         true,
}

// IsManifestAttr reports whether an attribute carries a cryptomatte or id
// manifest. Those can run to many megabytes per frame and are the reason
// metadata stripping exists.
func IsManifestAttr(name string) bool {
	if name == exrid.AttrIDManifest {
		return true
	}
	if strings.HasPrefix(name, exrid.AttrCryptomatte) {
		return true
	}
	return strings.Contains(strings.ToLower(name), "manifest")
}

// copyMetadata copies the non-structural attributes of src onto dst and
// returns how many were dropped by manifest stripping.
func copyMetadata(src, dst *exr.Header, stripManifests bool) int {
	stripped := 0
	for _, attr := range src.Attributes() {
		if structuralAttrs[attr.Name] {
			continue
		}
		if stripManifests && IsManifestAttr(attr.Name) {
			stripped++
			continue
		}
		dst.Set(&exr.Attribute{Name: attr.Name, Type: attr.Type, Value: attr.Value})
	}
	return stripped
}

// stripManifestAttrs removes manifest attributes from a header in place and
// returns how many were removed.
func stripManifestAttrs(h *exr.Header) int {
	var doomed []string
	for _, attr := range h.Attributes() {
		if IsManifestAttr(attr.Name) {
			doomed = append(doomed, attr.Name)
		}
	}
	for _, name := range doomed {
		h.Remove(name)
	}
	return len(doomed)
}
