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
)

// DefaultPartName is the part name used for channels that carry no layer
// prefix (R, G, B, A, Z and friends).
const DefaultPartName = "rgba"

// LayerGroup is one output part: a layer name and the channels that go into it.
type LayerGroup struct {
	Name     string
	Channels []exr.Channel
}

// GroupByLayer splits a channel list into one group per layer. Channels
// without a layer prefix land in the DefaultPartName group, which always
// comes first so that viewers pick up the beauty pass as part 0.
func GroupByLayer(cl *exr.ChannelList) []LayerGroup {
	var order []string
	byName := map[string][]exr.Channel{}
	for i := 0; i < cl.Len(); i++ {
		ch := cl.At(i)
		layer := ch.Layer()
		key := layer
		if key == "" {
			key = DefaultPartName
		}
		if _, seen := byName[key]; !seen {
			order = append(order, key)
		}
		byName[key] = append(byName[key], ch)
	}

	groups := make([]LayerGroup, 0, len(order))
	if chans, ok := byName[DefaultPartName]; ok {
		groups = append(groups, LayerGroup{Name: DefaultPartName, Channels: chans})
	}
	for _, name := range order {
		if name == DefaultPartName {
			continue
		}
		groups = append(groups, LayerGroup{Name: name, Channels: byName[name]})
	}
	return groups
}

// FixChannelName repairs channel names some renderers emit in nonconformant
// case: a lowercase depth component "z" becomes "Z". The layer prefix is
// left alone.
func FixChannelName(name string) string {
	if name == "z" {
		return "Z"
	}
	if strings.HasSuffix(name, ".z") {
		return name[:len(name)-1] + "Z"
	}
	return name
}

// fixChannelList returns a channel list with repaired names and the number
// of renames applied.
func fixChannelList(channels []exr.Channel) ([]exr.Channel, int) {
	out := make([]exr.Channel, len(channels))
	renamed := 0
	for i, ch := range channels {
		fixed := FixChannelName(ch.Name)
		if fixed != ch.Name {
			renamed++
		}
		ch.Name = fixed
		out[i] = ch
	}
	return out, renamed
}
