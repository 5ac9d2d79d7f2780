/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package preset stores named processing configurations as JSON files under
// the user config directory. Files are validated against a JSON schema on
// load and save so hand-edited presets fail early instead of mid-batch.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"exrwrap/internal/config"
	"exrwrap/internal/rewrap"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "exrwrap preset",
  "type": "object",
  "required": ["name"],
  "additionalProperties": false,
  "properties": {
    "name":           {"type": "string", "minLength": 1},
    "description":    {"type": "string"},
    "autoCrop":       {"type": "boolean"},
    "splitParts":     {"type": "boolean"},
    "fixChannels":    {"type": "boolean"},
    "stripManifests": {"type": "boolean"},
    "keepBackup":     {"type": "boolean"},
    "compression": {
      "type": "string",
      "enum": ["", "none", "rle", "zips", "zip", "piz", "pxr24", "b44", "b44a", "dwaa", "dwab"]
    }
  }
}`

// Preset is a named set of processing options.
type Preset struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	AutoCrop       bool   `json:"autoCrop"`
	SplitParts     bool   `json:"splitParts"`
	FixChannels    bool   `json:"fixChannels"`
	StripManifests bool   `json:"stripManifests"`
	KeepBackup     bool   `json:"keepBackup"`
	Compression    string `json:"compression,omitempty"`
}

// Options converts the preset to pipeline options.
func (p Preset) Options() rewrap.Options {
	return rewrap.Options{
		AutoCrop:       p.AutoCrop,
		SplitParts:     p.SplitParts,
		FixChannels:    p.FixChannels,
		StripManifests: p.StripManifests,
		Compression:    p.Compression,
	}
}

// Dir returns the presets directory under the user config directory.
func Dir() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "presets"), nil
}

// Path returns the file path for a preset name.
func Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".json"), nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("preset name is required")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("invalid preset name %q", name)
	}
	return nil
}

// Validate checks raw preset JSON against the schema.
func Validate(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid preset: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Save writes a preset to disk, validating it first.
func Save(p Preset) error {
	path, err := Path(p.Name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	data = append(data, '\n')
	if err := Validate(data); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create presets dir: %w", err)
	}
	// Write via temp file and rename so a crash never leaves a torn preset.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename preset: %w", err)
	}
	return nil
}

// Load reads and validates a preset by name.
func Load(name string) (Preset, error) {
	var p Preset
	path, err := Path(name)
	if err != nil {
		return p, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read preset: %w", err)
	}
	if err := Validate(data); err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse preset: %w", err)
	}
	return p, nil
}

// List returns the names of all stored presets, sorted.
func List() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a preset by name.
func Delete(name string) error {
	path, err := Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	return nil
}
