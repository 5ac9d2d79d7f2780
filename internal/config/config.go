/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the
// user scope. Environment variables are treated as read-only overrides at
// runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ProcessingConfig struct {
	AutoCrop       bool   `yaml:"auto_crop"`
	SplitParts     bool   `yaml:"split_parts"`
	FixChannels    bool   `yaml:"fix_channels"`
	StripManifests bool   `yaml:"strip_manifests"`
	KeepBackup     bool   `yaml:"keep_backup"`
	Compression    string `yaml:"compression"` // empty keeps the source compression
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Processing    ProcessingConfig `yaml:"processing"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults. Processing toggles default to on,
// matching how render output is usually cleaned up before compositing.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Processing: ProcessingConfig{
			AutoCrop:       true,
			SplitParts:     true,
			FixChannels:    true,
			StripManifests: false,
			KeepBackup:     true,
			Compression:    "",
		},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvCompression    = "EXW_COMPRESSION"
	EnvKeepBackup     = "EXW_KEEP_BACKUP"
	EnvTelemetryOptIn = "EXW_TELEMETRY_OPT_IN"
	// EnvLogLevel logging envs
	EnvLogLevel  = "EXW_LOG_LEVEL"
	EnvLogFormat = "EXW_LOG_FORMAT"
	EnvLogSource = "EXW_LOG_SOURCE"
	EnvLogFile   = "EXW_LOG_FILE"
)

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "exrwrap")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "exrwrap")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "exrwrap")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg fileConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// fileConfig mirrors AppConfig with pointer booleans so that keys absent
// from the YAML file keep their defaults instead of collapsing to false.
type fileConfig struct {
	ConfigVersion int `yaml:"config_version"`
	General       struct {
		TelemetryOptIn *bool  `yaml:"telemetry_opt_in"`
		Theme          string `yaml:"theme"`
	} `yaml:"general"`
	Processing struct {
		AutoCrop       *bool  `yaml:"auto_crop"`
		SplitParts     *bool  `yaml:"split_parts"`
		FixChannels    *bool  `yaml:"fix_channels"`
		StripManifests *bool  `yaml:"strip_manifests"`
		KeepBackup     *bool  `yaml:"keep_backup"`
		Compression    string `yaml:"compression"`
	} `yaml:"processing"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Source *bool  `yaml:"source"`
		File   string `yaml:"file"`
	} `yaml:"logging"`
}

func mergeInto(dst *AppConfig, src *fileConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if src.General.TelemetryOptIn != nil {
		dst.General.TelemetryOptIn = *src.General.TelemetryOptIn
	}
	if src.Processing.AutoCrop != nil {
		dst.Processing.AutoCrop = *src.Processing.AutoCrop
	}
	if src.Processing.SplitParts != nil {
		dst.Processing.SplitParts = *src.Processing.SplitParts
	}
	if src.Processing.FixChannels != nil {
		dst.Processing.FixChannels = *src.Processing.FixChannels
	}
	if src.Processing.StripManifests != nil {
		dst.Processing.StripManifests = *src.Processing.StripManifests
	}
	if src.Processing.KeepBackup != nil {
		dst.Processing.KeepBackup = *src.Processing.KeepBackup
	}
	if strings.TrimSpace(src.Processing.Compression) != "" {
		dst.Processing.Compression = strings.ToLower(strings.TrimSpace(src.Processing.Compression))
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	if src.Logging.Source != nil {
		dst.Logging.Source = *src.Logging.Source
	}
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvCompression)); v != "" {
		cfg.Processing.Compression = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvKeepBackup)); v != "" {
		cfg.Processing.KeepBackup = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	switch key {
	case "processing.compression":
		if os.Getenv(EnvCompression) != "" {
			return EnvCompression, true
		}
	case "processing.keep_backup":
		if os.Getenv(EnvKeepBackup) != "" {
			return EnvKeepBackup, true
		}
	case "general.telemetry_opt_in":
		if os.Getenv(EnvTelemetryOptIn) != "" {
			return EnvTelemetryOptIn, true
		}
	case "logging.level":
		if os.Getenv(EnvLogLevel) != "" {
			return EnvLogLevel, true
		}
	case "logging.format":
		if os.Getenv(EnvLogFormat) != "" {
			return EnvLogFormat, true
		}
	case "logging.source":
		if os.Getenv(EnvLogSource) != "" {
			return EnvLogSource, true
		}
	case "logging.file":
		if os.Getenv(EnvLogFile) != "" {
			return EnvLogFile, true
		}
	}
	return "", false
}
