/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides at runtime. Secrets never go to the file.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	Theme string `yaml:"theme"` // "system" | "light" | "dark"

	// CheckpointSeconds is how often the desktop editor stores a mask checkpoint. 0 disables.
	CheckpointSeconds int `yaml:"checkpoint_seconds"`
	CheckpointsKeep   int `yaml:"checkpoints_keep"`
}

type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	CORSOrigins       []string `yaml:"cors_origins"`
	MaxBodyMB         int      `yaml:"max_body_mb"`
	ShutdownTimeoutMs int      `yaml:"shutdown_timeout_ms"`

	// PostgresDSN enables the generation audit log when set.
	PostgresDSN string `yaml:"postgres_dsn"`
}

type GenerationConfig struct {
	Mode       string `yaml:"mode"` // "gemini" | "backend" | "off"
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	BackendURL string `yaml:"backend_url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	// The API key is not stored on disk; it lives in the OS keychain.
}

type EditorConfig struct {
	BrushSize         float64 `yaml:"brush_size"`
	HistoryMaxEntries int     `yaml:"history_max_entries"`
	HistoryMaxMB      int     `yaml:"history_max_mb"`
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
	Server        ServerConfig     `yaml:"server"`
	Generation    GenerationConfig `yaml:"generation"`
	Editor        EditorConfig     `yaml:"editor"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system", CheckpointSeconds: 30, CheckpointsKeep: 20},
		Server:        ServerConfig{Addr: ":8080", CORSOrigins: []string{"*"}, MaxBodyMB: 50, ShutdownTimeoutMs: 10000},
		Generation:    GenerationConfig{Mode: "gemini", Model: "gemini-2.5-flash-image", BaseURL: "https://generativelanguage.googleapis.com/v1beta", BackendURL: "http://localhost:8080", TimeoutMs: 120000},
		Editor:        EditorConfig{BrushSize: 40, HistoryMaxEntries: 100, HistoryMaxMB: 512},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "VECT_CONFIG"
	EnvServerAddr     = "VECT_ADDR"
	EnvPort           = "PORT"
	EnvPostgresDSN    = "VECT_PG_DSN"
	EnvGenMode        = "VECT_GENERATION_MODE"
	EnvGenModel       = "VECT_GEMINI_MODEL"
	EnvBackendURL     = "VECT_BACKEND_URL"
	EnvGeminiKey      = "VECT_GEMINI_API_KEY"
	EnvGeminiKeyAlias = "GEMINI_API_KEY"
	EnvLogLevel       = "VECT_LOG_LEVEL"
	EnvLogFormat      = "VECT_LOG_FORMAT"
	EnvLogSource      = "VECT_LOG_SOURCE"
	EnvLogFile        = "VECT_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "VECT"
	keyringAPIKey  = "gemini_api_key"
)

// ConfigPath returns the per-user config file path, or $VECT_CONFIG when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VECT")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VECT")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "vect")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file (if present) over the defaults and applies env overrides.
// The API key comes from the environment or the keyring and is returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, APIKey(), nil
}

// APIKey returns the Gemini key from VECT_GEMINI_API_KEY, GEMINI_API_KEY or the keyring, in that order.
func APIKey() string {
	for _, k := range []string{EnvGeminiKey, EnvGeminiKeyAlias} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	key, _ := tokenStore.Get(keyringService, keyringAPIKey)
	return key
}

// Save writes the config YAML and stores apiKey in the keyring when non-empty.
func Save(cfg AppConfig, apiKey string) error {
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
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if apiKey != "" {
		if err := tokenStore.Set(keyringService, keyringAPIKey, apiKey); err != nil {
			return err
		}
	}
	return nil
}

// ForgetAPIKey removes the stored key from the keyring.
func ForgetAPIKey() error {
	return tokenStore.Delete(keyringService, keyringAPIKey)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if src.General.CheckpointSeconds != 0 {
		dst.General.CheckpointSeconds = max(src.General.CheckpointSeconds, 0)
	}
	if src.General.CheckpointsKeep > 0 {
		dst.General.CheckpointsKeep = src.General.CheckpointsKeep
	}
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.CORSOrigins != nil {
		dst.Server.CORSOrigins = src.Server.CORSOrigins
	}
	if src.Server.MaxBodyMB > 0 {
		dst.Server.MaxBodyMB = src.Server.MaxBodyMB
	}
	if src.Server.ShutdownTimeoutMs > 0 {
		dst.Server.ShutdownTimeoutMs = src.Server.ShutdownTimeoutMs
	}
	if src.Server.PostgresDSN != "" {
		dst.Server.PostgresDSN = src.Server.PostgresDSN
	}
	if v := strings.ToLower(strings.TrimSpace(src.Generation.Mode)); v != "" {
		dst.Generation.Mode = v
	}
	if src.Generation.Model != "" {
		dst.Generation.Model = src.Generation.Model
	}
	if src.Generation.BaseURL != "" {
		dst.Generation.BaseURL = src.Generation.BaseURL
	}
	if src.Generation.BackendURL != "" {
		dst.Generation.BackendURL = src.Generation.BackendURL
	}
	if src.Generation.TimeoutMs > 0 {
		dst.Generation.TimeoutMs = src.Generation.TimeoutMs
	}
	if src.Editor.BrushSize > 0 {
		dst.Editor.BrushSize = src.Editor.BrushSize
	}
	if src.Editor.HistoryMaxEntries > 0 {
		dst.Editor.HistoryMaxEntries = src.Editor.HistoryMaxEntries
	}
	if src.Editor.HistoryMaxMB > 0 {
		dst.Editor.HistoryMaxMB = src.Editor.HistoryMaxMB
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.Server.Addr = ":" + v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Server.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvGenMode)); v != "" {
		cfg.Generation.Mode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvGenModel)); v != "" {
		cfg.Generation.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Generation.BackendURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string][]string{
		"server.addr":            {EnvServerAddr, EnvPort},
		"server.postgres_dsn":    {EnvPostgresDSN},
		"generation.mode":        {EnvGenMode},
		"generation.model":       {EnvGenModel},
		"generation.backend_url": {EnvBackendURL},
		"generation.api_key":     {EnvGeminiKey, EnvGeminiKeyAlias},
		"logging.level":          {EnvLogLevel},
		"logging.format":         {EnvLogFormat},
		"logging.source":         {EnvLogSource},
		"logging.file":           {EnvLogFile},
	}
	for _, env := range names[key] {
		if os.Getenv(env) != "" {
			return env, true
		}
	}
	return "", false
}

// Timeout returns the generation timeout, falling back to the default.
func (g GenerationConfig) Timeout() time.Duration {
	if g.TimeoutMs <= 0 {
		return time.Duration(Defaults().Generation.TimeoutMs) * time.Millisecond
	}
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

// HistoryMaxBytes converts HistoryMaxMB to bytes.
func (e EditorConfig) HistoryMaxBytes() int { return e.HistoryMaxMB << 20 }
