package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// TelegramUser is the identity a linked Telegram user signs in as.
type TelegramUser struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Timezone      string `json:"timezone"`
	Store         struct {
		Driver string `json:"driver"`
		DSN    string `json:"dsn"`
	} `json:"store"`
	HTTP struct {
		Enabled          bool   `json:"enabled"`
		Listen           string `json:"listen"`
		AuthUser         string `json:"auth_user"`
		AuthPasswordHash string `json:"auth_password_hash"`
	} `json:"http"`
	Sync struct {
		Schedule string `json:"schedule"`
	} `json:"sync"`
	Calendar struct {
		Enabled      bool   `json:"enabled"`
		CalendarID   string `json:"calendar_id"`
		BaseURL      string `json:"base_url"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		TokenFile    string `json:"token_file"`
	} `json:"calendar"`
	Manifest struct {
		Dir            string `json:"dir"`
		AudioURLPrefix string `json:"audio_url_prefix"`
	} `json:"manifest"`
	Dialog struct {
		HopLimit    int    `json:"hop_limit"`
		PromptsPath string `json:"prompts_path"`
	} `json:"dialog"`
	Telegram struct {
		Token string                  `json:"token"`
		Users map[string]TelegramUser `json:"users"`
	} `json:"telegram"`
}

func defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".blurt"),
		LogLevel:      "info",
		MaxConcurrent: 2,
		Timezone:      "Asia/Singapore",
	}
	cfg.Store.Driver = "sqlite"
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:8080"
	cfg.HTTP.AuthUser = "admin"
	cfg.Sync.Schedule = "*/5 * * * *"
	cfg.Calendar.CalendarID = "primary"
	cfg.Calendar.BaseURL = "https://www.googleapis.com/calendar/v3"
	cfg.Dialog.HopLimit = 3
	return cfg
}

// LoadEnv reads .env style files into the process environment. Missing
// files are skipped and variables already set win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides file values from the environment (highest precedence).
func applyEnv(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.DataDir, "BLURT_DATA_DIR")
	set(&cfg.LogLevel, "BLURT_LOG_LEVEL")
	set(&cfg.Timezone, "BLURT_TIMEZONE")
	set(&cfg.Store.Driver, "BLURT_STORE_DRIVER")
	set(&cfg.Store.DSN, "BLURT_STORE_DSN", "DATABASE_URL")
	set(&cfg.HTTP.Listen, "BLURT_HTTP_LISTEN")
	set(&cfg.HTTP.AuthPasswordHash, "BLURT_HTTP_PASSWORD_HASH")
	set(&cfg.Calendar.ClientID, "GOOGLE_CLIENT_ID")
	set(&cfg.Calendar.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&cfg.Manifest.AudioURLPrefix, "BLURT_AUDIO_URL_PREFIX")
	set(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
}

// StoreDSN is the configured DSN, or a database file under the data
// directory for sqlite.
func (c *Config) StoreDSN() string {
	if c.Store.DSN != "" || !strings.EqualFold(c.Store.Driver, "sqlite") {
		return c.Store.DSN
	}
	return filepath.Join(c.DataDir, "blurt.db")
}

func (c *Config) ManifestDir() string {
	if c.Manifest.Dir != "" {
		return c.Manifest.Dir
	}
	return filepath.Join(c.DataDir, "manifests")
}

func (c *Config) TokenFile() string {
	if c.Calendar.TokenFile != "" {
		return c.Calendar.TokenFile
	}
	return filepath.Join(c.DataDir, "calendar-token.json")
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its generic JSON shape.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues flattens cfg into dot keys, masking secrets when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

// GetValue returns the value stored in the config file under a dot key.
// The file is created with defaults if absent.
func GetValue(path, key string) (any, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if _, err := Load(path); err != nil {
			return nil, err
		}
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores rawValue under a dot key. Values that parse as JSON keep
// their type; anything else is stored as a string.
func SetValue(path, key, rawValue string) error {
	m, err := readRaw(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var v any
	if err := json.Unmarshal([]byte(rawValue), &v); err != nil {
		v = rawValue
	}
	flat := Flatten(m)
	for k := range flat {
		// A scalar (or null) at a parent key would shadow the new subtree.
		if strings.HasPrefix(key, k+".") || strings.HasPrefix(k, key+".") {
			delete(flat, k)
		}
	}
	flat[key] = v
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
