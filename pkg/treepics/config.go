package treepics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for treepics.
type Config struct {
	Collection  string `yaml:"title"`
	Description string `yaml:"description"`

	Manifest string `yaml:"manifest"`
	// PhotoDir is the directory manifest web_path values are relative to.
	PhotoDir string `yaml:"photos"`
	CacheDir string `yaml:"cache"`
	Addr     string `yaml:"addr"`

	Scale  Scale      `yaml:"scale"`
	Zoom   float64    `yaml:"zoom"`
	Center [2]float64 `yaml:"center"`

	Thumb      ThumbOpts     `yaml:"thumbnail"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Collection:  "Tree Photos Explorer",
		Description: "Click on map markers to explore tree photos by location",
		PhotoDir:    ".",
		Addr:        "localhost:12800",
		Scale:       DefaultScale,
		Zoom:        10,
		Center:      [2]float64{40.7128, -74.0060},
		Thumb:       defaultThumbOpts,
		SessionTTL:  time.Hour,
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/treepics/config.yaml.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "treepics", "config.yaml")
}

// LoadConfig reads a YAML config file over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return c, nil
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(bs, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv overrides config values with TREEPICS_* environment variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"TREEPICS_TITLE":    &c.Collection,
		"TREEPICS_MANIFEST": &c.Manifest,
		"TREEPICS_PHOTOS":   &c.PhotoDir,
		"TREEPICS_CACHE":    &c.CacheDir,
		"TREEPICS_ADDR":     &c.Addr,
	}
	for k, p := range strs {
		if v := os.Getenv(k); v != "" {
			*p = v
		}
	}

	floats := map[string]*float64{
		"TREEPICS_BASE_THRESHOLD":       &c.Scale.Base,
		"TREEPICS_MIN_CLUSTER_DISTANCE": &c.Scale.Floor,
		"TREEPICS_ZOOM":                 &c.Zoom,
	}
	for k, p := range floats {
		v := os.Getenv(k)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*p = f
	}
	return nil
}
