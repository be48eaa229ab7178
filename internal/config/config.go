// Package config loads interop configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config selects which backends participate and how.
type Config struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`

	// DisplayBackends are tried in order: x11, wayland, drm.
	DisplayBackends []string `mapstructure:"display_backends" yaml:"display_backends"`
	// InteropBackends are tried in order: gl, gpu.
	InteropBackends []string `mapstructure:"interop_backends" yaml:"interop_backends"`
	// RenderNode is opened for the drm display backend.
	RenderNode string `mapstructure:"render_node" yaml:"render_node"`
	// Probing rejects emulated drivers, as automatic hwdec selection does.
	Probing bool `mapstructure:"probing" yaml:"probing"`
}

var (
	knownDisplays = map[string]bool{"x11": true, "wayland": true, "drm": true}
	knownInterops = map[string]bool{"gl": true, "gpu": true}
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("display_backends", []string{"x11", "wayland", "drm"})
	v.SetDefault("interop_backends", []string{"gl", "gpu"})
	v.SetDefault("render_node", "/dev/dri/renderD128")
	v.SetDefault("probing", false)
}

// New returns a viper instance with defaults and VAAPI_* environment
// overrides. If file is non-empty it is read as the config file.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("VAAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DisplayBackends = normalize(cfg.DisplayBackends)
	cfg.InteropBackends = normalize(cfg.InteropBackends)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend names.
func (c *Config) Validate() error {
	if len(c.DisplayBackends) == 0 {
		return errors.New("no display backends configured")
	}
	for _, name := range c.DisplayBackends {
		if !knownDisplays[name] {
			return fmt.Errorf("unknown display backend %q", name)
		}
	}
	if len(c.InteropBackends) == 0 {
		return errors.New("no interop backends configured")
	}
	for _, name := range c.InteropBackends {
		if !knownInterops[name] {
			return fmt.Errorf("unknown interop backend %q", name)
		}
	}
	return nil
}

// Environment variables arrive as one comma-separated string.
func normalize(names []string) []string {
	var out []string
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "wl" {
				part = "wayland"
			}
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
