// This file defines the configuration structure for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// use Viper for loading the config.yml file.
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Library struct {
		Path       string   `mapstructure:"path"`
		Extensions []string `mapstructure:"extensions"`
	} `mapstructure:"library"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
	Auth struct {
		TokenHash string `mapstructure:"token_hash"`
	} `mapstructure:"auth"`
	Thumbnail struct {
		Size int `mapstructure:"size"`
	} `mapstructure:"thumbnail"`
	Watch struct {
		Enabled    bool `mapstructure:"enabled"`
		DebounceMs int  `mapstructure:"debounce_ms"`
	} `mapstructure:"watch"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// DefaultExtensions are the image types served when none are configured.
var DefaultExtensions = []string{".webp", ".png"}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or "yaml"
	v.AddConfigPath(".")      // looking for config in the current directory

	// SDG_LIBRARY_PATH overrides `library.path`, and so on.
	v.SetEnvPrefix("SDG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 5000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("library.path", "./images")
	v.SetDefault("library.extensions", DefaultExtensions)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("auth.token_hash", "")
	v.SetDefault("thumbnail.size", 256)
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce_ms", 2000)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Library.Extensions = NormalizeExtensions(config.Library.Extensions)

	return &config, nil
}

// Validate resolves the library path to an absolute path and checks that
// it exists and is a directory.
func (c *Config) Validate() error {
	if c.Library.Path == "" {
		return fmt.Errorf("library path is not set")
	}
	abs, err := filepath.Abs(c.Library.Path)
	if err != nil {
		return fmt.Errorf("resolve library path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("base directory %q does not exist: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("base directory %q is not a directory", abs)
	}
	c.Library.Path = abs
	if len(c.Library.Extensions) == 0 {
		c.Library.Extensions = DefaultExtensions
	}
	return nil
}

// NormalizeExtensions lowercases extensions and makes sure each carries a
// leading dot. Empty entries and duplicates are dropped.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}
