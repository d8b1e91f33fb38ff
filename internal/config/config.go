// Package config loads pipeline configuration: struct defaults first, then an
// optional YAML file, then TUNESCOUT_* environment variables. Spotify
// credentials are additionally honored from SPOTIFY_ID / SPOTIFY_SECRET (and a
// local .env file) so they can stay out of the config file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"tunescout/internal/logging"
)

// DefaultConfigPaths are searched in order; the first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Source  SourceConfig  `koanf:"source"`
	Spotify SpotifyConfig `koanf:"spotify"`
	Cache   CacheConfig   `koanf:"cache"`
	Weights WeightsConfig `koanf:"weights"`
	Filters FiltersConfig `koanf:"filters"`

	MaxRecommendations int `koanf:"max_recommendations"`

	Output OutputConfig   `koanf:"output"`
	Log    logging.Config `koanf:"log"`
}

type SourceConfig struct {
	// Root is the library directory to scan for audio files.
	Root string `koanf:"root"`
}

type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	// Market biases catalog searches and top-track listings.
	Market string `koanf:"market"`
}

type CacheConfig struct {
	MetadataFile     string `koanf:"metadata_file"`
	ProfileFile      string `koanf:"profile_file"`
	RegistryFile     string `koanf:"registry_file"`
	AutoSaveInterval int    `koanf:"auto_save_interval"`
	RebuildThreshold int    `koanf:"rebuild_threshold"`
}

// WeightsConfig holds the scoring signal weights.
type WeightsConfig struct {
	TagSimilarity  float64 `koanf:"tag_similarity"`
	ArtistAffinity float64 `koanf:"artist_affinity"`
	Popularity     float64 `koanf:"popularity"`
}

type FiltersConfig struct {
	ExcludeRemixes       bool `koanf:"exclude_remixes"`
	ExcludeCovers        bool `koanf:"exclude_covers"`
	ExcludeLive          bool `koanf:"exclude_live"`
	ExcludeKaraoke       bool `koanf:"exclude_karaoke"`
	ExcludeInstrumentals bool `koanf:"exclude_instrumentals"`
	MinPopularity        int  `koanf:"min_popularity"`
}

type OutputConfig struct {
	File string `koanf:"file"`
}

// Default returns the built-in configuration. These values are applied first
// and overridden by the config file and environment.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Root: "./music",
		},
		Spotify: SpotifyConfig{
			Market: "JP",
		},
		Cache: CacheConfig{
			MetadataFile:     "data/songs_metadata_cache.json",
			ProfileFile:      "data/taste_profile_cache.json",
			RegistryFile:     "data/catalog_registry.db",
			AutoSaveInterval: 50,
			RebuildThreshold: 75,
		},
		Weights: WeightsConfig{
			TagSimilarity:  0.60,
			ArtistAffinity: 0.25,
			Popularity:     0.15,
		},
		Filters: FiltersConfig{
			ExcludeRemixes:       true,
			ExcludeCovers:        true,
			ExcludeLive:          true,
			ExcludeKaraoke:       true,
			ExcludeInstrumentals: false,
			MinPopularity:        10,
		},
		MaxRecommendations: 30,
		Output: OutputConfig{
			File: "out/recommendations.json",
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load resolves the full configuration. A missing config file is not an
// error; missing credentials are.
func Load() (*Config, error) {
	// Best effort: credentials may live in a local .env file.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// TUNESCOUT_CACHE_REBUILD_THRESHOLD=100 -> cache.rebuild_threshold.
	// Top-level keys carry their underscores; nested keys split at the first.
	err := k.Load(env.Provider("TUNESCOUT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "TUNESCOUT_")
		s = strings.ToLower(s)
		if s == "max_recommendations" {
			return s
		}
		return strings.Replace(s, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Spotify.ClientID == "" {
		cfg.Spotify.ClientID = os.Getenv("SPOTIFY_ID")
	}
	if cfg.Spotify.ClientSecret == "" {
		cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_SECRET")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the pipeline depends on.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify credentials missing: set spotify.client_id/client_secret or SPOTIFY_ID/SPOTIFY_SECRET")
	}
	if c.Cache.AutoSaveInterval <= 0 {
		return fmt.Errorf("cache.auto_save_interval must be positive, got %d", c.Cache.AutoSaveInterval)
	}
	if c.Cache.RebuildThreshold <= 0 {
		return fmt.Errorf("cache.rebuild_threshold must be positive, got %d", c.Cache.RebuildThreshold)
	}
	if c.MaxRecommendations <= 0 {
		return fmt.Errorf("max_recommendations must be positive, got %d", c.MaxRecommendations)
	}
	for name, w := range map[string]float64{
		"tag_similarity":  c.Weights.TagSimilarity,
		"artist_affinity": c.Weights.ArtistAffinity,
		"popularity":      c.Weights.Popularity,
	} {
		if w < 0 {
			return fmt.Errorf("weights.%s must not be negative, got %v", name, w)
		}
	}
	return nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
