package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidatesWithCredentials(t *testing.T) {
	cfg := Default()
	cfg.Spotify.ClientID = "id"
	cfg.Spotify.ClientSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Spotify.ClientID = "id"
		cfg.Spotify.ClientSecret = "secret"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing credentials", func(c *Config) { c.Spotify.ClientID = "" }},
		{"zero auto save interval", func(c *Config) { c.Cache.AutoSaveInterval = 0 }},
		{"zero rebuild threshold", func(c *Config) { c.Cache.RebuildThreshold = 0 }},
		{"zero max recommendations", func(c *Config) { c.MaxRecommendations = 0 }},
		{"negative weight", func(c *Config) { c.Weights.Popularity = -0.1 }},
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
source:
  root: /srv/music
cache:
  rebuild_threshold: 40
filters:
  min_popularity: 25
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SPOTIFY_ID", "env-id")
	t.Setenv("SPOTIFY_SECRET", "env-secret")
	t.Setenv("TUNESCOUT_CACHE_REBUILD_THRESHOLD", "100")
	t.Setenv("TUNESCOUT_MAX_RECOMMENDATIONS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Source.Root != "/srv/music" {
		t.Errorf("file value not applied: %q", cfg.Source.Root)
	}
	if cfg.Filters.MinPopularity != 25 {
		t.Errorf("nested file value not applied: %d", cfg.Filters.MinPopularity)
	}
	// Environment beats the file.
	if cfg.Cache.RebuildThreshold != 100 {
		t.Errorf("env override not applied: %d", cfg.Cache.RebuildThreshold)
	}
	// The one top-level scalar keeps its underscores in the env key.
	if cfg.MaxRecommendations != 7 {
		t.Errorf("top-level env override not applied: %d", cfg.MaxRecommendations)
	}
	// Unset keys keep their defaults.
	if cfg.Cache.AutoSaveInterval != 50 {
		t.Errorf("default lost: %d", cfg.Cache.AutoSaveInterval)
	}
	if cfg.Spotify.ClientID != "env-id" || cfg.Spotify.ClientSecret != "env-secret" {
		t.Errorf("credential fallback not applied: %+v", cfg.Spotify)
	}
}

func TestLoadMissingCredentialsFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SPOTIFY_ID", "")
	t.Setenv("SPOTIFY_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without credentials")
	}
}
