package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  path: "/data/glove.txt"
  format: snapshot
  dimensions: 50
query:
  max_top_n: 25
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	if cfg.Embedding.Path != "/data/glove.txt" || cfg.Embedding.Format != FormatSnapshot || cfg.Embedding.Dimensions != 50 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Query.MaxTopN != 25 || cfg.Query.DefaultTopN != 10 {
		t.Errorf("unexpected query config: %+v", cfg.Query)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if !cfg.Suggest.EnabledOrDefault() {
		t.Error("suggestions should default to enabled")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected error for invalid yaml")
	}
	if _, err := Load(writeConfig(t, "embedding:\n  format: parquet\n")); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Load(writeConfig(t, "query:\n  default_top_n: 50\n  max_top_n: 5\n")); err == nil {
		t.Error("expected error when default_top_n exceeds max_top_n")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
embedding:
  path: "./data/glove.6B.50d.txt"
  snapshot_path: "/abs/vectors.snap"
storage:
  database_path: "./data/db/ruiji.db"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "glove.6B.50d.txt"); cfg.Embedding.Path != want {
		t.Errorf("embedding path = %s, want %s", cfg.Embedding.Path, want)
	}
	if want := filepath.Join(dir, "data", "db", "ruiji.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if cfg.Embedding.SnapshotPath != "/abs/vectors.snap" {
		t.Errorf("absolute paths must be kept: %s", cfg.Embedding.SnapshotPath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvEmbeddingPath, "/env/vectors.txt")
	t.Setenv(EnvServerPort, "9999")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvDatabasePath, "/env/ruiji.db")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8000\nembedding:\n  path: /file/vectors.txt\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Path != "/env/vectors.txt" || cfg.Server.Port != 9999 || !cfg.Debug ||
		cfg.Storage.DatabasePath != "/env/ruiji.db" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	t.Setenv(EnvServerPort, "not-a-port")
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	// Register cleanup for the variable, then clear it so the .env file can set it.
	t.Setenv(EnvServerPort, "")
	os.Unsetenv(EnvServerPort)

	path := writeConfig(t, "server:\n  port: 8000\n")
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envFile, []byte(EnvServerPort+"=7070\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070 from .env", cfg.Server.Port)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Embedding.Format != FormatText {
		t.Errorf("default format: got %s", cfg.Embedding.Format)
	}
	if cfg.Query.DefaultTopN != 10 || cfg.Query.MaxTopN != 100 || cfg.Query.CacheSize != 1024 {
		t.Errorf("default query: %+v", cfg.Query)
	}
	if cfg.Suggest.MaxDistance != 2 || cfg.Suggest.MaxSuggestions != 5 {
		t.Errorf("default suggest: %+v", cfg.Suggest)
	}
	if cfg.Watch.Enabled || cfg.Watch.DebounceMs != 400 {
		t.Errorf("default watch: %+v", cfg.Watch)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSuggestConfig_Disabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "suggest:\n  enabled: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Suggest.EnabledOrDefault() {
		t.Error("suggestions should be disabled")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Embedding.Path = "/data/vectors.txt"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Embedding.Path != "/data/vectors.txt" || loaded.Query.CacheSize != cfg.Query.CacheSize {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
