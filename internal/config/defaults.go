package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embedding.Path == "" {
		cfg.Embedding.Path = "/usr/local/var/ruiji/data/glove.6B.100d.txt"
	}
	if cfg.Embedding.Format == "" {
		cfg.Embedding.Format = FormatText
	}
	if cfg.Embedding.SnapshotPath == "" {
		cfg.Embedding.SnapshotPath = "/usr/local/var/ruiji/data/vectors.snap"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ruiji/data/db/ruiji.db"
	}
	if cfg.Query.DefaultTopN == 0 {
		cfg.Query.DefaultTopN = 10
	}
	if cfg.Query.MaxTopN == 0 {
		cfg.Query.MaxTopN = 100
	}
	if cfg.Query.CacheSize == 0 {
		cfg.Query.CacheSize = 1024
	}
	if cfg.Suggest.MaxDistance == 0 {
		cfg.Suggest.MaxDistance = 2
	}
	if cfg.Suggest.MaxSuggestions == 0 {
		cfg.Suggest.MaxSuggestions = 5
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
}
