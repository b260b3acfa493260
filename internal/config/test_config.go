package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Discogs: DiscogsConfig{
			Token:       "test-token",
			Username:    "tester",
			BaseURL:     "http://127.0.0.1",
			UserAgent:   "analog-test/1.0",
			PerPage:     100,
			HTTPTimeout: 5 * time.Second,
			CacheTTL:    5 * time.Minute,
		},
		Pick:  PickConfig{HistorySize: 10},
		Log:   LogConfig{Level: "off"},
		UI:    defaultConfig().UI,
		Media: defaultConfig().Media,
	}
}
