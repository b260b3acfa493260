package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Discogs  DiscogsConfig  `mapstructure:"discogs"`
	Pick     PickConfig     `mapstructure:"pick"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

// DiscogsConfig holds the catalog credentials and fetch tuning.
type DiscogsConfig struct {
	Token       string        `mapstructure:"token"`
	Username    string        `mapstructure:"username"`
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	PerPage     int           `mapstructure:"per_page"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RetryMax    int           `mapstructure:"retry_max"`
}

type PickConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type UIConfig struct {
	Colors  UIColors      `mapstructure:"colors"`
	Profile ProfileConfig `mapstructure:"profile"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
}

type ProfileConfig struct {
	MaxLength        int `mapstructure:"max_length"`
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width"`
}

type MediaConfig struct {
	DefaultOpener string `mapstructure:"default_opener"`
}

func defaultConfig() *Config {
	homeDir, _ := homedir.Dir()

	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(homeDir, ".analog.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(homeDir, ".analog", "index.bleve"),
		},
		Discogs: DiscogsConfig{
			BaseURL:     "https://api.discogs.com",
			UserAgent:   "analog/1.0 (+https://github.com/pders01/analog)",
			PerPage:     100,
			HTTPTimeout: 30 * time.Second,
			CacheTTL:    5 * time.Minute,
			RetryMax:    0,
		},
		Pick: PickConfig{
			HistorySize: 10,
		},
		Log: LogConfig{
			Level: "off",
			Path:  filepath.Join(homeDir, ".analog", "analog.log"),
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#E4572E",
				Secondary:  "#F3A712",
				Accent:     "#A8C686",
				Background: "#111111",
				Text:       "#EAEAEA",
				Muted:      "#8A8A8A",
				Error:      "#F87171",
			},
			Profile: ProfileConfig{
				MaxLength:        300,
				WordWrapMaxWidth: 120,
				WordWrapMinWidth: 40,
			},
		},
		Media: MediaConfig{
			DefaultOpener: getDefaultOpener(),
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "rundll32"
	default:
		return "open"
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := homedir.Dir()
		configDir := filepath.Join(homeDir, ".config", "analog")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ANALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("discogs.token", "ANALOG_DISCOGS_TOKEN", "DISCOGS_TOKEN")
	_ = v.BindEnv("discogs.username", "ANALOG_DISCOGS_USERNAME", "DISCOGS_USERNAME")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyFallbacks(&config, cfg)
	expandPaths(&config)

	return &config, nil
}

// setDefaults registers every leaf key so env overrides resolve for nested
// sections as well.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("database.search_index", cfg.Database.SearchIndex)

	v.SetDefault("discogs.token", cfg.Discogs.Token)
	v.SetDefault("discogs.username", cfg.Discogs.Username)
	v.SetDefault("discogs.base_url", cfg.Discogs.BaseURL)
	v.SetDefault("discogs.user_agent", cfg.Discogs.UserAgent)
	v.SetDefault("discogs.per_page", cfg.Discogs.PerPage)
	v.SetDefault("discogs.http_timeout", cfg.Discogs.HTTPTimeout)
	v.SetDefault("discogs.cache_ttl", cfg.Discogs.CacheTTL)
	v.SetDefault("discogs.retry_max", cfg.Discogs.RetryMax)

	v.SetDefault("pick.history_size", cfg.Pick.HistorySize)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.path", cfg.Log.Path)

	v.SetDefault("ui.colors.primary", cfg.UI.Colors.Primary)
	v.SetDefault("ui.colors.secondary", cfg.UI.Colors.Secondary)
	v.SetDefault("ui.colors.accent", cfg.UI.Colors.Accent)
	v.SetDefault("ui.colors.background", cfg.UI.Colors.Background)
	v.SetDefault("ui.colors.text", cfg.UI.Colors.Text)
	v.SetDefault("ui.colors.muted", cfg.UI.Colors.Muted)
	v.SetDefault("ui.colors.error", cfg.UI.Colors.Error)
	v.SetDefault("ui.profile.max_length", cfg.UI.Profile.MaxLength)
	v.SetDefault("ui.profile.word_wrap_max_width", cfg.UI.Profile.WordWrapMaxWidth)
	v.SetDefault("ui.profile.word_wrap_min_width", cfg.UI.Profile.WordWrapMinWidth)

	v.SetDefault("media.default_opener", cfg.Media.DefaultOpener)
}

// applyFallbacks restores defaults for values a partial config zeroed out.
func applyFallbacks(cfg, def *Config) {
	if cfg.Discogs.BaseURL == "" {
		cfg.Discogs.BaseURL = def.Discogs.BaseURL
	}
	cfg.Discogs.BaseURL = strings.TrimRight(cfg.Discogs.BaseURL, "/")
	if cfg.Discogs.UserAgent == "" {
		cfg.Discogs.UserAgent = def.Discogs.UserAgent
	}
	if cfg.Discogs.PerPage <= 0 {
		cfg.Discogs.PerPage = def.Discogs.PerPage
	}
	if cfg.Discogs.HTTPTimeout <= 0 {
		cfg.Discogs.HTTPTimeout = def.Discogs.HTTPTimeout
	}
	if cfg.Discogs.CacheTTL <= 0 {
		cfg.Discogs.CacheTTL = def.Discogs.CacheTTL
	}
	if cfg.Discogs.RetryMax < 0 {
		cfg.Discogs.RetryMax = 0
	}
	if cfg.Pick.HistorySize <= 0 {
		cfg.Pick.HistorySize = def.Pick.HistorySize
	}
	if cfg.Media.DefaultOpener == "" {
		cfg.Media.DefaultOpener = def.Media.DefaultOpener
	}
}

// HasCredentials reports whether both the token and username are set.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.Discogs.Token) != "" && strings.TrimSpace(c.Discogs.Username) != ""
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.Path = expandPath(cfg.Log.Path)
}

// Save writes cfg as TOML. The token is never written back to disk.
func Save(config *Config, path string) error {
	v := viper.New()

	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	}

	discogsCfg := map[string]interface{}{
		"username":     config.Discogs.Username,
		"base_url":     config.Discogs.BaseURL,
		"user_agent":   config.Discogs.UserAgent,
		"per_page":     config.Discogs.PerPage,
		"http_timeout": config.Discogs.HTTPTimeout.String(),
		"cache_ttl":    config.Discogs.CacheTTL.String(),
		"retry_max":    config.Discogs.RetryMax,
	}

	v.Set("database", dbCfg)
	v.Set("discogs", discogsCfg)
	v.Set("pick", map[string]interface{}{"history_size": config.Pick.HistorySize})
	v.Set("log", map[string]interface{}{"level": config.Log.Level, "path": config.Log.Path})
	v.Set("ui", map[string]interface{}{
		"colors": map[string]interface{}{
			"primary":    config.UI.Colors.Primary,
			"secondary":  config.UI.Colors.Secondary,
			"accent":     config.UI.Colors.Accent,
			"background": config.UI.Colors.Background,
			"text":       config.UI.Colors.Text,
			"muted":      config.UI.Colors.Muted,
			"error":      config.UI.Colors.Error,
		},
		"profile": map[string]interface{}{
			"max_length":          config.UI.Profile.MaxLength,
			"word_wrap_max_width": config.UI.Profile.WordWrapMaxWidth,
			"word_wrap_min_width": config.UI.Profile.WordWrapMinWidth,
		},
	})
	v.Set("media", map[string]interface{}{"default_opener": config.Media.DefaultOpener})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}

// DefaultConfigPath is where GenerateDefaultConfig writes when no path is given.
func DefaultConfigPath() string {
	homeDir, _ := homedir.Dir()
	return filepath.Join(homeDir, ".config", "analog", "config.toml")
}
