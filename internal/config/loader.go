package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/ibnnafaa/nafaa/internal/reciters"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// Env holds process-level overrides that take precedence over the config
// file and flags.
type Env struct {
	CacheDir string `env:"NAFAA_CACHE_DIR"`
	Debug    bool   `env:"NAFAA_DEBUG"`
	LogFile  string `env:"NAFAA_LOG_FILE"`
}

// Load reads the configuration from v, applies environment overrides,
// resolves paths, and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("reciter") {
		cfg.Reciter = v.GetString("reciter")
	}
	if v.IsSet("quality") {
		cfg.Quality = v.GetString("quality")
	}
	if v.IsSet("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	if v.IsSet("reciters") {
		var list []reciters.Reciter
		if err := v.UnmarshalKey("reciters", &list); err != nil {
			return cfg, fmt.Errorf("invalid reciters list: %w", err)
		}
		cfg.Reciters = list
	}

	cfg.CDN = loadCDNConfig(v, cfg.CDN)
	cfg.Catalog = loadCatalogConfig(v, cfg.Catalog)
	cfg.Cache = loadCacheConfig(v, cfg.Cache)
	cfg.Sync = loadSyncConfig(v, cfg.Sync)
	cfg.Playback = loadPlaybackConfig(v, cfg.Playback)

	overrides, err := env.ParseAs[Env]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	applyEnv(&cfg, overrides)

	if err := resolvePaths(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadCDNConfig loads CDN configuration from Viper.
func loadCDNConfig(v *viper.Viper, cfg CDNConfig) CDNConfig {
	if v.IsSet("cdn.root") {
		cfg.Root = v.GetString("cdn.root")
	}
	if v.IsSet("cdn.extension") {
		cfg.Extension = v.GetString("cdn.extension")
	}
	if v.IsSet("cdn.timeout") {
		cfg.Timeout = v.GetDuration("cdn.timeout")
	}
	if v.IsSet("cdn.user_agent") {
		cfg.UserAgent = v.GetString("cdn.user_agent")
	}
	return cfg
}

func loadCatalogConfig(v *viper.Viper, cfg CatalogConfig) CatalogConfig {
	if v.IsSet("catalog.size") {
		cfg.Size = v.GetInt("catalog.size")
	}
	if v.IsSet("catalog.pad_width") {
		cfg.PadWidth = v.GetInt("catalog.pad_width")
	}
	return cfg
}

// loadCacheConfig loads content store configuration from Viper.
func loadCacheConfig(v *viper.Viper, cfg CacheConfig) CacheConfig {
	if v.IsSet("cache.backend") {
		cfg.Backend = v.GetString("cache.backend")
	}
	if v.IsSet("cache.dir") {
		cfg.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.partition") {
		cfg.Partition = v.GetString("cache.partition")
	}
	if v.IsSet("cache.max_size") {
		cfg.MaxSize = v.GetInt64("cache.max_size")
	}
	if v.IsSet("cache.compression_level") {
		cfg.CompressionLevel = v.GetInt("cache.compression_level")
	}
	return cfg
}

func loadSyncConfig(v *viper.Viper, cfg SyncConfig) SyncConfig {
	if v.IsSet("sync.pacing") {
		cfg.Pacing = v.GetDuration("sync.pacing")
	}
	return cfg
}

func loadPlaybackConfig(v *viper.Viper, cfg PlaybackConfig) PlaybackConfig {
	if v.IsSet("playback.require_gesture") {
		cfg.RequireGesture = v.GetBool("playback.require_gesture")
	}
	if v.IsSet("playback.sample_rate") {
		cfg.SampleRate = v.GetInt("playback.sample_rate")
	}
	if v.IsSet("playback.volume") {
		cfg.Volume = v.GetFloat64("playback.volume")
	}
	return cfg
}

func applyEnv(cfg *Config, e Env) {
	if e.CacheDir != "" {
		cfg.Cache.Dir = e.CacheDir
	}
	if e.Debug {
		cfg.Debug = true
	}
	if e.LogFile != "" {
		cfg.LogFile = e.LogFile
	}
}

// resolvePaths expands ~ and fills unset directories from the user scope.
func resolvePaths(cfg *Config) error {
	scope := gap.NewScope(gap.User, AppName)

	if cfg.Cache.Dir == "" {
		p, err := scope.DataPath("cache")
		if err != nil {
			return fmt.Errorf("unable to locate data directory: %w", err)
		}
		cfg.Cache.Dir = p
	}
	dir, err := homedir.Expand(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("unable to expand cache.dir: %w", err)
	}
	if cfg.Cache.Dir, err = filepath.Abs(dir); err != nil {
		return fmt.Errorf("unable to resolve cache.dir: %w", err)
	}

	if cfg.LogFile == "" {
		p, err := scope.LogPath(AppName + ".log")
		if err != nil {
			return fmt.Errorf("unable to locate log directory: %w", err)
		}
		cfg.LogFile = p
	}
	if cfg.LogFile, err = homedir.Expand(cfg.LogFile); err != nil {
		return fmt.Errorf("unable to expand log file path: %w", err)
	}
	return nil
}

// SetDefaults sets default values in Viper so they show up in the config
// command and in flag help.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("reciter", d.Reciter)
	v.SetDefault("quality", d.Quality)

	v.SetDefault("cdn.root", d.CDN.Root)
	v.SetDefault("cdn.extension", d.CDN.Extension)
	v.SetDefault("cdn.timeout", d.CDN.Timeout.String())
	v.SetDefault("cdn.user_agent", d.CDN.UserAgent)

	v.SetDefault("catalog.size", d.Catalog.Size)
	v.SetDefault("catalog.pad_width", d.Catalog.PadWidth)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.partition", d.Cache.Partition)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)

	v.SetDefault("sync.pacing", d.Sync.Pacing.String())

	v.SetDefault("playback.require_gesture", d.Playback.RequireGesture)
	v.SetDefault("playback.sample_rate", d.Playback.SampleRate)
	v.SetDefault("playback.volume", d.Playback.Volume)
}
