package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Domain      string
	Addr        string
	IdleTimeout time.Duration
	Storage     Storage
	HTTP        HTTP
	DKIM        DKIM
	Log         Log
}

type Storage struct {
	Driver        string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type HTTP struct {
	Addr string
}

type DKIM struct {
	KeyFile  string
	Selector string
}

type Log struct {
	Level   slog.Level
	LokiURL string
}

type fileConfig struct {
	Domain      string `toml:"domain"`
	Addr        string `toml:"addr"`
	IdleTimeout string `toml:"idle_timeout"`
	Storage     struct {
		Driver        string `toml:"driver"`
		Dir           string `toml:"dir"`
		RedisAddr     string `toml:"redis_addr"`
		RedisPassword string `toml:"redis_password"`
		RedisDB       int    `toml:"redis_db"`
	} `toml:"storage"`
	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
	DKIM struct {
		KeyFile  string `toml:"key_file"`
		Selector string `toml:"selector"`
	} `toml:"dkim"`
	Log struct {
		Level   string `toml:"level"`
		LokiURL string `toml:"loki_url"`
	} `toml:"log"`
}

func Default() Config {
	return Config{
		Domain:      "groove.com",
		Addr:        "127.0.0.1:2525",
		IdleTimeout: 2 * time.Minute,
		Storage: Storage{
			Driver:    DriverFile,
			Dir:       "./received",
			RedisAddr: "localhost:6379",
		},
		HTTP: HTTP{
			Addr: "127.0.0.1:8025",
		},
		DKIM: DKIM{
			Selector: "mail",
		},
		Log: Log{
			Level: slog.LevelDebug,
		},
	}
}

// Load reads the TOML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("domain") {
		cfg.Domain = strings.TrimSpace(raw.Domain)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}

	if meta.IsDefined("storage", "driver") {
		cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(raw.Storage.Driver))
	}
	if meta.IsDefined("storage", "dir") {
		cfg.Storage.Dir = strings.TrimSpace(raw.Storage.Dir)
	}
	if meta.IsDefined("storage", "redis_addr") {
		cfg.Storage.RedisAddr = strings.TrimSpace(raw.Storage.RedisAddr)
	}
	if meta.IsDefined("storage", "redis_password") {
		cfg.Storage.RedisPassword = raw.Storage.RedisPassword
	}
	if meta.IsDefined("storage", "redis_db") {
		cfg.Storage.RedisDB = raw.Storage.RedisDB
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}

	if meta.IsDefined("dkim", "key_file") {
		cfg.DKIM.KeyFile = strings.TrimSpace(raw.DKIM.KeyFile)
	}
	if meta.IsDefined("dkim", "selector") {
		cfg.DKIM.Selector = strings.TrimSpace(raw.DKIM.Selector)
	}

	if meta.IsDefined("log", "level") {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(raw.Log.Level))); err != nil {
			return Config{}, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Log.Level = level
	}
	if meta.IsDefined("log", "loki_url") {
		cfg.Log.LokiURL = strings.TrimSpace(raw.Log.LokiURL)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.Domain == "" {
		return errors.New("config: domain must not be empty")
	}
	if cfg.Addr == "" {
		return errors.New("config: addr must not be empty")
	}
	if cfg.IdleTimeout < 0 {
		return errors.New("config: idle_timeout must not be negative")
	}

	switch cfg.Storage.Driver {
	case DriverFile:
		if cfg.Storage.Dir == "" {
			return errors.New("config: storage.dir is required for the file driver")
		}
	case DriverRedis:
		if cfg.Storage.RedisAddr == "" {
			return errors.New("config: storage.redis_addr is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.DKIM.KeyFile != "" && cfg.DKIM.Selector == "" {
		return errors.New("config: dkim.selector is required when dkim.key_file is set")
	}
	return nil
}
