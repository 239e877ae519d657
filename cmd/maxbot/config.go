package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath  = "conf/maxbot.yaml"
	defaultSessionPath = "conf/session.maximus"
	defaultSQLitePath  = "conf/session.db"
)

// Config — настройки процесса. Всё опционально: отсутствующий файл
// даёт рабочие значения по умолчанию.
type Config struct {
	Endpoint string        `yaml:"endpoint"` // адрес WebSocket API, пусто = боевой
	Phone    string        `yaml:"phone"`    // номер для входа, пока нет токена
	Session  SessionConfig `yaml:"session"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Debug    bool          `yaml:"debug"`
}

type SessionConfig struct {
	Driver string `yaml:"driver"` // file или sqlite
	Path   string `yaml:"path"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // адрес для /metrics, пусто = выключено
}

func loadConfig(path string) (Config, error) {
	var cfg Config

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) && path == defaultConfigPath {
		// конфиг по умолчанию может отсутствовать
		return withDefaults(cfg), nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	switch cfg.Session.Driver {
	case "", "file", "sqlite":
	default:
		return cfg, fmt.Errorf("unknown session driver %q", cfg.Session.Driver)
	}

	return withDefaults(cfg), nil
}

func withDefaults(cfg Config) Config {
	if cfg.Session.Driver == "" {
		cfg.Session.Driver = "file"
	}
	if cfg.Session.Path == "" {
		if cfg.Session.Driver == "sqlite" {
			cfg.Session.Path = defaultSQLitePath
		} else {
			cfg.Session.Path = defaultSessionPath
		}
	}
	return cfg
}
