package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load собирает Config: значения по умолчанию, затем YAML-файл,
// затем переменные окружения.
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("BALLPARK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// BALLPARK_DB_DSN -> db_dsn, BALLPARK_RETRY_MAX_ATTEMPTS -> retry_max_attempts.
	// Подчёркивания сохраняются, чтобы ключи совпадали с koanf-тегами.
	envProvider := env.Provider("BALLPARK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "ballpark_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.DatabaseDSN == "" {
		return nil, errors.New("db_dsn must not be empty")
	}
	if cfg.Workers <= 0 || cfg.ExtractWorkers <= 0 {
		return nil, errors.New("workers and extract_workers must be positive")
	}
	return &cfg, nil
}
