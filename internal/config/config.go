// Package config содержит логику чтения конфигурации реферального сервиса.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации реферального сервиса.
type Config struct {
	RunAddress              string `env:"RUN_ADDRESS"`
	DatabaseURI             string `env:"DATABASE_URI"`
	EngagementSystemAddress string `env:"ENGAGEMENT_SYSTEM_ADDRESS"`
	AuthSecret              string `env:"AUTH_SECRET"`
	AdminKey                string `env:"ADMIN_KEY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	// .env необязателен, его отсутствие не является ошибкой.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envEngagementAddress := cfg.EngagementSystemAddress
	envAuthSecret := cfg.AuthSecret
	envAdminKey := cfg.AdminKey

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.EngagementSystemAddress, "r", "", "engagement tracking system address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth and attribution cookies")
	flag.StringVar(&cfg.AdminKey, "k", "", "API key for admin endpoints")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envEngagementAddress != "" {
		cfg.EngagementSystemAddress = envEngagementAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envAdminKey != "" {
		cfg.AdminKey = envAdminKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
