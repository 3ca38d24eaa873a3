// config.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string `env:"PORT" envDefault:"3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	DBType               string `env:"DB_TYPE" envDefault:"mysql"` // mysql, postgres, sqlite, sqlserver
	DBHost               string `env:"DB_HOST" envDefault:"localhost"`
	DBPort               string `env:"DB_PORT" envDefault:"3306"`
	DBDatabase           string `env:"DB_DATABASE"`
	DBAppUser            string `env:"DB_APP_USER"`
	DBAppPassword        string `env:"DB_APP_PASSWORD"`
	DBAppConnectionLimit int    `env:"DB_APP_CONNECTION_LIMIT" envDefault:"5"`
	DBMigrate            string `env:"DB_MIGRATE" envDefault:"auto"` // auto, sql

	// Cache configuration
	CacheType     string `env:"CACHE_TYPE" envDefault:"redis"` // redis, memory
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Authorizer configuration
	AuthzURL      string `env:"AUTHZ_URL"`
	AuthzClientID string `env:"AUTHZ_CLIENT_ID"`
}

// Load loads configuration from environment variables, after applying the
// optional file named by ENV_FILE.
func Load() (*Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBAppUser == "" && cfg.DBType != "sqlite" {
		return nil, fmt.Errorf("DB_APP_USER is required")
	}
	if cfg.AuthzURL == "" {
		return nil, fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}

	switch cfg.DBMigrate {
	case "auto", "sql":
	default:
		return nil, fmt.Errorf("DB_MIGRATE must be auto or sql, got %q", cfg.DBMigrate)
	}
	switch cfg.CacheType {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("CACHE_TYPE must be redis or memory, got %q", cfg.CacheType)
	}

	return cfg, nil
}
