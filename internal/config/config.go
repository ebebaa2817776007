// Package config loads process configuration from the environment.
// Per-world scheduler settings live in the world catalogs, not here.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the daemon's process settings.
type Config struct {
	DBPath       string  `envconfig:"DB_PATH" default:"data/veldt.db"`
	CatalogDir   string  `envconfig:"CATALOG_DIR" default:"catalogs"`
	APIPort      int     `envconfig:"API_PORT" default:"8080"`
	AdminKey     string  `envconfig:"ADMIN_KEY"`
	TickInterval float64 `envconfig:"TICK_INTERVAL_SECONDS" default:"1"`
	Seed         int64   `envconfig:"SEED" default:"0"`
	JobQueueCap  int     `envconfig:"JOB_QUEUE_CAP" default:"1024"`
}

// Load reads configuration from VELDT_-prefixed environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("veldt", &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
