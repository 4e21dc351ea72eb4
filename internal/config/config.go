// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Relay holds configuration for the relay server.
type Relay struct {
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:":8080"`
	WorkerPoolSize int           `envconfig:"WORKER_POOL_SIZE" default:"256"`
	MaxConnections int           `envconfig:"MAX_CONNECTIONS" default:"100000"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	NATSURL   string `envconfig:"NATS_URL"` // empty disables the audit stream
	BadgerDir string `envconfig:"BADGER_DIR" default:"./data/history"`

	AdminSecret    string `envconfig:"ADMIN_SECRET" required:"true"`
	DefaultChannel string `envconfig:"DEFAULT_CHANNEL" default:"general"`
	AvatarPalette  bool   `envconfig:"AVATAR_PALETTE" default:"true"`
}

// Auditor holds configuration for the audit persistence service.
type Auditor struct {
	NATSURL     string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" required:"true"`
}

// LoadRelay reads the relay server configuration from the environment.
func LoadRelay() (Relay, error) {
	var cfg Relay
	if err := envconfig.Process("", &cfg); err != nil {
		return Relay{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadAuditor reads the auditor configuration from the environment.
func LoadAuditor() (Auditor, error) {
	var cfg Auditor
	if err := envconfig.Process("", &cfg); err != nil {
		return Auditor{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
