// file: config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every process-wide setting. It is loaded exactly once at
// startup and never mutated afterwards; services receive it by value or
// keep the fields they need.
type Config struct {
	ListenAddr    string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string

	Portainer Portainer
}

// Portainer describes how to reach the orchestration backend and which
// endpoint scope to operate against.
type Portainer struct {
	Host     string
	Port     string
	APIKey   string
	Endpoint string
	VMIP     string

	// PayloadFile is the JSON creation-payload template; MapFile is the
	// challenge-id -> image-id mapping. Both are parsed once at startup.
	PayloadFile string
	MapFile     string
}

// BaseURL returns the backend address the orchestration client talks to.
func (p Portainer) BaseURL() string {
	return fmt.Sprintf("https://%s:%s", p.Host, p.Port)
}

// Load reads .env (if present) and the environment into a Config.
// Missing mandatory values are returned as errors so main can fail fast.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		Portainer: Portainer{
			Host:        getenv("PORTAINER_HOST", "portainer"),
			Port:        getenv("PORTAINER_PORT", "9443"),
			APIKey:      os.Getenv("PORTAINER_API_KEY"),
			Endpoint:    os.Getenv("PORTAINER_ENDPOINT"),
			VMIP:        os.Getenv("PORTAINER_VM_IP"),
			PayloadFile: os.Getenv("CHAL_PAYLOAD_FILE"),
			MapFile:     os.Getenv("CHAL_MAP_FILE"),
		},
	}

	for _, f := range []struct{ key, val string }{
		{"DATABASE_DSN", cfg.DatabaseDSN},
		{"JWT_SECRET", cfg.JWTSecret},
		{"PORTAINER_API_KEY", cfg.Portainer.APIKey},
		{"PORTAINER_ENDPOINT", cfg.Portainer.Endpoint},
		{"PORTAINER_VM_IP", cfg.Portainer.VMIP},
		{"CHAL_PAYLOAD_FILE", cfg.Portainer.PayloadFile},
		{"CHAL_MAP_FILE", cfg.Portainer.MapFile},
	} {
		if f.val == "" {
			return nil, fmt.Errorf("config: %s is not set", f.key)
		}
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
