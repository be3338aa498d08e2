// ABOUTME: Config is read entirely from DIALOGUE_* environment variables, with safe defaults
// ABOUTME: for local development and an explicit opt-in required to bind a non-loopback address.

package dialogueconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every server-startup knob, all sourced from the environment.
type Config struct {
	BindAddr    string
	Port        int
	DBPath      string
	AllowRemote bool
	AuthToken   string

	RequestTimeout time.Duration
	OverloadDepth  int

	DefaultProvider string
	DefaultModel    string

	ToolsDir string
}

// FromEnv reads Config from the process environment, applying defaults for
// anything unset.
func FromEnv() (*Config, error) {
	cfg := &Config{
		BindAddr:        getEnv("DIALOGUE_BIND_ADDR", "127.0.0.1"),
		Port:            getEnvInt("DIALOGUE_PORT", 8080),
		DBPath:          getEnv("DIALOGUE_DB_PATH", "dialogued.db"),
		AllowRemote:     getEnvBool("DIALOGUE_ALLOW_REMOTE", false),
		AuthToken:       os.Getenv("DIALOGUE_AUTH_TOKEN"),
		RequestTimeout:  getEnvDuration("DIALOGUE_REQUEST_TIMEOUT", 90*time.Second),
		OverloadDepth:   getEnvInt("DIALOGUE_OVERLOAD_DEPTH", 256),
		DefaultProvider: os.Getenv("DIALOGUE_DEFAULT_PROVIDER"),
		DefaultModel:    os.Getenv("DIALOGUE_DEFAULT_MODEL"),
		ToolsDir:        getEnv("DIALOGUE_TOOLS_DIR", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces that binding beyond loopback requires an explicit
// opt-in plus an auth token, so a misconfigured deployment never exposes the
// server unauthenticated on a public interface.
func (c *Config) validate() error {
	if !isLoopback(c.BindAddr) {
		if !c.AllowRemote {
			return fmt.Errorf("refusing to bind non-loopback address %q without DIALOGUE_ALLOW_REMOTE=true", c.BindAddr)
		}
		if c.AuthToken == "" {
			return fmt.Errorf("DIALOGUE_AUTH_TOKEN is required when binding a non-loopback address")
		}
	}
	return nil
}

func isLoopback(addr string) bool {
	switch addr {
	case "127.0.0.1", "localhost", "::1", "":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Addr formats the configured bind address and port for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}
