// Package daemon manages the HomeSoil Supervisor (component H): boot,
// configuration, and graceful shutdown of every other component.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds HomeSoil's full runtime configuration: the required
// environment variables from spec §6 plus the optional TOML knobs this
// implementation adds for operational tuning.
type Config struct {
	DatabaseURL string
	SocketPort  int
	CoAPPort    int
	IsDev       bool
	LoginToken  string

	Extras ExtrasConfig `toml:"extras"`
}

// ExtrasConfig holds operational knobs with no environment-variable
// equivalent in spec §6. The Prober and Sweeper tick periods are fixed
// by spec §4.E/§4.F and are not configurable here.
type ExtrasConfig struct {
	CoAPDialTimeout  string `toml:"coap_dial_timeout"`
	BindHostOverride string `toml:"bind_host_override"`
	LogLevel         string `toml:"log_level"`
}

// DefaultExtras returns the compiled-in defaults for every knob not
// covered by an environment variable.
func DefaultExtras() ExtrasConfig {
	return ExtrasConfig{
		CoAPDialTimeout: "5s",
		LogLevel:        "info",
	}
}

// homeSoilHome returns the directory holding the optional config.toml,
// defaulting to ~/.homesoil.
func homeSoilHome() string {
	if env := os.Getenv("HOMESOIL_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".homesoil")
}

// LoadConfig composes the three layers spec SPEC_FULL.md §"Configuration"
// describes: compiled-in defaults, an optional TOML file, then the
// required environment variables (loaded via godotenv if a .env file is
// present), each layer overriding the last.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{Extras: DefaultExtras()}

	tomlPath := filepath.Join(homeSoilHome(), "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config.toml: %w", err)
		}
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.DatabaseURL = dbURL

	loginToken := os.Getenv("LOGIN_TOKEN")
	if loginToken == "" {
		return Config{}, fmt.Errorf("LOGIN_TOKEN is required")
	}
	cfg.LoginToken = loginToken

	cfg.SocketPort = envInt("SOCKET_PORT", 4000)
	cfg.CoAPPort = envInt("COAP_PORT", 8683)
	cfg.IsDev = os.Getenv("IS_DEV") != ""

	return cfg, nil
}

// BindHost resolves the CoAP/HTTP bind address per spec §6: IS_DEV binds
// loopback-only, otherwise every interface, unless an operator override
// is set in the TOML extras.
func (c Config) BindHost() string {
	if c.Extras.BindHostOverride != "" {
		return c.Extras.BindHostOverride
	}
	if c.IsDev {
		return "127.0.0.1"
	}
	return "0.0.0.0"
}

func (c Config) durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func (c Config) CoAPDialTimeout() time.Duration {
	return c.durationOr(c.Extras.CoAPDialTimeout, 5*time.Second)
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
