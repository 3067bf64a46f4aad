// Package config loads showsync settings from an optional YAML file with
// environment-variable overrides (SHOWSYNC_*).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration shared by all binaries.
type Config struct {
	NATS struct {
		// URL of the NATS server; empty means discover the hub over mDNS
		// (displays) or use localhost (hub).
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Hub struct {
		Port           int      `yaml:"port"`
		NATSPort       int      `yaml:"nats_port"`
		Instance       string   `yaml:"instance"`
		BeaconInterval Duration `yaml:"beacon_interval"`
		SweepInterval  Duration `yaml:"sweep_interval"`
		PresenceTTL    Duration `yaml:"presence_ttl"`
		StatsInterval  Duration `yaml:"stats_interval"`
	} `yaml:"hub"`

	Display struct {
		MPVSocket     string   `yaml:"mpv_socket"`
		LaunchMPV     bool     `yaml:"launch_mpv"`
		Fullscreen    bool     `yaml:"fullscreen"`
		CheckInterval Duration `yaml:"check_interval"`
		Epsilon1      float64  `yaml:"epsilon1"`
		Epsilon2      float64  `yaml:"epsilon2"`
		StallTimeout  Duration `yaml:"stall_timeout"`
		// HoldForUnlock keeps every element idle until the operator
		// presses enter on the display console. Platforms without an
		// autoplay policy can leave it off.
		HoldForUnlock bool `yaml:"hold_for_unlock"`
	} `yaml:"display"`
}

// Default returns the configuration all fields fall back to.
func Default() *Config {
	cfg := &Config{}
	cfg.NATS.URL = ""
	cfg.Hub.Port = 8089
	cfg.Hub.NATSPort = 4222
	cfg.Hub.Instance = "showsync-hub"
	cfg.Hub.BeaconInterval = Duration(5 * time.Second)
	cfg.Hub.SweepInterval = Duration(15 * time.Second)
	cfg.Hub.PresenceTTL = Duration(30 * time.Second)
	cfg.Hub.StatsInterval = Duration(10 * time.Second)
	cfg.Display.MPVSocket = ""
	cfg.Display.LaunchMPV = true
	cfg.Display.Fullscreen = true
	cfg.Display.CheckInterval = Duration(2 * time.Second)
	cfg.Display.Epsilon1 = 0.05
	cfg.Display.Epsilon2 = 1.5
	cfg.Display.StallTimeout = Duration(10 * time.Second)
	return cfg
}

// Load reads path if it exists, then applies environment overrides. A
// missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.NATS.URL = getEnv("SHOWSYNC_NATS_URL", cfg.NATS.URL)

	cfg.Hub.Port = getEnvAsInt("SHOWSYNC_HUB_PORT", cfg.Hub.Port)
	cfg.Hub.NATSPort = getEnvAsInt("SHOWSYNC_HUB_NATS_PORT", cfg.Hub.NATSPort)
	cfg.Hub.Instance = getEnv("SHOWSYNC_HUB_INSTANCE", cfg.Hub.Instance)
	cfg.Hub.BeaconInterval = getEnvAsDuration("SHOWSYNC_BEACON_INTERVAL", cfg.Hub.BeaconInterval)
	cfg.Hub.SweepInterval = getEnvAsDuration("SHOWSYNC_SWEEP_INTERVAL", cfg.Hub.SweepInterval)
	cfg.Hub.PresenceTTL = getEnvAsDuration("SHOWSYNC_PRESENCE_TTL", cfg.Hub.PresenceTTL)
	cfg.Hub.StatsInterval = getEnvAsDuration("SHOWSYNC_STATS_INTERVAL", cfg.Hub.StatsInterval)

	cfg.Display.MPVSocket = getEnv("SHOWSYNC_MPV_SOCKET", cfg.Display.MPVSocket)
	cfg.Display.LaunchMPV = getEnvAsBool("SHOWSYNC_LAUNCH_MPV", cfg.Display.LaunchMPV)
	cfg.Display.Fullscreen = getEnvAsBool("SHOWSYNC_FULLSCREEN", cfg.Display.Fullscreen)
	cfg.Display.CheckInterval = getEnvAsDuration("SHOWSYNC_CHECK_INTERVAL", cfg.Display.CheckInterval)
	cfg.Display.Epsilon1 = getEnvAsFloat("SHOWSYNC_EPSILON1", cfg.Display.Epsilon1)
	cfg.Display.Epsilon2 = getEnvAsFloat("SHOWSYNC_EPSILON2", cfg.Display.Epsilon2)
	cfg.Display.StallTimeout = getEnvAsDuration("SHOWSYNC_STALL_TIMEOUT", cfg.Display.StallTimeout)
	cfg.Display.HoldForUnlock = getEnvAsBool("SHOWSYNC_HOLD_FOR_UNLOCK", cfg.Display.HoldForUnlock)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return Duration(parsed)
		}
	}
	return defaultValue
}
