package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Hostname        string
	SysClassNet     string
	SettingsPath    string
	ListenAddr      string
	ProbeListenAddr string
	SampleInterval  time.Duration
	ErrorBackoff    time.Duration
	ShutdownTimeout time.Duration
	UPSCommand      string
	UPSTarget       string
	UPSInterval     time.Duration
	UPSTimeout      time.Duration
	GPUQueryTimeout time.Duration
	LogJSON         bool
	LogLevel        string
}

func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	cfg := Config{
		Hostname:        env("SYSMON_HOSTNAME", hostname),
		SysClassNet:     env("SYSMON_SYS_CLASS_NET", "/sys/class/net"),
		SettingsPath:    env("SYSMON_SETTINGS_PATH", defaultSettingsPath()),
		ListenAddr:      env("SYSMON_LISTEN_ADDR", "127.0.0.1:9182"),
		ProbeListenAddr: env("SYSMON_PROBE_ADDR", "127.0.0.1:9183"),
		SampleInterval:  envDuration("SYSMON_SAMPLE_INTERVAL", 1*time.Second),
		ErrorBackoff:    envDuration("SYSMON_ERROR_BACKOFF", 1*time.Second),
		ShutdownTimeout: envDuration("SYSMON_SHUTDOWN_TIMEOUT", 10*time.Second),
		UPSCommand:      env("SYSMON_UPS_COMMAND", "upsc"),
		UPSTarget:       env("SYSMON_UPS_TARGET", "eaton@localhost"),
		UPSInterval:     envDuration("SYSMON_UPS_INTERVAL", 5*time.Second),
		UPSTimeout:      envDuration("SYSMON_UPS_TIMEOUT", 3*time.Second),
		GPUQueryTimeout: envDuration("SYSMON_GPU_QUERY_TIMEOUT", 2*time.Second),
		LogJSON:         envBool("SYSMON_LOG_JSON", false),
		LogLevel:        strings.ToLower(env("SYSMON_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.SysClassNet) == "" {
		return errors.New("SYSMON_SYS_CLASS_NET is required")
	}
	if strings.TrimSpace(c.SettingsPath) == "" {
		return errors.New("SYSMON_SETTINGS_PATH is required")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("SYSMON_LISTEN_ADDR is required")
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("SYSMON_PROBE_ADDR is required")
	}
	if c.SampleInterval <= 0 {
		return errors.New("SYSMON_SAMPLE_INTERVAL must be > 0")
	}
	if c.UPSInterval <= 0 || c.UPSTimeout <= 0 {
		return errors.New("UPS poll interval and timeout must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SYSMON_SHUTDOWN_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.UPSCommand) == "" {
		return errors.New("SYSMON_UPS_COMMAND is required")
	}
	return nil
}

func defaultSettingsPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(configDir, "sysmon-agent", "settings.yaml")
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
