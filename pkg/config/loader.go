package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix for config overrides.
const EnvPrefix = "RELAY_GS"

// Load reads the TOML config at path, applying RELAY_GS_* environment
// overrides on top and validating the result. A missing file writes
// Default() to path and returns it unmodified; a file that fails
// validation aborts startup with a wrapped error.
func Load(path string) (*Config, error) {
	log := logrus.WithFields(logrus.Fields{"function": "Load", "package": "config", "path": path})

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info("no config file found, writing defaults")
		def := Default()
		if err := writeDefault(path, def); err != nil {
			return nil, fmt.Errorf("config: writing default config: %w", err)
		}
		return def, nil
	} else if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	log.Debug("configuration loaded and validated")
	return &cfg, nil
}

// setDefaults seeds viper's own defaults from a Config value so that
// a partial TOML file (only the fields an operator wants to override)
// still unmarshals into a fully-populated Config.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("memory_usage", d.MemoryUsage)
	v.SetDefault("compression_level", d.Compression)
	v.SetDefault("tickrate", d.Tickrate)
	v.SetDefault("central_server_url", d.CentralServerURL)
	v.SetDefault("central_server_password", d.CentralServerPassword)
	v.SetDefault("quic_cert_path", d.QuicCertPath)
	v.SetDefault("server_name", d.ServerName)
	v.SetDefault("server_id", d.ServerID)
	v.SetDefault("server_region", d.ServerRegion)
	v.SetDefault("server_address", d.ServerAddress)
	v.SetDefault("enable_tcp", d.EnableTCP)
	v.SetDefault("tcp_address", d.TCPAddress)
	v.SetDefault("enable_udp", d.EnableUDP)
	v.SetDefault("udp_ping_only", d.UDPPingOnly)
	v.SetDefault("udp_address", d.UDPAddress)
	v.SetDefault("udp_binds", d.UDPBinds)
	v.SetDefault("log_file_enabled", d.LogFileEnabled)
	v.SetDefault("log_directory", d.LogDirectory)
	v.SetDefault("console_log_level", string(d.ConsoleLogLevel))
	v.SetDefault("file_log_level", string(d.FileLogLevel))
	v.SetDefault("log_filename", d.LogFilename)
	v.SetDefault("log_rolling", d.LogRolling)
	v.SetDefault("qdb_path", d.QdbPath)
	v.SetDefault("enable_stat_tracking", d.EnableStatTracking)
	v.SetDefault("verify_script_signatures", d.VerifyScriptSignatures)
}

// writeDefault marshals def as TOML and writes it to path, creating
// any missing parent directory.
func writeDefault(path string, def *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	data, err := toml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
