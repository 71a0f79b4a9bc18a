package config

import (
	"fmt"
	"strings"
)

// LogLevel is one of the five levels allowed for console and file
// logging independently.
type LogLevel string

const (
	LogTrace LogLevel = "trace"
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

func validLogLevel(l LogLevel) bool {
	switch l {
	case LogTrace, LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the full set of server configuration fields, realized as
// a single struct with mapstructure tags so viper can unmarshal a
// TOML document directly into it.
type Config struct {
	MemoryUsage  int `mapstructure:"memory_usage"`
	Compression  int `mapstructure:"compression_level"`
	Tickrate     int `mapstructure:"tickrate"`

	CentralServerURL      string `mapstructure:"central_server_url"`
	CentralServerPassword string `mapstructure:"central_server_password"`

	QuicCertPath string `mapstructure:"quic_cert_path"`

	ServerName    string `mapstructure:"server_name"`
	ServerID      string `mapstructure:"server_id"`
	ServerRegion  string `mapstructure:"server_region"`
	ServerAddress string `mapstructure:"server_address"`

	EnableTCP   bool   `mapstructure:"enable_tcp"`
	TCPAddress  string `mapstructure:"tcp_address"`
	EnableUDP   bool   `mapstructure:"enable_udp"`
	UDPPingOnly bool   `mapstructure:"udp_ping_only"`
	UDPAddress  string `mapstructure:"udp_address"`
	UDPBinds    int    `mapstructure:"udp_binds"`

	LogFileEnabled  bool     `mapstructure:"log_file_enabled"`
	LogDirectory    string   `mapstructure:"log_directory"`
	ConsoleLogLevel LogLevel `mapstructure:"console_log_level"`
	FileLogLevel    LogLevel `mapstructure:"file_log_level"`
	LogFilename     string   `mapstructure:"log_filename"`
	LogRolling      bool     `mapstructure:"log_rolling"`

	QdbPath string `mapstructure:"qdb_path"`

	EnableStatTracking     bool `mapstructure:"enable_stat_tracking"`
	VerifyScriptSignatures bool `mapstructure:"verify_script_signatures"`
}

// Default returns the configuration written to disk the first time
// playrelay runs with no config file present.
func Default() *Config {
	return &Config{
		MemoryUsage: 4,
		Compression: 3,
		Tickrate:    30,

		CentralServerURL:      "ws://localhost:4000",
		CentralServerPassword: "",

		ServerName:   "playrelay",
		ServerID:     "main",
		ServerRegion: "none",

		EnableTCP:  true,
		TCPAddress: "0.0.0.0:4201",
		EnableUDP:  false,
		UDPAddress: "0.0.0.0:4202",
		UDPBinds:   1,

		LogFileEnabled:  true,
		LogDirectory:    "logs",
		ConsoleLogLevel: LogInfo,
		FileLogLevel:    LogInfo,
		LogFilename:     "playrelay.log",
		LogRolling:      true,

		QdbPath: "qdb.bin",

		EnableStatTracking:     true,
		VerifyScriptSignatures: true,
	}
}

// Validate checks every bounded field, dispatching to one
// validateXxx() helper per concern.
func (c *Config) Validate() error {
	for _, fn := range []func() error{
		c.validateCore,
		c.validateTransport,
		c.validateLogging,
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateCore() error {
	if c.MemoryUsage < 1 || c.MemoryUsage > 11 {
		return fmt.Errorf("memory_usage must be between 1 and 11, got %d", c.MemoryUsage)
	}
	if c.Compression < 0 || c.Compression > 6 {
		return fmt.Errorf("compression_level must be between 0 and 6, got %d", c.Compression)
	}
	if c.Tickrate < 1 || c.Tickrate > 240 {
		return fmt.Errorf("tickrate must be between 1 and 240, got %d", c.Tickrate)
	}
	if c.CentralServerURL == "" {
		return fmt.Errorf("central_server_url must not be empty")
	}
	return nil
}

func (c *Config) validateTransport() error {
	if !c.EnableTCP && !c.EnableUDP {
		return fmt.Errorf("at least one of enable_tcp or enable_udp must be true")
	}
	if c.EnableTCP && c.TCPAddress == "" {
		return fmt.Errorf("tcp_address must be set when enable_tcp is true")
	}
	if c.EnableUDP {
		if c.UDPAddress == "" {
			return fmt.Errorf("udp_address must be set when enable_udp is true")
		}
		if c.UDPBinds < 1 || c.UDPBinds > 64 {
			return fmt.Errorf("udp_binds must be between 1 and 64, got %d", c.UDPBinds)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevel(c.ConsoleLogLevel) {
		return fmt.Errorf("console_log_level must be one of trace,debug,info,warn,error, got %q", c.ConsoleLogLevel)
	}
	if !validLogLevel(c.FileLogLevel) {
		return fmt.Errorf("file_log_level must be one of trace,debug,info,warn,error, got %q", c.FileLogLevel)
	}
	if c.LogFileEnabled && strings.TrimSpace(c.LogFilename) == "" {
		return fmt.Errorf("log_filename must be set when log_file_enabled is true")
	}
	return nil
}
