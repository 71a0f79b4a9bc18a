package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"playrelay/pkg/bridge"
	"playrelay/pkg/config"
	"playrelay/pkg/handler"
	"playrelay/pkg/metrics"
	"playrelay/pkg/scripting"
	"playrelay/pkg/wsgateway"
)

// metricsAddr is the fixed listen address for the Prometheus
// /metrics endpoint. It is deliberately not a config field: a small,
// undocumented internal port is enough without growing the config
// surface for it.
const metricsAddr = "127.0.0.1:9100"

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "playrelay-server",
		Short:         "Relay server for real-time multiplayer session state.",
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.toml", "path to the server's TOML configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Fatal("server exited with error")
	}
}

// run loads configuration, wires every subsystem the server needs at
// startup, and blocks until ctx is cancelled by a shutdown signal.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logCloser := configureLogging(cfg)
	if logCloser != nil {
		defer logCloser.Close()
	}
	logStartupInfo(cfg)

	mx := metrics.New()

	if cfg.ServerAddress == "" {
		if ip, err := config.DiscoverPublicIP(); err != nil {
			logrus.WithError(err).Warn("could not discover public IP, announcing an empty server address")
		} else {
			cfg.ServerAddress = ip
		}
	}

	identity := bridge.ServerIdentity{
		Name:     cfg.ServerName,
		StringID: cfg.ServerID,
		Region:   cfg.ServerRegion,
		Address:  cfg.ServerAddress,
	}

	br := bridge.New(cfg.CentralServerURL, cfg.CentralServerPassword, identity, bridge.Hooks{
		OnAuthenticated: func() { mx.SetBridgeState(3) },
		OnDisconnected:  func() { mx.SetBridgeState(0) },
	})

	if err := br.LoadQdb(cfg.QdbPath); err != nil {
		logrus.WithError(err).Warn("could not load qdb snapshot, starting with an empty moderation cache")
	}

	var engine scripting.Engine = scripting.NullEngine{}

	shared := handler.NewShared(handler.Config{
		Tickrate:               uint16(cfg.Tickrate),
		VerifyScriptSignatures: cfg.VerifyScriptSignatures,
	}, engine, br)

	sched := handler.NewScheduler(shared, handler.DefaultSchedulerConfig())

	group, groupCtx := errGroup(ctx)

	group.spawn(func() error {
		br.Run(groupCtx)
		return nil
	})

	group.spawn(func() error {
		sched.Run(groupCtx)
		return nil
	})

	if cfg.QdbPath != "" {
		group.spawn(func() error {
			runQdbSync(groupCtx, br, cfg.QdbPath)
			return nil
		})
	}

	group.spawn(func() error {
		metricsSrv := &metricsServer{addr: metricsAddr, handler: mx.Handler()}
		return metricsSrv.run(groupCtx)
	})

	if cfg.EnableTCP {
		gwCfg := wsgateway.DefaultConfig()
		gwCfg.CompressionLevel = cfg.Compression
		gw := wsgateway.New(gwCfg, shared, mx)
		group.spawn(func() error {
			logrus.WithField("address", cfg.TCPAddress).Info("listening for client connections")
			return gw.ListenAndServe(groupCtx, cfg.TCPAddress)
		})
	}

	if cfg.EnableUDP {
		logrus.Warn("enable_udp is set but no UDP/QUIC transport is implemented; ignoring")
	}

	<-ctx.Done()
	logrus.Info("shutdown signal received, stopping subsystems")

	return group.wait()
}

// configureLogging sets up logrus console output at ConsoleLogLevel
// and, when enabled, a second file-backed output at FileLogLevel. It
// returns the log file so the caller can close it on shutdown (nil
// when file logging is disabled).
func configureLogging(cfg *config.Config) io.Closer {
	consoleLevel, err := logrus.ParseLevel(string(cfg.ConsoleLogLevel))
	if err != nil {
		logrus.WithError(err).Warn("invalid console_log_level, using info")
		consoleLevel = logrus.InfoLevel
	}
	logrus.SetLevel(consoleLevel)

	if !cfg.LogFileEnabled {
		return nil
	}

	if err := os.MkdirAll(cfg.LogDirectory, 0o755); err != nil {
		logrus.WithError(err).Warn("could not create log directory, file logging disabled")
		return nil
	}

	name := cfg.LogFilename
	if cfg.LogRolling {
		name = rollingName(cfg.LogFilename)
	}

	f, err := os.OpenFile(filepath.Join(cfg.LogDirectory, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logrus.WithError(err).Warn("could not open log file, file logging disabled")
		return nil
	}

	logrus.AddHook(&fileHook{
		writer: f,
		level:  fileLevelOrInfo(cfg.FileLogLevel),
	})
	return f
}

// rollingName inserts a date stamp ahead of the extension. No
// log-rotation library appears anywhere in the example pack, so
// rotation here is reduced to "one file per day" rather than
// size/age-based rollover a dedicated library would provide.
func rollingName(base string) string {
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return fmt.Sprintf("%s-%s%s", stem, time.Now().Format("2006-01-02"), ext)
}

func fileLevelOrInfo(l config.LogLevel) logrus.Level {
	lvl, err := logrus.ParseLevel(string(l))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// fileHook mirrors logrus's text formatter to a second writer gated
// by its own level, since logrus has no built-in multi-level,
// multi-writer output and the pack carries no third-party hook for
// this particular shape (only logrus itself).
type fileHook struct {
	writer io.Writer
	level  logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels[:h.level+1]
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = io.WriteString(h.writer, line)
	return err
}

func logStartupInfo(cfg *config.Config) {
	logrus.WithFields(logrus.Fields{
		"server_name":    cfg.ServerName,
		"server_id":      cfg.ServerID,
		"tickrate":       cfg.Tickrate,
		"enable_tcp":     cfg.EnableTCP,
		"tcp_address":    cfg.TCPAddress,
		"enable_udp":     cfg.EnableUDP,
		"central_server": cfg.CentralServerURL,
	}).Info("starting playrelay server")
}

// qdbSaveInterval is how often the bridge's user moderation cache is
// flushed to disk. Frequent enough that a crash loses at most a few
// minutes of central-server pushes, infrequent enough not to matter
// for a cache whose authoritative source is the bridge connection.
const qdbSaveInterval = 5 * time.Minute

// runQdbSync periodically snapshots the bridge's user cache to path
// and does one final save on shutdown, so a restart doesn't begin with
// an empty moderation cache.
func runQdbSync(ctx context.Context, br *bridge.Client, path string) {
	ticker := time.NewTicker(qdbSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := br.SaveQdb(path); err != nil {
				logrus.WithError(err).Warn("final qdb snapshot failed")
			}
			return
		case <-ticker.C:
			if err := br.SaveQdb(path); err != nil {
				logrus.WithError(err).Warn("qdb snapshot failed")
			}
		}
	}
}
