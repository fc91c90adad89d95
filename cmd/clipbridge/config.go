package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipbridge/clipbridge/internal/logging"
	"github.com/clipbridge/clipbridge/internal/transport"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPBRIDGE_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPBRIDGE_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clipbridge")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clipbridge/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/clipbridge", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPBRIDGE")
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// brokerSettings is the connection identity read from flags/env/config.
type brokerSettings struct {
	Device  string
	User    string
	CertDir string
	Server  string
	Port    int
}

// addBrokerFlags adds the broker connection flags shared by run and send.
func addBrokerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("device", "", "device identifier, used as the broker client ID")
	f.String("user", "", "user identifier; all of a user's devices share one topic")
	f.String("cert-dir", "", "directory holding ca.crt and <user>-<device>.crt/.key")
	f.String("server", "", "broker host")
	f.Int("port", transport.DefaultPort, "broker TLS port")
}

// brokerSettingsFrom reads and validates the broker settings. Every field
// except port is required; a missing value is a startup error.
func brokerSettingsFrom(v *viper.Viper) (brokerSettings, error) {
	s := brokerSettings{
		Device:  v.GetString("device"),
		User:    v.GetString("user"),
		CertDir: v.GetString("cert-dir"),
		Server:  v.GetString("server"),
		Port:    v.GetInt("port"),
	}
	for _, req := range []struct{ name, val string }{
		{"device", s.Device},
		{"user", s.User},
		{"cert-dir", s.CertDir},
		{"server", s.Server},
	} {
		if req.val == "" {
			return s, fmt.Errorf("--%s is required", req.name)
		}
	}
	return s, nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info, debug on a TTY)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}
