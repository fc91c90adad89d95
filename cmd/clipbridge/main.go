// clipbridge: one clipboard across devices, synced through an MQTT broker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipbridge/clipbridge/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipbridge",
		Short: "Sync the system clipboard through an MQTT broker",
		Long: `clipbridge mirrors the local clipboard's text to an MQTT broker over
mutual TLS and mirrors broker-delivered text back into the local clipboard,
so that all of a user's devices share one logical clipboard.

Run "clipbridge run" on each device. Every device of the same user
subscribes and publishes on the single topic clipboard/<user>; the device
identifier is only the broker client identity.

The certificate directory must contain ca.crt plus <user>-<device>.crt and
<user>-<device>.key for this device.

Config file search order (first found wins):
  /etc/clipbridge/clipbridge.toml
  $HOME/.config/clipbridge/clipbridge.toml
  path supplied via --config

All flags can be set via CLIPBRIDGE_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newSendCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipbridge %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
