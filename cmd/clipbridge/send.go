package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipbridge/clipbridge/internal/tlsconf"
	"github.com/clipbridge/clipbridge/internal/transport"
)

func newSendCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Publish text to the user's clipboard topic and exit",
		Long: `Publishes the given text (or stdin when no argument is given) to the
user's clipboard topic once, without watching the local clipboard. Every
device running "clipbridge run" for the same user will apply it.`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, args []string) error { return runSend(v, args) },
	}

	addBrokerFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runSend(v *viper.Viper, args []string) error {
	setupLogging(v)

	settings, err := brokerSettingsFrom(v)
	if err != nil {
		return err
	}

	content := strings.Join(args, " ")
	if content == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		content = string(b)
	}
	if content == "" {
		return fmt.Errorf("nothing to send")
	}

	tlsCfg, err := tlsconf.Load(settings.CertDir, settings.User, settings.Device)
	if err != nil {
		return err
	}

	conn, err := transport.Connect(transport.Config{
		Host:   settings.Server,
		Port:   settings.Port,
		Device: settings.Device,
		TLS:    tlsCfg,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	topic := transport.Topic(settings.User)
	if err := conn.Publish(topic, content); err != nil {
		return err
	}
	slog.Info("published to broker", "bytes", len(content), "topic", topic)
	return nil
}
