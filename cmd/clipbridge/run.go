package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clipbridge/clipbridge/internal/bridge"
	"github.com/clipbridge/clipbridge/internal/clip"
	"github.com/clipbridge/clipbridge/internal/tlsconf"
	"github.com/clipbridge/clipbridge/internal/transport"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard bridge daemon",
		Long: `Watches the local clipboard and publishes every new text value to the
user's broker topic; applies every message received on that topic to the
local clipboard. Messages applied from the broker are never re-published.

The process exits when the broker connection is lost or a publish fails;
there is no automatic reconnect. Run it under a supervisor that restarts it.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runBridge(v) },
	}

	addBrokerFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

// topicPublisher binds a broker session to the single per-user topic.
type topicPublisher struct {
	conn  *transport.Conn
	topic string
}

func (p topicPublisher) Publish(content string) error {
	return p.conn.Publish(p.topic, content)
}

func runBridge(v *viper.Viper) error {
	setupLogging(v)

	settings, err := brokerSettingsFrom(v)
	if err != nil {
		return err
	}

	tlsCfg, err := tlsconf.Load(settings.CertDir, settings.User, settings.Device)
	if err != nil {
		return err
	}

	topic := transport.Topic(settings.User)
	slog.Info("clipbridge starting",
		"version", Version,
		"server", settings.Server,
		"port", settings.Port,
		"device", settings.Device,
		"topic", topic,
	)

	backend := clip.New()
	defer backend.Close()
	slog.Info("clipboard backend", "name", backend.Name())

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

	if err := conn.Subscribe(topic); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	br := bridge.New(backend, topicPublisher{conn: conn, topic: topic})

	inbound := make(chan []byte)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-conn.Events():
				select {
				case inbound <- m.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	err = br.Run(ctx, backend.Watch(), inbound, conn.Lost())
	if err != nil {
		return fmt.Errorf("bridge stopped: %w", err)
	}
	slog.Info("exit")
	return nil
}
