// Package transport adapts the MQTT client to the bridge's needs: one
// mutual-TLS broker session, one subscription at QoS 0, publishes at QoS 1,
// and an inbound event stream.
//
// The QoS asymmetry is deliberate. Inbound traffic is subscribed AtMostOnce
// because a dropped or duplicated inbound message is harmless once the
// bridge's echo suppression is in place. Outbound publishes use AtLeastOnce
// because a locally authored clipboard change is worth a retry guarantee.
//
// There is no automatic reconnect: when the broker connection is lost the
// session is over and Lost fires once. Callers are expected to exit.
package transport

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// TopicPrefix is prepended to the user identifier to form the shared
	// per-user topic. All of a user's devices subscribe and publish on the
	// same topic.
	TopicPrefix = "clipboard/"

	// DefaultPort is the conventional MQTT-over-TLS broker port.
	DefaultPort = 8883

	keepAlive      = 5 * time.Second
	connectTimeout = 10 * time.Second
	disconnectWait = 250 // milliseconds, passed to paho Disconnect
)

const (
	qosAtMostOnce  byte = 0
	qosAtLeastOnce byte = 1
)

// Topic returns the broker topic shared by all of user's devices.
func Topic(user string) string {
	return TopicPrefix + user
}

// Config describes a broker session.
type Config struct {
	Host   string
	Port   int
	Device string      // MQTT client identifier
	TLS    *tls.Config // mutual-TLS config, required
}

// Message is a single inbound payload. The bytes are the raw publish
// payload: UTF-8 text with no envelope.
type Message struct {
	Payload []byte
}

// Conn is an established broker session.
type Conn struct {
	client mqtt.Client
	events chan Message
	lost   chan error
}

// Connect establishes the TLS session to the broker. The returned Conn must
// be Closed unless the connection is reported lost first.
func Connect(cfg Config) (*Conn, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	c := &Conn{
		events: make(chan Message, 16),
		lost:   make(chan error, 1),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(BrokerURL(cfg.Host, cfg.Port)).
		SetClientID(cfg.Device).
		SetTLSConfig(cfg.TLS).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			select {
			case c.lost <- err:
			default:
			}
		})

	c.client = mqtt.NewClient(opts)
	if t := c.client.Connect(); t.Wait() && t.Error() != nil {
		return nil, fmt.Errorf("transport: connect %s:%d: %w", cfg.Host, cfg.Port, t.Error())
	}
	return c, nil
}

// BrokerURL formats the ssl:// URL for a host/port pair.
func BrokerURL(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("ssl://%s:%d", host, port)
}

// Subscribe registers interest in topic at QoS 0. Inbound payloads are
// delivered in arrival order on Events.
func (c *Conn) Subscribe(topic string) error {
	t := c.client.Subscribe(topic, qosAtMostOnce, func(_ mqtt.Client, m mqtt.Message) {
		// paho invokes handlers sequentially per subscription; a blocking
		// send here preserves arrival order.
		c.events <- Message{Payload: m.Payload()}
	})
	if t.Wait() && t.Error() != nil {
		return fmt.Errorf("transport: subscribe %s: %w", topic, t.Error())
	}
	slog.Info("subscribed", "topic", topic)
	return nil
}

// Publish sends content to topic at QoS 1 and blocks until the broker
// acknowledges. An error means further publishing cannot be trusted.
func (c *Conn) Publish(topic, content string) error {
	t := c.client.Publish(topic, qosAtLeastOnce, false, []byte(content))
	if t.Wait() && t.Error() != nil {
		return fmt.Errorf("transport: publish %d bytes to %s: %w", len(content), topic, t.Error())
	}
	return nil
}

// Events is the inbound message stream for the subscribed topic.
func (c *Conn) Events() <-chan Message { return c.events }

// Lost fires at most once, when the broker connection drops.
func (c *Conn) Lost() <-chan error { return c.lost }

// Close disconnects from the broker, allowing in-flight work to drain.
func (c *Conn) Close() {
	c.client.Disconnect(disconnectWait)
}
