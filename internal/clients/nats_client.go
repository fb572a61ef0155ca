package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/config"
)

// NATSClient publishes lifecycle events to the bus. Publishing is
// best-effort: a bus outage must never fail the user-facing operation, so
// Publish logs and returns instead of propagating.
type NATSClient struct {
	conn *nats.Conn
}

// NewNATSClient connects to the configured NATS server.
func NewNATSClient(cfg config.NATSConfig) (*NATSClient, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logrus.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSClient{conn: conn}, nil
}

// Publish serializes the payload and publishes it on the subject.
func (c *NATSClient) Publish(subject string, payload interface{}) {
	if c == nil || c.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("subject", subject).Error("marshal event payload")
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		logrus.WithError(err).WithField("subject", subject).Warn("publish event")
	}
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
