package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Subject is the NATS subject audit entries are published on.
const Subject = "audit.events"

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "parley",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NATSSink publishes audit entries to the audit.events subject. Publish
// failures are logged and dropped; the audit stream is best-effort.
type NATSSink struct {
	conn *nats.Conn
}

// NewNATSSink connects to NATS with the given config and returns a ready
// sink. It returns an error only if the initial connection fails.
func NewNATSSink(config NATSConfig) (*NATSSink, error) {
	conn, err := connect(config)
	if err != nil {
		return nil, err
	}
	return &NATSSink{conn: conn}, nil
}

// Record implements Sink.
func (s *NATSSink) Record(_ context.Context, entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[audit] marshal entry: %v", err)
		return
	}
	if err := s.conn.Publish(Subject, data); err != nil {
		log.Printf("[audit] publish: %v", err)
	}
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if err := s.conn.Drain(); err != nil {
		log.Printf("[audit] drain: %v", err)
	}
}

// Subscriber consumes the audit stream. It is used by the auditor service to
// persist entries.
type Subscriber struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewSubscriber connects to NATS and subscribes to the audit subject. Each
// decoded entry is passed to handler; undecodable payloads are logged and
// skipped.
func NewSubscriber(config NATSConfig, handler func(Entry)) (*Subscriber, error) {
	conn, err := connect(config)
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(Subject, func(msg *nats.Msg) {
		var entry Entry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			log.Printf("[audit] unmarshal entry: %v", err)
			return
		}
		handler(entry)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: subscribe %s: %w", Subject, err)
	}

	return &Subscriber{conn: conn, sub: sub}, nil
}

// Close drains the subscription and closes the connection.
func (s *Subscriber) Close() {
	if err := s.sub.Drain(); err != nil {
		log.Printf("[audit] drain subscription: %v", err)
	}
	if err := s.conn.Drain(); err != nil {
		log.Printf("[audit] drain connection: %v", err)
	}
}

// connect dials NATS with reconnect handling and lifecycle logging.
func connect(config NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[audit] nats disconnected: %v", err)
			} else {
				log.Printf("[audit] nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[audit] nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[audit] nats connection closed")
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("audit: nats connect: %w", err)
	}
	log.Printf("[audit] nats connected to %s", conn.ConnectedUrl())
	return conn, nil
}
