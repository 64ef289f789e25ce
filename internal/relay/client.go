// Package relay fans orchestration events out over NATS so companion
// processes can mirror engine health and container state.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"stevedore/internal/engine"
	"stevedore/internal/events"
)

// Config holds the relay client configuration.
type Config struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // infinite
	}
}

// Envelope is the standardised wrapper for relayed messages.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload with a generated id and current timestamp.
func NewEnvelope(eventType, source string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Client is the NATS relay client.
type Client struct {
	nc     *nats.Conn
	source string
	logger *slog.Logger
}

// Connect creates a relay client and connects to NATS.
func Connect(cfg Config, source string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name(source),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("relay disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("relay reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("relay connect: %w", err)
	}

	return &Client{
		nc:     nc,
		source: source,
		logger: logger.With("component", "relay"),
	}, nil
}

// Close drains the connection.
func (c *Client) Close() {
	c.nc.Close()
}

// Publish wraps the payload in an envelope and publishes it.
func (c *Client) Publish(subject, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, c.source, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return c.nc.Publish(subject, data)
}

// Subscribe subscribes to a subject and calls the handler for each envelope.
// The returned func detaches the subscription.
func (c *Client) Subscribe(subject string, handler func(Envelope)) (func(), error) {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			c.logger.Error("failed to unmarshal envelope", "subject", subject, "error", err)
			return
		}
		handler(env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("unsubscribe failed", "subject", subject, "error", err)
		}
	}, nil
}

// PublishStatus publishes one engine health update.
func (c *Client) PublishStatus(update engine.StatusUpdate) error {
	return c.Publish(EngineSubject(SubjectEngineStatus, update.RuntimeID), events.EngineStatusChanged, update)
}

// SubscribeStatus delivers engine health updates for all engines.
func (c *Client) SubscribeStatus(handler func(engine.StatusUpdate)) (func(), error) {
	return c.Subscribe(SubjectAllEngines, func(env Envelope) {
		if env.Type != events.EngineStatusChanged {
			return
		}
		var update engine.StatusUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			c.logger.Error("failed to unmarshal status update", "error", err)
			return
		}
		handler(update)
	})
}

// ForwardEvents mirrors emitter events onto the relay. Publish failures are
// logged and dropped; the relay is an observer, never a gate.
func (c *Client) ForwardEvents(emitter *events.Emitter) {
	emitter.OnEvent(func(ev events.Event) {
		var err error
		switch ev.Type {
		case events.EngineStatusChanged:
			err = c.Publish(EngineSubject(SubjectEngineStatus, ev.Runtime), ev.Type, ev)
		case events.EngineDetected:
			err = c.Publish(SubjectEngineDetected, ev.Type, ev)
		case events.EngineSelected:
			err = c.Publish(SubjectEngineSelected, ev.Type, ev)
		case events.OperationSucceeded, events.OperationFailed, events.OperationSkipped:
			err = c.Publish(ContainerSubject(SubjectContainerOperation, ev.Container), ev.Type, ev)
		case events.SnapshotRefreshed:
			err = c.Publish(SubjectSnapshotRefreshed, ev.Type, ev)
		}
		if err != nil {
			c.logger.Warn("failed to relay event", "event", ev.Type, "error", err)
		}
	})
}
