// Package messaging provides a NATS client wrapper for relaying chat room
// broadcasts between server instances. Every instance publishes the frames it
// fans out locally; peers deliver frames from other origins to their own
// connected sessions.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// SubjectRoom is the NATS subject carrying broadcasts for the single global
// chat room.
const SubjectRoom = "chat.room.global"

// RoomEvent is the payload published to SubjectRoom. Frame is the encoded
// client-facing frame, forwarded verbatim; Origin names the instance that
// produced it so subscribers can skip their own events.
type RoomEvent struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

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
		Name:          "vetri-backend",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NATSClient wraps the NATS connection with helpers for the room subject.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats: disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats: reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats: connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("nats: connected")
	return &NATSClient{conn: nc}, nil
}

// PublishRoomEvent publishes a broadcast frame to the room subject.
func (c *NATSClient) PublishRoomEvent(origin string, frame []byte) error {
	data, err := json.Marshal(RoomEvent{Origin: origin, Frame: frame})
	if err != nil {
		return fmt.Errorf("nats marshal room event: %w", err)
	}
	return c.conn.Publish(SubjectRoom, data)
}

// SubscribeRoom registers a handler for room events. Undecodable payloads are
// logged and skipped.
func (c *NATSClient) SubscribeRoom(handler func(RoomEvent)) error {
	sub, err := c.conn.Subscribe(SubjectRoom, func(msg *nats.Msg) {
		var ev RoomEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warn().Err(err).Msg("nats: bad room event payload")
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectRoom, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Warn().Err(err).Msg("nats: subscription drain failed")
		}
	}
	c.subs = nil

	if err := c.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("nats: connection drain failed")
	}
}

// RoomBridge adapts the NATS client to the relay's Bridge contract.
type RoomBridge struct {
	client *NATSClient
	origin string
}

// NewRoomBridge creates a bridge that tags published frames with origin.
func NewRoomBridge(client *NATSClient, origin string) *RoomBridge {
	return &RoomBridge{client: client, origin: origin}
}

// Publish forwards one broadcast frame to peer instances.
func (b *RoomBridge) Publish(frame []byte) error {
	return b.client.PublishRoomEvent(b.origin, frame)
}
