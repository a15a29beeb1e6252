package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vetriapp/vetri-backend/internal/metrics"
	"github.com/vetriapp/vetri-backend/internal/protocol"
)

const authRequiredError = "Authentication required"

// MessageStore is the persistence collaborator consumed by the relay. The
// store is expected to assign monotonic ids and immutable creation timestamps
// on insert, and to treat unknown ids in MarkSeen as a silent no-op.
type MessageStore interface {
	Create(ctx context.Context, fromUser, text string) (id int64, createdAt time.Time, err error)
	MarkSeen(ctx context.Context, ids []int64) error
	MarkDelivered(ctx context.Context, id int64) error
}

// Bridge forwards broadcast frames to peer server instances so clients
// connected elsewhere receive them too. Optional; nil disables bridging.
type Bridge interface {
	Publish(frame []byte) error
}

// Relay is the broadcast core of the chat system. It validates, authorizes,
// persists (where applicable) and routes every inbound event to all
// registered sessions. Events from one connection are processed strictly in
// arrival order because each connection's read loop calls Handle serially;
// different connections proceed concurrently and independently.
type Relay struct {
	registry *Registry
	store    MessageStore
	bridge   Bridge
}

// NewRelay creates a relay over the given registry and message store.
func NewRelay(registry *Registry, store MessageStore) *Relay {
	return &Relay{registry: registry, store: store}
}

// SetBridge attaches a cross-instance bridge. Must be called before the relay
// starts serving connections.
func (r *Relay) SetBridge(b Bridge) {
	r.bridge = b
}

// Registry returns the session registry backing this relay.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Connect registers a session and greets it with a status frame. Joining
// requires no authorization and always succeeds.
func (r *Relay) Connect(s *Session) {
	r.registry.Register(s)
	r.sendFrame(s, protocol.TypeStatus, protocol.StatusData{Message: "connected"})
	log.Debug().Str("session", s.ID).Bool("authenticated", s.Authenticated()).Msg("chat: session connected")
}

// Disconnect removes a session from the broadcast set. Nothing is broadcast.
func (r *Relay) Disconnect(s *Session) {
	r.registry.Unregister(s)
	log.Debug().Str("session", s.ID).Msg("chat: session disconnected")
}

// DeliverRemote fans a frame received from a peer instance out to all local
// sessions. The frame was already persisted and encoded by its origin.
func (r *Relay) DeliverRemote(frame []byte) {
	r.registry.Broadcast(frame, nil)
}

// Handle processes one inbound frame from a session to completion: parse,
// authorize, act, broadcast, acknowledge. Unparseable frames and unrecognized
// types are dropped without a reply; only a diagnostic counter records them.
func (r *Relay) Handle(ctx context.Context, s *Session, data []byte) {
	frameType, payload, err := protocol.DecodeClientFrame(data)
	if err != nil {
		metrics.FramesDropped.Inc()
		log.Debug().Str("session", s.ID).Err(err).Msg("chat: dropping frame")
		return
	}

	switch frameType {
	case protocol.TypeMessage:
		r.handleMessage(ctx, s, payload.(protocol.MessagePayload))
	case protocol.TypeTyping:
		r.handleTyping(s)
	case protocol.TypeMarkSeen:
		r.handleMarkSeen(ctx, s, payload.(protocol.MarkSeenPayload))
	}
}

// handleMessage persists an authenticated sender's text and fans the stored
// message out to every session, sender included. The ack to the sender is
// sent only after the broadcast, so persist -> broadcast -> ack holds on this
// connection's processing path.
func (r *Relay) handleMessage(ctx context.Context, s *Session, p protocol.MessagePayload) {
	if !s.Authenticated() {
		r.rejectUnauthenticated(s)
		return
	}
	metrics.EventsTotal.WithLabelValues(protocol.TypeMessage).Inc()

	id, createdAt, err := r.store.Create(ctx, s.Identity.Username, p.Text)
	if err != nil {
		log.Error().Str("session", s.ID).Err(err).Msg("chat: message persistence failed")
		r.sendFrame(s, protocol.TypeError, "message could not be saved")
		return
	}

	delivered := r.broadcast(protocol.TypeMessage, protocol.MessageData{
		ID:        id,
		FromUser:  s.Identity.Username,
		Text:      p.Text,
		CreatedAt: createdAt.Format(time.RFC3339),
	})

	// Best-effort delivery flag; a failure here must not reach the client.
	if delivered > 0 {
		if err := r.store.MarkDelivered(ctx, id); err != nil {
			log.Warn().Int64("message_id", id).Err(err).Msg("chat: mark delivered failed")
		}
	}

	r.sendFrame(s, protocol.TypeAck, protocol.AckData{ID: id})
}

// handleTyping broadcasts a typing indicator to all sessions, sender
// included. Nothing is persisted and no ack is sent.
func (r *Relay) handleTyping(s *Session) {
	if !s.Authenticated() {
		r.rejectUnauthenticated(s)
		return
	}
	metrics.EventsTotal.WithLabelValues(protocol.TypeTyping).Inc()

	r.broadcast(protocol.TypeTyping, protocol.TypingData{FromUser: s.Identity.Username})
}

// handleMarkSeen flags the given messages as seen and broadcasts the id set to
// all sessions. An empty set is a complete no-op. Ids that match no stored
// message are silently ignored by the store but still relayed in the
// broadcast, exactly as submitted.
func (r *Relay) handleMarkSeen(ctx context.Context, s *Session, p protocol.MarkSeenPayload) {
	if !s.Authenticated() {
		r.rejectUnauthenticated(s)
		return
	}
	if len(p.IDs) == 0 {
		return
	}
	metrics.EventsTotal.WithLabelValues(protocol.TypeMarkSeen).Inc()

	if err := r.store.MarkSeen(ctx, p.IDs); err != nil {
		log.Error().Str("session", s.ID).Err(err).Msg("chat: mark seen failed")
		r.sendFrame(s, protocol.TypeError, "messages could not be updated")
		return
	}

	r.broadcast(protocol.TypeSeen, protocol.SeenData{IDs: p.IDs})
}

// broadcast encodes an event, delivers it to all local sessions and publishes
// it to the bridge when one is attached. Returns the local delivery count.
func (r *Relay) broadcast(frameType string, data interface{}) int {
	frame, err := protocol.NewServerFrame(frameType, data)
	if err != nil {
		log.Error().Str("type", frameType).Err(err).Msg("chat: failed to encode broadcast frame")
		return 0
	}

	start := time.Now()
	delivered := r.registry.Broadcast(frame, nil)
	metrics.BroadcastLatency.Observe(time.Since(start).Seconds())

	if r.bridge != nil {
		if err := r.bridge.Publish(frame); err != nil {
			log.Warn().Str("type", frameType).Err(err).Msg("chat: bridge publish failed")
		}
	}
	return delivered
}

// rejectUnauthenticated reports an authorization failure to the sender only.
// The event is discarded; the connection stays open.
func (r *Relay) rejectUnauthenticated(s *Session) {
	metrics.AuthRejected.Inc()
	r.sendFrame(s, protocol.TypeError, authRequiredError)
}

// sendFrame encodes and sends a frame to a single session. Errors are logged
// only: a failed write to a closing transport is cleaned up by that
// connection's own read loop.
func (r *Relay) sendFrame(s *Session, frameType string, data interface{}) {
	frame, err := protocol.NewServerFrame(frameType, data)
	if err != nil {
		log.Error().Str("type", frameType).Err(err).Msg("chat: failed to encode frame")
		return
	}
	if err := s.Send(frame); err != nil {
		log.Debug().Str("session", s.ID).Str("type", frameType).Err(err).Msg("chat: send failed")
	}
}
