// Package relay implements the connection/session lifecycle core of the chat
// relay: admission with ban enforcement, identity resolution, channel-scoped
// message routing, presence broadcasting, and moderation command handling.
//
// The relay is transport-agnostic: it drives a Transport by opaque session
// handles and is in turn driven by the ws dispatcher through RegisterHandlers.
// All registry mutation happens through the session.Registry's single lock;
// the transport guarantees at most one in-flight frame per connection, so a
// single session's operations - and the persistence writes they trigger - are
// processed in arrival order.
package relay

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/parley/chat-relay/internal/audit"
	"github.com/parley/chat-relay/internal/ban"
	"github.com/parley/chat-relay/internal/history"
	"github.com/parley/chat-relay/internal/identity"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/session"
)

// DefaultChannel is where freshly admitted sessions land.
const DefaultChannel = "general"

// Errors reported by relay operations. They are also mirrored to the client
// as structured error frames; none of them is fatal to the process.
var (
	ErrSenderNotFound = errors.New("relay: sender session not found")
	ErrUserNotFound   = errors.New("relay: no user matches that name")
	ErrUnauthorized   = errors.New("relay: unauthorized")
)

// Transport is the narrow slice of the connection layer the relay needs:
// targeted send, fan-out, and forced termination by opaque session handle.
type Transport interface {
	Send(sessionID string, data []byte) error
	Broadcast(data []byte)
	Disconnect(sessionID string)
}

// BanStore is the durable set of banned origins.
type BanStore interface {
	IsBanned(ctx context.Context, origin string) (bool, string, error)
	Ban(ctx context.Context, origin, reason string) error
	Unban(ctx context.Context, origin string) error
	List(ctx context.Context) ([]ban.Record, error)
}

// Identities resolves and mutates per-origin identities.
type Identities interface {
	Resolve(ctx context.Context, origin string) identity.Identity
	UpdateProfile(ctx context.Context, origin, username, avatar string) identity.Identity
	FindOrigin(ctx context.Context, username string) (string, bool)
}

// HistoryLog is the append-only per-channel message history.
type HistoryLog interface {
	Append(entry history.Entry) error
	List(channel string) ([]history.Entry, error)
}

// Service wires the registry, stores, and transport into the relay core.
type Service struct {
	transport Transport
	registry  *session.Registry
	ids       Identities
	bans      BanStore
	history   HistoryLog
	audit     audit.Sink
	events    *audit.Ring
	secret    string
}

// Config carries the Service's collaborators and settings.
type Config struct {
	Transport   Transport
	Identities  Identities
	Bans        BanStore
	History     HistoryLog
	Audit       audit.Sink
	AdminSecret string

	// DefaultChannel overrides where new sessions start; empty means
	// DefaultChannel ("general").
	DefaultChannel string
}

// NewService builds the relay core. The session registry is constructed here
// so that admission (ban check + identity resolution) runs entirely under the
// relay's control.
func NewService(cfg Config) *Service {
	channel := cfg.DefaultChannel
	if channel == "" {
		channel = DefaultChannel
	}
	sink := cfg.Audit
	if sink == nil {
		sink = audit.NopSink{}
	}
	// The recent-events ring always sits in front of the configured sink so
	// the moderation panel has an event log even with the audit stream off.
	events := audit.NewRing(audit.DefaultRecent)
	return &Service{
		transport: cfg.Transport,
		registry:  session.NewRegistry(cfg.Bans, cfg.Identities, channel),
		ids:       cfg.Identities,
		bans:      cfg.Bans,
		history:   cfg.History,
		audit:     audit.Fanout{events, sink},
		events:    events,
		secret:    cfg.AdminSecret,
	}
}

// Registry exposes the live session registry (read-only use by callers).
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Connect admits a new connection: ban check, identity resolution, registry
// insert, welcome frame, join notice, presence push. Banned origins get a
// banned frame with the reason and are disconnected without ever becoming a
// session.
func (s *Service) Connect(ctx context.Context, sessionID, origin string) error {
	sess, err := s.registry.Admit(ctx, sessionID, origin)
	if err != nil {
		var banned *session.BannedError
		if errors.As(err, &banned) {
			metrics.AdmissionsRejected.Inc()
			log.Printf("relay: admission rejected session=%s origin=%s reason=%q",
				sessionID, origin, banned.Reason)
			s.send(sessionID, protocol.TypeBanned, protocol.BannedMsg{Reason: banned.Reason})
			s.transport.Disconnect(sessionID)
		}
		return err
	}

	s.send(sessionID, protocol.TypeWelcome, protocol.WelcomeMsg{
		SessionID: sess.ID,
		Username:  sess.Identity.Username,
		Tag:       sess.Identity.Tag,
		Avatar:    sess.Identity.Avatar,
		Channel:   sess.Channel,
	})

	s.broadcastExcept(sessionID, protocol.TypeUserJoined, protocol.UserJoinedMsg{
		Username: sess.Identity.Username,
		Tag:      sess.Identity.Tag,
	})
	s.pushPresence()

	s.audit.Record(ctx, audit.Entry{
		At:     time.Now(),
		Origin: origin,
		Actor:  sess.Identity.Username,
		Action: audit.ActionConnected,
	})
	return nil
}

// Disconnect releases the session for a closed connection. The registry
// remove happens exactly once; duplicate signals from the transport are
// no-ops and trigger no presence churn.
func (s *Service) Disconnect(ctx context.Context, sessionID string) {
	sess, ok := s.registry.Remove(sessionID)
	if !ok {
		return
	}

	s.transport.Broadcast(mustFrame(protocol.TypeUserLeft, protocol.UserLeftMsg{
		Username: sess.Identity.Username,
		Tag:      sess.Identity.Tag,
	}))
	s.pushPresence()

	s.audit.Record(ctx, audit.Entry{
		At:     time.Now(),
		Origin: sess.Origin,
		Actor:  sess.Identity.Username,
		Action: audit.ActionDisconnected,
	})
}

// UpdateProfile changes the sender's username and/or avatar. The tag never
// changes. The updated identity is reflected on every live session from the
// same origin, confirmed to the sender with a fresh welcome frame, and
// announced through a presence push.
func (s *Service) UpdateProfile(ctx context.Context, sessionID, username, avatar string) error {
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		s.sendError(sessionID, protocol.CodeSenderNotFound, "session not registered")
		return ErrSenderNotFound
	}

	id := s.ids.UpdateProfile(ctx, sess.Origin, username, avatar)
	s.registry.UpdateIdentity(sess.Origin, id)

	s.send(sessionID, protocol.TypeWelcome, protocol.WelcomeMsg{
		SessionID: sess.ID,
		Username:  id.Username,
		Tag:       id.Tag,
		Avatar:    id.Avatar,
		Channel:   sess.Channel,
	})
	s.pushPresence()
	return nil
}

// send builds and sends one server frame to a single session. Send failures
// are dropped; the transport reaps dead connections on its own.
func (s *Service) send(sessionID, msgType string, payload interface{}) {
	_ = s.transport.Send(sessionID, mustFrame(msgType, payload))
}

// sendError sends a structured error frame to a single session.
func (s *Service) sendError(sessionID, code, message string) {
	s.send(sessionID, protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message})
}

// broadcastExcept sends a frame to every live session except one. Used for
// join/leave notices, which the subject itself does not need to see.
func (s *Service) broadcastExcept(exceptID, msgType string, payload interface{}) {
	data := mustFrame(msgType, payload)
	for _, sess := range s.registry.ListAll() {
		if sess.ID == exceptID {
			continue
		}
		_ = s.transport.Send(sess.ID, data)
	}
}

// mustFrame builds a server frame. The payload structs are all marshalable by
// construction; a failure here is a programming error worth logging loudly.
func mustFrame(msgType string, payload interface{}) []byte {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("relay: failed to build %s frame: %v", msgType, err)
		return []byte(`{"type":"error","code":"internal","message":"internal error"}`)
	}
	return data
}
