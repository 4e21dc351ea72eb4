package relay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/parley/chat-relay/internal/history"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/session"
)

// Message content limits.
const (
	MaxMessageBytes = 4096 // max frame payload size
	MaxBodyChars    = 2000 // max character count
	MaxChannelLen   = 64   // max channel name bytes
)

// validateBody checks that a chat message body meets content requirements.
func validateBody(body string) error {
	if len(body) == 0 {
		return fmt.Errorf("message body is empty")
	}
	if len(body) > MaxMessageBytes {
		return fmt.Errorf("message exceeds %d byte limit", MaxMessageBytes)
	}
	if utf8.RuneCountInString(body) > MaxBodyChars {
		return fmt.Errorf("message exceeds %d character limit", MaxBodyChars)
	}
	if !utf8.ValidString(body) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	return nil
}

// validateChannel checks a client-supplied channel name. The ':' separator is
// reserved by the history log's key layout; allowing it would let one
// channel's keys sit inside another channel's scan prefix.
func validateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("channel name is empty")
	}
	if len(channel) > MaxChannelLen {
		return fmt.Errorf("channel name exceeds %d byte limit", MaxChannelLen)
	}
	if strings.ContainsRune(channel, ':') {
		return fmt.Errorf("channel name contains ':'")
	}
	if !utf8.ValidString(channel) {
		return fmt.Errorf("channel name contains invalid UTF-8")
	}
	return nil
}

// Route delivers a channel-scoped message from a live session. The sender is
// re-validated against both the registry and the ban store: a ban issued
// after admission takes effect on the next message, closing the
// admit-then-ban race.
//
// Broadcast policy: every frame goes to all connected sessions with the
// channel tag attached, and receivers filter client-side. This keeps a
// channel switch instantly consistent (no missed messages between switch and
// replay) at the cost of bandwidth.
func (s *Service) Route(ctx context.Context, sessionID, channel, body string) error {
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		metrics.MessagesTotal.WithLabelValues("rejected_unknown").Inc()
		s.sendError(sessionID, protocol.CodeSenderNotFound, "session not registered")
		return ErrSenderNotFound
	}

	if err := validateBody(body); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected_invalid").Inc()
		s.sendError(sessionID, protocol.CodeInvalidMessage, err.Error())
		return fmt.Errorf("relay: %w", err)
	}

	if channel == "" {
		channel = sess.Channel
	}
	if err := validateChannel(channel); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected_invalid").Inc()
		s.sendError(sessionID, protocol.CodeInvalidMessage, err.Error())
		return fmt.Errorf("relay: %w", err)
	}

	// Bans issued after admission take effect on the next message.
	banned, reason, err := s.bans.IsBanned(ctx, sess.Origin)
	if err != nil {
		log.Printf("relay: ban re-check for %s failed, allowing: %v", sess.Origin, err)
	}
	if banned {
		metrics.MessagesTotal.WithLabelValues("rejected_banned").Inc()
		s.send(sessionID, protocol.TypeBanned, protocol.BannedMsg{Reason: reason})
		s.transport.Disconnect(sessionID)
		return &session.BannedError{Reason: reason}
	}

	now := time.Now()

	// Identity fields are copied here; later profile edits must not rewrite
	// delivered or stored messages.
	entry := history.Entry{
		Channel:  channel,
		Username: sess.Identity.Username,
		Tag:      sess.Identity.Tag,
		Avatar:   sess.Identity.Avatar,
		Body:     body,
		At:       now,
	}
	if err := s.history.Append(entry); err != nil {
		// Deferred-consistency warning: live routing continues without the
		// persisted copy.
		log.Printf("relay: history append failed channel=%s: %v", channel, err)
	}

	frame := mustFrame(protocol.TypeMessage, protocol.ServerChatMsg{
		Channel:  channel,
		Username: entry.Username,
		Tag:      entry.Tag,
		Avatar:   entry.Avatar,
		Body:     body,
		Ts:       now.Unix(),
	})

	start := time.Now()
	s.transport.Broadcast(frame)
	metrics.BroadcastLatency.Observe(time.Since(start).Seconds())
	metrics.MessagesTotal.WithLabelValues("delivered").Inc()
	return nil
}

// SwitchChannel moves a session to another channel and replays that channel's
// stored history - in append order, to that session alone.
func (s *Service) SwitchChannel(ctx context.Context, sessionID, channel string) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if err := validateChannel(channel); err != nil {
		s.sendError(sessionID, protocol.CodeInvalidMessage, err.Error())
		return fmt.Errorf("relay: %w", err)
	}
	if !s.registry.SetChannel(sessionID, channel) {
		s.sendError(sessionID, protocol.CodeSenderNotFound, "session not registered")
		return ErrSenderNotFound
	}

	entries, err := s.history.List(channel)
	if err != nil {
		// Replay what we have (nothing); the switch itself still succeeded.
		log.Printf("relay: history replay failed channel=%s: %v", channel, err)
	}

	s.send(sessionID, protocol.TypeHistory, protocol.HistoryMsg{
		Channel: channel,
		Messages: lo.Map(entries, func(e history.Entry, _ int) protocol.ServerChatMsg {
			return protocol.ServerChatMsg{
				Channel:  e.Channel,
				Username: e.Username,
				Tag:      e.Tag,
				Avatar:   e.Avatar,
				Body:     e.Body,
				Ts:       e.At.Unix(),
			}
		}),
	})
	return nil
}
