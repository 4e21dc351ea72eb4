package relay

import (
	"context"
	"crypto/subtle"
	"log"
	"time"

	"github.com/samber/lo"

	"github.com/parley/chat-relay/internal/audit"
	"github.com/parley/chat-relay/internal/ban"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/session"
)

// Authenticate compares a submitted secret against the configured admin
// secret without short-circuiting on the first mismatched byte.
func (s *Service) Authenticate(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) == 1
}

// AdminLogin validates the shared admin secret for a session. Every attempt,
// successful or not, is logged and audited with the requesting origin.
func (s *Service) AdminLogin(ctx context.Context, sessionID, secret string) error {
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		s.sendError(sessionID, protocol.CodeSenderNotFound, "session not registered")
		return ErrSenderNotFound
	}

	authorized := s.Authenticate(secret)
	if authorized {
		s.registry.SetAdmin(sessionID, true)
		metrics.ModerationActionsTotal.WithLabelValues("login_ok").Inc()
		log.Printf("relay: admin login ok session=%s origin=%s", sessionID, sess.Origin)
	} else {
		metrics.ModerationActionsTotal.WithLabelValues("login_denied").Inc()
		log.Printf("relay: admin login DENIED session=%s origin=%s", sessionID, sess.Origin)
	}

	action := audit.ActionAdminLogin
	if !authorized {
		action = audit.ActionAdminLoginFailed
	}
	s.audit.Record(ctx, audit.Entry{
		At:     time.Now(),
		Origin: sess.Origin,
		Actor:  sess.Identity.Username,
		Action: action,
	})

	s.send(sessionID, protocol.TypeAdminLoginResponse, protocol.AdminLoginResponseMsg{OK: authorized})
	if !authorized {
		return ErrUnauthorized
	}
	return nil
}

// BanUser bans the origin behind a live username: it records the ban,
// notifies every live session from that origin exactly once with the reason,
// announces the ban to the room, and force-terminates those sessions. A live
// match is required so a typo cannot ban a nonexistent origin.
func (s *Service) BanUser(ctx context.Context, sessionID, username, reason string) error {
	admin, err := s.requireAdmin(sessionID)
	if err != nil {
		return err
	}

	target, ok := s.registry.FindByUsername(username)
	if !ok {
		s.sendError(sessionID, protocol.CodeUserNotFound, "no live session for that username")
		return ErrUserNotFound
	}

	if err := s.bans.Ban(ctx, target.Origin, reason); err != nil {
		// The live termination below still proceeds; the durable record may
		// be missing until the store recovers.
		log.Printf("relay: ban persist failed origin=%s: %v", target.Origin, err)
	}

	// Multiple simultaneous sessions can share the banned origin; each gets
	// one notification and one forced disconnect.
	victims := s.registry.ForOrigin(target.Origin)
	banFrame := mustFrame(protocol.TypeBanned, protocol.BannedMsg{Reason: reason})
	for _, victim := range victims {
		_ = s.transport.Send(victim.ID, banFrame)
	}

	s.transport.Broadcast(mustFrame(protocol.TypeUserBanned, protocol.UserBannedMsg{
		Username: target.Identity.Username,
	}))

	for _, victim := range victims {
		s.transport.Disconnect(victim.ID)
	}

	metrics.ModerationActionsTotal.WithLabelValues("ban").Inc()
	s.audit.Record(ctx, audit.Entry{
		At:     time.Now(),
		Origin: target.Origin,
		Actor:  admin.Identity.Username,
		Action: audit.ActionBan,
		Detail: username + ": " + reason,
	})
	log.Printf("relay: banned origin=%s username=%s reason=%q by=%s",
		target.Origin, username, reason, admin.Identity.Username)
	return nil
}

// UnbanUser lifts the ban on the origin last known for a username. The
// target does not have to be online; the username is resolved through the
// identity store. A generic unbanned notice is broadcast without revealing
// which origin was affected.
func (s *Service) UnbanUser(ctx context.Context, sessionID, username string) error {
	admin, err := s.requireAdmin(sessionID)
	if err != nil {
		return err
	}

	origin, ok := s.ids.FindOrigin(ctx, username)
	if !ok {
		s.sendError(sessionID, protocol.CodeUserNotFound, "no identity for that username")
		return ErrUserNotFound
	}

	if err := s.bans.Unban(ctx, origin); err != nil {
		log.Printf("relay: unban persist failed origin=%s: %v", origin, err)
	}

	s.transport.Broadcast(mustFrame(protocol.TypeUserUnbanned, protocol.UserUnbannedMsg{}))

	metrics.ModerationActionsTotal.WithLabelValues("unban").Inc()
	s.audit.Record(ctx, audit.Entry{
		At:     time.Now(),
		Origin: origin,
		Actor:  admin.Identity.Username,
		Action: audit.ActionUnban,
		Detail: username,
	})
	log.Printf("relay: unbanned origin=%s username=%s by=%s",
		origin, username, admin.Identity.Username)
	return nil
}

// AdminData sends the moderation panel snapshot (online sessions with
// origins, the current ban list, and the recent event log) to an
// authenticated admin session.
func (s *Service) AdminData(ctx context.Context, sessionID string) error {
	if _, err := s.requireAdmin(sessionID); err != nil {
		return err
	}

	users := lo.Map(s.registry.ListAll(), func(sess session.Session, _ int) protocol.AdminUser {
		return protocol.AdminUser{
			Username:    sess.Identity.Username,
			Tag:         sess.Identity.Tag,
			Origin:      sess.Origin,
			Channel:     sess.Channel,
			ConnectedAt: sess.ConnectedAt.Unix(),
		}
	})

	records, err := s.bans.List(ctx)
	if err != nil {
		log.Printf("relay: ban list failed: %v", err)
	}
	bans := lo.Map(records, func(r ban.Record, _ int) protocol.AdminBan {
		return protocol.AdminBan{Origin: r.Origin, Reason: r.Reason}
	})

	events := lo.Map(s.events.Recent(), func(e audit.Entry, _ int) string {
		return e.String()
	})

	s.send(sessionID, protocol.TypeAdminData, protocol.AdminDataResponseMsg{
		Users:  users,
		Bans:   bans,
		Events: events,
	})
	return nil
}

// requireAdmin returns the caller's session if it has authenticated as admin,
// or sends the appropriate error frame and reports why not.
func (s *Service) requireAdmin(sessionID string) (session.Session, error) {
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		s.sendError(sessionID, protocol.CodeSenderNotFound, "session not registered")
		return session.Session{}, ErrSenderNotFound
	}
	if !sess.IsAdmin {
		s.sendError(sessionID, protocol.CodeUnauthorized, "admin login required")
		return session.Session{}, ErrUnauthorized
	}
	return sess, nil
}
