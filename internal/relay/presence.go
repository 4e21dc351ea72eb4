package relay

import (
	"github.com/samber/lo"

	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/session"
)

// Snapshot projects all live sessions into the online-users list, in
// admission order.
func (s *Service) Snapshot() []protocol.PresenceUser {
	return lo.Map(s.registry.ListAll(), func(sess session.Session, _ int) protocol.PresenceUser {
		return protocol.PresenceUser{
			Username: sess.Identity.Username,
			Tag:      sess.Identity.Tag,
			Avatar:   sess.Identity.Avatar,
		}
	})
}

// pushPresence broadcasts the current online snapshot to every connection.
// It runs after every admit, remove, and forced termination. Pushes to
// already-gone connections are dropped silently by the transport; there is
// no retry.
func (s *Service) pushPresence() {
	metrics.ConnectionsTotal.Set(float64(s.registry.Count()))
	s.transport.Broadcast(mustFrame(protocol.TypePresence, protocol.PresenceMsg{
		Users: s.Snapshot(),
	}))
}
