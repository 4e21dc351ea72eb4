package relay

import (
	"context"

	"github.com/parley/chat-relay/internal/protocol"
	"github.com/parley/chat-relay/internal/ws"
)

// RegisterHandlers wires the relay's operations onto the WebSocket message
// dispatcher. Returned errors are already reported to the client as error
// frames inside the operations, so the glue ignores them.
func (s *Service) RegisterHandlers(d *ws.MessageDispatcher) {
	d.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		_ = s.Route(context.Background(), conn.ID, m.Channel, m.Body)
	})

	d.Register(protocol.TypeSwitchChannel, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SwitchChannelMsg)
		if !ok {
			return
		}
		_ = s.SwitchChannel(context.Background(), conn.ID, m.Channel)
	})

	d.Register(protocol.TypeUpdateProfile, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.UpdateProfileMsg)
		if !ok {
			return
		}
		_ = s.UpdateProfile(context.Background(), conn.ID, m.Username, m.Avatar)
	})

	d.Register(protocol.TypeAdminLogin, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.AdminLoginMsg)
		if !ok {
			return
		}
		_ = s.AdminLogin(context.Background(), conn.ID, m.Secret)
	})

	d.Register(protocol.TypeBanUser, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.BanUserMsg)
		if !ok {
			return
		}
		_ = s.BanUser(context.Background(), conn.ID, m.Username, m.Reason)
	})

	d.Register(protocol.TypeUnbanUser, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.UnbanUserMsg)
		if !ok {
			return
		}
		_ = s.UnbanUser(context.Background(), conn.ID, m.Username)
	})

	d.Register(protocol.TypeAdminData, func(conn *ws.Connection, msg interface{}) {
		if _, ok := msg.(protocol.AdminDataMsg); !ok {
			return
		}
		_ = s.AdminData(context.Background(), conn.ID)
	})
}

// OnConnect adapts Connect to the ws server's connection callback.
func (s *Service) OnConnect(conn *ws.Connection) {
	_ = s.Connect(context.Background(), conn.ID, conn.Origin)
}

// OnDisconnect adapts Disconnect to the ws server's disconnect callback.
func (s *Service) OnDisconnect(connID, _ string) {
	s.Disconnect(context.Background(), connID)
}
