// Package protocol defines the WebSocket message types and structures used for
// communication between chat clients and the relay. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeMessage       = "message"
	TypeSwitchChannel = "switch_channel"
	TypeUpdateProfile = "update_profile"
	TypeAdminLogin    = "admin_login"
	TypeBanUser       = "ban_user"
	TypeUnbanUser     = "unban_user"
	TypeAdminData     = "admin_data"
	TypePing          = "ping"
)

// Server -> Client message types.
const (
	TypeWelcome            = "welcome"
	TypePresence           = "presence"
	TypeHistory            = "history"
	TypeUserJoined         = "user_joined"
	TypeUserLeft           = "user_left"
	TypeUserBanned         = "user_banned"
	TypeUserUnbanned       = "user_unbanned"
	TypeBanned             = "banned"
	TypeAdminLoginResponse = "admin_login_response"
	TypeError              = "error"
	TypePong               = "pong"
)

// Error codes carried in ErrorMsg.Code.
const (
	CodeParseError      = "parse_error"
	CodeUnsupportedType = "unsupported_type"
	CodeInvalidMessage  = "invalid_message"
	CodeSenderNotFound  = "sender_not_found"
	CodeUserNotFound    = "user_not_found"
	CodeUnauthorized    = "unauthorized"
)

// ---------------------------------------------------------------------------
// Envelope: initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// ChatMsg is a channel-scoped text message sent by the client.
type ChatMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Body    string `json:"body"`
}

// SwitchChannelMsg asks the relay to move the session to another channel and
// replay that channel's history.
type SwitchChannelMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// UpdateProfileMsg changes the sender's username and/or avatar. Empty fields
// are left unchanged; the tag can never be changed.
type UpdateProfileMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// AdminLoginMsg carries the shared admin secret.
type AdminLoginMsg struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
}

// BanUserMsg asks the relay to ban the origin behind a live username.
type BanUserMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// UnbanUserMsg asks the relay to lift the ban on the origin last known for a
// username. The target does not have to be online.
type UnbanUserMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// AdminDataMsg requests the moderation panel snapshot (online users with
// origins, plus the current ban list).
type AdminDataMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// PresenceUser is one entry of the online-users snapshot.
type PresenceUser struct {
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Avatar   string `json:"avatar"`
}

// WelcomeMsg is sent once after a connection is admitted. It carries the
// session handle, the resolved identity, and the session's initial channel.
type WelcomeMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Tag       string `json:"tag"`
	Avatar    string `json:"avatar"`
	Channel   string `json:"channel"`
}

// PresenceMsg is the full online-users snapshot, pushed to every connection
// whenever membership changes.
type PresenceMsg struct {
	Type  string         `json:"type"`
	Users []PresenceUser `json:"users"`
}

// ServerChatMsg is a chat message relayed to clients. The identity fields are
// a snapshot taken at send time; later profile edits do not rewrite them.
type ServerChatMsg struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Avatar   string `json:"avatar"`
	Body     string `json:"body"`
	Ts       int64  `json:"ts"`
}

// HistoryMsg carries a channel's stored messages in append order. It is sent
// only to the session that switched into the channel.
type HistoryMsg struct {
	Type     string          `json:"type"`
	Channel  string          `json:"channel"`
	Messages []ServerChatMsg `json:"messages"`
}

// UserJoinedMsg announces a newly admitted user to the other connections.
type UserJoinedMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
}

// UserLeftMsg announces a disconnected user to the remaining connections.
type UserLeftMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
}

// UserBannedMsg announces that a user was banned by a moderator.
type UserBannedMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// UserUnbannedMsg announces that a ban was lifted. It deliberately does not
// reveal which origin or username was unbanned.
type UserUnbannedMsg struct {
	Type string `json:"type"`
}

// BannedMsg is sent to a connection whose origin is banned, either at
// admission or when a ban lands mid-session. The connection is closed right
// after.
type BannedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// AdminLoginResponseMsg reports whether the submitted admin secret matched.
type AdminLoginResponseMsg struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}

// AdminUser is one online session in the moderation panel snapshot.
type AdminUser struct {
	Username    string `json:"username"`
	Tag         string `json:"tag"`
	Origin      string `json:"origin"`
	Channel     string `json:"channel"`
	ConnectedAt int64  `json:"connected_at"`
}

// AdminBan is one ban record in the moderation panel snapshot.
type AdminBan struct {
	Origin string `json:"origin"`
	Reason string `json:"reason"`
}

// AdminDataResponseMsg is the moderation panel snapshot, sent only to an
// authenticated admin session.
type AdminDataResponseMsg struct {
	Type   string      `json:"type"`
	Users  []AdminUser `json:"users"`
	Bans   []AdminBan  `json:"bans"`
	Events []string    `json:"events"` // recent audit entries, oldest first
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSwitchChannel:
		var m SwitchChannelMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUpdateProfile:
		var m UpdateProfileMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAdminLogin:
		var m AdminLoginMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeBanUser:
		var m BanUserMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUnbanUser:
		var m UnbanUserMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAdminData:
		var m AdminDataMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
