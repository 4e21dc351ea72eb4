// Package audit is the moderation observability side channel. The relay
// emits human-readable audit entries for connection and moderation events;
// they are published to NATS best-effort and persisted to Postgres by the
// auditor service. The audit stream is never authoritative state and never
// blocks or fails a live operation.
package audit

import (
	"context"
	"fmt"
	"time"
)

// Actions recorded in audit entries.
const (
	ActionConnected        = "connected"
	ActionDisconnected     = "disconnected"
	ActionAdminLogin       = "admin_login"
	ActionAdminLoginFailed = "admin_login_failed"
	ActionBan              = "ban"
	ActionUnban            = "unban"
)

// Entry is one audit event.
type Entry struct {
	At     time.Time `json:"at"`
	Origin string    `json:"origin"` // origin the action concerns
	Actor  string    `json:"actor"`  // username of whoever caused it
	Action string    `json:"action"`
	Detail string    `json:"detail"` // free-form context (reason, target, ...)
}

// String renders the entry the way the moderation panel displays it.
func (e Entry) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s (origin=%s)", e.Actor, e.Action, e.Origin)
	}
	return fmt.Sprintf("%s %s (origin=%s): %s", e.Actor, e.Action, e.Origin, e.Detail)
}

// Sink receives audit entries. Implementations must treat Record as
// fire-and-forget: errors are logged internally, never surfaced to the
// caller's operation.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// NopSink discards all entries. Used in tests and when no NATS URL is
// configured.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Entry) {}
