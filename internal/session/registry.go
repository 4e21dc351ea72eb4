// Package session owns the live mapping of active connections to identities.
// The Registry is the single source of truth for who is online: sessions are
// created at admission (after the ban check), mutated only through Registry
// methods under its lock, and destroyed exactly once on disconnect or forced
// termination.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/parley/chat-relay/internal/identity"
)

// ErrNotFound is returned when no live session matches the given handle or
// username.
var ErrNotFound = errors.New("session: not found")

// BannedError rejects an admission attempt from a banned origin.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	return fmt.Sprintf("session: origin banned: %s", e.Reason)
}

// Session is one live connection and its resolved identity. Multiple
// simultaneous sessions from the same origin share one Identity but are
// distinct Sessions.
type Session struct {
	ID          string
	Origin      string
	Identity    identity.Identity
	Channel     string
	ConnectedAt time.Time
	IsAdmin     bool
}

// BanChecker is the slice of the ban store the registry needs at admission.
type BanChecker interface {
	IsBanned(ctx context.Context, origin string) (bool, string, error)
}

// Resolver supplies the stable identity for an origin.
type Resolver interface {
	Resolve(ctx context.Context, origin string) identity.Identity
}

// Registry is the in-memory session registry. All mutation happens under one
// mutex; reads take snapshots so callers never hold references into registry
// state.
type Registry struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	order          []string // session IDs in insertion order
	bans           BanChecker
	ids            Resolver
	defaultChannel string
}

// NewRegistry creates an empty registry. Admitted sessions start in
// defaultChannel.
func NewRegistry(bans BanChecker, ids Resolver, defaultChannel string) *Registry {
	return &Registry{
		sessions:       make(map[string]*Session),
		bans:           bans,
		ids:            ids,
		defaultChannel: defaultChannel,
	}
}

// Admit runs the admission sequence for a new connection: ban check, identity
// resolution, registry insert. A banned origin gets a *BannedError and no
// session. Ban store errors fail open so a store outage does not lock
// everyone out.
func (r *Registry) Admit(ctx context.Context, sessionID, origin string) (Session, error) {
	banned, reason, err := r.bans.IsBanned(ctx, origin)
	if err != nil {
		log.Printf("session: ban check for %s failed, admitting: %v", origin, err)
	}
	if banned {
		return Session{}, &BannedError{Reason: reason}
	}

	id := r.ids.Resolve(ctx, origin)

	sess := &Session{
		ID:          sessionID,
		Origin:      origin,
		Identity:    id,
		Channel:     r.defaultChannel,
		ConnectedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[sessionID] = sess
	r.order = append(r.order, sessionID)
	r.mu.Unlock()

	return *sess, nil
}

// Remove deletes a session and returns it. The second return is false if the
// session was already gone, which makes double-signaled disconnects harmless.
func (r *Registry) Remove(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *sess, true
}

// Get returns a snapshot of the session for the given handle.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// ListAll returns snapshots of all live sessions in insertion order.
func (r *Registry) ListAll() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		if sess, ok := r.sessions[id]; ok {
			out = append(out, *sess)
		}
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// FindByUsername returns the first live session (in insertion order) whose
// identity carries the given username. Usernames are not unique across
// origins; first match is the documented behavior for moderation lookups.
func (r *Registry) FindByUsername(username string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if sess, ok := r.sessions[id]; ok && sess.Identity.Username == username {
			return *sess, true
		}
	}
	return Session{}, false
}

// ForOrigin returns snapshots of every live session from the given origin.
func (r *Registry) ForOrigin(origin string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Session
	for _, id := range r.order {
		if sess, ok := r.sessions[id]; ok && sess.Origin == origin {
			out = append(out, *sess)
		}
	}
	return out
}

// SetChannel moves a session to another channel. Returns false if the session
// is gone.
func (r *Registry) SetChannel(sessionID, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	sess.Channel = channel
	return true
}

// SetAdmin marks a session as an authenticated admin.
func (r *Registry) SetAdmin(sessionID string, isAdmin bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	sess.IsAdmin = isAdmin
	return true
}

// UpdateIdentity refreshes the identity snapshot on every live session from
// the given origin, after a profile update.
func (r *Registry) UpdateIdentity(origin string, id identity.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		if sess.Origin == origin {
			sess.Identity = id
		}
	}
}
