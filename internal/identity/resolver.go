package identity

import (
	"context"
	"log"
	"sync"
)

// tagRetries is how many times a colliding tag is regenerated before giving
// up and accepting the last candidate.
const tagRetries = 10

// Resolver derives or fetches the Identity for a connecting origin. It keeps
// a write-through in-memory cache so that a slow or unavailable store never
// blocks admission: a freshly generated identity is served from the staged
// in-memory value and persistence failures are logged as deferred-consistency
// warnings.
type Resolver struct {
	store Store

	// UsePalette selects a random palette avatar for new identities instead
	// of the placeholder.
	UsePalette bool

	mu    sync.Mutex
	cache map[string]Identity // origin -> identity
	tags  map[string]struct{} // tags issued in this run
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[string]Identity),
		tags:  make(map[string]struct{}),
	}
}

// Resolve returns the Identity for an origin, generating and persisting a new
// one on first contact. Repeat contacts from the same origin always return
// the same identity, cached in memory after the first store read.
func (r *Resolver) Resolve(ctx context.Context, origin string) Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.cache[origin]; ok {
		return id
	}

	id, found, err := r.store.Get(ctx, origin)
	if err != nil {
		log.Printf("identity: store read for %s failed, generating fresh: %v", origin, err)
	}
	if found {
		r.cache[origin] = id
		r.tags[id.Tag] = struct{}{}
		return id
	}

	id = Identity{
		Username: randomUsername(),
		Tag:      r.newTagLocked(ctx),
		Avatar:   DefaultAvatar,
	}
	if r.UsePalette {
		id.Avatar = randomAvatar()
	}

	// Stage in memory first so the caller is never blocked on persistence.
	r.cache[origin] = id

	if err := r.store.Save(ctx, origin, id); err != nil {
		log.Printf("identity: deferred persistence for %s: %v", origin, err)
	}
	return id
}

// UpdateProfile changes the username and/or avatar for an origin's identity.
// The tag is immutable. Empty or invalid fields keep their prior value; an
// identity that somehow lost its avatar falls back to the default. The
// updated identity is returned.
func (r *Resolver) UpdateProfile(ctx context.Context, origin, username, avatar string) Identity {
	id := r.Resolve(ctx, origin)

	r.mu.Lock()
	if clean, ok := sanitizeUsername(username); ok {
		id.Username = clean
	}
	if avatar != "" {
		id.Avatar = avatar
	}
	if id.Avatar == "" {
		id.Avatar = DefaultAvatar
	}
	r.cache[origin] = id
	r.mu.Unlock()

	if err := r.store.Save(ctx, origin, id); err != nil {
		log.Printf("identity: deferred persistence for %s: %v", origin, err)
	}
	return id
}

// FindOrigin maps a username back to an origin, preferring identities seen in
// this run over the store's username index. Usernames can collide across
// origins; the first match wins.
func (r *Resolver) FindOrigin(ctx context.Context, username string) (string, bool) {
	r.mu.Lock()
	for origin, id := range r.cache {
		if id.Username == username {
			r.mu.Unlock()
			return origin, true
		}
	}
	r.mu.Unlock()

	origin, found, err := r.store.OriginForUsername(ctx, username)
	if err != nil {
		log.Printf("identity: username lookup for %q failed: %v", username, err)
		return "", false
	}
	return origin, found
}

// newTagLocked generates a tag that is unique within this run and, when the
// store is reachable, across runs as well. Caller holds r.mu.
func (r *Resolver) newTagLocked(ctx context.Context) string {
	var tag string
	for i := 0; i < tagRetries; i++ {
		tag = randomTag()
		if _, dup := r.tags[tag]; dup {
			continue
		}
		claimed, err := r.store.ClaimTag(ctx, tag)
		if err != nil {
			// Store down: in-run uniqueness via r.tags still holds.
			log.Printf("identity: tag claim failed, using unverified tag: %v", err)
			break
		}
		if claimed {
			break
		}
	}
	r.tags[tag] = struct{}{}
	return tag
}
