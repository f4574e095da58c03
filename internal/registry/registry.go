// Package registry implements ServerRegistry: the server-wide index
// tying connection ids to sessions, nicknames to connection ids, and
// channel names to Channel objects, plus per-IP connection counting
// for the configured connection cap.
//
// The teacher keeps all of this inline on its central Server/Catbox
// struct (ircd.go, local_user.go) with the central event-loop goroutine
// as the only writer. Spec §5 instead requires concurrent maps guarded
// by locks sized to their access pattern, with "neither owns the
// other" key-based cross-referencing (spec §9) — so registry holds
// *session.Session and *channel.Channel by connid.ID/canonical name,
// never nesting one inside the other.
package registry

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/horgh/ircd/internal/channel"
	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/session"
)

// ErrNicknameInUse is returned by BindNick when the requested nick is
// already bound to a different connection.
var ErrNicknameInUse = errors.New("nickname in use")

// ErrConnectionLimitExceeded is returned by Register when the per-IP
// connection cap (spec §5) would be exceeded.
var ErrConnectionLimitExceeded = errors.New("connection limit exceeded for this address")

// Registry is the server-wide index of live connections, nick
// bindings, and channels.
type Registry struct {
	nextID uint64

	sessMu   sync.RWMutex
	sessions map[connid.ID]*session.Session

	nickMu sync.RWMutex
	nicks  map[string]connid.ID // nick (case-sensitive, spec §3) -> id

	chanMu   sync.RWMutex
	channels map[string]*channel.Channel // canonical channel name -> channel

	ipMu      sync.Mutex
	ipCounts  map[string]int
	maxPerIP  int
	matchMask func(pattern, s string) bool
}

// New creates an empty Registry. maxPerIP of 0 disables the per-IP cap.
func New(maxPerIP int, matchMask func(pattern, s string) bool) *Registry {
	return &Registry{
		sessions:  map[connid.ID]*session.Session{},
		nicks:     map[string]connid.ID{},
		channels:  map[string]*channel.Channel{},
		ipCounts:  map[string]int{},
		maxPerIP:  maxPerIP,
		matchMask: matchMask,
	}
}

// NextID allocates the next monotonically increasing connection id.
func (r *Registry) NextID() connid.ID {
	return connid.ID(atomic.AddUint64(&r.nextID, 1))
}

// canonicalNick is the nickname's registry key. Nicknames are
// case-sensitive in storage (spec §3); this is an identity function
// kept for symmetry with canonicalChannel and as the single place the
// key derivation would change if that ever did.
func canonicalNick(nick identity.Nickname) string {
	return string(nick)
}

func canonicalChannel(name identity.ChannelName) string {
	return strings.ToLower(string(name))
}

// Register adds a newly accepted session to the registry, enforcing
// the per-IP connection cap (spec §5). ip is the bare address (no
// port) used for counting.
func (r *Registry) Register(sess *session.Session, ip string) error {
	if r.maxPerIP > 0 {
		r.ipMu.Lock()
		if r.ipCounts[ip] >= r.maxPerIP {
			r.ipMu.Unlock()
			return ErrConnectionLimitExceeded
		}
		r.ipCounts[ip]++
		r.ipMu.Unlock()
	}

	r.sessMu.Lock()
	r.sessions[sess.ID] = sess
	r.sessMu.Unlock()
	return nil
}

// BindNick atomically associates nick with connID, failing if the
// nick is already bound to a different connection. Rebinding the same
// connection to the same nick it already holds is a no-op success
// (idempotent NICK, matching the channel package's idempotent JOIN
// law in spec §8).
func (r *Registry) BindNick(connID connid.ID, nick identity.Nickname) error {
	key := canonicalNick(nick)

	r.nickMu.Lock()
	defer r.nickMu.Unlock()

	if existing, ok := r.nicks[key]; ok && existing != connID {
		return ErrNicknameInUse
	}
	r.nicks[key] = connID
	return nil
}

// UnbindNick releases nick if it is currently bound to connID; a nick
// bound to another connection is left alone. Used when a session changes nickname (the prior nick must
// be released) and during unregister.
func (r *Registry) UnbindNick(connID connid.ID, nick identity.Nickname) {
	key := canonicalNick(nick)
	r.nickMu.Lock()
	defer r.nickMu.Unlock()
	if r.nicks[key] == connID {
		delete(r.nicks, key)
	}
}

// GetByNick resolves a nickname to its session, if bound.
func (r *Registry) GetByNick(nick identity.Nickname) (*session.Session, bool) {
	key := canonicalNick(nick)

	r.nickMu.RLock()
	id, ok := r.nicks[key]
	r.nickMu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.GetByID(id)
}

// GetByID resolves a connection id to its session.
func (r *Registry) GetByID(id connid.ID) (*session.Session, bool) {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// GetOrCreateChannel returns the existing Channel for name, or
// atomically creates and registers a new empty one.
func (r *Registry) GetOrCreateChannel(name identity.ChannelName) *channel.Channel {
	key := canonicalChannel(name)

	r.chanMu.Lock()
	defer r.chanMu.Unlock()

	if ch, ok := r.channels[key]; ok {
		return ch
	}
	ch := channel.New(name)
	r.channels[key] = ch
	return ch
}

// GetChannel looks up an existing channel without creating one.
func (r *Registry) GetChannel(name identity.ChannelName) (*channel.Channel, bool) {
	key := canonicalChannel(name)
	r.chanMu.RLock()
	defer r.chanMu.RUnlock()
	ch, ok := r.channels[key]
	return ch, ok
}

// DropChannelIfEmpty removes a channel from the registry if it
// currently has no members (spec §3: empty channels don't persist).
// Returns true if the channel was dropped.
func (r *Registry) DropChannelIfEmpty(name identity.ChannelName) bool {
	key := canonicalChannel(name)

	r.chanMu.Lock()
	defer r.chanMu.Unlock()

	ch, ok := r.channels[key]
	if !ok {
		return false
	}
	if !ch.Empty() {
		return false
	}
	delete(r.channels, key)
	return true
}

// Unregister removes a session from every index it participates in:
// the connection table, its nick binding, its per-IP count, and each
// of its channels (it parts the session, unsubscribes it from the
// channel's broadcaster, and drops the channel if that left it empty).
// It returns the union of the session's channel neighbours, each id
// once, as the audience for a QUIT relay. The caller (the connection
// teardown in package ircd) sends that relay, so it fires exactly
// once even if the session shared several channels with the same peer
// (spec §5: "exactly-once QUIT relay to union of neighbours").
func (r *Registry) Unregister(connID connid.ID, ip string) []connid.ID {
	r.sessMu.Lock()
	sess, ok := r.sessions[connID]
	if ok {
		delete(r.sessions, connID)
	}
	r.sessMu.Unlock()

	if nick, hasNick := func() (identity.Nickname, bool) {
		if sess == nil {
			return identity.Nickname(""), false
		}
		return sess.Nick()
	}(); hasNick {
		r.UnbindNick(connID, nick)
	}

	if r.maxPerIP > 0 {
		r.ipMu.Lock()
		if r.ipCounts[ip] > 0 {
			r.ipCounts[ip]--
		}
		r.ipMu.Unlock()
	}

	if sess == nil {
		return nil
	}

	neighbours := map[connid.ID]struct{}{}
	for _, canonical := range sess.Channels() {
		r.chanMu.RLock()
		ch := r.channels[canonical]
		r.chanMu.RUnlock()
		if ch == nil {
			continue
		}
		for _, m := range ch.Members() {
			if m.ID != connID {
				neighbours[m.ID] = struct{}{}
			}
		}
		ch.Part(connID)
		ch.Unsubscribe(connID)
		if nm, err := identity.ParseChannelName(canonical, 0); err == nil {
			r.DropChannelIfEmpty(nm)
		}
	}

	out := make([]connid.ID, 0, len(neighbours))
	for id := range neighbours {
		out = append(out, id)
	}
	return out
}

// SessionCount returns the number of currently registered sessions.
func (r *Registry) SessionCount() int {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	return len(r.sessions)
}

// ChannelCount returns the number of currently registered channels.
func (r *Registry) ChannelCount() int {
	r.chanMu.RLock()
	defer r.chanMu.RUnlock()
	return len(r.channels)
}

// OperCount returns the number of currently registered sessions with
// the operator user mode set (for LUSERS).
func (r *Registry) OperCount() int {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	n := 0
	for _, sess := range r.sessions {
		if sess.Modes().Oper {
			n++
		}
	}
	return n
}

// MatchMask exposes the registry's configured mask matcher, so
// handlers building ban/except/invite lists all match with the one
// matcher the registry was constructed with.
func (r *Registry) MatchMask(pattern, s string) bool {
	return r.matchMask(pattern, s)
}
