// Package session implements UserSession: the server-side state for
// one connected client, from the moment it is accepted through
// registration to disconnect. It owns the nick/user/realname/mode
// fields, the set of channels the session belongs to, and the two
// bounded outbound queues (direct replies and control signals) spec
// §5 requires.
//
// State mutation follows the teacher's UserClient/LocalUser split
// (user_client.go, local_user.go): small setter methods guarded by a
// lock, with a Snap method (returning a Snapshot) for handlers that need a consistent
// read of several fields at once without holding the lock across I/O.
package session

import (
	"sync"

	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/identity"
)

// Status is where a session sits in the registration/teardown
// lifecycle (spec §3 UserSession.status).
type Status int

const (
	// Handshaking means NICK/USER/CAP negotiation is still in progress.
	Handshaking Status = iota
	// Active means registration finished and the session is a normal
	// participant.
	Active
	// Leaving means QUIT (or a fatal error) has been observed and the
	// session is being torn down.
	Leaving
)

// OutboundCapacity is the bounded size of the direct per-session
// reply queue (spec §5: "direct outbound = 32").
const OutboundCapacity = 32

// ControlCapacity is the bounded size of the session's control signal
// queue (spec §5: "control = 4"), used for out-of-band notices like
// "you have been killed" that must not be starved by a full outbound
// queue.
const ControlCapacity = 4

// Modes holds the user-mode flags spec §4.C tracks (the classic
// ircd set; only the subset the spec's operations actually flip).
type Modes struct {
	Invisible bool
	Oper      bool
	Wallops   bool
}

// ControlSignal is a out-of-band instruction delivered on the control
// queue, bypassing the (possibly full) outbound queue.
type ControlSignal struct {
	Kind   ControlKind
	Reason string
}

// ControlKind enumerates control queue signal types.
type ControlKind int

const (
	// Disconnect asks the connection loop to close the socket. The
	// writer writes an ERROR line citing Reason (when it is non-empty)
	// and stops; lines still waiting on the outbound queue are not
	// written first.
	Disconnect ControlKind = iota
)

// Session is the server-side state of one connection.
type Session struct {
	ID connid.ID

	mu       sync.RWMutex
	nick     identity.Nickname
	hasNick  bool
	user     identity.Username
	hasUser  bool
	realname identity.Realname
	hostname identity.Hostname
	addr     string
	status   Status
	modes    Modes
	channels map[string]struct{} // canonical channel name -> member
	quitMsg  string

	outbound chan string
	control  chan ControlSignal
}

// New creates a Session in the Handshaking state for a freshly
// accepted connection at addr/hostname.
func New(id connid.ID, addr string, hostname identity.Hostname) *Session {
	return &Session{
		ID:       id,
		addr:     addr,
		hostname: hostname,
		status:   Handshaking,
		channels: map[string]struct{}{},
		outbound: make(chan string, OutboundCapacity),
		control:  make(chan ControlSignal, ControlCapacity),
	}
}

// Outbound returns the direct reply queue. The connection loop's
// writer reads from this.
func (s *Session) Outbound() <-chan string {
	return s.outbound
}

// Control returns the control signal queue.
func (s *Session) Control() <-chan ControlSignal {
	return s.control
}

// Enqueue attempts to deliver line on the direct outbound queue
// without blocking. Returns false if the queue was full, which the
// caller (registry/handlers) treats as a slow-client condition per
// spec §4.G.
func (s *Session) Enqueue(line string) bool {
	select {
	case s.outbound <- line:
		return true
	default:
		return false
	}
}

// SignalControl delivers a control signal without blocking. Returns
// false if the control queue was already full — at capacity 4 this
// should not happen in practice, but callers must not hang on it.
func (s *Session) SignalControl(sig ControlSignal) bool {
	select {
	case s.control <- sig:
		return true
	default:
		return false
	}
}

// Nick returns the current nickname and whether one has been set.
func (s *Session) Nick() (identity.Nickname, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick, s.hasNick
}

// SetNick records nick as the session's current nickname.
func (s *Session) SetNick(nick identity.Nickname) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nick = nick
	s.hasNick = true
}

// User returns the username/realname pair and whether USER has run.
func (s *Session) User() (identity.Username, identity.Realname, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.realname, s.hasUser
}

// SetUser records the username/realname supplied by the USER command
// and applies the RFC 2812 mode bitmask carried in its second argument:
// bit 2 (value 4) requests 'w' (wallops), bit 3 (value 8) requests 'i'
// (invisible) (spec §4.C set_user).
func (s *Session) SetUser(user identity.Username, realname identity.Realname, modeBits uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.realname = realname
	s.hasUser = true
	if modeBits&4 != 0 {
		s.modes.Wallops = true
	}
	if modeBits&8 != 0 {
		s.modes.Invisible = true
	}
}

// Hostname returns the session's resolved/display hostname.
func (s *Session) Hostname() identity.Hostname {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostname
}

// Addr returns the raw remote address string (ip:port) used for
// per-IP connection limiting and ban matching against raw hosts.
func (s *Session) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Status returns the session's current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus transitions the session's lifecycle state.
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetQuitReason records the reason text a QUIT command (or server-
// initiated disconnect) gave, for the accept loop to relay to channel
// neighbours after teardown completes.
func (s *Session) SetQuitReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quitMsg = reason
}

// QuitReason returns the recorded disconnect reason, or "" if none
// was set.
func (s *Session) QuitReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quitMsg
}

// TryFinalizeRegistration moves the session from Handshaking to
// Active once both NICK and USER have completed (spec §4.C). Returns
// true exactly once — the transition it performed — false if already
// active/leaving or still missing a piece.
func (s *Session) TryFinalizeRegistration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != Handshaking {
		return false
	}
	if !s.hasNick || !s.hasUser {
		return false
	}
	s.status = Active
	return true
}

// Modes returns a copy of the session's user modes.
func (s *Session) Modes() Modes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes
}

// ApplyModes runs fn with exclusive access to the session's user mode
// flags, for the MODE handler to flip one or more bits atomically.
func (s *Session) ApplyModes(fn func(*Modes)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.modes)
}

// JoinedChannel records membership in a channel, keyed by its
// canonical (case-folded) name.
func (s *Session) JoinedChannel(canonicalName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[canonicalName] = struct{}{}
}

// LeftChannel removes the channel-membership record.
func (s *Session) LeftChannel(canonicalName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, canonicalName)
}

// Channels returns a snapshot of canonical channel names this session
// currently belongs to.
func (s *Session) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.channels))
	for name := range s.channels {
		out = append(out, name)
	}
	return out
}

// InChannel reports whether the session is a member of canonicalName.
func (s *Session) InChannel(canonicalName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[canonicalName]
	return ok
}

// Snapshot is a consistent point-in-time read of the fields handlers
// commonly need together (for WHOIS/WHO/prefix construction) without
// holding the session lock across message formatting or I/O.
type Snapshot struct {
	ID       connid.ID
	Nick     identity.Nickname
	HasNick  bool
	User     identity.Username
	Realname identity.Realname
	HasUser  bool
	Hostname identity.Hostname
	Status   Status
	Modes    Modes
}

// Snap takes a Snapshot of the session's current state.
func (s *Session) Snap() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:       s.ID,
		Nick:     s.nick,
		HasNick:  s.hasNick,
		User:     s.user,
		Realname: s.realname,
		HasUser:  s.hasUser,
		Hostname: s.hostname,
		Status:   s.status,
		Modes:    s.modes,
	}
}

// UserHost renders the "nick!user@host" prefix for this session. If
// nick or user haven't been set yet, "*" stands in, matching spec
// §4.A's convention for unregistered sessions.
func (s *Session) UserHost() string {
	snap := s.Snap()
	nick := "*"
	if snap.HasNick {
		nick = string(snap.Nick)
	}
	user := "*"
	if snap.HasUser {
		user = string(snap.User)
	}
	return nick + "!" + user + "@" + string(snap.Hostname)
}
