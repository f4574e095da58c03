// Package channel implements the named multi-user messaging group:
// membership, modes, topic, and the per-channel broadcast fan-out.
//
// The broadcast design (spec §4.D, §9) is the one architectural
// decision that keeps a single slow reader from stalling every other
// member of a channel: each subscriber owns an independently bounded
// backlog, and the producer never blocks on a full one — it marks that
// subscriber "lagged" instead. This generalizes the teacher's
// always-buffered per-client WriteChan (local_client.go, 32768 deep)
// to a fan-out broadcaster instead of a single unicast queue.
package channel

import (
	"sync"
	"time"

	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/identity"
)

// BacklogCapacity is the per-subscriber broadcast buffer depth (spec
// §5: "per-channel broadcast = 5000").
const BacklogCapacity = 5000

// BroadcastMessage is one fanned-out protocol line, tagged with the
// connection that produced it so a subscriber's forwarder can apply
// echo-message exclusion without the channel itself needing to know
// which writer is asking.
type BroadcastMessage struct {
	Sender connid.ID
	Line   string
}

// TryJoinResult is the outcome of a join attempt.
type TryJoinResult int

const (
	// NewJoin means the caller was added to membership.
	NewJoin TryJoinResult = iota
	// AlreadyMember means the caller was already a member; no state
	// changed (spec §8 "Idempotent JOIN" law).
	AlreadyMember
	// ChannelIsFull means the configured user_limit was reached.
	ChannelIsFull
	// BannedFromChan means the caller's mask matched ban_list and not
	// except_list.
	BannedFromChan
	// InviteOnlyChan means the channel is +i and the caller was neither
	// invited nor covered by an invite exception.
	InviteOnlyChan
	// BadChannelKey means the channel has a key set and the supplied key
	// didn't match.
	BadChannelKey
)

// Modes holds the channel's boolean and parameterized mode state.
type Modes struct {
	InviteOnly     bool
	Moderated      bool
	NoExternalMsgs bool
	Private        bool
	Secret         bool
	TopicLock      bool

	Key       string
	HasKey    bool
	UserLimit uint32
	HasLimit  bool

	// BanList, ExceptList, and InviteMasks hold nick!user@host glob
	// patterns manipulated by MODE +b/-b, +e/-e, +I/-I respectively.
	BanList     map[string]struct{}
	ExceptList  map[string]struct{}
	InviteMasks map[string]struct{}
}

func newModes() Modes {
	return Modes{
		BanList:     map[string]struct{}{},
		ExceptList:  map[string]struct{}{},
		InviteMasks: map[string]struct{}{},
	}
}

// Member describes one channel member for snapshot/NAMES purposes.
type Member struct {
	ID       connid.ID
	Operator bool
	Voiced   bool
}

// Channel is a named multi-participant messaging group, shared among
// its members. All mutation goes through its methods, which take the
// lock appropriate to the field(s) touched: membership (members,
// operators, voiced) is covered by membersMu; topic/modes are covered
// by stateMu, matching spec §5's "channel-level state uses a
// reader-writer lock; members/operators/voiced are concurrent sets."
type Channel struct {
	Name identity.ChannelName
	Kind identity.ChannelKind

	stateMu    sync.RWMutex
	topic      identity.Topic
	topicSetBy connid.ID
	topicSetAt int64
	modes      Modes

	membersMu sync.RWMutex
	members   map[connid.ID]struct{}
	operators map[connid.ID]struct{}
	voiced    map[connid.ID]struct{}
	invited   map[connid.ID]struct{} // one-shot INVITE bypass, consumed on join

	subMu sync.Mutex
	subs  map[connid.ID]*Subscription
}

// New creates an empty Channel for name/kind. Callers (the registry)
// are responsible for only keeping it around once it has at least one
// member (spec §3 invariant 1).
func New(name identity.ChannelName) *Channel {
	return &Channel{
		Name:      name,
		Kind:      name.Kind(),
		members:   map[connid.ID]struct{}{},
		operators: map[connid.ID]struct{}{},
		voiced:    map[connid.ID]struct{}{},
		invited:   map[connid.ID]struct{}{},
		subs:      map[connid.ID]*Subscription{},
		modes:     newModes(),
	}
}

// Topic returns the current topic and whether one is set.
func (c *Channel) Topic() (identity.Topic, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.topic, c.topic != ""
}

// TopicInfo returns the topic along with who set it and when.
func (c *Channel) TopicInfo() (identity.Topic, connid.ID, int64) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.topic, c.topicSetBy, c.topicSetAt
}

// SetTopic sets the topic, recording who set it and when.
func (c *Channel) SetTopic(topic identity.Topic, by connid.ID) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.topic = topic
	c.topicSetBy = by
	c.topicSetAt = time.Now().Unix()
}

// Modes returns a copy of the channel's current mode state.
func (c *Channel) Modes() Modes {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return cloneModes(c.modes)
}

func cloneModes(m Modes) Modes {
	out := m
	out.BanList = copySet(m.BanList)
	out.ExceptList = copySet(m.ExceptList)
	out.InviteMasks = copySet(m.InviteMasks)
	return out
}

func copySet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// MutateModes runs fn with exclusive access to the channel's mode
// state, for MODE command handlers that need to apply several changes
// atomically.
func (c *Channel) MutateModes(fn func(*Modes)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	fn(&c.modes)
}

// Invite records that connID may bypass invite-only once, consumed by
// the next successful TryJoin.
func (c *Channel) Invite(connID connid.ID) {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()
	c.invited[connID] = struct{}{}
}

// IsMember reports whether connID is currently a member.
func (c *Channel) IsMember(connID connid.ID) bool {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	_, ok := c.members[connID]
	return ok
}

// IsOperator reports whether connID holds channel operator status.
func (c *Channel) IsOperator(connID connid.ID) bool {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	_, ok := c.operators[connID]
	return ok
}

// IsVoiced reports whether connID holds voice status.
func (c *Channel) IsVoiced(connID connid.ID) bool {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	_, ok := c.voiced[connID]
	return ok
}

// MemberCount returns the number of members.
func (c *Channel) MemberCount() int {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	return len(c.members)
}

// Members returns a snapshot of the current membership, each tagged
// with operator/voice status, for NAMES/WHO replies.
func (c *Channel) Members() []Member {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	out := make([]Member, 0, len(c.members))
	for id := range c.members {
		_, op := c.operators[id]
		_, v := c.voiced[id]
		out = append(out, Member{ID: id, Operator: op, Voiced: v})
	}
	return out
}

// SetOperator grants or revokes operator status for an existing
// member. No-op if connID isn't a member.
func (c *Channel) SetOperator(connID connid.ID, on bool) {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()
	if _, ok := c.members[connID]; !ok {
		return
	}
	if on {
		c.operators[connID] = struct{}{}
	} else {
		delete(c.operators, connID)
	}
}

// SetVoice grants or revokes voice status for an existing member. No-op
// if connID isn't a member.
func (c *Channel) SetVoice(connID connid.ID, on bool) {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()
	if _, ok := c.members[connID]; !ok {
		return
	}
	if on {
		c.voiced[connID] = struct{}{}
	} else {
		delete(c.voiced, connID)
	}
}

// TryJoin attempts to add connID to membership, applying the access
// checks from spec §4.D in order: limit, ban, invite-only, key. nickUserHost
// is the candidate's "nick!user@host" for ban/exception matching. key is
// the key supplied with JOIN, if any.
func (c *Channel) TryJoin(connID connid.ID, nickUserHost, key string, matchMask func(pattern, s string) bool) TryJoinResult {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()

	if _, ok := c.members[connID]; ok {
		return AlreadyMember
	}

	c.stateMu.RLock()
	modes := c.modes
	limit := modes.UserLimit
	hasLimit := modes.HasLimit
	hasKey := modes.HasKey
	wantKey := modes.Key
	inviteOnly := modes.InviteOnly
	banList := modes.BanList
	exceptList := modes.ExceptList
	inviteMasks := modes.InviteMasks
	c.stateMu.RUnlock()

	if hasLimit && uint32(len(c.members)) >= limit {
		return ChannelIsFull
	}

	banned := false
	for pat := range banList {
		if matchMask(pat, nickUserHost) {
			banned = true
			break
		}
	}
	if banned {
		excepted := false
		for pat := range exceptList {
			if matchMask(pat, nickUserHost) {
				excepted = true
				break
			}
		}
		if !excepted {
			return BannedFromChan
		}
	}

	if inviteOnly {
		_, wasInvited := c.invited[connID]
		exempt := wasInvited
		if !exempt {
			for pat := range inviteMasks {
				if matchMask(pat, nickUserHost) {
					exempt = true
					break
				}
			}
		}
		if !exempt {
			return InviteOnlyChan
		}
	}

	if hasKey && key != wantKey {
		return BadChannelKey
	}

	c.members[connID] = struct{}{}
	delete(c.invited, connID)

	if len(c.members) == 1 {
		c.operators[connID] = struct{}{}
	}

	return NewJoin
}

// Part removes connID from membership, operators, and voiced. Returns
// true if connID was a member (and so was actually removed).
func (c *Channel) Part(connID connid.ID) bool {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()
	if _, ok := c.members[connID]; !ok {
		return false
	}
	delete(c.members, connID)
	delete(c.operators, connID)
	delete(c.voiced, connID)
	return true
}

// Empty reports whether the channel currently has no members (spec §3
// invariant: empty channels are destroyed by the registry).
func (c *Channel) Empty() bool {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	return len(c.members) == 0
}
