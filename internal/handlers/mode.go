package handlers

import (
	"strings"

	"github.com/horgh/ircd/internal/channel"
	"github.com/horgh/ircd/internal/command"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/reply"
	"github.com/horgh/ircd/internal/session"
)

func (h *Handlers) handleMode(sess *session.Session, msg ircmsg.Message) {
	m, err := command.ParseMode(msg)
	if err != nil {
		h.handleParamError(sess, "MODE", err)
		return
	}

	if name, err := identity.ParseChannelName(m.Target, h.cfg.MaxChanLen); err == nil {
		h.handleChannelMode(sess, name, m)
		return
	}
	h.handleUserMode(sess, m)
}

func (h *Handlers) handleUserMode(sess *session.Session, m *command.Mode) {
	nick, _ := sess.Nick()
	if !strings.EqualFold(m.Target, string(nick)) {
		h.sendErr(sess, reply.ErrUsersDontMatch, m.Target, "Cannot change mode for other users")
		return
	}

	if !m.HasSpec {
		modes := sess.Modes()
		h.sendNumeric(sess, reply.RplUModeIs, renderUserModeString(modes))
		return
	}

	adding := true
	applied := make([]byte, 0, len(m.ModeSpec))
	var unknown []byte
	sess.ApplyModes(func(mo *session.Modes) {
		for _, c := range m.ModeSpec {
			switch c {
			case '+':
				adding = true
			case '-':
				adding = false
			case 'i':
				mo.Invisible = adding
				applied = append(applied, '+')
				if !adding {
					applied[len(applied)-1] = '-'
				}
				applied = append(applied, 'i')
			case 'w':
				mo.Wallops = adding
				applied = append(applied, boolSign(adding), 'w')
			case 'o':
				if !adding {
					mo.Oper = false
					applied = append(applied, '-', 'o')
				}
				// Clients cannot self-grant +o; OPER is the only path.
			case 'r':
				// Clients cannot self-de-restrict; -r is silently ignored.
			case 'a', 's', 'O':
				// Recognized mode letters with no client-settable effect here.
			default:
				unknown = append(unknown, byte(c))
			}
		}
	})

	for _, c := range unknown {
		h.sendErr(sess, reply.ErrUModeUnknown, string(c), "is unknown mode char to me")
	}

	if len(applied) > 0 {
		prefix := reply.UserHostPrefix(string(nick), usernameOf(sess), string(sess.Hostname()))
		h.relaySelf(sess, reply.Relay(prefix, "MODE", string(nick), string(applied)))
	}
}

func boolSign(on bool) byte {
	if on {
		return '+'
	}
	return '-'
}

func renderUserModeString(m session.Modes) string {
	var b strings.Builder
	b.WriteByte('+')
	if m.Invisible {
		b.WriteByte('i')
	}
	if m.Oper {
		b.WriteByte('o')
	}
	if m.Wallops {
		b.WriteByte('w')
	}
	return b.String()
}

func (h *Handlers) handleChannelMode(sess *session.Session, name identity.ChannelName, m *command.Mode) {
	ch, ok := h.reg.GetChannel(name)
	if !ok {
		h.fmtNoSuchChannel(sess, string(name))
		return
	}

	if !m.HasSpec {
		modes := ch.Modes()
		h.sendNumeric(sess, reply.RplChanModeIs, string(name), renderChannelModeString(modes))
		return
	}

	if !ch.IsOperator(sess.ID) {
		h.sendErr(sess, reply.ErrChanOpsNeeded, string(name), "You're not channel operator")
		return
	}

	argIdx := 0
	rawArg := func() (string, bool) {
		if argIdx >= len(m.Arguments) {
			return "", false
		}
		v := m.Arguments[argIdx]
		argIdx++
		return v, true
	}

	// At most three parameter-bearing mode changes are applied per
	// command (spec §4.F); any beyond that are silently dropped, same
	// as an unknown flag.
	const maxParamModeChanges = 3
	paramChanges := 0
	nextArg := func() (string, bool) {
		if paramChanges >= maxParamModeChanges {
			return "", false
		}
		v, ok := rawArg()
		if ok {
			paramChanges++
		}
		return v, ok
	}

	adding := true
	var appliedSpec strings.Builder
	var appliedArgs []string
	var pendingMemberModes []memberModeChange

	ch.MutateModes(func(mo *channel.Modes) {
		for _, c := range m.ModeSpec {
			switch c {
			case '+':
				adding = true
			case '-':
				adding = false
			case 'i':
				mo.InviteOnly = adding
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('i')
			case 'm':
				mo.Moderated = adding
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('m')
			case 'n':
				mo.NoExternalMsgs = adding
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('n')
			case 'p':
				mo.Private = adding
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('p')
			case 's':
				mo.Secret = adding
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('s')
			case 't':
				mo.TopicLock = adding
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('t')
			case 'k':
				if adding {
					key, ok := nextArg()
					if !ok {
						continue
					}
					mo.Key = key
					mo.HasKey = true
					appliedSpec.WriteByte('+')
					appliedSpec.WriteByte('k')
					appliedArgs = append(appliedArgs, key)
				} else {
					mo.HasKey = false
					mo.Key = ""
					appliedSpec.WriteByte('-')
					appliedSpec.WriteByte('k')
				}
			case 'l':
				if adding {
					limRaw, ok := nextArg()
					if !ok {
						continue
					}
					lim, err := parseUint32(limRaw)
					if err != nil {
						continue
					}
					mo.UserLimit = lim
					mo.HasLimit = true
					appliedSpec.WriteByte('+')
					appliedSpec.WriteByte('l')
					appliedArgs = append(appliedArgs, limRaw)
				} else {
					mo.HasLimit = false
					mo.UserLimit = 0
					appliedSpec.WriteByte('-')
					appliedSpec.WriteByte('l')
				}
			case 'b':
				pattern, ok := nextArg()
				if !ok {
					continue
				}
				if adding {
					mo.BanList[pattern] = struct{}{}
				} else {
					delete(mo.BanList, pattern)
				}
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('b')
				appliedArgs = append(appliedArgs, pattern)
			case 'e':
				pattern, ok := nextArg()
				if !ok {
					continue
				}
				if adding {
					mo.ExceptList[pattern] = struct{}{}
				} else {
					delete(mo.ExceptList, pattern)
				}
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('e')
				appliedArgs = append(appliedArgs, pattern)
			case 'I':
				pattern, ok := nextArg()
				if !ok {
					continue
				}
				if adding {
					mo.InviteMasks[pattern] = struct{}{}
				} else {
					delete(mo.InviteMasks, pattern)
				}
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte('I')
				appliedArgs = append(appliedArgs, pattern)
			case 'o', 'v':
				target, ok := nextArg()
				if !ok {
					continue
				}
				appliedSpec.WriteByte(boolSign(adding))
				appliedSpec.WriteByte(byte(c))
				appliedArgs = append(appliedArgs, target)
				pendingMemberModes = append(pendingMemberModes, memberModeChange{mode: c, adding: adding, target: target})
			}
		}
	})

	// operators/voiced live under membersMu, which TryJoin acquires
	// before stateMu (RLock) — applying +o/+v here, after MutateModes
	// has released stateMu, keeps lock acquisition order consistent
	// with TryJoin instead of nesting membersMu inside stateMu.
	for _, pending := range pendingMemberModes {
		h.applyMemberMode(ch, pending.mode, pending.adding, pending.target)
	}

	if appliedSpec.Len() == 0 {
		return
	}

	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))
	params := append([]string{string(name), appliedSpec.String()}, appliedArgs...)
	modeMsg := reply.Relay(prefix, "MODE", params...)
	h.relaySelf(sess, modeMsg)
	line, err := reply.Format(modeMsg)
	if err == nil || ircmsg.ErrTruncated(err) {
		ch.Broadcast(sess.ID, line, true)
	}
}

// memberModeChange is a deferred +o/+v change: the mode spec loop
// collects these while ch's mode lock (stateMu) is held, and the
// caller applies them only after MutateModes has returned, so the
// membership lock (membersMu) is never taken while stateMu is held.
type memberModeChange struct {
	mode   rune
	adding bool
	target string
}

// applyMemberMode resolves target's nickname to a connection id and
// applies +o/+v/-o/-v. Must be called outside MutateModes: TryJoin
// takes membersMu before stateMu (RLock), so taking membersMu here
// while stateMu is held would invert that order and risk an AB-BA
// deadlock against a concurrent JOIN.
func (h *Handlers) applyMemberMode(ch *channel.Channel, mode rune, adding bool, targetNick string) {
	nick, err := identity.ParseNickname(targetNick)
	if err != nil {
		return
	}
	target, ok := h.reg.GetByNick(nick)
	if !ok {
		return
	}
	switch mode {
	case 'o':
		ch.SetOperator(target.ID, adding)
	case 'v':
		ch.SetVoice(target.ID, adding)
	}
}

func renderChannelModeString(m channel.Modes) string {
	var b strings.Builder
	b.WriteByte('+')
	if m.InviteOnly {
		b.WriteByte('i')
	}
	if m.Moderated {
		b.WriteByte('m')
	}
	if m.NoExternalMsgs {
		b.WriteByte('n')
	}
	if m.Private {
		b.WriteByte('p')
	}
	if m.Secret {
		b.WriteByte('s')
	}
	if m.TopicLock {
		b.WriteByte('t')
	}
	if m.HasKey {
		b.WriteByte('k')
	}
	if m.HasLimit {
		b.WriteByte('l')
	}
	return b.String()
}

func parseUint32(s string) (uint32, error) {
	var v uint32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errNotANumber
		}
		v = v*10 + uint32(c-'0')
	}
	return v, nil
}

type notANumberError struct{}

func (notANumberError) Error() string { return "not a number" }

var errNotANumber = notANumberError{}
