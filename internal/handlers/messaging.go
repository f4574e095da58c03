package handlers

import (
	"github.com/horgh/ircd/internal/command"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/reply"
	"github.com/horgh/ircd/internal/session"
)

func (h *Handlers) handlePrivmsg(sess *session.Session, msg ircmsg.Message) {
	p, err := command.ParsePrivmsg(msg)
	if err != nil {
		h.handleParamError(sess, "PRIVMSG", err)
		return
	}
	h.relayMessaging(sess, "PRIVMSG", p.Targets, p.Text)
}

func (h *Handlers) handleNotice(sess *session.Session, msg ircmsg.Message) {
	n, err := command.ParseNotice(msg)
	if err != nil {
		// NOTICE is defined to never generate an automatic error reply
		// (RFC 2812 §3.3.2); silently drop malformed NOTICEs.
		return
	}
	h.relayMessaging(sess, "NOTICE", n.Targets, n.Text)
}

func (h *Handlers) relayMessaging(sess *session.Session, cmdName string, targets []command.Target, text string) {
	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))

	for _, target := range targets {
		switch target.Kind {
		case command.TargetChannel:
			h.relayToChannel(sess, cmdName, prefix, target.Raw, text)
		case command.TargetNickUserHost, command.TargetUserHostServer, command.TargetUserHost, command.TargetNickname:
			h.relayToUser(sess, cmdName, prefix, target, text)
		case command.TargetHostMask:
			// Mask targets are recognized by the grammar but not
			// implemented as a delivery path (spec §4.A/§4.F).
			if cmdName == "PRIVMSG" {
				h.fmtNoSuchNick(sess, target.Raw)
			}
		}
	}
}

func (h *Handlers) relayToChannel(sess *session.Session, cmdName, prefix, raw, text string) {
	name, err := parseChannelName(raw, h.cfg.MaxChanLen)
	if err != nil {
		if cmdName == "PRIVMSG" {
			h.fmtNoSuchChannel(sess, raw)
		}
		return
	}
	ch, ok := h.reg.GetChannel(name)
	if !ok {
		if cmdName == "PRIVMSG" {
			h.fmtNoSuchChannel(sess, raw)
		}
		return
	}

	isMember := ch.IsMember(sess.ID)
	modes := ch.Modes()
	if modes.NoExternalMsgs && !isMember {
		if cmdName == "PRIVMSG" {
			h.sendErr(sess, reply.ErrCannotSendChan, string(name), "Cannot send to channel")
		}
		return
	}
	if modes.Moderated && !isMember {
		if cmdName == "PRIVMSG" {
			h.sendErr(sess, reply.ErrCannotSendChan, string(name), "Cannot send to channel")
		}
		return
	}
	if modes.Moderated && isMember && !ch.IsOperator(sess.ID) && !ch.IsVoiced(sess.ID) {
		if cmdName == "PRIVMSG" {
			h.sendErr(sess, reply.ErrCannotSendChan, string(name), "Cannot send to channel")
		}
		return
	}

	relayMsg := reply.Relay(prefix, cmdName, string(name), text)
	line, err := reply.Format(relayMsg)
	if err != nil && !ircmsg.ErrTruncated(err) {
		return
	}
	ch.Broadcast(sess.ID, line, true)
}

func (h *Handlers) relayToUser(sess *session.Session, cmdName, prefix string, target command.Target, text string) {
	nick := target.Nick
	if nick == "" {
		nick = target.Raw
	}
	parsed, err := identity.ParseNickname(nick)
	if err != nil {
		if cmdName == "PRIVMSG" {
			h.fmtNoSuchNick(sess, nick)
		}
		return
	}
	peer, ok := h.reg.GetByNick(parsed)
	if !ok {
		if cmdName == "PRIVMSG" {
			h.fmtNoSuchNick(sess, nick)
		}
		return
	}
	h.sendMsg(peer, reply.Relay(prefix, cmdName, nick, text))
}
