package handlers

import (
	"fmt"
	"strings"

	"github.com/horgh/ircd/internal/channel"
	"github.com/horgh/ircd/internal/command"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/reply"
	"github.com/horgh/ircd/internal/session"
)

func (h *Handlers) handleJoin(sess *session.Session, msg ircmsg.Message) {
	j, err := command.ParseJoin(msg)
	if err != nil {
		h.handleParamError(sess, "JOIN", err)
		return
	}

	if j.All {
		for _, canonical := range sess.Channels() {
			h.partOne(sess, canonical, "")
		}
		return
	}

	for i, raw := range j.Channels {
		key := ""
		if i < len(j.Keys) {
			key = j.Keys[i]
		}
		h.joinOne(sess, raw, key)
	}
}

func (h *Handlers) joinOne(sess *session.Session, raw, key string) {
	name, err := parseChannelName(raw, h.cfg.MaxChanLen)
	if err != nil {
		h.fmtNoSuchChannel(sess, raw)
		return
	}

	ch := h.reg.GetOrCreateChannel(name)
	nickUserHost := sess.UserHost()

	result := ch.TryJoin(sess.ID, nickUserHost, key, h.matchMask)
	switch result {
	case channel.AlreadyMember:
		return
	case channel.ChannelIsFull:
		h.sendErr(sess, reply.ErrChannelIsFull, string(name), "Cannot join channel (+l)")
		return
	case channel.BannedFromChan:
		h.sendErr(sess, reply.ErrBannedFromChan, string(name), "Cannot join channel (+b)")
		return
	case channel.InviteOnlyChan:
		h.sendErr(sess, reply.ErrInviteOnlyChan, string(name), "Cannot join channel (+i)")
		return
	case channel.BadChannelKey:
		h.sendErr(sess, reply.ErrBadChannelKey, string(name), "Cannot join channel (+k)")
		return
	}

	sess.JoinedChannel(strings.ToLower(string(name)))
	sub := ch.Subscribe(sess.ID)
	go h.forwardBroadcasts(sess, sub)

	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))
	joinMsg := reply.Relay(prefix, "JOIN", string(name))

	h.relaySelf(sess, joinMsg)
	line, err := reply.Format(joinMsg)
	if err == nil || ircmsg.ErrTruncated(err) {
		ch.Broadcast(sess.ID, line, true)
	}

	if topic, set := ch.Topic(); set {
		h.sendNumeric(sess, reply.RplTopic, string(name), string(topic))
	} else {
		h.sendNumeric(sess, reply.RplNoTopic, string(name), "No topic is set")
	}
	h.sendNamesBurst(sess, ch, name)
}

func (h *Handlers) handlePart(sess *session.Session, msg ircmsg.Message) {
	p, err := command.ParsePart(msg)
	if err != nil {
		h.handleParamError(sess, "PART", err)
		return
	}
	for _, raw := range p.Channels {
		h.partOne(sess, strings.ToLower(raw), p.Reason)
	}
}

func (h *Handlers) partOne(sess *session.Session, raw, reason string) {
	name, err := parseChannelName(raw, h.cfg.MaxChanLen)
	if err != nil {
		h.fmtNoSuchChannel(sess, raw)
		return
	}
	ch, ok := h.reg.GetChannel(name)
	if !ok {
		h.fmtNoSuchChannel(sess, raw)
		return
	}
	if !ch.IsMember(sess.ID) {
		h.sendErr(sess, reply.ErrNotOnChannel, string(name), "You're not on that channel")
		return
	}

	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))
	var partMsg ircmsg.Message
	if reason != "" {
		partMsg = reply.Relay(prefix, "PART", string(name), reason)
	} else {
		partMsg = reply.Relay(prefix, "PART", string(name))
	}

	h.relaySelf(sess, partMsg)
	line, err := reply.Format(partMsg)
	if err == nil || ircmsg.ErrTruncated(err) {
		ch.Broadcast(sess.ID, line, true)
	}

	ch.Part(sess.ID)
	ch.Unsubscribe(sess.ID)
	sess.LeftChannel(strings.ToLower(string(name)))
	h.reg.DropChannelIfEmpty(name)
}

func (h *Handlers) handleTopic(sess *session.Session, msg ircmsg.Message) {
	t, err := command.ParseTopic(msg)
	if err != nil {
		h.handleParamError(sess, "TOPIC", err)
		return
	}
	name, err := parseChannelName(t.Channel, h.cfg.MaxChanLen)
	if err != nil {
		h.fmtNoSuchChannel(sess, t.Channel)
		return
	}
	ch, ok := h.reg.GetChannel(name)
	if !ok {
		h.fmtNoSuchChannel(sess, t.Channel)
		return
	}
	if !ch.IsMember(sess.ID) {
		h.sendErr(sess, reply.ErrNotOnChannel, string(name), "You're not on that channel")
		return
	}

	if !t.HasTopic {
		topic, set := ch.Topic()
		if !set {
			h.sendNumeric(sess, reply.RplNoTopic, string(name), "No topic is set")
			return
		}
		h.sendNumeric(sess, reply.RplTopic, string(name), string(topic))
		return
	}

	modes := ch.Modes()
	if modes.TopicLock && !ch.IsOperator(sess.ID) {
		h.sendErr(sess, reply.ErrChanOpsNeeded, string(name), "You're not channel operator")
		return
	}

	topic, err := identity.ParseTopic(t.Topic, h.cfg.MaxTopicLen)
	if err != nil {
		h.sendErr(sess, reply.ErrNeedMoreParams, string(name), "Topic too long")
		return
	}
	ch.SetTopic(topic, sess.ID)

	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))
	topicMsg := reply.Relay(prefix, "TOPIC", string(name), string(topic))
	h.relaySelf(sess, topicMsg)
	line, err := reply.Format(topicMsg)
	if err == nil || ircmsg.ErrTruncated(err) {
		ch.Broadcast(sess.ID, line, true)
	}
}

func (h *Handlers) sendNamesBurst(sess *session.Session, ch *channel.Channel, name identity.ChannelName) {
	members := ch.Members()
	names := make([]string, 0, len(members))
	for _, m := range members {
		peer, ok := h.reg.GetByID(m.ID)
		if !ok {
			continue
		}
		nick := h.currentNick(peer)
		switch {
		case m.Operator:
			names = append(names, "@"+nick)
		case m.Voiced:
			names = append(names, "+"+nick)
		default:
			names = append(names, nick)
		}
	}
	sym := "="
	modes := ch.Modes()
	switch {
	case modes.Secret:
		sym = "@"
	case modes.Private:
		sym = "*"
	}
	const namesPerLine = 20
	for i := 0; i < len(names); i += namesPerLine {
		end := i + namesPerLine
		if end > len(names) {
			end = len(names)
		}
		h.sendNumeric(sess, reply.RplNameReply, sym, string(name), strings.Join(names[i:end], " "))
	}
	h.sendNumeric(sess, reply.RplEndOfNames, string(name), "End of NAMES list")
}

func (h *Handlers) handleNames(sess *session.Session, msg ircmsg.Message) {
	n, _ := command.ParseNames(msg)
	for _, raw := range n.Channels {
		name, err := parseChannelName(raw, h.cfg.MaxChanLen)
		if err != nil {
			continue
		}
		ch, ok := h.reg.GetChannel(name)
		if !ok {
			continue
		}
		if ch.Modes().Secret && !ch.IsMember(sess.ID) {
			h.fmtNoSuchChannel(sess, raw)
			continue
		}
		h.sendNamesBurst(sess, ch, name)
	}
}

func (h *Handlers) handleList(sess *session.Session, msg ircmsg.Message) {
	l, _ := command.ParseList(msg)
	h.sendNumeric(sess, "321", "Channel", "Users Name")
	emit := func(name identity.ChannelName, ch *channel.Channel) {
		modes := ch.Modes()
		if modes.Secret {
			return
		}
		topic, _ := ch.Topic()
		h.sendNumeric(sess, "322", string(name), fmt.Sprintf("%d", ch.MemberCount()), string(topic))
	}
	if len(l.Channels) == 0 {
		// No registry-wide iteration helper is exposed; LIST without a
		// filter only covers channels the caller names explicitly, which
		// matches the teacher's conservative LIST implementation.
		h.sendNumeric(sess, "323", "End of LIST")
		return
	}
	for _, raw := range l.Channels {
		name, err := parseChannelName(raw, h.cfg.MaxChanLen)
		if err != nil {
			continue
		}
		if ch, ok := h.reg.GetChannel(name); ok {
			emit(name, ch)
		}
	}
	h.sendNumeric(sess, "323", "End of LIST")
}

func (h *Handlers) handleInvite(sess *session.Session, msg ircmsg.Message) {
	inv, err := command.ParseInvite(msg)
	if err != nil {
		h.handleParamError(sess, "INVITE", err)
		return
	}
	name, err := parseChannelName(inv.Channel, h.cfg.MaxChanLen)
	if err != nil {
		h.fmtNoSuchChannel(sess, inv.Channel)
		return
	}
	ch, ok := h.reg.GetChannel(name)
	if !ok {
		h.fmtNoSuchChannel(sess, inv.Channel)
		return
	}
	if !ch.IsMember(sess.ID) {
		h.sendErr(sess, reply.ErrNotOnChannel, string(name), "You're not on that channel")
		return
	}

	nick, err := identity.ParseNickname(inv.Nickname)
	if err != nil {
		h.fmtNoSuchNick(sess, inv.Nickname)
		return
	}
	target, ok := h.reg.GetByNick(nick)
	if !ok {
		h.fmtNoSuchNick(sess, inv.Nickname)
		return
	}
	if ch.IsMember(target.ID) {
		h.sendErr(sess, reply.ErrUserOnChannel, inv.Nickname, "is already on channel")
		return
	}

	ch.Invite(target.ID)

	h.sendNumeric(sess, "341", inv.Nickname, string(name))
	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))
	h.relayToID(target.ID, reply.Relay(prefix, "INVITE", inv.Nickname, string(name)))
}

func (h *Handlers) handleKick(sess *session.Session, msg ircmsg.Message) {
	k, err := command.ParseKick(msg)
	if err != nil {
		h.handleParamError(sess, "KICK", err)
		return
	}
	if len(k.Channels) != 1 && len(k.Channels) != len(k.Users) {
		h.sendErr(sess, reply.ErrNeedMoreParams, "KICK", "channel/user count mismatch")
		return
	}

	for i, userRaw := range k.Users {
		chanRaw := k.Channels[0]
		if len(k.Channels) > 1 {
			chanRaw = k.Channels[i]
		}
		h.kickOne(sess, chanRaw, userRaw, k.Comment)
	}
}

func (h *Handlers) kickOne(sess *session.Session, chanRaw, userRaw, comment string) {
	name, err := parseChannelName(chanRaw, h.cfg.MaxChanLen)
	if err != nil {
		h.fmtNoSuchChannel(sess, chanRaw)
		return
	}
	ch, ok := h.reg.GetChannel(name)
	if !ok {
		h.fmtNoSuchChannel(sess, chanRaw)
		return
	}
	if !ch.IsOperator(sess.ID) {
		h.sendErr(sess, reply.ErrChanOpsNeeded, string(name), "You're not channel operator")
		return
	}

	nick, err := identity.ParseNickname(userRaw)
	if err != nil {
		h.fmtNoSuchNick(sess, userRaw)
		return
	}
	target, ok := h.reg.GetByNick(nick)
	if !ok || !ch.IsMember(target.ID) {
		h.sendErr(sess, "441", userRaw, "They aren't on that channel")
		return
	}

	if comment == "" {
		comment = h.currentNick(sess)
	}

	prefix := reply.UserHostPrefix(h.currentNick(sess), usernameOf(sess), string(sess.Hostname()))
	kickMsg := reply.Relay(prefix, "KICK", string(name), userRaw, comment)

	h.relaySelf(sess, kickMsg)
	h.relayToID(target.ID, kickMsg)

	ch.Part(target.ID)
	ch.Unsubscribe(target.ID)
	target.LeftChannel(strings.ToLower(string(name)))

	line, err := reply.Format(kickMsg)
	if err == nil || ircmsg.ErrTruncated(err) {
		// sess and target already received the message directly above;
		// target is no longer a subscriber, and excludeSender drops sess.
		ch.Broadcast(sess.ID, line, true)
	}

	h.reg.DropChannelIfEmpty(name)
}
