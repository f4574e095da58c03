package handlers

import (
	"fmt"
	"strings"

	"github.com/horgh/ircd/internal/command"
	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/reply"
	"github.com/horgh/ircd/internal/session"
)

func (h *Handlers) handleCap(sess *session.Session, msg ircmsg.Message) {
	capCmd, err := command.ParseCap(msg)
	if err != nil {
		h.handleParamError(sess, "CAP", err)
		return
	}
	switch strings.ToUpper(capCmd.Subcommand) {
	case "LS", "LIST":
		h.sendMsg(sess, ircmsg.Message{
			Prefix:  h.cfg.ServerName,
			Command: "CAP",
			Params:  []string{h.currentNick(sess), strings.ToUpper(capCmd.Subcommand), ""},
		})
	case "REQ":
		h.sendMsg(sess, ircmsg.Message{
			Prefix:  h.cfg.ServerName,
			Command: "CAP",
			Params:  []string{h.currentNick(sess), "NAK", strings.Join(capCmd.Args, " ")},
		})
	case "END":
		// No capabilities are actually supported yet; nothing to finalize.
	}
}

func (h *Handlers) handlePass(sess *session.Session, msg ircmsg.Message) {
	if _, err := command.ParsePass(msg); err != nil {
		h.handleParamError(sess, "PASS", err)
		return
	}
	if sess.Status() != session.Handshaking {
		h.sendErr(sess, reply.ErrAlreadyRegistd, "PASS", "You may not reregister")
	}
	// The password is never checked, here or at registration: PASS is
	// accepted but not enforced.
}

func (h *Handlers) handleNick(sess *session.Session, msg ircmsg.Message) {
	n, err := command.ParseNick(msg)
	if err != nil {
		if code, ok := needMoreParamsCode(err); ok {
			h.sendErr(sess, code, "*", "No nickname given")
			return
		}
		h.handleParamError(sess, "NICK", err)
		return
	}

	nick, err := identity.ParseNickname(n.Nickname)
	if err != nil {
		h.sendErr(sess, reply.ErrErroneusNick, n.Nickname, "Erroneous nickname")
		return
	}

	if err := h.reg.BindNick(sess.ID, nick); err != nil {
		h.sendErr(sess, reply.ErrNicknameInUse, n.Nickname, "Nickname is already in use")
		return
	}

	oldNick, hadNick := sess.Nick()
	sess.SetNick(nick)

	if hadNick {
		h.reg.UnbindNick(sess.ID, oldNick)
		prefix := reply.UserHostPrefix(string(oldNick), usernameOf(sess), string(sess.Hostname()))
		h.relaySelf(sess, reply.Relay(prefix, "NICK", string(nick)))
		h.relayNickChangeToChannels(sess, prefix, string(nick))
		return
	}

	if sess.TryFinalizeRegistration() {
		h.sendWelcomeBurst(sess)
	}
}

func usernameOf(sess *session.Session) string {
	user, _, hasUser := sess.User()
	if !hasUser {
		return "*"
	}
	return string(user)
}

// relayNickChangeToChannels sends the NICK relay once to every
// neighbour sharing at least one channel with sess, even if several
// of those channels are shared with the same peer — matching the
// union-of-neighbours fan-out spec §4.F and §4.E require for QUIT.
func (h *Handlers) relayNickChangeToChannels(sess *session.Session, prefix, newNick string) {
	neighbours := map[connid.ID]struct{}{}
	for _, canonical := range sess.Channels() {
		name, err := identity.ParseChannelName(canonical, 0)
		if err != nil {
			continue
		}
		ch, ok := h.reg.GetChannel(name)
		if !ok {
			continue
		}
		for _, m := range ch.Members() {
			if m.ID != sess.ID {
				neighbours[m.ID] = struct{}{}
			}
		}
	}
	if len(neighbours) == 0 {
		return
	}
	nickMsg := reply.Relay(prefix, "NICK", newNick)
	for id := range neighbours {
		h.relayToID(id, nickMsg)
	}
}

func (h *Handlers) handleUser(sess *session.Session, msg ircmsg.Message) {
	u, err := command.ParseUser(msg)
	if err != nil {
		h.handleParamError(sess, "USER", err)
		return
	}
	if sess.Status() != session.Handshaking {
		h.sendErr(sess, reply.ErrAlreadyRegistd, "USER", "You may not reregister")
		return
	}

	username, err := identity.ParseUsername(u.Username)
	if err != nil {
		h.sendErr(sess, reply.ErrNeedMoreParams, "USER", "Invalid username")
		return
	}
	realname, err := identity.ParseRealname(u.Realname)
	if err != nil {
		h.sendErr(sess, reply.ErrNeedMoreParams, "USER", "Invalid realname")
		return
	}

	sess.SetUser(username, realname, parseUserModeBits(u.ModeMask))

	if sess.TryFinalizeRegistration() {
		h.sendWelcomeBurst(sess)
	}
}

// parseUserModeBits reads USER's second-argument mode bitmask (RFC
// 2812). The RFC 1459 fallback form carries a hostname there instead,
// which never parses as a plain decimal number, so a non-numeric value
// is treated as "no mode bits requested" rather than an error.
func parseUserModeBits(raw string) uint32 {
	var v uint32
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		v = v*10 + uint32(c-'0')
	}
	return v
}

// sendWelcomeBurst sends RPL_WELCOME through RPL_ISUPPORT, LUSERS, and
// the MOTD, matching the registration burst a real ircd sends the
// instant NICK+USER complete (spec §4.F's "finalize registration").
func (h *Handlers) sendWelcomeBurst(sess *session.Session) {
	h.sendNumeric(sess, reply.RplWelcome,
		fmt.Sprintf("Welcome to the %s Internet Relay Network %s", h.cfg.NetworkName, sess.UserHost()))
	h.sendNumeric(sess, reply.RplYourHost,
		fmt.Sprintf("Your host is %s, running version %s", h.cfg.ServerName, h.cfg.Version))
	h.sendNumeric(sess, reply.RplCreated,
		fmt.Sprintf("This server was created %s", h.cfg.Created.Format("2006-01-02")))
	h.sendNumeric(sess, reply.RplMyInfo, h.cfg.ServerName, h.cfg.Version, "io", "nt")
	h.sendNumeric(sess, reply.RplISupport,
		fmt.Sprintf("NICKLEN=%d", h.cfg.MaxNickLen),
		fmt.Sprintf("CHANNELLEN=%d", h.cfg.MaxChanLen),
		fmt.Sprintf("TOPICLEN=%d", h.cfg.MaxTopicLen),
		"CHANTYPES=#&+!",
		"PREFIX=(ov)@+",
		"are supported by this server")

	h.sendLusers(sess)
	h.sendMotd(sess)
}

func (h *Handlers) sendLusers(sess *session.Session) {
	sessions := h.reg.SessionCount()
	opers := h.reg.OperCount()
	channels := h.reg.ChannelCount()

	h.sendNumeric(sess, reply.RplLUserClient,
		fmt.Sprintf("There are %d users and 0 invisible on 1 server", sessions))
	h.sendNumeric(sess, reply.RplLUserOp, fmt.Sprintf("%d", opers), "operator(s) online")
	h.sendNumeric(sess, reply.RplLUserUnk, "0", "unknown connection(s)")
	h.sendNumeric(sess, reply.RplLUserChans, fmt.Sprintf("%d", channels), "channels formed")
	h.sendNumeric(sess, reply.RplLUserMe,
		fmt.Sprintf("I have %d clients and 1 servers", sessions))
}

func (h *Handlers) sendMotd(sess *session.Session) {
	if len(h.cfg.Motd) == 0 {
		h.sendErr(sess, "422", "MOTD", "MOTD File is missing")
		return
	}
	h.sendNumeric(sess, reply.RplMotdStart, fmt.Sprintf("- %s Message of the day - ", h.cfg.ServerName))
	for _, line := range h.cfg.Motd {
		h.sendNumeric(sess, reply.RplMotd, "- "+line)
	}
	h.sendNumeric(sess, reply.RplEndOfMotd, "End of MOTD command")
}

func (h *Handlers) handleOper(sess *session.Session, msg ircmsg.Message) {
	o, err := command.ParseOper(msg)
	if err != nil {
		h.handleParamError(sess, "OPER", err)
		return
	}
	if h.cfg.OperName == "" || o.Name != h.cfg.OperName || o.Password != h.cfg.OperPassword {
		h.sendErr(sess, reply.ErrNoPrivileges, "OPER", "Password incorrect")
		return
	}
	sess.ApplyModes(func(m *session.Modes) { m.Oper = true })
	h.sendNumeric(sess, reply.RplYoureOper, "You are now an IRC operator")
}

func (h *Handlers) handlePing(sess *session.Session, msg ircmsg.Message) {
	p, err := command.ParsePing(msg)
	if err != nil {
		h.handleParamError(sess, "PING", err)
		return
	}
	h.sendMsg(sess, ircmsg.Message{
		Prefix:  h.cfg.ServerName,
		Command: "PONG",
		Params:  []string{h.cfg.ServerName, p.Token},
	})
}

func (h *Handlers) handleQuit(sess *session.Session, msg ircmsg.Message) {
	q, _ := command.ParseQuit(msg)
	sess.SetQuitReason(q.Reason)
	sess.SetStatus(session.Leaving)
	sess.SignalControl(session.ControlSignal{Kind: session.Disconnect, Reason: q.Reason})
}
