package handlers

import (
	"fmt"

	"github.com/horgh/ircd/internal/command"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/reply"
	"github.com/horgh/ircd/internal/session"
)

func (h *Handlers) handleWho(sess *session.Session, msg ircmsg.Message) {
	w, _ := command.ParseWho(msg)

	if name, err := identity.ParseChannelName(w.Mask, h.cfg.MaxChanLen); err == nil {
		ch, ok := h.reg.GetChannel(name)
		if ok {
			for _, member := range ch.Members() {
				peer, ok := h.reg.GetByID(member.ID)
				if !ok {
					continue
				}
				h.sendWhoLine(sess, string(name), peer, member.Operator)
			}
		}
		h.sendNumeric(sess, reply.RplEndOfWho, w.Mask, "End of WHO list")
		return
	}

	if nick, err := identity.ParseNickname(w.Mask); err == nil {
		if peer, ok := h.reg.GetByNick(nick); ok {
			h.sendWhoLine(sess, "*", peer, false)
		}
	}
	h.sendNumeric(sess, reply.RplEndOfWho, w.Mask, "End of WHO list")
}

func (h *Handlers) sendWhoLine(sess *session.Session, channelName string, peer *session.Session, oper bool) {
	snap := peer.Snap()
	nick := "*"
	if snap.HasNick {
		nick = string(snap.Nick)
	}
	user := "*"
	if snap.HasUser {
		user = string(snap.User)
	}
	flag := "H"
	if snap.Modes.Oper {
		flag += "*"
	}
	if oper {
		flag += "@"
	}
	h.sendNumeric(sess, reply.RplWhoReply, channelName, user, string(peer.Hostname()), h.cfg.ServerName,
		nick, flag, "0 "+string(snap.Realname))
}

func (h *Handlers) handleWhois(sess *session.Session, msg ircmsg.Message) {
	w, err := command.ParseWhois(msg)
	if err != nil {
		h.handleParamError(sess, "WHOIS", err)
		return
	}

	for _, target := range w.Targets {
		nick, err := identity.ParseNickname(target)
		if err != nil {
			h.fmtNoSuchNick(sess, target)
			continue
		}
		peer, ok := h.reg.GetByNick(nick)
		if !ok {
			h.fmtNoSuchNick(sess, target)
			continue
		}
		snap := peer.Snap()
		user := "*"
		if snap.HasUser {
			user = string(snap.User)
		}
		h.sendNumeric(sess, reply.RplWhoisUser, string(nick), user, string(peer.Hostname()), "*", string(snap.Realname))
		h.sendNumeric(sess, reply.RplWhoisServer, string(nick), h.cfg.ServerName, h.cfg.NetworkName)
		if snap.Modes.Oper {
			h.sendNumeric(sess, reply.RplWhoisOper, string(nick), "is an IRC operator")
		}
		h.sendNumeric(sess, reply.RplWhoisIdle, string(nick), "0", "seconds idle")
		h.sendNumeric(sess, reply.RplEndOfWhois, string(nick), "End of WHOIS list")
	}
}

func (h *Handlers) handleVersion(sess *session.Session, msg ircmsg.Message) {
	h.sendNumeric(sess, reply.RplVersion, h.cfg.Version, h.cfg.ServerName,
		fmt.Sprintf("%s TOML-configured ircd", h.cfg.NetworkName))
}
