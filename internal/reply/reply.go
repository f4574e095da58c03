// Package reply formats outbound protocol lines: numeric replies
// (":<server> NNN <nick> ...") and message relays that carry a sender's
// "nick!user@host" prefix. It mirrors the teacher's messageFromServer/
// messageClient helpers (see local_user.go), but as pure functions
// returning an ircmsg.Message rather than methods that also enqueue.
package reply

import (
	"fmt"

	"github.com/horgh/ircd/internal/ircmsg"
)

// Numeric reply codes. Only the minimal set spec §4.B requires, plus
// the supplemented-feature numerics from SPEC_FULL.md.
const (
	RplWelcome     = "001"
	RplYourHost    = "002"
	RplCreated     = "003"
	RplMyInfo      = "004"
	RplISupport    = "005"
	RplUModeIs     = "221"
	RplChanModeIs  = "324"
	RplLUserClient = "251"
	RplLUserOp     = "252"
	RplLUserUnk    = "253"
	RplLUserChans  = "254"
	RplLUserMe     = "255"
	RplAway        = "301"
	RplWhoisUser   = "311"
	RplWhoisServer = "312"
	RplWhoisOper   = "313"
	RplEndOfWho    = "315"
	RplWhoisIdle   = "317"
	RplEndOfWhois  = "318"
	RplWhoReply    = "352"
	RplNoTopic     = "331"
	RplTopic       = "332"
	RplNameReply   = "353"
	RplEndOfNames  = "366"
	RplMotdStart   = "375"
	RplMotd        = "372"
	RplEndOfMotd   = "376"
	RplYoureOper   = "381"
	RplVersion     = "351"

	ErrNoSuchNick     = "401"
	ErrNoSuchChannel  = "403"
	ErrCannotSendChan = "404"
	ErrNoRecipient    = "411"
	ErrNoTextToSend   = "412"
	ErrUnknownCommand = "421"
	ErrNoNickGiven    = "431"
	ErrErroneusNick   = "432"
	ErrNicknameInUse  = "433"
	ErrUserOnChannel  = "443"
	ErrNotOnChannel   = "442"
	ErrNotRegistered  = "451"
	ErrNeedMoreParams = "461"
	ErrAlreadyRegistd = "462"
	ErrChannelIsFull  = "471"
	ErrUnknownMode    = "472"
	ErrInviteOnlyChan = "473"
	ErrBannedFromChan = "474"
	ErrBadChannelKey  = "475"
	ErrNoPrivileges   = "481"
	ErrChanOpsNeeded  = "482"
	ErrUModeUnknown   = "501"
	ErrUsersDontMatch = "502"
)

var numeric = map[string]bool{}

func init() {
	for _, c := range []string{
		RplWelcome, RplYourHost, RplCreated, RplMyInfo, RplISupport, RplUModeIs,
		RplChanModeIs,
		RplLUserClient, RplLUserOp, RplLUserUnk, RplLUserChans, RplLUserMe,
		RplAway, RplWhoisUser, RplWhoisServer, RplWhoisOper, RplEndOfWho,
		RplWhoisIdle, RplEndOfWhois, RplWhoReply, RplNoTopic, RplTopic,
		RplNameReply, RplEndOfNames, RplMotdStart, RplMotd, RplEndOfMotd,
		RplYoureOper, RplVersion,
		ErrNoSuchNick, ErrNoSuchChannel, ErrCannotSendChan, ErrNoRecipient,
		ErrNoTextToSend, ErrUnknownCommand, ErrNoNickGiven, ErrErroneusNick,
		ErrNicknameInUse, ErrUserOnChannel, ErrNotOnChannel, ErrNotRegistered,
		ErrNeedMoreParams, ErrAlreadyRegistd, ErrChannelIsFull, ErrUnknownMode,
		ErrInviteOnlyChan, ErrBannedFromChan, ErrBadChannelKey, ErrNoPrivileges,
		ErrChanOpsNeeded, ErrUModeUnknown, ErrUsersDontMatch,
	} {
		numeric[c] = true
	}
}

// IsNumeric reports whether command is one of the numeric reply codes
// (as opposed to a textual relay command like "JOIN" or "PRIVMSG").
func IsNumeric(command string) bool {
	return numeric[command]
}

// Numeric builds a numeric reply line addressed to nick (or "*" if the
// session isn't registered yet), from the given server name.
func Numeric(serverName, code, nick string, params ...string) ircmsg.Message {
	if nick == "" {
		nick = "*"
	}
	allParams := append([]string{nick}, params...)
	return ircmsg.Message{
		Prefix:  serverName,
		Command: code,
		Params:  allParams,
	}
}

// Relay builds a message that appears to come from a user
// ("nick!user@host COMMAND params..."), used for JOIN/PART/PRIVMSG/
// NOTICE/QUIT/NICK/TOPIC/MODE/KICK/INVITE relays.
func Relay(senderPrefix, command string, params ...string) ircmsg.Message {
	return ircmsg.Message{
		Prefix:  senderPrefix,
		Command: command,
		Params:  params,
	}
}

// UserHostPrefix renders the canonical "nick!user@host" source prefix.
func UserHostPrefix(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}

// Format renders m to a wire-ready line (CRLF included). Formatting
// never fails under normal conditions; if encoding must truncate, the
// (still usable) truncated line is returned together with the
// truncation indicator via ircmsg.ErrTruncated.
func Format(m ircmsg.Message) (string, error) {
	return m.Encode()
}
