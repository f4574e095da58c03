package command

import (
	"github.com/horgh/ircd/internal/ircmsg"
)

// Pass is the PASS command: a connection password. The server accepts
// it but never checks it against anything.
type Pass struct {
	Password string
}

// ParsePass parses a PASS command.
func ParsePass(m ircmsg.Message) (*Pass, error) {
	if err := need("PASS", m.Params, 1); err != nil {
		return nil, err
	}
	return &Pass{Password: m.Params[0]}, nil
}

// Nick is the NICK command: a request to set or change nickname.
type Nick struct {
	Nickname string
}

// ParseNick parses a NICK command. Nickname grammar validation
// happens downstream in the identity package — this layer only
// checks that a nickname argument was supplied at all, which maps to
// ERR_NONICKNAMEGIVEN rather than ERR_NEEDMOREPARAMS.
func ParseNick(m ircmsg.Message) (*Nick, error) {
	if len(m.Params) < 1 || m.Params[0] == "" {
		return nil, errNoNicknameGiven
	}
	return &Nick{Nickname: m.Params[0]}, nil
}

type noNicknameGivenError struct{}

func (noNicknameGivenError) Error() string { return "no nickname given" }

// Code reports the numeric this error maps to (ERR_NONICKNAMEGIVEN).
func (noNicknameGivenError) Code() string { return "431" }

var errNoNicknameGiven = noNicknameGivenError{}

// User is the USER command: username, mode bitmask, and realname.
type User struct {
	Username string
	ModeMask string
	Realname string
}

// ParseUser parses a USER command: "USER <user> <mode> <unused> :<realname>".
func ParseUser(m ircmsg.Message) (*User, error) {
	if err := need("USER", m.Params, 4); err != nil {
		return nil, err
	}
	return &User{
		Username: m.Params[0],
		ModeMask: m.Params[1],
		Realname: m.Params[3],
	}, nil
}

// Cap is the CAP command used for capability negotiation.
type Cap struct {
	Subcommand string
	Args       []string
}

// ParseCap parses a CAP command: "CAP <LS|LIST|REQ|END> [args...]".
func ParseCap(m ircmsg.Message) (*Cap, error) {
	if err := need("CAP", m.Params, 1); err != nil {
		return nil, err
	}
	return &Cap{Subcommand: m.Params[0], Args: m.Params[1:]}, nil
}

// Oper is the OPER command: a request for operator privileges.
type Oper struct {
	Name     string
	Password string
}

// ParseOper parses an OPER command.
func ParseOper(m ircmsg.Message) (*Oper, error) {
	if err := need("OPER", m.Params, 2); err != nil {
		return nil, err
	}
	return &Oper{Name: m.Params[0], Password: m.Params[1]}, nil
}

// Quit is the QUIT command: a voluntary disconnect with an optional
// reason.
type Quit struct {
	Reason string
}

// ParseQuit parses a QUIT command. The reason defaults to "Client Quit"
// if none is given, so a quit message is never blank.
func ParseQuit(m ircmsg.Message) (*Quit, error) {
	reason := "Client Quit"
	if len(m.Params) > 0 {
		reason = m.Params[0]
	}
	return &Quit{Reason: reason}, nil
}

// Ping is a PING command, used both as a client keepalive probe and
// as the server's own liveness check.
type Ping struct {
	Token string
}

// ParsePing parses a PING command.
func ParsePing(m ircmsg.Message) (*Ping, error) {
	if err := need("PING", m.Params, 1); err != nil {
		return nil, err
	}
	return &Ping{Token: m.Params[0]}, nil
}

// Pong is a PONG command, the reply to a server-issued PING.
type Pong struct {
	Token string
}

// ParsePong parses a PONG command.
func ParsePong(m ircmsg.Message) (*Pong, error) {
	if err := need("PONG", m.Params, 1); err != nil {
		return nil, err
	}
	return &Pong{Token: m.Params[0]}, nil
}
