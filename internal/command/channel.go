package command

import (
	"github.com/horgh/ircd/internal/ircmsg"
)

// Join is the JOIN command. A bare "JOIN 0" (All == true) requests
// parting every channel the session is in (RFC 2812 §3.2.1).
type Join struct {
	All      bool
	Channels []string
	Keys     []string
}

// ParseJoin parses a JOIN command.
func ParseJoin(m ircmsg.Message) (*Join, error) {
	if err := need("JOIN", m.Params, 1); err != nil {
		return nil, err
	}
	if m.Params[0] == "0" {
		return &Join{All: true}, nil
	}
	j := &Join{Channels: splitCSV(m.Params[0])}
	if len(m.Params) > 1 {
		j.Keys = splitCSV(m.Params[1])
	}
	return j, nil
}

// Part is the PART command.
type Part struct {
	Channels []string
	Reason   string
}

// ParsePart parses a PART command.
func ParsePart(m ircmsg.Message) (*Part, error) {
	if err := need("PART", m.Params, 1); err != nil {
		return nil, err
	}
	p := &Part{Channels: splitCSV(m.Params[0])}
	if len(m.Params) > 1 {
		p.Reason = m.Params[1]
	}
	return p, nil
}

// Topic is the TOPIC command. HasTopic distinguishes a query
// ("TOPIC #chan") from a set, including a set to the empty string
// ("TOPIC #chan :") which clears the topic.
type Topic struct {
	Channel  string
	HasTopic bool
	Topic    string
}

// ParseTopic parses a TOPIC command.
func ParseTopic(m ircmsg.Message) (*Topic, error) {
	if err := need("TOPIC", m.Params, 1); err != nil {
		return nil, err
	}
	t := &Topic{Channel: m.Params[0]}
	if len(m.Params) > 1 {
		t.HasTopic = true
		t.Topic = m.Params[1]
	}
	return t, nil
}

// Names is the NAMES command. Only the listed channels are answered:
// with empty Channels the server sends no reply lines at all.
type Names struct {
	Channels []string
}

// ParseNames parses a NAMES command.
func ParseNames(m ircmsg.Message) (*Names, error) {
	n := &Names{}
	if len(m.Params) > 0 {
		n.Channels = splitCSV(m.Params[0])
	}
	return n, nil
}

// List is the LIST command.
type List struct {
	Channels []string
}

// ParseList parses a LIST command.
func ParseList(m ircmsg.Message) (*List, error) {
	l := &List{}
	if len(m.Params) > 0 {
		l.Channels = splitCSV(m.Params[0])
	}
	return l, nil
}

// Invite is the INVITE command.
type Invite struct {
	Nickname string
	Channel  string
}

// ParseInvite parses an INVITE command.
func ParseInvite(m ircmsg.Message) (*Invite, error) {
	if err := need("INVITE", m.Params, 2); err != nil {
		return nil, err
	}
	return &Invite{Nickname: m.Params[0], Channel: m.Params[1]}, nil
}

// Kick is the KICK command.
type Kick struct {
	Channels []string
	Users    []string
	Comment  string
}

// ParseKick parses a KICK command.
func ParseKick(m ircmsg.Message) (*Kick, error) {
	if err := need("KICK", m.Params, 2); err != nil {
		return nil, err
	}
	k := &Kick{
		Channels: splitCSV(m.Params[0]),
		Users:    splitCSV(m.Params[1]),
	}
	if len(m.Params) > 2 {
		k.Comment = m.Params[2]
	}
	return k, nil
}

// Mode is the MODE command, for either a channel or a nickname
// target. Disambiguating which is the caller's responsibility (by
// attempting identity.ParseChannelName on Target), since the grammar
// is identical at this layer.
type Mode struct {
	Target    string
	ModeSpec  string
	HasSpec   bool
	Arguments []string
}

// ParseMode parses a MODE command.
func ParseMode(m ircmsg.Message) (*Mode, error) {
	if err := need("MODE", m.Params, 1); err != nil {
		return nil, err
	}
	mode := &Mode{Target: m.Params[0]}
	if len(m.Params) > 1 {
		mode.HasSpec = true
		mode.ModeSpec = m.Params[1]
		mode.Arguments = m.Params[2:]
	}
	return mode, nil
}

// Who is the WHO command.
type Who struct {
	Mask string
}

// ParseWho parses a WHO command.
func ParseWho(m ircmsg.Message) (*Who, error) {
	w := &Who{}
	if len(m.Params) > 0 {
		w.Mask = m.Params[0]
	}
	return w, nil
}

// Whois is the WHOIS command.
type Whois struct {
	Targets []string
}

// ParseWhois parses a WHOIS command.
func ParseWhois(m ircmsg.Message) (*Whois, error) {
	if err := need("WHOIS", m.Params, 1); err != nil {
		return nil, err
	}
	// Accept both "WHOIS nick" and the server-relayed "WHOIS server nick"
	// form by always taking the last parameter as the target list.
	return &Whois{Targets: splitCSV(m.Params[len(m.Params)-1])}, nil
}
