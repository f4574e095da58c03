package command

import (
	"strings"

	"github.com/horgh/ircd/internal/ircmsg"
)

// TargetKind classifies one PRIVMSG/NOTICE target per spec §4.A's
// grammar.
type TargetKind int

const (
	// TargetChannel is a channel name target ("#chan", "&chan", ...).
	TargetChannel TargetKind = iota
	// TargetNickUserHost is "nick!user@host" — an exact user match.
	TargetNickUserHost
	// TargetUserHostServer is "user%host@servername".
	TargetUserHostServer
	// TargetUserHost is "user%host".
	TargetUserHost
	// TargetHostMask is a server/host mask target ("$*.example.com"
	// style wildcard broadcast targets). A '#'-prefixed token is always
	// classified as TargetChannel, never as a host mask.
	TargetHostMask
	// TargetNickname is a plain nickname.
	TargetNickname
)

// Target is one parsed PRIVMSG/NOTICE destination.
type Target struct {
	Kind TargetKind
	Raw  string

	Nick       string
	User       string
	Host       string
	ServerName string
}

// ParseTarget classifies a single target token using the ordered
// grammar from spec §4.A: channel prefixes and the '$' mask prefix
// first, then the punctuation-bearing user-targeting forms, with a
// bare nickname as the fallback.
func ParseTarget(raw string) Target {
	if raw == "" {
		return Target{Kind: TargetNickname, Raw: raw}
	}

	switch raw[0] {
	case '#', '&', '+':
		return Target{Kind: TargetChannel, Raw: raw}
	case '!':
		if len(raw) > 5 {
			return Target{Kind: TargetChannel, Raw: raw}
		}
	case '$':
		return Target{Kind: TargetHostMask, Raw: raw}
	}

	if bangIdx := strings.IndexByte(raw, '!'); bangIdx > 0 {
		if atIdx := strings.IndexByte(raw, '@'); atIdx > bangIdx {
			return Target{
				Kind: TargetNickUserHost,
				Raw:  raw,
				Nick: raw[:bangIdx],
				User: raw[bangIdx+1 : atIdx],
				Host: raw[atIdx+1:],
			}
		}
	}

	if pctIdx := strings.IndexByte(raw, '%'); pctIdx > 0 {
		rest := raw[pctIdx+1:]
		if atIdx := strings.IndexByte(rest, '@'); atIdx >= 0 {
			return Target{
				Kind:       TargetUserHostServer,
				Raw:        raw,
				User:       raw[:pctIdx],
				Host:       rest[:atIdx],
				ServerName: rest[atIdx+1:],
			}
		}
		return Target{
			Kind: TargetUserHost,
			Raw:  raw,
			User: raw[:pctIdx],
			Host: rest,
		}
	}

	return Target{Kind: TargetNickname, Raw: raw, Nick: raw}
}

// Privmsg is a PRIVMSG command: one or more targets and a text body.
type Privmsg struct {
	Targets []Target
	Text    string
}

// ParsePrivmsg parses a PRIVMSG command: "PRIVMSG <target>{,<target>} :<text>".
func ParsePrivmsg(m ircmsg.Message) (*Privmsg, error) {
	return parseMessaging("PRIVMSG", m)
}

// Notice is a NOTICE command, identical in grammar to PRIVMSG but
// never auto-replied-to by conforming clients/servers.
type Notice struct {
	Targets []Target
	Text    string
}

// ParseNotice parses a NOTICE command.
func ParseNotice(m ircmsg.Message) (*Notice, error) {
	p, err := parseMessaging("NOTICE", m)
	if err != nil {
		return nil, err
	}
	return &Notice{Targets: p.Targets, Text: p.Text}, nil
}

func parseMessaging(cmd string, m ircmsg.Message) (*Privmsg, error) {
	if len(m.Params) < 1 || m.Params[0] == "" {
		return nil, &noRecipientError{Command: cmd}
	}
	if len(m.Params) < 2 || m.Params[1] == "" {
		return nil, &noTextToSendError{}
	}

	rawTargets := splitCSV(m.Params[0])
	targets := make([]Target, 0, len(rawTargets))
	for _, raw := range rawTargets {
		targets = append(targets, ParseTarget(raw))
	}

	return &Privmsg{Targets: targets, Text: m.Params[1]}, nil
}

type noRecipientError struct {
	Command string
}

func (e *noRecipientError) Error() string { return "no recipient given for " + e.Command }

// Code reports the numeric this error maps to (ERR_NORECIPIENT).
func (e *noRecipientError) Code() string { return "411" }

type noTextToSendError struct{}

func (noTextToSendError) Error() string { return "no text to send" }

// Code reports the numeric this error maps to (ERR_NOTEXTTOSEND).
func (noTextToSendError) Code() string { return "412" }
