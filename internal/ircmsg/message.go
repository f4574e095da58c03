// Package ircmsg tokenizes and encodes raw IRC protocol lines.
//
// The parser's structure follows the vendored github.com/horgh/irc
// decoder the teacher ships: a prefix, a command, and up to 15
// parameters, with the final parameter optionally carrying a ':'
// trailing marker. We extend it to tolerate a bare LF terminator (spec
// §4.A) in addition to CRLF.
package ircmsg

import (
	"fmt"
	"strings"
)

// MaxLineLength is the maximum protocol message line length, CRLF
// included.
const MaxLineLength = 512

// MaxParams is the maximum number of parameters a message may carry.
const MaxParams = 15

// errTruncated is returned by Encode when the encoded line had to be
// cut short to fit MaxLineLength; test for it with ErrTruncated. The
// truncated line is still usable.
var errTruncated = fmt.Errorf("message truncated")

// ErrTruncated reports whether err is the truncation sentinel.
func ErrTruncated(err error) bool { return err == errTruncated }

// Message holds one parsed (or to-be-encoded) protocol line.
type Message struct {
	// Prefix is blank for client-originated lines; the server never
	// receives a prefixed line from a normal client in good standing, but
	// we don't reject one outright here, the command layer does.
	Prefix string

	// Command is upper-cased: a textual command name or a 3-digit
	// numeric.
	Command string

	// Params holds up to MaxParams parameters, in order. Only the last
	// may have come from a ':'-trailing term with spaces in it.
	Params []string
}

func (m Message) String() string {
	return fmt.Sprintf("Prefix [%s] Command [%s] Params %q", m.Prefix, m.Command, m.Params)
}

// SourceNick extracts the nickname portion of a "nick!user@host" prefix.
// Returns "" if there is no '!'.
func (m Message) SourceNick() string {
	idx := strings.IndexByte(m.Prefix, '!')
	if idx == -1 {
		return ""
	}
	return m.Prefix[:idx]
}
