package ircmsg

import (
	"fmt"
	"strings"
)

// Encode renders the message as a raw protocol line with a trailing
// CRLF. It does not enforce command-specific semantics; callers
// (internal/reply) are responsible for that. The last parameter is
// always written in its ':'-trailing form.
//
// If encoding would exceed MaxLineLength, the last parameter is
// truncated and ErrTruncated(err) reports true; the returned string is
// still a valid, usable line.
func (m Message) Encode() (string, error) {
	s := ""
	if len(m.Prefix) > 0 {
		s += ":" + m.Prefix + " "
	}
	s += m.Command

	if len(s)+2 > MaxLineLength {
		return "", fmt.Errorf("message with only prefix/command is too long")
	}

	if len(m.Params) > MaxParams {
		return "", fmt.Errorf("too many parameters")
	}

	truncated := false

	for i, param := range m.Params {
		needsColon := strings.IndexByte(param, ' ') != -1 ||
			(param != "" && param[0] == ':') ||
			param == "" ||
			i == len(m.Params)-1

		if needsColon {
			param = ":" + param
			if i+1 != len(m.Params) {
				return "", fmt.Errorf("parameter problem: ':' or ' ' outside last parameter")
			}
		}

		if len(s)+1+len(param)+2 > MaxLineLength {
			lengthUsed := len(s) + 1 + 2
			lengthAvailable := MaxLineLength - lengthUsed
			if lengthAvailable > 0 {
				s += " " + param[:lengthAvailable]
			}
			truncated = true
			break
		}

		s += " " + param
	}

	s += "\r\n"

	if truncated {
		return s, errTruncated
	}
	return s, nil
}
