// Package command turns a raw ircmsg.Message into a typed command
// value, performing the parameter-count and target-grammar checks
// spec §4.A specifies before a handler ever sees the data. This
// mirrors the teacher's command.go, which centralizes "does this
// command have enough parameters" checks ahead of per-command
// handling, generalized here into one typed value per command instead
// of a shared loosely-typed parameter slice.
package command

import (
	"strings"

	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/reply"
)

// NeedMoreParamsError indicates a command arrived with fewer
// parameters than it requires. Handlers map this directly to
// ERR_NEEDMOREPARAMS (spec §4.A).
type NeedMoreParamsError struct {
	Command string
}

func (e *NeedMoreParamsError) Error() string {
	return "not enough parameters for " + e.Command
}

// Code reports the numeric this error maps to.
func (e *NeedMoreParamsError) Code() string { return reply.ErrNeedMoreParams }

func need(cmd string, params []string, n int) error {
	if len(params) < n {
		return &NeedMoreParamsError{Command: cmd}
	}
	return nil
}

// splitCSV splits a comma-separated parameter list (used by JOIN's
// channel/key lists, PART's channel list, and PRIVMSG/NOTICE's target
// list), trimming nothing — IRC does not allow whitespace inside
// these lists.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
