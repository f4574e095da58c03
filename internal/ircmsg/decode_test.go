package ircmsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageBasic(t *testing.T) {
	m, err := ParseMessage("NICK alice\r\n")
	require.NoError(t, err)
	assert.Equal(t, "NICK", m.Command)
	assert.Equal(t, []string{"alice"}, m.Params)
	assert.Empty(t, m.Prefix)
}

func TestParseMessageBareLF(t *testing.T) {
	m, err := ParseMessage("PING server1\n")
	require.NoError(t, err)
	assert.Equal(t, "PING", m.Command)
	assert.Equal(t, []string{"server1"}, m.Params)
}

func TestParseMessagePrefix(t *testing.T) {
	m, err := ParseMessage(":alice!user@host PRIVMSG #chat :hello there\r\n")
	require.NoError(t, err)
	assert.Equal(t, "alice!user@host", m.Prefix)
	assert.Equal(t, "alice", m.SourceNick())
	assert.Equal(t, "PRIVMSG", m.Command)
	assert.Equal(t, []string{"#chat", "hello there"}, m.Params)
}

func TestParseMessageCommandCaseInsensitive(t *testing.T) {
	m, err := ParseMessage("privmsg #chat :hi\r\n")
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", m.Command)
}

func TestParseMessageTruncatesOverlong(t *testing.T) {
	long := "PRIVMSG #chat :" + strings.Repeat("x", 600) + "\r\n"
	m, err := ParseMessage(long)
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", m.Command)
}

func TestParseMessageErrors(t *testing.T) {
	_, err := ParseMessage("")
	assert.Error(t, err)

	_, err = ParseMessage(":\r\n")
	assert.Error(t, err)

	_, err = ParseMessage("NICK alice")
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	m := Message{
		Prefix:  "server.example",
		Command: "001",
		Params:  []string{"alice", "Welcome to the Internet Relay Network alice!alice@host"},
	}
	s, err := m.Encode()
	require.NoError(t, err)
	assert.Equal(t, ":server.example 001 alice :Welcome to the Internet Relay Network alice!alice@host\r\n", s)

	parsed, err := ParseMessage(s)
	require.NoError(t, err)
	assert.Equal(t, m.Prefix, parsed.Prefix)
	assert.Equal(t, m.Command, parsed.Command)
	assert.Equal(t, m.Params, parsed.Params)
}

func TestEncodeTruncatesOverlong(t *testing.T) {
	m := Message{
		Command: "PRIVMSG",
		Params:  []string{"#chat", string(make([]byte, 600))},
	}
	s, err := m.Encode()
	assert.True(t, ErrTruncated(err))
	assert.LessOrEqual(t, len(s), MaxLineLength)
}
