package handlers

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/mask"
	"github.com/horgh/ircd/internal/registry"
	"github.com/horgh/ircd/internal/session"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := registry.New(0, mask.Match)
	cfg := Config{
		ServerName:  "irc.example",
		NetworkName: "ExampleNet",
		Version:     "ircd-1.0",
		Created:     time.Unix(0, 0),
		Motd:        []string{"welcome"},
		MaxNickLen:  9,
		MaxChanLen:  200,
		MaxTopicLen: 390,
	}
	return New(cfg, reg, logrus.NewEntry(logger))
}

func newConnectedSession(t *testing.T, h *Handlers, nick string) *session.Session {
	t.Helper()
	host, err := identity.ParseHostname("host.example")
	require.NoError(t, err)
	id := h.reg.NextID()
	sess := session.New(id, "127.0.0.1:1", host)
	require.NoError(t, h.reg.Register(sess, "127.0.0.1"))

	h.Dispatch(sess, ircmsg.Message{Command: "NICK", Params: []string{nick}})
	h.Dispatch(sess, ircmsg.Message{Command: "USER", Params: []string{nick, "0", "*", nick}})
	require.Equal(t, session.Active, sess.Status())
	drainOutbound(sess)
	return sess
}

func drainOutbound(sess *session.Session) []string {
	var lines []string
	for {
		select {
		case line := <-sess.Outbound():
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func TestRegistrationSendsWelcomeBurst(t *testing.T) {
	h := newTestHandlers(t)
	host, err := identity.ParseHostname("host.example")
	require.NoError(t, err)
	sess := session.New(connid.ID(1), "127.0.0.1:1", host)
	require.NoError(t, h.reg.Register(sess, "127.0.0.1"))

	h.Dispatch(sess, ircmsg.Message{Command: "NICK", Params: []string{"alice"}})
	assert.Equal(t, session.Handshaking, sess.Status())

	h.Dispatch(sess, ircmsg.Message{Command: "USER", Params: []string{"alice", "0", "*", "Alice A"}})
	assert.Equal(t, session.Active, sess.Status())

	lines := drainOutbound(sess)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "001")
}

func TestUnregisteredCommandRejected(t *testing.T) {
	h := newTestHandlers(t)
	host, _ := identity.ParseHostname("host.example")
	sess := session.New(connid.ID(1), "127.0.0.1:1", host)
	require.NoError(t, h.reg.Register(sess, "127.0.0.1"))

	h.Dispatch(sess, ircmsg.Message{Command: "JOIN", Params: []string{"#chat"}})
	lines := drainOutbound(sess)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "451")
}

func TestJoinAndNamesAndPrivmsgToChannel(t *testing.T) {
	h := newTestHandlers(t)
	alice := newConnectedSession(t, h, "alice")
	bob := newConnectedSession(t, h, "bob")

	h.Dispatch(alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chat"}})
	drainOutbound(alice)

	h.Dispatch(bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chat"}})
	bobLines := drainOutbound(bob)
	joined := false
	for _, l := range bobLines {
		if contains(l, "JOIN :#chat") {
			joined = true
		}
	}
	assert.True(t, joined)

	// alice should see bob's join broadcast on her channel subscription
	// once the forwarder goroutine has a chance to run.
	waitForLine(t, alice, "JOIN :#chat")

	h.Dispatch(bob, ircmsg.Message{Command: "PRIVMSG", Params: []string{"#chat", "hello there"}})
	waitForLine(t, alice, "PRIVMSG #chat :hello there")
}

func TestPrivmsgToUser(t *testing.T) {
	h := newTestHandlers(t)
	alice := newConnectedSession(t, h, "alice")
	bob := newConnectedSession(t, h, "bob")

	h.Dispatch(alice, ircmsg.Message{Command: "PRIVMSG", Params: []string{"bob", "hi bob"}})
	lines := drainOutbound(bob)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "PRIVMSG bob :hi bob")
}

func TestTopicSetAndQuery(t *testing.T) {
	h := newTestHandlers(t)
	alice := newConnectedSession(t, h, "alice")
	h.Dispatch(alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chat"}})
	drainOutbound(alice)

	h.Dispatch(alice, ircmsg.Message{Command: "TOPIC", Params: []string{"#chat", "hello world"}})
	drainOutbound(alice)

	h.Dispatch(alice, ircmsg.Message{Command: "TOPIC", Params: []string{"#chat"}})
	lines := drainOutbound(alice)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "hello world")
}

func TestChannelModeGrantOperator(t *testing.T) {
	h := newTestHandlers(t)
	alice := newConnectedSession(t, h, "alice")
	bob := newConnectedSession(t, h, "bob")

	h.Dispatch(alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chat"}})
	drainOutbound(alice)
	h.Dispatch(bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chat"}})
	drainOutbound(bob)
	waitForLine(t, alice, "JOIN :#chat")

	ch, ok := h.reg.GetChannel(mustChannelName(t, "#chat"))
	require.True(t, ok)
	assert.False(t, ch.IsOperator(bob.ID))

	h.Dispatch(alice, ircmsg.Message{Command: "MODE", Params: []string{"#chat", "+o", "bob"}})
	assert.True(t, ch.IsOperator(bob.ID))
}

func mustChannelName(t *testing.T, s string) identity.ChannelName {
	t.Helper()
	n, err := identity.ParseChannelName(s, 0)
	require.NoError(t, err)
	return n
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func waitForLine(t *testing.T, sess *session.Session, substr string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		select {
		case line := <-sess.Outbound():
			if contains(line, substr) {
				return
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatalf("timed out waiting for line containing %q", substr)
}
