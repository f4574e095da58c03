package ircd

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/horgh/ircd/internal/config"
)

// startTestServer runs a Server on an OS-assigned loopback port and
// returns its address, dialing clients against it until t's cleanup
// tears it down. This exercises the real accept loop (serve, the
// connio reader/writer split, and the registry's quit fan-out) rather
// than the package's unit-level helpers.
func startTestServer(t *testing.T) string {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Config{
		Server: config.Server{
			ListenAddress: "127.0.0.1:0",
			Name:          "irc.test",
			Version:       "ircd-test",
		},
		Network: config.Network{Name: "TestNet"},
		Limits: config.Limits{
			MaxConnectionsPerIP: 10,
			MaxNickLength:       9,
			MaxChannelLength:    50,
			MaxTopicLength:      300,
		},
	}

	s := New(cfg, logrus.NewEntry(logger))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var addr string
	select {
	case addr = <-s.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server never started listening")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	return addr
}

// testClient wraps a dialed connection with a line reader and short
// read deadlines, so a hung assertion fails fast instead of blocking
// the test suite.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

// readLineContaining drains lines until one contains substr, failing
// the test if none does before the per-read deadline trips.
func (c *testClient) readLineContaining(substr string) string {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		line := c.readLine()
		if strings.Contains(line, substr) {
			return line
		}
	}
	c.t.Fatalf("never saw a line containing %q", substr)
	return ""
}

func (c *testClient) register(nick string) {
	c.t.Helper()
	c.send("NICK " + nick)
	c.send("USER " + nick + " 0 * :" + nick + " Test")
	c.readLineContaining(" 001 ")
}

// Scenario 1 (spec §8): NICK+USER yields RPL_WELCOME addressed to the
// new nick!user@host.
func TestWelcome(t *testing.T) {
	addr := startTestServer(t)
	alice := dial(t, addr)

	alice.send("NICK alice")
	alice.send("USER alice 0 * :Alice A")

	line := alice.readLineContaining(" 001 ")
	require.Contains(t, line, "001 alice")
	require.Contains(t, line, "alice!alice@")
}

// Scenario 2 (spec §8): after JOIN, the joiner sees its own JOIN
// relay before the topic/NAMES burst that follows it, in order.
func TestJoinSeesSelfInOrder(t *testing.T) {
	addr := startTestServer(t)
	alice := dial(t, addr)
	alice.register("alice")
	// register stops at 001; the rest of the welcome burst ends with
	// ERR_NOMOTD (422), since this server has no MOTD configured.
	alice.readLineContaining(" 422 ")

	alice.send("JOIN #chat")

	join := alice.readLine()
	require.Contains(t, join, "alice!alice@")
	require.Contains(t, join, "JOIN")
	require.Contains(t, join, "#chat")

	noTopic := alice.readLine()
	require.Contains(t, noTopic, " 331 ")

	names := alice.readLine()
	require.Contains(t, names, " 353 ")
	require.Contains(t, names, "@alice")

	endNames := alice.readLine()
	require.Contains(t, endNames, " 366 ")
}

// Scenario 3 (spec §8): a nickname already bound to another connection
// is rejected with ERR_NICKNAMEINUSE as soon as the colliding session
// requests it, even before registration finishes.
func TestNickCollisionRejectedAtRegistration(t *testing.T) {
	addr := startTestServer(t)

	alice := dial(t, addr)
	alice.register("bob")

	bob2 := dial(t, addr)
	bob2.send("NICK bob")
	bob2.send("USER bob 0 * :Bob B")

	line := bob2.readLineContaining(" 433 ")
	require.Contains(t, line, "433 * bob")
}

// Scenario 4 (spec §8): a channel PRIVMSG reaches every other member
// and, with echo-message off, never the sender.
func TestChannelBroadcastExcludesSender(t *testing.T) {
	addr := startTestServer(t)

	alice := dial(t, addr)
	alice.register("alice")
	alice.send("JOIN #c")
	alice.readLineContaining(" 366 ")

	bob := dial(t, addr)
	bob.register("bob")
	bob.send("JOIN #c")
	bob.readLineContaining(" 366 ")

	// alice sees bob's JOIN relay before proceeding.
	alice.readLineContaining("JOIN :#c")

	alice.send("PRIVMSG #c :hi")

	msg := bob.readLineContaining("PRIVMSG #c :hi")
	require.Contains(t, msg, "alice!alice@")

	// alice must not see her own message echoed back: the very next line
	// she reads must be the PONG.
	alice.send("PING sentinel")
	pong := alice.readLine()
	require.Contains(t, pong, "sentinel")
}

// Scenario 5 (spec §8): a direct PRIVMSG to a nickname is delivered
// to that session only.
func TestDirectMessage(t *testing.T) {
	addr := startTestServer(t)

	alice := dial(t, addr)
	alice.register("alice")
	bob := dial(t, addr)
	bob.register("bob")

	alice.send("PRIVMSG bob :hey")

	msg := bob.readLineContaining("PRIVMSG bob :hey")
	require.Contains(t, msg, "alice!alice@")
}

// Scenario 6 (spec §8): QUIT fans out to the union of a session's
// channel neighbours, exactly once each, even when they share more
// than one channel.
func TestQuitFanOutExactlyOnce(t *testing.T) {
	addr := startTestServer(t)

	alice := dial(t, addr)
	alice.register("alice")
	bob := dial(t, addr)
	bob.register("bob")

	alice.send("JOIN #x,#y")
	alice.readLineContaining(" 366 ")
	alice.readLineContaining(" 366 ")

	bob.send("JOIN #x,#y")
	bob.readLineContaining(" 366 ")
	bob.readLineContaining(" 366 ")

	// Drain bob's two JOIN-to-#x/#y relays for alice's benefit, and
	// alice's view of bob's joins, before issuing QUIT.
	alice.readLineContaining("bob!bob@")
	alice.readLineContaining("bob!bob@")

	alice.send("QUIT :bye")

	first := bob.readLineContaining("QUIT")
	require.Contains(t, first, "alice!alice@")
	require.Contains(t, first, "bye")

	// bob must see exactly one QUIT for alice despite sharing two
	// channels with her: the very next line must not be a second QUIT.
	bob.send("PING sentinel2")
	next := bob.readLine()
	require.NotContains(t, next, "QUIT")
}
