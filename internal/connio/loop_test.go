package connio

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/horgh/ircd/internal/handlers"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/mask"
	"github.com/horgh/ircd/internal/registry"
	"github.com/horgh/ircd/internal/session"
)

func TestRunHandshakeOverPipe(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reg := registry.New(0, mask.Match)
	cfg := handlers.Config{
		ServerName:  "irc.test",
		NetworkName: "TestNet",
		Version:     "ircd-test",
		MaxNickLen:  9,
		MaxChanLen:  200,
		MaxTopicLen: 390,
	}
	h := handlers.New(cfg, reg, logrus.NewEntry(logger))

	host, err := identity.ParseHostname("host.example")
	require.NoError(t, err)
	sess := session.New(reg.NextID(), "127.0.0.1:1", host)
	require.NoError(t, reg.Register(sess, "127.0.0.1"))

	conn := NewConn(server)

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), conn, sess, h, logrus.NewEntry(logger))
	}()

	_, err = client.Write([]byte("NICK alice\r\n"))
	require.NoError(t, err)
	_, err = client.Write([]byte("USER alice 0 * :Alice A\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "001")

	_, err = client.Write([]byte("QUIT :bye\r\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after QUIT")
	}
}
