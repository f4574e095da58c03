// Package connio drives one accepted TCP connection end to end: a
// buffered reader that tokenizes wire lines into ircmsg.Message and
// dispatches them through internal/handlers, and a writer that
// multiplexes the session's direct outbound queue against its control
// queue. This generalizes the teacher's local_client.go read/write
// pump (goroutine-per-read, buffered writer, idle/ping timers) to the
// typed session/registry/channel split SPEC_FULL.md's components use.
package connio

import (
	"bufio"
	"net"
	"time"
)

// ReadTimeout bounds how long the reader will wait for the next line
// before treating the connection as dead (spec §4.G "idle timeout").
const ReadTimeout = 4 * time.Minute

// WriteTimeout bounds a single write call, guarding against a peer
// that stops reading from its socket.
const WriteTimeout = 10 * time.Second

// Conn wraps a net.Conn with buffered line I/O and deadline handling,
// mirroring the teacher's net.go Conn wrapper.
type Conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
}

// NewConn wraps conn for line-oriented read/write.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		netConn: conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
	}
}

// ReadLine reads one CRLF- or LF-terminated line, applying
// ReadTimeout as an absolute deadline for receiving it.
func (c *Conn) ReadLine() (string, error) {
	if err := c.netConn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

// WriteLine writes a single pre-encoded line (expected to already end
// in CRLF) and flushes it.
func (c *Conn) WriteLine(line string) error {
	if err := c.netConn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	if _, err := c.writer.WriteString(line); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.netConn.Close()
}

// RemoteAddr returns the raw "ip:port" of the peer.
func (c *Conn) RemoteAddr() string {
	return c.netConn.RemoteAddr().String()
}

// RemoteIP returns just the IP portion of RemoteAddr, for per-IP
// connection-limit accounting (spec §5).
func (c *Conn) RemoteIP() string {
	host, _, err := net.SplitHostPort(c.netConn.RemoteAddr().String())
	if err != nil {
		return c.netConn.RemoteAddr().String()
	}
	return host
}
