// Package ircd wires together config, registry, handlers, and connio
// into a running server: the accept loop the teacher's ircd.go owns,
// generalized to hand each accepted connection off to the typed
// session/registry/handlers stack instead of the teacher's central
// event-loop Server.
package ircd

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/horgh/ircd/internal/config"
	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/connio"
	"github.com/horgh/ircd/internal/handlers"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/mask"
	"github.com/horgh/ircd/internal/registry"
	"github.com/horgh/ircd/internal/reply"
	"github.com/horgh/ircd/internal/session"
)

// Server owns the listener and the shared registry/handlers a running
// ircd needs.
type Server struct {
	cfg      config.Config
	reg      *registry.Registry
	handlers *handlers.Handlers
	log      *logrus.Entry

	// ready receives the listener's actual address once Run starts
	// listening. It exists so tests can bind to "127.0.0.1:0" and learn
	// the OS-assigned port before dialing in.
	ready chan string
}

// New builds a Server from cfg, logging through log.
func New(cfg config.Config, log *logrus.Entry) *Server {
	reg := registry.New(cfg.Limits.MaxConnectionsPerIP, mask.Match)
	h := handlers.New(handlers.Config{
		ServerName:   cfg.Server.Name,
		NetworkName:  cfg.Network.Name,
		Version:      cfg.Server.Version,
		Created:      time.Now(),
		Motd:         cfg.Network.MOTD,
		OperName:     cfg.Oper.Name,
		OperPassword: cfg.Oper.Password,
		MaxNickLen:   cfg.Limits.MaxNickLength,
		MaxChanLen:   cfg.Limits.MaxChannelLength,
		MaxTopicLen:  cfg.Limits.MaxTopicLength,
	}, reg, log)

	return &Server{cfg: cfg, reg: reg, handlers: h, log: log, ready: make(chan string, 1)}
}

// Run listens on the configured address and serves connections until
// ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		return errors.Wrap(err, "listening")
	}
	defer listener.Close()

	s.log.WithField("addr", listener.Addr().String()).Info("listening")
	select {
	case s.ready <- listener.Addr().String():
	default:
	}

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "accepting connection")
			}
		}
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, netConn net.Conn) {
	conn := connio.NewConn(netConn)
	ip := conn.RemoteIP()

	hostname, err := identity.ParseHostname(ip)
	if err != nil {
		hostname = identity.Hostname(ip)
	}

	id := s.reg.NextID()
	sess := session.New(id, conn.RemoteAddr(), hostname)

	if err := s.reg.Register(sess, ip); err != nil {
		s.log.WithField("addr", conn.RemoteAddr()).Warn("rejecting connection: per-IP limit exceeded")
		_ = conn.WriteLine("ERROR :Closing Link: connection limit exceeded\r\n")
		_ = conn.Close()
		return
	}

	if err := connio.Run(ctx, conn, sess, s.handlers, s.log); err != nil {
		s.log.WithError(err).WithField("conn", id).Debug("connection loop ended")
	}

	neighbours := s.reg.Unregister(id, ip)
	s.relayQuitToNeighbours(sess, neighbours)
}

// relayQuitToNeighbours sends a single QUIT relay line to each
// connection in neighbours — the registry already deduplicated this
// set to the union of the departing session's channel co-members, so
// each peer receives exactly one QUIT line regardless of how many
// channels it shared with sess (spec §5).
func (s *Server) relayQuitToNeighbours(sess *session.Session, neighbours []connid.ID) {
	if len(neighbours) == 0 {
		return
	}
	reason := sess.QuitReason()
	if reason == "" {
		reason = "Client Quit"
	}
	prefix := sess.UserHost()
	quitMsg := reply.Relay(prefix, "QUIT", reason)
	line, err := reply.Format(quitMsg)
	if err != nil && !ircmsg.ErrTruncated(err) {
		return
	}
	for _, id := range neighbours {
		if peer, ok := s.reg.GetByID(id); ok {
			peer.Enqueue(line)
		}
	}
}
