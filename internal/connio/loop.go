package connio

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/horgh/ircd/internal/handlers"
	"github.com/horgh/ircd/internal/ircmsg"
	"github.com/horgh/ircd/internal/session"
)

// FloodRate and FloodBurst bound how many commands per second a
// connection may submit before Run starts dropping them, using a
// token bucket (golang.org/x/time/rate) — the generalized replacement
// for the teacher's fixed "N messages per M seconds" flood counter.
const (
	FloodRate  = 5
	FloodBurst = 10
)

// Run drives conn until either side closes it or the session signals
// disconnect, using an errgroup.Group to pair the reader and writer
// goroutines: whichever exits first cancels ctx for the other, the
// same reader/writer coordination shape the teacher's local_client.go
// expresses as two goroutines sharing a done channel.
func Run(ctx context.Context, conn *Conn, sess *session.Session, h *handlers.Handlers, log *logrus.Entry) error {
	traceID := uuid.New().String()
	entry := log.WithFields(logrus.Fields{
		"conn":  sess.ID,
		"trace": traceID,
		"addr":  conn.RemoteAddr(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return readLoop(ctx, conn, sess, h, entry)
	})

	g.Go(func() error {
		defer cancel()
		return writeLoop(ctx, conn, sess, entry)
	})

	err := g.Wait()
	_ = conn.Close()
	entry.WithError(err).Debug("connection closed")
	return err
}

func readLoop(ctx context.Context, conn *Conn, sess *session.Session, h *handlers.Handlers, log *logrus.Entry) error {
	limiter := rate.NewLimiter(rate.Limit(FloodRate), FloodBurst)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := conn.ReadLine()
		if err != nil {
			return err
		}

		if !limiter.Allow() {
			log.Warn("flood control: dropping message")
			continue
		}

		msg, err := ircmsg.ParseMessage(line)
		if err != nil {
			continue
		}
		if msg.Command == "" {
			continue
		}

		h.Dispatch(sess, msg)

		if sess.Status() == session.Leaving {
			return nil
		}
	}
}

func writeLoop(ctx context.Context, conn *Conn, sess *session.Session, log *logrus.Entry) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sess.Control():
			if sig.Kind == session.Disconnect {
				if sig.Reason != "" {
					_ = conn.WriteLine("ERROR :Closing Link: " + sig.Reason + "\r\n")
				}
				return nil
			}
		case line := <-sess.Outbound():
			if err := conn.WriteLine(line); err != nil {
				return err
			}
		}
	}
}

// RegistrationTimeoutMessage is the ERROR text for a connection that
// fails to complete NICK/USER in time. Nothing in the server sends it:
// Run enforces no registration deadline, so a handshaking connection
// stays open until the client leaves or the server shuts down.
const RegistrationTimeoutMessage = "Closing Link: registration timed out"
