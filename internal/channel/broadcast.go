package channel

import (
	"sync/atomic"

	"github.com/horgh/ircd/internal/connid"
)

// Subscription is one member's view onto the channel's broadcast
// stream. The channel never blocks delivering to it: Deliver uses a
// non-blocking send and flips Lagged instead of stalling the sender
// when the backlog is full (spec §4.D, §9 "slow subscriber" note).
type Subscription struct {
	ID     connid.ID
	ch     chan BroadcastMessage
	done   chan struct{}
	lagged atomic.Bool
}

// C returns the channel to read broadcast messages from.
func (s *Subscription) C() <-chan BroadcastMessage {
	return s.ch
}

// Done is closed when the subscription is torn down (Unsubscribe),
// letting a forwarder goroutine reading from C() stop selecting on it.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Lagged reports whether a delivery was dropped because this
// subscriber's backlog was full, and clears the flag (callers should
// warn the client once per detection, matching the teacher's "client
// flooding off" disconnect notices in local_client.go, generalized
// here to a non-fatal warning rather than a kill).
func (s *Subscription) Lagged() bool {
	return s.lagged.Swap(false)
}

// Subscribe registers connID for broadcast delivery and returns its
// Subscription. Calling Subscribe again for an already-subscribed
// connID replaces the prior subscription.
func (c *Channel) Subscribe(connID connid.ID) *Subscription {
	sub := &Subscription{
		ID:   connID,
		ch:   make(chan BroadcastMessage, BacklogCapacity),
		done: make(chan struct{}),
	}
	c.subMu.Lock()
	c.subs[connID] = sub
	c.subMu.Unlock()
	return sub
}

// Unsubscribe removes connID's subscription. Safe to call even if
// connID was never subscribed.
func (c *Channel) Unsubscribe(connID connid.ID) {
	c.subMu.Lock()
	sub, ok := c.subs[connID]
	delete(c.subs, connID)
	c.subMu.Unlock()
	if ok {
		close(sub.done)
	}
}

// Broadcast fans line out to every current subscriber except sender
// when excludeSender is true (used for commands whose sender already
// gets its own direct echo and shouldn't receive the broadcast copy
// too). Delivery to each subscriber is independent and non-blocking:
// one lagged reader never delays or drops delivery to any other.
func (c *Channel) Broadcast(sender connid.ID, line string, excludeSender bool) {
	msg := BroadcastMessage{Sender: sender, Line: line}

	c.subMu.Lock()
	targets := make([]*Subscription, 0, len(c.subs))
	for id, sub := range c.subs {
		if excludeSender && id == sender {
			continue
		}
		targets = append(targets, sub)
	}
	c.subMu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		default:
			sub.lagged.Store(true)
		}
	}
}
