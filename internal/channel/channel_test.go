package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horgh/ircd/internal/connid"
	"github.com/horgh/ircd/internal/identity"
	"github.com/horgh/ircd/internal/mask"
)

func mustChannelName(t *testing.T, s string) identity.ChannelName {
	t.Helper()
	n, err := identity.ParseChannelName(s, 0)
	require.NoError(t, err)
	return n
}

func TestTryJoinFirstMemberBecomesOperator(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))

	result := c.TryJoin(1, "alice!alice@host", "", mask.Match)
	assert.Equal(t, NewJoin, result)
	assert.True(t, c.IsMember(1))
	assert.True(t, c.IsOperator(1))
}

func TestTryJoinAlreadyMember(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)

	result := c.TryJoin(1, "alice!alice@host", "", mask.Match)
	assert.Equal(t, AlreadyMember, result)
}

func TestTryJoinChannelIsFull(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.MutateModes(func(m *Modes) {
		m.HasLimit = true
		m.UserLimit = 1
	})
	c.TryJoin(1, "alice!alice@host", "", mask.Match)

	result := c.TryJoin(2, "bob!bob@host", "", mask.Match)
	assert.Equal(t, ChannelIsFull, result)
}

func TestTryJoinBannedUnlessExcepted(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)
	c.MutateModes(func(m *Modes) {
		m.BanList["*!*@bad.host"] = struct{}{}
	})

	result := c.TryJoin(2, "bob!bob@bad.host", "", mask.Match)
	assert.Equal(t, BannedFromChan, result)

	c.MutateModes(func(m *Modes) {
		m.ExceptList["*!*@bad.host"] = struct{}{}
	})
	result = c.TryJoin(2, "bob!bob@bad.host", "", mask.Match)
	assert.Equal(t, NewJoin, result)
}

func TestTryJoinInviteOnly(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)
	c.MutateModes(func(m *Modes) {
		m.InviteOnly = true
	})

	result := c.TryJoin(2, "bob!bob@host", "", mask.Match)
	assert.Equal(t, InviteOnlyChan, result)

	c.Invite(2)
	result = c.TryJoin(2, "bob!bob@host", "", mask.Match)
	assert.Equal(t, NewJoin, result)
}

func TestTryJoinBadChannelKey(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)
	c.MutateModes(func(m *Modes) {
		m.HasKey = true
		m.Key = "secret"
	})

	result := c.TryJoin(2, "bob!bob@host", "wrong", mask.Match)
	assert.Equal(t, BadChannelKey, result)

	result = c.TryJoin(2, "bob!bob@host", "secret", mask.Match)
	assert.Equal(t, NewJoin, result)
}

func TestPartRemovesMembershipAndStatus(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)

	assert.True(t, c.Part(1))
	assert.False(t, c.IsMember(1))
	assert.False(t, c.IsOperator(1))
	assert.True(t, c.Empty())

	assert.False(t, c.Part(1))
}

func TestBroadcastExcludesSenderWhenAsked(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)
	c.TryJoin(2, "bob!bob@host", "", mask.Match)

	subA := c.Subscribe(1)
	subB := c.Subscribe(2)

	c.Broadcast(1, "PRIVMSG #chat :hi\r\n", true)

	select {
	case <-subA.C():
		t.Fatal("sender should not receive its own broadcast copy")
	default:
	}

	select {
	case msg := <-subB.C():
		assert.Equal(t, connid.ID(1), msg.Sender)
	default:
		t.Fatal("expected bob to receive broadcast")
	}
}

func TestBroadcastMarksLaggedInsteadOfBlocking(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)
	sub := c.Subscribe(1)

	for i := 0; i < BacklogCapacity+10; i++ {
		c.Broadcast(0, "PRIVMSG #chat :flood\r\n", false)
	}

	assert.True(t, sub.Lagged())
	assert.False(t, sub.Lagged(), "Lagged should clear after being read")
	assert.Len(t, sub.ch, BacklogCapacity)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := New(mustChannelName(t, "#chat"))
	c.TryJoin(1, "alice!alice@host", "", mask.Match)
	sub := c.Subscribe(1)
	c.Unsubscribe(1)

	c.Broadcast(0, "PRIVMSG #chat :hi\r\n", false)

	select {
	case <-sub.C():
		t.Fatal("unsubscribed connection should not receive broadcasts")
	default:
	}
}
