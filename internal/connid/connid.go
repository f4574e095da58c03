// Package connid defines the server-wide connection identifier shared
// by the session, channel, and registry packages. It is split into its
// own tiny package purely to avoid an import cycle between session and
// channel, both of which need to name "the other side" by id rather
// than by pointer (spec §9: "use stable ConnectionId / ChannelName keys
// in the registry; neither owns the other").
package connid

import "fmt"

// ID is an opaque, monotonically increasing connection identifier,
// stable for the life of a connection and stable across nickname
// changes.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}
