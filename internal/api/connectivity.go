package api

import "sync/atomic"

// Connectivity tracks whether the provider could be reached. A request that
// fails in transport, or whose body is cut off mid-read, marks it offline;
// any complete response marks it online again.
type Connectivity struct {
	offline atomic.Bool
}

func (c *Connectivity) Offline() bool {
	return c.offline.Load()
}

func (c *Connectivity) MarkOffline() {
	c.offline.Store(true)
}

func (c *Connectivity) MarkOnline() {
	c.offline.Store(false)
}
