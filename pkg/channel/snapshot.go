package channel

import (
	"github.com/remotia/remotia/pkg/permission"
	"github.com/remotia/remotia/pkg/protocol"
)

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is live.
func (c *Channel) IsConnected() bool {
	return c.State() == StateConnected
}

// Permissions returns the resolved capability set, or nil while loading.
// While nil, every outbound command is blocked.
func (c *Channel) Permissions() *permission.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.perms == nil {
		return nil
	}
	set := *c.perms
	return &set
}

// LatestFrame returns the most recent screen frame batch, if any. Older
// retained batches exist only to tolerate out-of-order arrival and are not
// exposed individually.
func (c *Channel) LatestFrame() (protocol.FrameBatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames.latest()
}

// FrameCount returns how many frame batches are retained.
func (c *Channel) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames.len()
}

// Results returns a copy of the retained command results, oldest first.
func (c *Channel) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results.snapshot()
}

// Processes returns the last process list received from the device.
func (c *Channel) Processes() []protocol.ProcessInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.ProcessInfo, len(c.processes))
	copy(out, c.processes)
	return out
}

// PendingCount returns how many commands await a correlated result.
func (c *Channel) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.len()
}
