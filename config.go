package loqui

import (
	"time"

	"github.com/pkg/errors"
)

// OUTBUF_MAX per §6: the staging buffer's hard cap in bytes.
const OutbufMax = 65536

// Role distinguishes the two session endpoints; role invariants in §4.E
// are enforced against this field.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// Config collects the tunables a Session is built from. Mirrors the
// build-then-verify shape of _examples/xtaci-kcptun/std/smuxcfg.go's
// BuildSmuxConfig/VerifyConfig pair.
type Config struct {
	// PingInterval is this side's default. The client advertises it in
	// its Hello; the server uses it until the client's Hello overrides it.
	PingInterval time.Duration

	// OutbufMax caps the I/O engine's staging buffer. Defaults to
	// OutbufMax (65536) when zero.
	OutbufMax int

	// ReadChunk bounds a single read from the socket per iteration of
	// the I/O engine's loop.
	ReadChunk int

	// ShutdownGrace is how long the shutdown terminator waits for the
	// I/O engine to discover the socket is dead on its own before
	// forcing cleanup. Zero means "one ping interval", per §4.H.
	ShutdownGrace time.Duration

	// PollInterval governs how often the socket watcher retries a
	// blocked read/write against the non-blocking Socket contract.
	PollInterval time.Duration
}

// DefaultConfig returns the spec's defaults: a 30s ping interval (§3),
// OUTBUF_MAX staging cap, and a 64KiB read chunk (§4.F step 3).
func DefaultConfig() *Config {
	return &Config{
		PingInterval: 30 * time.Second,
		OutbufMax:    OutbufMax,
		ReadChunk:    65536,
		PollInterval: 5 * time.Millisecond,
	}
}

// Verify checks a Config for internal consistency, filling in zero
// values with defaults where the spec allows it.
func (c *Config) Verify() error {
	if c.PingInterval <= 0 {
		return errors.New("loqui: PingInterval must be positive")
	}
	if c.OutbufMax <= 0 {
		c.OutbufMax = OutbufMax
	}
	if c.OutbufMax > OutbufMax {
		return errors.Errorf("loqui: OutbufMax %d exceeds the hard cap of %d", c.OutbufMax, OutbufMax)
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = 65536
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Millisecond
	}
	if c.ShutdownGrace < 0 {
		return errors.New("loqui: ShutdownGrace must not be negative")
	}
	return nil
}

func (c *Config) shutdownGrace() time.Duration {
	if c.ShutdownGrace > 0 {
		return c.ShutdownGrace
	}
	return c.PingInterval
}
