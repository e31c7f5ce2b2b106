package relay

import (
	"net"
	"sync/atomic"
)

// CountedConn wraps the upstream leg of a session and atomically
// accounts uplink and downlink traffic.
type CountedConn struct {
	net.Conn
	uplink   *atomic.Uint64
	downlink *atomic.Uint64
}

// NewCountedConn creates a new CountedConn instance.
func NewCountedConn(conn net.Conn, uplink, downlink *atomic.Uint64) *CountedConn {
	return &CountedConn{
		Conn:     conn,
		uplink:   uplink,
		downlink: downlink,
	}
}

// Read reads from the upstream and adds to the downlink counter.
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.downlink.Add(uint64(n))
	}
	return n, err
}

// Write writes to the upstream and adds to the uplink counter.
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.uplink.Add(uint64(n))
	}
	return n, err
}
