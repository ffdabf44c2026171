// Package hostchannel implements the thin connect/disconnect lifecycle
// collaborator of spec.md §1/§4.5: allow-list check before dialing,
// idempotent disconnect, forced flush, and a default port.
package hostchannel

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mickamy/oophm-bridge/allowlist"
)

// DefaultPort is used when the caller supplies 0 (spec.md §6).
const DefaultPort = 9997

// Channel wraps a blocking net.Conn with the buffering the wire codec
// expects (spec.md §1's "byte-level socket": read_byte, write_byte,
// flush, close).
type Channel struct {
	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

// Connect consults list before dialing host:port (port 0 means
// DefaultPort). A denial never opens a socket and returns a distinct
// permission-denied error (wrapping bridgeerr.Policy is the caller's
// job at the layer that has that import available; this package stays
// free of a dependency on bridgeerr so it can be used standalone).
func Connect(list *allowlist.List, host string, port int, timeout time.Duration) (*Channel, error) {
	if port == 0 {
		port = DefaultPort
	}
	if !list.Allow(host, port) {
		return nil, fmt.Errorf("hostchannel: connection to %s:%d denied by allow-list", host, port)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("hostchannel: dial %s: %w", addr, err)
	}

	return &Channel{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}, nil
}

// Accept wraps an already-accepted net.Conn (the daemon's listener plays
// the plugin's traditional role of accepting the server's connection;
// see SPEC_FULL.md §6).
func Accept(conn net.Conn) *Channel {
	return &Channel{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}
}

// Read implements io.Reader over the buffered stream.
func (c *Channel) Read(p []byte) (int, error) { return c.br.Read(p) }

// Write implements io.Writer over the buffered stream.
func (c *Channel) Write(p []byte) (int, error) { return c.bw.Write(p) }

// Flush forces any buffered writes out to the socket.
func (c *Channel) Flush() error {
	if err := c.bw.Flush(); err != nil {
		return fmt.Errorf("hostchannel: flush: %w", err)
	}
	return nil
}

// Close is idempotent: closing an already-closed Channel returns nil
// rather than an error, matching the session engine's tolerance for a
// repeated disconnect (spec.md §4.4).
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.bw.Flush()
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("hostchannel: close: %w", err)
	}
	return nil
}

// IsConnected reflects whether the underlying socket is still open.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// RemoteAddr returns the peer address, or "" if disconnected.
func (c *Channel) RemoteAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
