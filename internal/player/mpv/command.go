package mpv

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// commandConn is the write side of the IPC socket: fire-and-forget
// commands, one JSON object per line.
type commandConn struct {
	mu   sync.Mutex
	conn net.Conn
	path string
}

func newCommandConn(path string) (*commandConn, error) {
	conn, err := dialRetry(path, 20, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return &commandConn{conn: conn, path: path}, nil
}

func (c *commandConn) send(args ...any) error {
	payload, err := json.Marshal(map[string]any{"command": args})
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write(payload); err != nil {
		// mpv restarts drop the socket; try once to re-establish.
		conn, dialErr := dialSocket(c.path)
		if dialErr != nil {
			return fmt.Errorf("send mpv command: %w", err)
		}
		c.conn.Close()
		c.conn = conn
		if _, err := c.conn.Write(payload); err != nil {
			return fmt.Errorf("send mpv command: %w", err)
		}
	}
	return nil
}

func (c *commandConn) setProperty(name string, value any) error {
	return c.send("set_property", name, value)
}

func (c *commandConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
