// Package mpv drives a local mpv instance over its JSON IPC socket and
// adapts it to the playback.Player interface. One connection issues
// commands; a second observes properties and translates mpv's lifecycle
// traffic into the synchronizer's event set.
package mpv

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultSocketPath returns the platform-appropriate IPC endpoint: a unix
// socket on unix-likes, a TCP address on Windows.
func DefaultSocketPath() string {
	if runtime.GOOS == "windows" {
		return "127.0.0.1:28899"
	}
	return filepath.Join(os.TempDir(), "showsync-mpv")
}

func dialSocket(path string) (net.Conn, error) {
	if strings.Contains(path, ":") {
		return net.Dial("tcp", path)
	}
	return net.Dial("unix", path)
}

// dialRetry dials the socket, retrying while mpv is still starting up.
func dialRetry(path string, attempts int, wait time.Duration) (net.Conn, error) {
	var conn net.Conn
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = dialSocket(path)
		if err == nil {
			return conn, nil
		}
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("connect to mpv at %s: %w", path, err)
}

// CleanupSocket removes a stale unix socket file left by a previous run.
func CleanupSocket(path string) {
	if strings.Contains(path, ":") {
		return
	}
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
}
