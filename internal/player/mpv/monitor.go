package mpv

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"showsync/internal/playback"
)

// ipcMessage is the union of mpv's event and property-change traffic.
type ipcMessage struct {
	Event string `json:"event"`
	Name  string `json:"name"`
	Data  any    `json:"data"`
}

// monitor holds a dedicated IPC connection with property observers armed,
// caches the play-head position, and emits playback events.
type monitor struct {
	conn   net.Conn
	events chan playback.Event
	done   chan struct{}

	mu       sync.RWMutex
	position float64
	hasPos   bool
	paused   bool
}

// Property observer ids; mpv echoes them back but we match on name.
var observedProperties = []string{"time-pos", "pause", "paused-for-cache"}

func newMonitor(path string) (*monitor, error) {
	conn, err := dialRetry(path, 20, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	m := &monitor{
		conn:   conn,
		events: make(chan playback.Event, 16),
		done:   make(chan struct{}),
	}

	for i, prop := range observedProperties {
		cmd, _ := json.Marshal(map[string]any{"command": []any{"observe_property", i + 1, prop}})
		if _, err := conn.Write(append(cmd, '\n')); err != nil {
			conn.Close()
			return nil, err
		}
	}

	go m.listen()
	return m, nil
}

func (m *monitor) listen() {
	defer close(m.events)
	decoder := json.NewDecoder(m.conn)

	for {
		select {
		case <-m.done:
			return
		default:
		}

		var msg ipcMessage
		if err := decoder.Decode(&msg); err != nil {
			select {
			case <-m.done:
			default:
				log.Error().Err(err).Msg("mpv monitor connection lost")
			}
			return
		}
		m.handle(&msg)
	}
}

func (m *monitor) handle(msg *ipcMessage) {
	switch msg.Event {
	case "property-change":
		m.handleProperty(msg)
	case "playback-restart":
		// Fires after load and after every seek completes: the mpv
		// equivalent of the element's "now playing" signal.
		m.emit(playback.EventPlaying)
	case "end-file":
		m.emit(playback.EventEnded)
	}
}

func (m *monitor) handleProperty(msg *ipcMessage) {
	switch msg.Name {
	case "time-pos":
		if pos, ok := msg.Data.(float64); ok {
			m.mu.Lock()
			m.position = pos
			m.hasPos = true
			m.mu.Unlock()
		}
	case "pause":
		if paused, ok := msg.Data.(bool); ok {
			m.mu.Lock()
			was := m.paused
			m.paused = paused
			m.mu.Unlock()
			if was && !paused {
				m.emit(playback.EventPlaying)
			}
		}
	case "paused-for-cache":
		if buffering, ok := msg.Data.(bool); ok {
			if buffering {
				m.emit(playback.EventWaiting)
			} else {
				m.emit(playback.EventPlaying)
			}
		}
	}
}

func (m *monitor) emit(ev playback.Event) {
	select {
	case m.events <- ev:
	default:
		// The pump is slow; dropping a lifecycle signal is preferable to
		// blocking the IPC reader. The next property change re-converges.
		log.Warn().Stringer("event", ev).Msg("dropping mpv event, pump backlogged")
	}
}

func (m *monitor) getPosition() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position, m.hasPos
}

func (m *monitor) stop() {
	close(m.done)
	m.conn.Close()
}
