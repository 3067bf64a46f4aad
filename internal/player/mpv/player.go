package mpv

import (
	"errors"

	"showsync/internal/playback"
)

// Player adapts an mpv instance to playback.Player.
type Player struct {
	cmd *commandConn
	mon *monitor
}

var _ playback.Player = (*Player)(nil)

// NewPlayer connects to the mpv IPC socket at path. mpv must be running
// with --input-ipc-server=<path>; see Launch.
func NewPlayer(path string) (*Player, error) {
	cmd, err := newCommandConn(path)
	if err != nil {
		return nil, err
	}
	mon, err := newMonitor(path)
	if err != nil {
		cmd.close()
		return nil, err
	}
	return &Player{cmd: cmd, mon: mon}, nil
}

// Events exposes the element lifecycle stream for playback.Pump.
func (p *Player) Events() <-chan playback.Event {
	return p.mon.events
}

func (p *Player) Load(url string) error {
	return p.cmd.send("loadfile", url, "replace")
}

func (p *Player) Play() error {
	return p.cmd.setProperty("pause", false)
}

func (p *Player) Pause() error {
	return p.cmd.setProperty("pause", true)
}

func (p *Player) Seek(seconds float64) error {
	return p.cmd.send("seek", seconds, "absolute")
}

func (p *Player) SetRate(rate float64) error {
	return p.cmd.setProperty("speed", rate)
}

func (p *Player) SetMuted(muted bool) error {
	return p.cmd.setProperty("mute", muted)
}

func (p *Player) SetLoop(loop bool) error {
	if loop {
		return p.cmd.setProperty("loop-file", "inf")
	}
	return p.cmd.setProperty("loop-file", "no")
}

// Position returns the cached play-head position fed by the property
// observer. mpv pushes time-pos continuously, so the cache is at most one
// observation stale.
func (p *Player) Position() (float64, error) {
	pos, ok := p.mon.getPosition()
	if !ok {
		return 0, errors.New("play position not yet reported")
	}
	return pos, nil
}

// Close tears down both IPC connections.
func (p *Player) Close() error {
	p.mon.stop()
	return p.cmd.close()
}
