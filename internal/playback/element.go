package playback

import "sync"

// Element wraps a Player with the bookkeeping that must live with the
// element itself rather than with any one synchronizer: which source is
// actually loaded. Several synchronizers may share one element (one
// fullscreen player, one active phase at a time); each slot's view of
// what it loaded goes stale the moment another slot claims the element,
// so the element keeps the single source of truth.
type Element struct {
	player Player

	mu     sync.Mutex
	loaded string
}

// NewElement wraps a player.
func NewElement(p Player) *Element {
	return &Element{player: p}
}

// EnsureLoaded loads url unless it is already the loaded source.
func (e *Element) EnsureLoaded(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded == url {
		return nil
	}
	if err := e.player.Load(url); err != nil {
		return err
	}
	e.loaded = url
	return nil
}

// Load loads url unconditionally. Embedded sources are recreated from
// scratch on every trigger, so they never skip the load.
func (e *Element) Load(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.player.Load(url); err != nil {
		return err
	}
	e.loaded = url
	return nil
}

func (e *Element) Play() error                { return e.player.Play() }
func (e *Element) Pause() error               { return e.player.Pause() }
func (e *Element) Seek(seconds float64) error { return e.player.Seek(seconds) }
func (e *Element) SetRate(rate float64) error { return e.player.SetRate(rate) }
func (e *Element) SetMuted(muted bool) error  { return e.player.SetMuted(muted) }
func (e *Element) SetLoop(loop bool) error    { return e.player.SetLoop(loop) }
func (e *Element) Position() (float64, error) { return e.player.Position() }
