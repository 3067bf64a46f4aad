// Package playback drives one playback element per media slot so that its
// play-head tracks the position implied by the shared show state and the
// skew-corrected clock. This is the core control loop of the system.
package playback

import "errors"

// Player is the transport control surface of one playback element. The
// synchronizer is decoupled from any specific media engine; internal/player
// provides an mpv-backed implementation and tests use a fake.
type Player interface {
	Load(url string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	SetMuted(muted bool) error
	SetLoop(loop bool) error
	Position() (float64, error)
}

// Event is the small enumerated set of inbound element lifecycle signals
// the state machine transitions on.
type Event int

const (
	// EventPlaying fires when the element starts or resumes rendering.
	EventPlaying Event = iota
	// EventWaiting fires when the element stalls waiting for data.
	EventWaiting
	// EventEnded fires when a non-looping element reaches the end.
	EventEnded
)

func (e Event) String() string {
	switch e {
	case EventPlaying:
		return "playing"
	case EventWaiting:
		return "waiting"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ErrPlaybackBlocked is returned by a Player whose platform refuses
// autoplay before a user gesture. The synchronizer defers to the unlock
// gate and retries once unlocked.
var ErrPlaybackBlocked = errors.New("playback blocked by platform autoplay policy")
