package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"showsync/internal/media"
	"showsync/internal/show"
)

// SyncState is the per-element state machine.
type SyncState int

const (
	// StateIdle: this element is not the active one, or playback is gated.
	StateIdle SyncState = iota
	// StateStarting: source loaded and play issued, waiting for the first
	// playing signal.
	StateStarting
	// StateTracking: playing; the drift loop keeps the play-head on target.
	StateTracking
	// StateStalled: buffering; drift correction is suspended so we do not
	// fight the buffering engine.
	StateStalled
)

func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateTracking:
		return "tracking"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Clock supplies the skew-corrected now used to compute expected position.
type Clock interface {
	Now() time.Time
}

// Slot binds a synchronizer to one media slot of the show state.
type Slot struct {
	// Phase is the cue during which this element is active; it doubles as
	// the media slot name.
	Phase string
	// Unmuted marks the main activation element; every other element plays
	// muted.
	Unmuted bool
	// Loop makes the element wrap instead of holding its last frame.
	Loop bool
}

// Options are the tunables of the drift loop.
type Options struct {
	// Epsilon1 is the dead zone (seconds): drift at or below it plays at
	// nominal rate.
	Epsilon1 float64
	// Epsilon2 is the rate-nudge ceiling (seconds): drift above it
	// hard-seeks.
	Epsilon2 float64
	// StallTimeout bounds how long a stall may last before the watchdog
	// re-issues play once.
	StallTimeout time.Duration
}

// DefaultOptions returns the stock drift-loop tuning.
func DefaultOptions() Options {
	return Options{
		Epsilon1:     0.05,
		Epsilon2:     1.5,
		StallTimeout: 10 * time.Second,
	}
}

// Synchronizer drives one playback element to track the expected position
// derived from the show state's trigger timestamp and the corrected clock.
// Methods are safe for concurrent use; state-change, element-event, and
// ticker callers all funnel through one mutex.
type Synchronizer struct {
	slot    Slot
	element *Element
	clock   Clock
	opts    Options

	// OnBuffering, if set, is invoked with true when the element stalls
	// and false when it recovers. Callers surface it as an indicator.
	OnBuffering func(bool)

	mu          sync.Mutex
	state       SyncState
	unlocked    bool
	cur         show.State
	hasState    bool
	source      media.Source
	appliedRef  string
	appliedTrig int64
	rate        float64
	stalledAt   time.Time
	stallKicked bool
	pendingPlay bool
}

// NewSynchronizer creates a synchronizer for one slot. Slots that share
// one physical player pass the same element.
func NewSynchronizer(slot Slot, element *Element, clock Clock, opts Options) *Synchronizer {
	return &Synchronizer{
		slot:    slot,
		element: element,
		clock:   clock,
		opts:    opts,
		rate:    nominalRate,
	}
}

// State returns the current machine state.
func (s *Synchronizer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffering reports whether the element is stalled.
func (s *Synchronizer) Buffering() bool {
	return s.State() == StateStalled
}

// Unlock releases the autoplay gate. Until it is called the element holds
// Idle regardless of show state; calling it replays the last observed
// state, and calling it again is a no-op.
func (s *Synchronizer) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked {
		return
	}
	s.unlocked = true
	if s.hasState {
		s.apply(s.cur)
	}
}

// Apply reacts to a new show state record.
func (s *Synchronizer) Apply(st show.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = st
	s.hasState = true
	if !s.unlocked {
		return
	}
	s.apply(st)
}

// apply runs with the lock held.
func (s *Synchronizer) apply(st show.State) {
	if st.Phase != s.slot.Phase {
		s.deactivate()
		return
	}

	ref := st.MediaRef(s.slot.Phase)
	if ref == "" {
		// MissingMedia: stay idle, never throw.
		s.deactivate()
		return
	}

	// A re-trigger of the same phase carries a fresh trigger timestamp and
	// restarts playback from the recomputed position.
	if s.state != StateIdle && ref == s.appliedRef && st.TriggerUnixMs == s.appliedTrig {
		if s.pendingPlay {
			s.play()
		}
		return
	}
	s.start(st, ref)
}

// deactivate pauses the element without discarding the loaded source.
func (s *Synchronizer) deactivate() {
	if s.state == StateIdle {
		return
	}
	if err := s.element.Pause(); err != nil {
		log.Warn().Err(err).Str("slot", s.slot.Phase).Msg("pause failed")
	}
	s.setRate(nominalRate)
	s.state = StateIdle
	s.pendingPlay = false
	s.notifyBuffering(false)
}

// start loads (if needed), aligns, and plays the element for a trigger.
func (s *Synchronizer) start(st show.State, ref string) {
	elapsed := s.expected(st)

	src, err := media.Resolve(ref, elapsed, !s.slot.Unmuted, s.slot.Loop)
	if err != nil {
		log.Warn().Err(err).Str("slot", s.slot.Phase).Str("ref", ref).Msg("media resolve failed")
		s.deactivate()
		return
	}
	s.source = src

	switch src := src.(type) {
	case media.Direct:
		// The element decides whether a load is needed; another slot may
		// have loaded a different source since this one last ran.
		if err := s.element.EnsureLoaded(src.URL); err != nil {
			log.Error().Err(err).Str("slot", s.slot.Phase).Msg("load failed")
			return
		}
		if err := s.element.SetMuted(!s.slot.Unmuted); err != nil {
			log.Warn().Err(err).Msg("set muted failed")
		}
		if err := s.element.SetLoop(s.slot.Loop); err != nil {
			log.Warn().Err(err).Msg("set loop failed")
		}
		s.setRate(nominalRate)
		if err := s.element.Seek(elapsed.Seconds()); err != nil {
			log.Warn().Err(err).Str("slot", s.slot.Phase).Msg("initial seek failed")
		}
		s.play()

	case media.Embedded:
		// The embed descriptor's start offset is the only alignment an
		// external player accepts; the element is recreated from scratch
		// on every trigger.
		if err := s.element.Load(src.EmbedURL); err != nil {
			log.Error().Err(err).Str("slot", s.slot.Phase).Msg("embed load failed")
			return
		}
		s.play()
	}

	s.appliedRef = ref
	s.appliedTrig = st.TriggerUnixMs
	s.state = StateStarting
	log.Info().
		Str("slot", s.slot.Phase).
		Str("ref", ref).
		Dur("elapsed", elapsed).
		Msg("playback starting")
}

func (s *Synchronizer) play() {
	err := s.element.Play()
	switch {
	case err == nil:
		s.pendingPlay = false
	case errors.Is(err, ErrPlaybackBlocked):
		// Should not happen behind the unlock gate, but platforms lie.
		s.pendingPlay = true
		log.Warn().Str("slot", s.slot.Phase).Msg("playback blocked, will retry after unlock")
	default:
		log.Error().Err(err).Str("slot", s.slot.Phase).Msg("play failed")
	}
}

// HandleEvent feeds an element lifecycle signal into the state machine.
func (s *Synchronizer) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev {
	case EventPlaying:
		switch s.state {
		case StateStarting:
			s.state = StateTracking
		case StateStalled:
			// Elapsed stall time is unknown precisely, so post-stall drift
			// is treated as tier 3 regardless of magnitude.
			s.state = StateTracking
			s.notifyBuffering(false)
			s.hardSeek()
		}
	case EventWaiting:
		if s.state == StateTracking || s.state == StateStarting {
			s.state = StateStalled
			s.stalledAt = s.clock.Now()
			s.stallKicked = false
			s.notifyBuffering(true)
		}
	case EventEnded:
		// A non-looping element holds its last frame; nothing to correct.
	}
}

// Tick runs one drift check. The owning controller calls it on a fixed
// interval; only direct sources in Tracking are corrected.
func (s *Synchronizer) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStalled:
		s.tickStalled()
		return
	case StateTracking:
	default:
		return
	}

	if _, ok := s.source.(media.Direct); !ok {
		return
	}

	pos, err := s.element.Position()
	if err != nil {
		log.Warn().Err(err).Str("slot", s.slot.Phase).Msg("position read failed")
		return
	}
	drift := pos - s.expected(s.cur).Seconds()

	c := correctionFor(drift, s.opts.Epsilon1, s.opts.Epsilon2)
	switch c.Action {
	case ActionNone:
		s.setRate(nominalRate)
	case ActionRate:
		s.setRate(c.Rate)
	case ActionSeek:
		log.Info().
			Str("slot", s.slot.Phase).
			Float64("drift", drift).
			Msg("drift beyond rate correction, seeking")
		s.hardSeek()
	}
}

// tickStalled runs the stall watchdog: past the bound, re-issue play once
// and keep surfacing the buffering indicator. No endless auto-retry.
func (s *Synchronizer) tickStalled() {
	if s.stallKicked || s.opts.StallTimeout <= 0 {
		return
	}
	if s.clock.Now().Sub(s.stalledAt) < s.opts.StallTimeout {
		return
	}
	s.stallKicked = true
	log.Warn().Str("slot", s.slot.Phase).Dur("stalled_for", s.opts.StallTimeout).Msg("stall timeout, re-issuing play")
	if err := s.element.Play(); err != nil {
		log.Error().Err(err).Str("slot", s.slot.Phase).Msg("stall recovery play failed")
	}
}

// hardSeek moves the play-head to the expected position and resets rate.
func (s *Synchronizer) hardSeek() {
	target := s.expected(s.cur)
	if err := s.element.Seek(target.Seconds()); err != nil {
		log.Warn().Err(err).Str("slot", s.slot.Phase).Msg("seek failed")
		return
	}
	s.setRate(nominalRate)
}

// expected is the play-head position implied by the trigger timestamp and
// the corrected clock, floored at zero.
func (s *Synchronizer) expected(st show.State) time.Duration {
	d := s.clock.Now().Sub(st.Trigger())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Synchronizer) setRate(rate float64) {
	if s.rate == rate {
		return
	}
	if err := s.element.SetRate(rate); err != nil {
		log.Warn().Err(err).Str("slot", s.slot.Phase).Msg("set rate failed")
		return
	}
	s.rate = rate
}

func (s *Synchronizer) notifyBuffering(buffering bool) {
	if s.OnBuffering != nil {
		s.OnBuffering(buffering)
	}
}
