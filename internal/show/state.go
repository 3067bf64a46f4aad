package show

import "time"

// Phases form the total order of cues the operator steps through during a
// show. The set is deployment-specific in principle; these four are the
// defaults and double as the media slot names.
const (
	PhaseWaiting      = "waiting"
	PhaseCountdown    = "countdown"
	PhaseTriggerReady = "trigger_ready"
	PhaseActivated    = "activated"
)

var phaseOrder = []string{PhaseWaiting, PhaseCountdown, PhaseTriggerReady, PhaseActivated}

// Phases returns the ordered cue list.
func Phases() []string {
	out := make([]string, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// PhaseRank returns the position of a phase in the cue order, or -1 for an
// unknown phase.
func PhaseRank(phase string) int {
	for i, p := range phaseOrder {
		if p == phase {
			return i
		}
	}
	return -1
}

// State is the single authoritative show record, replicated to every
// display. Exactly one exists per deployment; only the operator writes it.
type State struct {
	Phase         string            `json:"phase"`
	MediaRefs     map[string]string `json:"media_refs"`
	TriggerUnixMs int64             `json:"trigger_unix_ms"`

	// Display-only text, opaque to the sync core. Round-trips unchanged.
	HeadlineText string `json:"headline_text,omitempty"`
	SubtitleText string `json:"subtitle_text,omitempty"`
}

// Default clip URLs, used until the operator configures slots.
const (
	defaultCountdownURL = "https://assets.mixkit.co/videos/preview/mixkit-mechanical-digital-countdown-timer-2342-large.mp4"
	defaultActivatedURL = "https://assets.mixkit.co/videos/preview/mixkit-abstract-glowing-particles-background-vj-loop-4663-large.mp4"
)

// DefaultState returns the record a fresh deployment starts from.
func DefaultState(now time.Time) State {
	return State{
		Phase: PhaseWaiting,
		MediaRefs: map[string]string{
			PhaseCountdown: defaultCountdownURL,
			PhaseActivated: defaultActivatedURL,
		},
		TriggerUnixMs: now.UnixMilli(),
	}
}

// MediaRef returns the media reference for a phase slot, or "" if unset.
func (s State) MediaRef(phase string) string {
	if s.MediaRefs == nil {
		return ""
	}
	return s.MediaRefs[phase]
}

// Trigger returns the trigger timestamp as a time.Time.
func (s State) Trigger() time.Time {
	return time.UnixMilli(s.TriggerUnixMs)
}

// normalize merges schema defaults into a partially-initialized record so
// subscribers never observe a half-built shape. Reports whether anything
// changed, in which case the caller rewrites the record (self-healing).
func (s *State) normalize(now time.Time) bool {
	changed := false
	if PhaseRank(s.Phase) < 0 {
		s.Phase = PhaseWaiting
		changed = true
	}
	if s.MediaRefs == nil {
		s.MediaRefs = make(map[string]string)
	}
	def := DefaultState(now)
	for slot, ref := range def.MediaRefs {
		if _, ok := s.MediaRefs[slot]; !ok {
			s.MediaRefs[slot] = ref
			changed = true
		}
	}
	if s.TriggerUnixMs == 0 {
		s.TriggerUnixMs = now.UnixMilli()
		changed = true
	}
	return changed
}

// Partial is a partial update of the show record. Nil fields are left
// untouched by Write.
type Partial struct {
	Phase        *string
	MediaRefs    map[string]string
	HeadlineText *string
	SubtitleText *string
}
