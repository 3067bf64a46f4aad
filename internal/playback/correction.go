package playback

import "math"

// Playback rates used by the middle correction tier. A fixed small
// deviation from nominal absorbs ordinary clock and buffering noise
// without a visible jump-cut.
const (
	nominalRate  = 1.0
	slowDownRate = 0.95
	speedUpRate  = 1.05
)

// Action classifies the correction to apply for a measured drift.
type Action int

const (
	// ActionNone leaves the play-head alone at nominal rate.
	ActionNone Action = iota
	// ActionRate nudges the playback rate toward the expected position.
	ActionRate
	// ActionSeek hard-seeks the play-head to the expected position.
	ActionSeek
)

// Correction is the outcome of the three-tier drift policy.
type Correction struct {
	Action Action
	Rate   float64
}

// correctionFor maps a drift (actual minus expected position, seconds)
// onto the three-tier policy. Escalation is monotonic: drift that rate
// nudging can absorb never seeks, and drift large enough to be visually
// obvious never relies on rate nudging.
func correctionFor(drift, eps1, eps2 float64) Correction {
	abs := math.Abs(drift)
	switch {
	case abs <= eps1:
		return Correction{Action: ActionNone, Rate: nominalRate}
	case abs <= eps2:
		if drift > 0 {
			// Ahead of expected: let real time catch up.
			return Correction{Action: ActionRate, Rate: slowDownRate}
		}
		return Correction{Action: ActionRate, Rate: speedUpRate}
	default:
		return Correction{Action: ActionSeek, Rate: nominalRate}
	}
}
