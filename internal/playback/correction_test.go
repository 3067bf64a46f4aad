package playback

import "testing"

func TestCorrectionFor(t *testing.T) {
	const eps1, eps2 = 0.05, 1.5

	tests := []struct {
		name       string
		drift      float64
		wantAction Action
		wantRate   float64
	}{
		{"zero drift", 0, ActionNone, 1.0},
		{"within dead zone positive", 0.04, ActionNone, 1.0},
		{"within dead zone negative", -0.05, ActionNone, 1.0},
		{"moderately ahead slows down", 0.5, ActionRate, 0.95},
		{"moderately behind speeds up", -0.5, ActionRate, 1.05},
		{"at rate ceiling ahead", 1.5, ActionRate, 0.95},
		{"at rate ceiling behind", -1.5, ActionRate, 1.05},
		{"far ahead seeks", 2.0, ActionSeek, 1.0},
		{"far behind seeks", -10.0, ActionSeek, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := correctionFor(tt.drift, eps1, eps2)
			if c.Action != tt.wantAction {
				t.Errorf("drift %v: expected action %v, got %v", tt.drift, tt.wantAction, c.Action)
			}
			if c.Rate != tt.wantRate {
				t.Errorf("drift %v: expected rate %v, got %v", tt.drift, tt.wantRate, c.Rate)
			}
		})
	}
}

// Escalation must be monotonic: walking drift outward from zero never goes
// from a stronger correction back to a weaker one.
func TestCorrectionEscalationMonotonic(t *testing.T) {
	const eps1, eps2 = 0.05, 1.5

	prev := ActionNone
	for drift := 0.0; drift <= 3.0; drift += 0.01 {
		c := correctionFor(drift, eps1, eps2)
		if c.Action < prev {
			t.Fatalf("correction de-escalated at drift %v: %v after %v", drift, c.Action, prev)
		}
		prev = c.Action
	}
}
