package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestDegradedModeBeforeFirstBeacon(t *testing.T) {
	local := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	s := NewSync(local)

	if s.Synced() {
		t.Error("fresh sync reports synced")
	}
	if s.Offset() != 0 {
		t.Errorf("fresh offset = %v, want 0", s.Offset())
	}
	// Until a beacon arrives the display trusts its local clock.
	if !s.Now().Equal(local.Now()) {
		t.Errorf("Now() = %v, want local %v", s.Now(), local.Now())
	}
}

func TestObserveComputesOffset(t *testing.T) {
	tests := []struct {
		name       string
		localAhead time.Duration
	}{
		{"hub ahead of display", -3 * time.Second},
		{"display ahead of hub", 2 * time.Second},
		{"clocks agree", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
			s := NewSync(local)

			server := local.Now().Add(-tt.localAhead)
			s.observe(server.UnixMilli())

			if !s.Synced() {
				t.Fatal("observe did not mark the sync ready")
			}
			if got := s.Offset(); got != -tt.localAhead {
				t.Errorf("Offset() = %v, want %v", got, -tt.localAhead)
			}
			if !s.Now().Equal(server) {
				t.Errorf("Now() = %v, want server time %v", s.Now(), server)
			}
		})
	}
}

func TestOffsetTracksLatestBeacon(t *testing.T) {
	local := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	s := NewSync(local)

	s.observe(local.Now().Add(5 * time.Second).UnixMilli())
	if got := s.Offset(); got != 5*time.Second {
		t.Fatalf("first offset = %v", got)
	}

	// Each beacon replaces the estimate; there is no smoothing.
	local.Advance(time.Minute)
	s.observe(local.Now().Add(1 * time.Second).UnixMilli())
	if got := s.Offset(); got != 1*time.Second {
		t.Errorf("updated offset = %v, want 1s", got)
	}
}

func TestCorrectedNowAdvancesWithLocalClock(t *testing.T) {
	local := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	s := NewSync(local)
	s.observe(local.Now().Add(2 * time.Second).UnixMilli())

	before := s.Now()
	local.Advance(10 * time.Second)
	if got := s.Now().Sub(before); got != 10*time.Second {
		t.Errorf("corrected clock advanced %v for 10s of local time", got)
	}
}
