package presence

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"showsync/internal/bus"
)

func TestReadStatsEmptyBucket(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	stats, err := ReadStats(context.Background(), kv)
	if err != nil {
		t.Fatalf("ReadStats: %v", err)
	}
	if stats.Online != 0 || stats.Offline != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestReadStatsCountsByFlag(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	records := map[string]Record{
		"a": {Online: true, ConnectedAtMs: now, LastSeenMs: now},
		"b": {Online: true, ConnectedAtMs: now, LastSeenMs: now},
		"c": {Online: false, ConnectedAtMs: now, LastSeenMs: now},
	}
	for id, rec := range records {
		if err := WriteRecord(ctx, kv, id, rec); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := ReadStats(ctx, kv)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Online != 2 || stats.Offline != 1 {
		t.Errorf("stats = %+v, want online=2 offline=1", stats)
	}
}

func TestMarkOfflinePreservesConnectedAt(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	ctx := context.Background()

	connected := time.UnixMilli(1700000000000)
	rec := Record{Online: true, ConnectedAtMs: connected.UnixMilli(), LastSeenMs: connected.UnixMilli()}
	if err := WriteRecord(ctx, kv, "sess", rec); err != nil {
		t.Fatal(err)
	}

	gone := connected.Add(time.Minute)
	if err := MarkOffline(ctx, kv, "sess", gone); err != nil {
		t.Fatal(err)
	}

	got, err := ReadRecord(ctx, kv, "sess")
	if err != nil {
		t.Fatal(err)
	}
	if got.Online {
		t.Error("record still online")
	}
	if got.ConnectedAtMs != connected.UnixMilli() {
		t.Errorf("ConnectedAt changed: %d", got.ConnectedAtMs)
	}
	if got.LastSeenMs != gone.UnixMilli() {
		t.Errorf("LastSeen = %d, want %d", got.LastSeenMs, gone.UnixMilli())
	}
}

func TestTrackerLifecycle(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	clk := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	ctx := context.Background()

	tr := NewTracker(kv, clk, clk)
	if err := tr.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Register is idempotent per session.
	if err := tr.Register(ctx); err != nil {
		t.Fatalf("second Register: %v", err)
	}

	rec, err := ReadRecord(ctx, kv, tr.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Online {
		t.Error("registered session should be online")
	}

	stats, _ := ReadStats(ctx, kv)
	if stats.Online != 1 || stats.Offline != 0 {
		t.Errorf("stats after register = %+v", stats)
	}

	if err := tr.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// The record flips offline; the total is unchanged.
	stats, _ = ReadStats(ctx, kv)
	if stats.Online != 0 || stats.Offline != 1 {
		t.Errorf("stats after close = %+v", stats)
	}
}

func TestSweeperFlipsStaleRecords(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	clk := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	ctx := context.Background()

	now := clk.Now().UnixMilli()
	stale := clk.Now().Add(-time.Minute).UnixMilli()
	writeAll := map[string]Record{
		"fresh":   {Online: true, ConnectedAtMs: now, LastSeenMs: now},
		"stale":   {Online: true, ConnectedAtMs: stale, LastSeenMs: stale},
		"already": {Online: false, ConnectedAtMs: stale, LastSeenMs: stale},
	}
	for id, rec := range writeAll {
		if err := WriteRecord(ctx, kv, id, rec); err != nil {
			t.Fatal(err)
		}
	}

	sw := NewSweeper(kv, clk, 30*time.Second, 15*time.Second)
	flipped, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("flipped %d records, want 1", flipped)
	}

	for id, wantOnline := range map[string]bool{"fresh": true, "stale": false, "already": false} {
		rec, err := ReadRecord(ctx, kv, id)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Online != wantOnline {
			t.Errorf("%s online = %v, want %v", id, rec.Online, wantOnline)
		}
	}
}

func TestTrackerStampsWithCorrectedClock(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	ctx := context.Background()

	// Local clock lags the corrected (hub-aligned) clock by 40s.
	local := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	corrected := clockwork.NewFakeClockAt(local.Now().Add(40 * time.Second))

	tr := NewTracker(kv, local, corrected)
	if err := tr.Register(ctx); err != nil {
		t.Fatal(err)
	}
	defer tr.Close(ctx)

	rec, err := ReadRecord(ctx, kv, tr.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if rec.LastSeenMs != corrected.Now().UnixMilli() {
		t.Errorf("LastSeen = %d, want corrected time %d", rec.LastSeenMs, corrected.Now().UnixMilli())
	}
	if rec.ConnectedAtMs != corrected.Now().UnixMilli() {
		t.Errorf("ConnectedAt = %d, want corrected time %d", rec.ConnectedAtMs, corrected.Now().UnixMilli())
	}
}

func TestSweeperToleratesSkewedDisplayClock(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	ctx := context.Background()

	hubClk := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	// The display's local clock lags the hub by 25s, which is more than
	// ttl minus heartbeat; its corrected clock matches the hub.
	local := clockwork.NewFakeClockAt(hubClk.Now().Add(-25 * time.Second))
	corrected := clockwork.NewFakeClockAt(hubClk.Now())

	tr := NewTracker(kv, local, corrected)
	if err := tr.Register(ctx); err != nil {
		t.Fatal(err)
	}
	defer tr.Close(ctx)

	sw := NewSweeper(kv, hubClk, 30*time.Second, 15*time.Second)
	flipped, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if flipped != 0 {
		t.Fatal("heartbeating display with a lagging local clock was swept")
	}
	rec, err := ReadRecord(ctx, kv, tr.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Online {
		t.Error("record flipped offline despite live heartbeats")
	}
}

func TestSweeperBoundaryNotStale(t *testing.T) {
	kv := bus.NewMemKV(Bucket)
	clk := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	ctx := context.Background()

	// LastSeen exactly ttl ago is still considered alive.
	seen := clk.Now().Add(-30 * time.Second).UnixMilli()
	if err := WriteRecord(ctx, kv, "edge", Record{Online: true, ConnectedAtMs: seen, LastSeenMs: seen}); err != nil {
		t.Fatal(err)
	}

	sw := NewSweeper(kv, clk, 30*time.Second, 15*time.Second)
	flipped, err := sw.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if flipped != 0 {
		t.Errorf("boundary record swept, want kept")
	}
}
