// Package presence tracks display liveness. Each connection owns exactly
// one record in the presence bucket; the aggregator only ever reads the
// set. Records are flipped offline rather than deleted so the stats can
// distinguish "ever connected, now gone" from "never connected".
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"showsync/internal/bus"
)

// Bucket is the KV bucket holding presence records.
const Bucket = "presence"

// Record is one connection's liveness marker, keyed by an opaque session
// id generated per connection. Reconnecting creates a new record; no
// deduplication by device identity is attempted.
type Record struct {
	Online        bool  `json:"online"`
	ConnectedAtMs int64 `json:"connected_at_ms"`
	LastSeenMs    int64 `json:"last_seen_ms"`
}

// Stats is the aggregate online/offline count.
type Stats struct {
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// WriteRecord stores a presence record under the given session id.
func WriteRecord(ctx context.Context, kv bus.KeyValue, sessionID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := kv.Put(ctx, sessionID, data); err != nil {
		return fmt.Errorf("write presence record %s: %w", sessionID, err)
	}
	return nil
}

// ReadRecord loads the presence record for a session id.
func ReadRecord(ctx context.Context, kv bus.KeyValue, sessionID string) (Record, error) {
	entry, err := kv.Get(ctx, sessionID)
	if err != nil {
		return Record{}, fmt.Errorf("read presence record %s: %w", sessionID, err)
	}
	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return Record{}, fmt.Errorf("decode presence record %s: %w", sessionID, err)
	}
	return rec, nil
}

// ReadStats scans all known records and counts by the online flag.
func ReadStats(ctx context.Context, kv bus.KeyValue) (Stats, error) {
	lister, err := kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("list presence records: %w", err)
	}
	defer lister.Stop()

	var stats Stats
	for key := range lister.Keys() {
		rec, err := ReadRecord(ctx, kv, key)
		if err != nil {
			continue
		}
		if rec.Online {
			stats.Online++
		} else {
			stats.Offline++
		}
	}
	return stats, nil
}

// MarkOffline flips a session's record offline, preserving ConnectedAt.
func MarkOffline(ctx context.Context, kv bus.KeyValue, sessionID string, now time.Time) error {
	rec, err := ReadRecord(ctx, kv, sessionID)
	if err != nil {
		return err
	}
	rec.Online = false
	rec.LastSeenMs = now.UnixMilli()
	return WriteRecord(ctx, kv, sessionID, rec)
}
