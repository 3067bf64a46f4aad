package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

func nextEntry(t *testing.T, w jetstream.KeyWatcher) jetstream.KeyValueEntry {
	t.Helper()
	select {
	case e := <-w.Updates():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch update")
		return nil
	}
}

func TestMemKVGetMissingKey(t *testing.T) {
	kv := NewMemKV("test")
	if _, err := kv.Get(context.Background(), "absent"); !errors.Is(err, jetstream.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemKVPutGetRoundTrip(t *testing.T) {
	kv := NewMemKV("test")
	ctx := context.Background()

	rev1, err := kv.Put(ctx, "k", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	rev2, err := kv.Put(ctx, "k", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if rev2 <= rev1 {
		t.Errorf("revisions not monotonic: %d then %d", rev1, rev2)
	}

	entry, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(entry.Value()) != "two" {
		t.Errorf("value = %q, want last write", entry.Value())
	}
	if entry.Bucket() != "test" || entry.Key() != "k" {
		t.Errorf("entry identity = %s/%s", entry.Bucket(), entry.Key())
	}
}

func TestMemKVWatchDeliversInitialMarkerThenUpdates(t *testing.T) {
	kv := NewMemKV("test")
	ctx := context.Background()

	kv.Put(ctx, "k", []byte("before"))

	w, err := kv.Watch(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if e := nextEntry(t, w); e == nil || string(e.Value()) != "before" {
		t.Fatalf("expected initial value, got %v", e)
	}
	if e := nextEntry(t, w); e != nil {
		t.Fatalf("expected nil end-of-initial marker, got %v", e)
	}

	kv.Put(ctx, "k", []byte("after"))
	if e := nextEntry(t, w); e == nil || string(e.Value()) != "after" {
		t.Fatalf("expected update, got %v", e)
	}
}

func TestMemKVWatchPatternFiltersKeys(t *testing.T) {
	kv := NewMemKV("test")
	ctx := context.Background()

	w, err := kv.Watch(ctx, "wanted")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if e := nextEntry(t, w); e != nil {
		t.Fatalf("expected empty initial set marker, got %v", e)
	}

	kv.Put(ctx, "other", []byte("x"))
	kv.Put(ctx, "wanted", []byte("y"))

	if e := nextEntry(t, w); e == nil || e.Key() != "wanted" {
		t.Fatalf("expected only the watched key, got %v", e)
	}
}

func TestMemKVListKeys(t *testing.T) {
	kv := NewMemKV("test")
	ctx := context.Background()
	kv.Put(ctx, "a", []byte("1"))
	kv.Put(ctx, "b", []byte("2"))

	lister, err := kv.ListKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer lister.Stop()

	got := map[string]bool{}
	for k := range lister.Keys() {
		got[k] = true
	}
	if !got["a"] || !got["b"] || len(got) != 2 {
		t.Errorf("keys = %v", got)
	}
}
