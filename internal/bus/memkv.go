package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// MemKV is an in-memory KeyValue used by tests and single-process demos.
// It mirrors the parts of JetStream KV semantics the stores rely on:
// last-writer-wins puts with monotonic revisions, and watchers that
// receive current values, a nil marker, then subsequent updates.
type MemKV struct {
	bucket string

	mu       sync.Mutex
	data     map[string]memEntry
	rev      uint64
	watchers []*memWatcher

	// FailGets forces Get to return an error, for transport-failure tests.
	FailGets bool
}

// NewMemKV creates an empty in-memory bucket.
func NewMemKV(bucket string) *MemKV {
	return &MemKV{
		bucket: bucket,
		data:   make(map[string]memEntry),
	}
}

var errMemKVUnavailable = errors.New("kv unavailable")

func (m *MemKV) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGets {
		return nil, errMemKVUnavailable
	}
	e, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return e, nil
}

func (m *MemKV) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	m.rev++
	e := memEntry{
		bucket:   m.bucket,
		key:      key,
		value:    append([]byte(nil), value...),
		revision: m.rev,
		created:  time.Now(),
	}
	m.data[key] = e
	watchers := make([]*memWatcher, len(m.watchers))
	copy(watchers, m.watchers)
	m.mu.Unlock()

	for _, w := range watchers {
		w.notify(e)
	}
	return e.revision, nil
}

func (m *MemKV) Watch(ctx context.Context, keys string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	w := &memWatcher{
		kv:      m,
		pattern: keys,
		ch:      make(chan jetstream.KeyValueEntry, 64),
	}

	m.mu.Lock()
	for _, e := range m.data {
		if w.matches(e.key) {
			w.ch <- e
		}
	}
	// nil marks the end of initial values, as JetStream does
	w.ch <- nil
	m.watchers = append(m.watchers, w)
	m.mu.Unlock()

	return w, nil
}

func (m *MemKV) ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	ch := make(chan string, len(keys))
	for _, k := range keys {
		ch <- k
	}
	close(ch)
	return &memLister{ch: ch}, nil
}

func (m *MemKV) removeWatcher(w *memWatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, other := range m.watchers {
		if other == w {
			m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
			break
		}
	}
}

type memEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e memEntry) Bucket() string                  { return e.bucket }
func (e memEntry) Key() string                     { return e.key }
func (e memEntry) Value() []byte                   { return e.value }
func (e memEntry) Revision() uint64                { return e.revision }
func (e memEntry) Created() time.Time              { return e.created }
func (e memEntry) Delta() uint64                   { return 0 }
func (e memEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

type memWatcher struct {
	kv      *MemKV
	pattern string
	ch      chan jetstream.KeyValueEntry

	mu      sync.Mutex
	stopped bool
}

func (w *memWatcher) matches(key string) bool {
	if w.pattern == ">" || w.pattern == "*" {
		return true
	}
	if strings.HasSuffix(w.pattern, ".>") {
		return strings.HasPrefix(key, strings.TrimSuffix(w.pattern, ">"))
	}
	return key == w.pattern
}

func (w *memWatcher) notify(e memEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.matches(e.key) {
		return
	}
	select {
	case w.ch <- e:
	default:
	}
}

func (w *memWatcher) Updates() <-chan jetstream.KeyValueEntry { return w.ch }

func (w *memWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	w.kv.removeWatcher(w)
	close(w.ch)
	return nil
}

type memLister struct{ ch chan string }

func (l *memLister) Keys() <-chan string { return l.ch }
func (l *memLister) Stop() error         { return nil }
