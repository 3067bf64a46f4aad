package show

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"showsync/internal/bus"
)

// Bucket is the KV bucket holding the show record.
const Bucket = "showstate"

// The record lives under a single well-known key.
const stateKey = "current"

// Clock supplies the authoritative "now" used to stamp trigger timestamps.
// The hub passes its local clock; displays pass their skew-corrected clock.
type Clock interface {
	Now() time.Time
}

// Store is the replicated show-state record: a single key in a JetStream
// KV bucket. Watch gives every subscriber the current value plus every
// subsequent change in commit order, which is the whole consistency
// contract this system needs.
type Store struct {
	kv    bus.KeyValue
	clock Clock

	mu      sync.RWMutex
	last    State
	hasLast bool
}

// NewStore creates a store backed by the given bucket.
func NewStore(kv bus.KeyValue, clock Clock) *Store {
	return &Store{kv: kv, clock: clock}
}

// Current reads the record, initializing it with defaults if absent. On a
// transport error it falls back to the last-known-good state if one has
// been observed.
func (s *Store) Current(ctx context.Context) (State, error) {
	entry, err := s.kv.Get(ctx, stateKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		st := DefaultState(s.clock.Now())
		if err := s.put(ctx, st); err != nil {
			return State{}, fmt.Errorf("initialize show state: %w", err)
		}
		s.remember(st)
		return st, nil
	}
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.hasLast {
			log.Warn().Err(err).Msg("show state read failed, using last known state")
			return s.last, nil
		}
		return State{}, fmt.Errorf("read show state: %w", err)
	}

	var st State
	if err := json.Unmarshal(entry.Value(), &st); err != nil {
		return State{}, fmt.Errorf("decode show state: %w", err)
	}
	if st.normalize(s.clock.Now()) {
		if err := s.put(ctx, st); err != nil {
			log.Warn().Err(err).Msg("failed to heal show state record")
		}
	}
	s.remember(st)
	return st, nil
}

// Write merges a partial update into the record. TriggerUnixMs is restamped
// as part of the same write whenever the phase or any media slot changes,
// so a re-trigger of the current phase restarts playback everywhere.
func (s *Store) Write(ctx context.Context, p Partial) error {
	cur, err := s.Current(ctx)
	if err != nil {
		return err
	}

	stamp := false
	if p.Phase != nil {
		if PhaseRank(*p.Phase) < 0 {
			return fmt.Errorf("unknown phase %q", *p.Phase)
		}
		cur.Phase = *p.Phase
		stamp = true
	}
	if len(p.MediaRefs) > 0 {
		if cur.MediaRefs == nil {
			cur.MediaRefs = make(map[string]string)
		}
		for slot, ref := range p.MediaRefs {
			cur.MediaRefs[slot] = ref
		}
		stamp = true
	}
	if p.HeadlineText != nil {
		cur.HeadlineText = *p.HeadlineText
	}
	if p.SubtitleText != nil {
		cur.SubtitleText = *p.SubtitleText
	}
	if stamp {
		cur.TriggerUnixMs = s.clock.Now().UnixMilli()
	}

	if err := s.put(ctx, cur); err != nil {
		return fmt.Errorf("write show state: %w", err)
	}
	s.remember(cur)
	return nil
}

// SetPhase advances (or rewinds) the show to the given cue.
func (s *Store) SetPhase(ctx context.Context, phase string) error {
	return s.Write(ctx, Partial{Phase: &phase})
}

// SetMediaRefs updates the given media slots, leaving others untouched.
func (s *Store) SetMediaRefs(ctx context.Context, refs map[string]string) error {
	return s.Write(ctx, Partial{MediaRefs: refs})
}

// Reset rewrites the full default record.
func (s *Store) Reset(ctx context.Context) error {
	st := DefaultState(s.clock.Now())
	if err := s.put(ctx, st); err != nil {
		return fmt.Errorf("reset show state: %w", err)
	}
	s.remember(st)
	return nil
}

// Subscribe invokes handler once with the current record, creating it with
// defaults if absent, and again on every subsequent change, in commit
// order, until the returned stop function is called. The handler runs on
// the watch goroutine.
func (s *Store) Subscribe(ctx context.Context, handler func(State)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	w, err := s.kv.Watch(watchCtx, stateKey)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch show state: %w", err)
	}
	go s.consume(watchCtx, w, handler)
	return cancel, nil
}

func (s *Store) consume(ctx context.Context, w jetstream.KeyWatcher, handler func(State)) {
	defer w.Stop()

	seen := false
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.Updates():
			if !ok {
				s.rewatch(ctx, handler)
				return
			}
			if entry == nil {
				// End of initial values without a usable record: materialize
				// the defaults and let the watch deliver them.
				if !seen {
					s.initialize(ctx)
				}
				continue
			}
			if entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			var st State
			if err := json.Unmarshal(entry.Value(), &st); err != nil {
				log.Error().Err(err).Msg("ignoring undecodable show state")
				continue
			}
			if st.normalize(s.clock.Now()) {
				if err := s.put(ctx, st); err != nil {
					log.Warn().Err(err).Msg("failed to heal show state record")
				}
				// Deliver the healed shape now rather than waiting for the
				// echo of the heal write.
			}
			seen = true
			s.remember(st)
			handler(st)
		}
	}
}

// initialize writes the default record if none exists, or replaces one
// that cannot be decoded. It re-reads the key first so a write that raced
// the watch setup is not clobbered.
func (s *Store) initialize(ctx context.Context) {
	entry, err := s.kv.Get(ctx, stateKey)
	if err == nil {
		var st State
		if json.Unmarshal(entry.Value(), &st) == nil {
			// A racing write beat us; the watch delivers it.
			return
		}
		log.Warn().Msg("replacing undecodable show state record")
	} else if !errors.Is(err, jetstream.ErrKeyNotFound) {
		log.Error().Err(err).Msg("show state read failed during initialization")
		return
	}
	if err := s.put(ctx, DefaultState(s.clock.Now())); err != nil {
		log.Error().Err(err).Msg("failed to initialize show state")
	}
}

// rewatch re-establishes a dropped watch. The playback loop must never die
// with the transport; until the watch is back, the handler keeps whatever
// state it saw last.
func (s *Store) rewatch(ctx context.Context, handler func(State)) {
	const wait = 2 * time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Msg("show state watch lost, re-subscribing")

		w, err := s.kv.Watch(ctx, stateKey)
		if err == nil {
			go s.consume(ctx, w, handler)
			return
		}
		log.Error().Err(err).Msg("show state re-subscribe failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Store) put(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.kv.Put(ctx, stateKey, data)
	return err
}

func (s *Store) remember(st State) {
	s.mu.Lock()
	s.last = st
	s.hasLast = true
	s.mu.Unlock()
}
