package hub

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"showsync/internal/presence"
)

// RegisterRoutes mounts the hub's HTTP surface on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/display", s.handleDisplay)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/presence", s.handlePresence)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// handleDisplay upgrades a browser display and immediately sends it the
// current state, clock, and presence snapshot so it can start playing
// without waiting for the next change.
func (s *Service) handleDisplay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.cm.Upgrade(w, r)
	if err != nil {
		log.Error().Err(err).Msg("display upgrade failed")
		return
	}

	now := s.clock.Now()
	if ev, err := NewClockEvent(now); err == nil {
		s.cm.SendTo(conn, ev)
	}
	if st, err := s.store.Current(r.Context()); err == nil {
		if ev, err := NewStateEvent(now, st); err == nil {
			s.cm.SendTo(conn, ev)
		}
	}
	if stats, err := presence.ReadStats(r.Context(), s.presenceKV); err == nil {
		if ev, err := NewPresenceEvent(now, stats); err == nil {
			s.cm.SendTo(conn, ev)
		}
	}
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := s.store.Current(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, st)
}

func (s *Service) handlePresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := presence.ReadStats(r.Context(), s.presenceKV)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}
