package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"slotter/internal/resolver"
	"slotter/internal/store"
	logx "slotter/pkg/logx"
)

type eventJSON struct {
	ID     int64     `json:"id"`
	Title  string    `json:"title,omitempty"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

type runResponse struct {
	*resolver.Report
	Events []eventJSON `json:"events,omitempty"`
}

type createEventRequest struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "run rate exceeded", http.StatusTooManyRequests)
		return
	}

	rep, err := s.run(r.Context())
	if errors.Is(err, resolver.ErrRunInProgress) {
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	}
	if err != nil {
		s.log.Error("on-demand run failed", logx.Err(err))
		http.Error(w, "run failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := runResponse{Report: rep}
	if r.URL.Query().Get("include_events") == "1" {
		events, err := s.store.ListEvents(r.Context(), rep.Window)
		if err != nil {
			// The run itself succeeded; report it without the listing.
			s.log.Warn("post-run listing failed", logx.Err(err))
		} else {
			resp.Events = toEventJSON(events)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	days := -1 // configured default
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = v
	}
	win := s.window(days)
	events, err := s.store.ListEvents(r.Context(), win)
	if err != nil {
		http.Error(w, "listing failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": win,
		"events": toEventJSON(events),
	})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Start.IsZero() || req.End.IsZero() {
		http.Error(w, "start and end are required (RFC 3339)", http.StatusBadRequest)
		return
	}

	e, err := s.store.InsertEvent(r.Context(), req.Title, req.Start, req.End)
	if errors.Is(err, store.ErrInvalidSpan) {
		http.Error(w, "start must precede end", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "create failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toEventJSON([]resolver.Event{e})[0])
}

func toEventJSON(events []resolver.Event) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{
			ID:     e.ID,
			Title:  e.Title,
			Start:  e.Start,
			End:    e.End,
			Status: string(e.Status),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
