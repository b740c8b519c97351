package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slotter/internal/resolver"
	logx "slotter/pkg/logx"
)

type memStore struct {
	events []resolver.Event
	nextID int64

	listErr error
}

func (m *memStore) FetchPendingCandidates(_ context.Context, win resolver.Window) ([]resolver.Event, int, error) {
	var out []resolver.Event
	for _, e := range m.events {
		if e.Status == resolver.StatusPending && win.Covers(e) {
			out = append(out, e)
		}
	}
	return out, 0, nil
}

func (m *memStore) ApplyDecision(_ context.Context, d resolver.Decision) error {
	for i := range m.events {
		if m.events[i].Status != resolver.StatusPending {
			continue
		}
		if m.events[i].ID == d.WinnerID {
			m.events[i].Status = resolver.StatusConfirmed
		}
		for _, id := range d.LoserIDs {
			if m.events[i].ID == id {
				m.events[i].Status = resolver.StatusFailed
			}
		}
	}
	return nil
}

func (m *memStore) InsertEvent(_ context.Context, title string, start, end time.Time) (resolver.Event, error) {
	m.nextID++
	e := resolver.Event{ID: m.nextID, Title: title, Start: start, End: end, Status: resolver.StatusPending}
	m.events = append(m.events, e)
	return e, nil
}

func (m *memStore) ListEvents(_ context.Context, win resolver.Window) ([]resolver.Event, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []resolver.Event
	for _, e := range m.events {
		if win.Covers(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func testWindowFor(days int) resolver.Window {
	if days < 0 {
		days = 7
	}
	return resolver.ComputeWindow(testNow, days, time.UTC)
}

func testServer(t *testing.T, st *memStore, run RunFunc) *Server {
	t.Helper()
	if run == nil {
		run = func(context.Context) (*resolver.Report, error) {
			return &resolver.Report{Window: testWindowFor(-1), Lines: []string{"no events found", "run complete"}}, nil
		}
	}
	return New(Config{Addr: "127.0.0.1:0", RunRatePerMin: 600}, run, testWindowFor, st, logx.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := testServer(t, &memStore{}, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateEvent(t *testing.T) {
	st := &memStore{}
	s := testServer(t, st, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/events",
		`{"title":"standup","start":"2026-09-01T09:00:00Z","end":"2026-09-01T10:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got eventJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 1 || got.Status != "pending" || got.Title != "standup" {
		t.Fatalf("unexpected event: %+v", got)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/events", `{"title":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing times: status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, s.Handler(), http.MethodPost, "/events", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: status = %d, want 400", rec.Code)
	}
}

func TestListEvents(t *testing.T) {
	st := &memStore{}
	s := testServer(t, st, nil)
	if _, err := st.InsertEvent(context.Background(), "inside",
		time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.InsertEvent(context.Background(), "outside",
		time.Date(2026, 9, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Events []eventJSON `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Title != "inside" {
		t.Fatalf("events = %+v, want only the in-window one", resp.Events)
	}
}

func TestListEventsDaysParam(t *testing.T) {
	st := &memStore{}
	s := testServer(t, st, nil)
	// 2026-08-27 is two days ahead of the test clock: outside the default
	// 7-day window, inside ?days=2.
	if _, err := st.InsertEvent(context.Background(), "near",
		time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var resp struct {
		Events []eventJSON `json:"events"`
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("default: status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 0 {
		t.Fatalf("default window should not cover the near event, got %+v", resp.Events)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/events?days=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("days=2: status = %d", rec.Code)
	}
	resp.Events = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Title != "near" {
		t.Fatalf("days=2 window should cover the near event, got %+v", resp.Events)
	}

	for _, bad := range []string{"x", "-1", "1.5"} {
		rec = doJSON(t, s.Handler(), http.MethodGet, "/events?days="+bad, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("days=%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestRunEndpoint(t *testing.T) {
	st := &memStore{}
	s := testServer(t, st, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Lines) == 0 || resp.Lines[len(resp.Lines)-1] != "run complete" {
		t.Fatalf("lines = %v", resp.Lines)
	}
}

func TestRunEndpointIncludesEvents(t *testing.T) {
	st := &memStore{}
	win := resolver.ComputeWindow(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), 7, time.UTC)
	if _, err := st.InsertEvent(context.Background(), "solo",
		win.Start.Add(9*time.Hour), win.Start.Add(10*time.Hour)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	runner := resolver.NewRunner(st, resolver.Options{
		OffsetDays: 7,
		Location:   time.UTC,
		Now:        func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) },
	}, logx.Nop())
	s := testServer(t, st, runner.Run)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/run?include_events=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Confirmed int         `json:"confirmed"`
		Events    []eventJSON `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Confirmed != 1 {
		t.Fatalf("confirmed = %d, want 1", resp.Confirmed)
	}
	if len(resp.Events) != 1 || resp.Events[0].Status != "confirmed" {
		t.Fatalf("events = %+v, want the confirmed one", resp.Events)
	}
}

func TestRunEndpointConflict(t *testing.T) {
	s := testServer(t, &memStore{}, func(context.Context) (*resolver.Report, error) {
		return nil, resolver.ErrRunInProgress
	})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/run", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRunEndpointRateLimited(t *testing.T) {
	win := resolver.ComputeWindow(time.Now(), 7, time.UTC)
	run := func(context.Context) (*resolver.Report, error) {
		return &resolver.Report{Window: win}, nil
	}
	s := New(Config{Addr: "127.0.0.1:0", RunRatePerMin: 1}, run,
		func(int) resolver.Window { return win }, &memStore{}, logx.Nop())

	if rec := doJSON(t, s.Handler(), http.MethodPost, "/run", ""); rec.Code != http.StatusOK {
		t.Fatalf("first run: status = %d", rec.Code)
	}
	if rec := doJSON(t, s.Handler(), http.MethodPost, "/run", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second run: status = %d, want 429", rec.Code)
	}
}
