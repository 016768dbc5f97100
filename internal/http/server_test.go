package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wastewise/internal/cache"
	"wastewise/internal/core"
	wlog "wastewise/internal/log"
	"wastewise/internal/memory"
	"wastewise/internal/services"
)

type testServer struct {
	*Server
	store *memory.Store
}

func dayOffset(days int) core.Date {
	today := core.DateOf(time.Now().UTC())
	return core.Date{Time: today.AddDate(0, 0, days)}
}

func testChallenges() []core.Challenge {
	return []core.Challenge{
		{
			ID: "active-landfill", Title: "Less landfill", Category: core.Landfill,
			StartDate: dayOffset(-3), EndDate: dayOffset(3), TargetReduction: 2,
		},
		{
			ID: "upcoming-compost", Title: "Compost more", Category: core.Compostable,
			StartDate: dayOffset(5), EndDate: dayOffset(12), TargetReduction: 1,
		},
		{
			ID: "broken", Title: "Broken", Category: core.Recyclable,
			StartDate: dayOffset(-1), EndDate: dayOffset(1), TargetReduction: 0,
		},
	}
}

func newTestServer(t *testing.T, mutate func(*Options)) *testServer {
	t.Helper()

	store := memory.New(testChallenges())
	summaries := cache.NewLRUCache[services.Dashboard](10, time.Minute)
	dashboard := services.NewDashboardService(store, summaries)

	opts := Options{
		Logs:             services.NewLogService(store, nil, dashboard, time.UTC),
		Dashboard:        dashboard,
		Challenges:       services.NewChallengeService(store, store, store, time.UTC),
		SummaryCacheSize: summaries.Size,
		Logger:           wlog.NewTextLogger(io.Discard, slog.LevelError, "test"),
	}
	if mutate != nil {
		mutate(&opts)
	}

	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: store}
}

func (ts *testServer) do(method, path, userID, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCreateLogAndSummary(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/logs", "alice",
		`{"category":"Landfill","item_name":"wrappers","quantity":1.5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created entryJSON
	decode(t, rec, &created)
	if created.ID == "" || created.Category != core.Landfill || created.Quantity != 1.5 {
		t.Errorf("created = %+v", created)
	}
	if created.Date.String() != dayOffset(0).String() {
		t.Errorf("date = %s, want today", created.Date)
	}

	rec = ts.do(http.MethodPost, "/api/logs", "alice",
		`{"category":"recyclable","item_name":"cans","quantity":"0,5","date":"`+dayOffset(-1).String()+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create status = %d, body %s", rec.Code, rec.Body)
	}

	rec = ts.do(http.MethodGet, "/api/summary", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var got struct {
		Summary struct {
			Daily      []core.DailySummary    `json:"daily"`
			ByCategory []core.CategorySummary `json:"by_category"`
			Total      float64                `json:"total_quantity"`
			MostCommon string                 `json:"most_common_category"`
		} `json:"summary"`
		Recent []entryJSON `json:"recent"`
	}
	decode(t, rec, &got)

	if got.Summary.Total != 2 {
		t.Errorf("total = %v, want 2", got.Summary.Total)
	}
	if got.Summary.MostCommon != "Landfill" {
		t.Errorf("most common = %q, want Landfill", got.Summary.MostCommon)
	}
	if len(got.Summary.Daily) != 2 || got.Summary.Daily[0].Date.String() != dayOffset(-1).String() {
		t.Errorf("daily = %+v, want two dates ascending", got.Summary.Daily)
	}
	if len(got.Recent) != 2 || got.Recent[0].ID != created.ID {
		t.Errorf("recent = %+v, want newest first", got.Recent)
	}

	// Another user sees nothing.
	rec = ts.do(http.MethodGet, "/api/summary", "bob", "")
	var empty struct {
		Summary map[string]any `json:"summary"`
		Recent  []entryJSON    `json:"recent"`
	}
	decode(t, rec, &empty)
	if empty.Summary["total_quantity"] != float64(0) || len(empty.Recent) != 0 {
		t.Errorf("bob summary = %+v", empty)
	}
	if _, ok := empty.Summary["most_common_category"]; ok {
		t.Error("empty log reports a most common category")
	}
}

func TestCreateLogErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		userID    string
		body      string
		wantCode  int
		wantField string
	}{
		{name: "missing user", body: `{"category":"Landfill","item_name":"x","quantity":1}`, wantCode: http.StatusBadRequest},
		{name: "malformed json", userID: "alice", body: `{"category":`, wantCode: http.StatusBadRequest},
		{name: "unknown category", userID: "alice", body: `{"category":"Plastic","item_name":"x","quantity":1}`, wantCode: http.StatusUnprocessableEntity, wantField: "category"},
		{name: "negative quantity", userID: "alice", body: `{"category":"Landfill","item_name":"x","quantity":-1}`, wantCode: http.StatusUnprocessableEntity, wantField: "quantity"},
		{name: "bad date", userID: "alice", body: `{"category":"Landfill","item_name":"x","quantity":1,"date":"10/06/2024"}`, wantCode: http.StatusUnprocessableEntity, wantField: "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/logs", tt.userID, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			var body errorBody
			decode(t, rec, &body)
			if body.Error == "" {
				t.Error("expected error message")
			}
			if body.Field != tt.wantField {
				t.Errorf("field = %q, want %q", body.Field, tt.wantField)
			}
		})
	}
}

func TestListLogs(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, offset := range []int{-5, -2, 0} {
		body := `{"category":"Compostable","item_name":"peels","quantity":1,"date":"` + dayOffset(offset).String() + `"}`
		if rec := ts.do(http.MethodPost, "/api/logs", "alice", body); rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	rec := ts.do(http.MethodGet, "/api/logs?from="+dayOffset(-3).String(), "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var got struct {
		Entries []entryJSON `json:"entries"`
	}
	decode(t, rec, &got)
	if len(got.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(got.Entries))
	}
	if got.Entries[0].Date.After(got.Entries[1].Date) {
		t.Errorf("entries not ascending: %+v", got.Entries)
	}

	if rec := ts.do(http.MethodGet, "/api/logs?limit=abc", "alice", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
	inverted := "/api/logs?from=" + dayOffset(0).String() + "&to=" + dayOffset(-1).String()
	if rec := ts.do(http.MethodGet, inverted, "alice", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted range status = %d, want 422", rec.Code)
	}
}

func TestChallengeBoardAndParticipation(t *testing.T) {
	ts := newTestServer(t, nil)

	if rec := ts.do(http.MethodPost, "/api/logs", "alice", `{"category":"Landfill","item_name":"bags","quantity":1}`); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	path := "/api/challenges/active-landfill/participation"
	if rec := ts.do(http.MethodPost, path, "alice", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("join status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := ts.do(http.MethodPost, path, "alice", ""); rec.Code != http.StatusConflict {
		t.Errorf("second join status = %d, want 409", rec.Code)
	}

	rec := ts.do(http.MethodGet, "/api/challenges", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("board status = %d", rec.Code)
	}
	var board struct {
		Challenges []cardJSON `json:"challenges"`
	}
	decode(t, rec, &board)
	if len(board.Challenges) != 3 {
		t.Fatalf("cards = %d, want 3", len(board.Challenges))
	}

	cards := make(map[string]cardJSON)
	for _, c := range board.Challenges {
		cards[c.ID] = c
	}

	active := cards["active-landfill"]
	if !active.Participating || active.JoinedAt == nil {
		t.Errorf("active card = %+v, want participating", active)
	}
	if active.Progress == nil || active.Progress.Achieved != 1 || active.Progress.Percent != 50 {
		t.Errorf("active progress = %+v, want 1 kg / 50%%", active.Progress)
	}
	if active.Status != core.StatusActive {
		t.Errorf("active status = %v", active.Status)
	}

	broken := cards["broken"]
	if broken.Error == "" || broken.Progress != nil {
		t.Errorf("broken card = %+v, want error and no progress", broken)
	}
	if cards["upcoming-compost"].Status != core.StatusUpcoming {
		t.Errorf("upcoming status = %v", cards["upcoming-compost"].Status)
	}

	if rec := ts.do(http.MethodDelete, path, "alice", ""); rec.Code != http.StatusNoContent {
		t.Errorf("leave status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodDelete, path, "alice", ""); rec.Code != http.StatusConflict {
		t.Errorf("second leave status = %d, want 409", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/challenges/upcoming-compost/participation", "alice", ""); rec.Code != http.StatusConflict {
		t.Errorf("join upcoming status = %d, want 409", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/challenges/nope/participation", "alice", ""); rec.Code != http.StatusNotFound {
		t.Errorf("join unknown status = %d, want 404", rec.Code)
	}
}

func TestRoutingErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/unknown", "alice", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("404 content type = %q", ct)
	}

	allowed := []struct {
		method, path, want string
	}{
		{http.MethodPut, "/api/logs", "GET, POST"},
		{http.MethodGet, "/api/challenges/jan/participation", "DELETE, POST"},
		{http.MethodPost, "/healthz", "GET, HEAD"},
	}
	for _, tt := range allowed {
		rec = ts.do(tt.method, tt.path, "alice", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want 405", tt.method, tt.path, rec.Code)
		}
		if got := rec.Header().Get("Allow"); got != tt.want {
			t.Errorf("%s %s Allow = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, nil)
	if rec := ts.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}

	versioned := newTestServer(t, func(o *Options) {
		o.SchemaVersion = func() uint { return 1 }
	})
	var ready struct {
		Checks map[string]any `json:"checks"`
	}
	decode(t, versioned.do(http.MethodGet, "/readyz", "", ""), &ready)
	if v, ok := ready.Checks["schema_version"].(float64); !ok || v != 1 {
		t.Errorf("readyz schema_version = %v, want 1", ready.Checks["schema_version"])
	}

	failing := newTestServer(t, func(o *Options) {
		o.Ping = func(context.Context) error { return errors.New("database is locked") }
	})
	rec := failing.do(http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing readyz status = %d, want 503", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Error("readiness body leaks store error detail")
	}
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(http.MethodPost, "/api/logs", "alice", `{"category":"Landfill","item_name":"x","quantity":1}`)
	ts.do(http.MethodGet, "/api/summary", "alice", "")

	rec := ts.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"waste_log_entries_created_total 1\n",
		"summary_cache_entries 1\n",
		"# TYPE http_requests_total counter",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.RateLimitPerMinute = 2 })
	body := `{"category":"Landfill","item_name":"x","quantity":1}`

	for i := 0; i < 2; i++ {
		if rec := ts.do(http.MethodPost, "/api/logs", "alice", body); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := ts.do(http.MethodPost, "/api/logs", "alice", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third POST status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if rec := ts.do(http.MethodGet, "/api/logs", "alice", ""); rec.Code != http.StatusOK {
		t.Errorf("GET after limit status = %d, want 200", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/logs", "bob", body); rec.Code != http.StatusCreated {
		t.Errorf("other user status = %d, want 201", rec.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want echo", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/logs", nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}
