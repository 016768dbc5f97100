package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelInfo, ComponentWorker)

	logger.Info("hello", FieldEntryID, "e1")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=worker") || !strings.Contains(out, "entry_id=e1") {
		t.Fatalf("unexpected output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %s", out)
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelInfo, ComponentHTTP)

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Fatalf("FromContext returned %v, want injected logger", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("FromContext without logger should fall back to default")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewTextLogger(&buf, slog.LevelInfo, ComponentApp))

	sl.LogEntryCreated(context.Background(), "e1", "u1", "Recyclable", "bottle", 0.5, "2024-01-01")
	sl.LogParticipation(context.Background(), OpJoin, "c1", "u1")
	sl.LogError(context.Background(), "boom", errors.New("bad"), ComponentStorage, OpSync, NewFields().WithErrorType(ErrorTypeDatabase))

	out := buf.String()
	for _, want := range []string{"entry_id=e1", "quantity_kg=0.5", "challenge_id=c1", "operation=join", "error=bad", "error_type=database_error"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestComponentLoggedOncePerRecord(t *testing.T) {
	var buf bytes.Buffer
	base := NewTextLogger(&buf, slog.LevelInfo, ComponentApp)
	sl := NewStructuredLogger(base)
	ctx := context.Background()
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)

	tests := []struct {
		name string
		log  func()
		want string
	}{
		{"entry created", func() { sl.LogEntryCreated(ctx, "e1", "u1", "Landfill", "wrap", 1, "2024-01-01") }, "component=waste_log"},
		{"participation", func() { sl.LogParticipation(ctx, OpLeave, "c1", "u1") }, "component=challenge"},
		{"http start", func() { sl.LogHTTPStart(ctx, req, "10.0.0.1") }, "component=http"},
		{"http end", func() { sl.LogHTTPEnd(ctx, req, http.StatusOK, 3, "10.0.0.1") }, "component=http"},
		{"error", func() { sl.LogError(ctx, "boom", errors.New("bad"), ComponentStorage, OpSync, NewFields()) }, "component=storage"},
		{"with component", func() { base.WithComponent(ComponentCache).Info("swept") }, "component=cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			out := buf.String()
			if n := strings.Count(out, "component="); n != 1 {
				t.Errorf("component key appears %d times in %q", n, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q missing %q", out, tt.want)
			}
		})
	}
}

func TestComponentMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelInfo, ComponentHTTP)

	h := Middleware(logger)(ComponentMiddleware(ComponentChallenge)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("board served")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/challenges", nil))

	if !strings.Contains(buf.String(), "component=challenge") {
		t.Fatalf("expected challenge component in %q", buf.String())
	}
}
