package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evidencevault/internal/logging"
	"evidencevault/internal/models"
	"evidencevault/internal/rate"
	"evidencevault/internal/service"
)

func TestClientIPTrustProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.5")

	if got := ClientIP(r, false); got != "10.0.0.5" {
		t.Fatalf("unexpected direct IP: %s", got)
	}
	if got := ClientIP(r, true); got != "1.2.3.4" {
		t.Fatalf("unexpected proxied IP: %s", got)
	}
}

type verifierFunc func(ctx context.Context, token string) (models.Identity, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (models.Identity, error) {
	return f(ctx, token)
}

func TestAuthn(t *testing.T) {
	v := verifierFunc(func(_ context.Context, token string) (models.Identity, error) {
		switch token {
		case "good":
			return models.Identity{UserID: "u1", Role: models.RoleOfficer}, nil
		case "inactive":
			return models.Identity{}, service.ErrAccountInactive
		case "gone":
			return models.Identity{}, service.ErrUserNotFound
		case "broken":
			return models.Identity{}, errors.New("db down")
		}
		return models.Identity{}, service.ErrTokenInvalid
	})
	var seen models.Identity
	h := Authn(v, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = Identity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Bearer bogus", http.StatusUnauthorized},
		{"Bearer gone", http.StatusUnauthorized},
		{"Bearer inactive", http.StatusForbidden},
		{"Bearer broken", http.StatusInternalServerError},
		{"bearer good", http.StatusNoContent},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		if rr.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, rr.Code)
		}
	}
	if seen.UserID != "u1" {
		t.Fatalf("expected identity in context, got %#v", seen)
	}
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	l := rate.NewLimiter()
	h := RateLimit(l, "login", 1, time.Minute, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "10.0.0.9:1"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		if rr.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rr.Code)
		}
	}
}

func TestRequestLoggerLevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h := RequestIDMiddleware(RequestLogger(logger, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "status=502") {
		t.Fatalf("unexpected log line: %s", out)
	}
	if rid := rr.Header().Get("X-Request-ID"); rid == "" || !strings.Contains(out, rid) {
		t.Fatalf("expected request id %q in log line: %s", rid, out)
	}
}
