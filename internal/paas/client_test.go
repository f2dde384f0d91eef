package paas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"whaletracker/internal/config"
)

func TestNew_NilWhenUnconfigured(t *testing.T) {
	if c := New(config.PaaSConfig{}); c != nil {
		t.Fatalf("client=%v want=nil", c)
	}
	Audit(context.Background(), "noop", "info", nil)
}

func TestAudit_LogsInOnceAndPosts(t *testing.T) {
	var logins, logs int32
	var got CreateLogRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			atomic.AddInt32(&logins, 1)
			_, _ = w.Write([]byte(`{"token":"tok"}`))
		case "/api/v1/logs":
			atomic.AddInt32(&logs, 1)
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(config.PaaSConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	ctx := WithClient(context.Background(), c)
	Audit(ctx, "cycle_completed", "info", map[string]any{"markets": 3})
	Audit(ctx, "cycle_completed", "info", nil)

	if atomic.LoadInt32(&logins) != 1 || atomic.LoadInt32(&logs) != 2 {
		t.Fatalf("logins=%d logs=%d want=1/2", logins, logs)
	}
	if got.Agent != defaultAgent || got.Action != "cycle_completed" {
		t.Fatalf("request=%+v", got)
	}
}
