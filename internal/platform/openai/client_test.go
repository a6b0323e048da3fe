package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

func assistantText(text string) map[string]any {
	return map[string]any{
		"output": []any{map[string]any{
			"type": "message",
			"role": "assistant",
			"content": []any{
				map[string]any{"type": "output_text", "text": text},
			},
		}},
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{APIKey: "test", BaseURL: srv.URL, MaxRetries: retries, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGenerateJSONSendsStrictSchema(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" || r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text.Format["strict"] != true || req.Text.Format["name"] != "lessons" {
			t.Errorf("unexpected format %+v", req.Text.Format)
		}
		_ = json.NewEncoder(w).Encode(assistantText(`{"lessons":[]}`))
	}, 0)

	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "lessons", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if _, ok := obj["lessons"]; !ok {
		t.Fatalf("missing lessons key: %v", obj)
	}
}

func TestGenerateJSONClassifiesFailures(t *testing.T) {
	t.Run("unparseable output", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(assistantText(`not json`))
		}, 0)
		_, err := c.GenerateJSON(context.Background(), "s", "u", "x", map[string]any{})
		if apperr.KindOf(err) != apperr.KindSchemaViolation {
			t.Fatalf("want schema violation, got %v", err)
		}
	})
	t.Run("http error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}, 0)
		_, err := c.GenerateJSON(context.Background(), "s", "u", "x", map[string]any{})
		if apperr.KindOf(err) != apperr.KindProvider {
			t.Fatalf("want provider error, got %v", err)
		}
	})
	t.Run("deadline", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.GenerateJSON(ctx, "s", "u", "x", map[string]any{})
		if apperr.KindOf(err) != apperr.KindTimeout {
			t.Fatalf("want timeout, got %v", err)
		}
	})
}

func TestGenerateJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(assistantText(`{"ok":true}`))
	}, 2)

	obj, err := c.GenerateJSON(context.Background(), "s", "u", "x", map[string]any{})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if obj["ok"] != true || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("want success on second call, got %v after %d calls", obj, calls)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
