package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNormalizeOrigins(t *testing.T) {
	got := NormalizeOrigins([]string{" https://app.example.com/ ", "", "https://app.example.com", "https://admin.example.com"})
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("NormalizeOrigins: want=%v got=%v", want, got)
	}
	if d := NormalizeOrigins(nil); len(d) != len(defaultOrigins) {
		t.Fatalf("defaults: want=%v got=%v", defaultOrigins, d)
	}
}

func TestCORSPreflightForGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com/"}))
	r.POST("/api/courses/generate", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	cases := []struct {
		origin string
		want   string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"http://localhost:5173", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/api/courses/generate", nil)
		req.Header.Set("Origin", tc.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Request-Id")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
			t.Fatalf("%s: allow-origin want=%q got=%q", tc.origin, tc.want, got)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"https://app.example.com"})
	cases := map[string]bool{
		"":                        true,
		"https://app.example.com": true,
		"https://evil.example":    false,
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws/tasks/x", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != want {
			t.Fatalf("%q: want=%v got=%v", origin, want, got)
		}
	}
}
