package observability

import (
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders([]string{"x-api-key=abc", "broken", "=v", "k=", "tenant = blue"})
	if len(got) != 2 || got["x-api-key"] != "abc" || got["tenant"] != "blue" {
		t.Fatalf("headers: got=%v", got)
	}
	if parseHeaders(nil) != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestLoadTraceSettingsClampsRatio(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "a=b")
	s := LoadTraceSettings(nil)
	if !s.Enabled || s.SampleRatio != 1 || s.Headers["a"] != "b" {
		t.Fatalf("settings: %+v", s)
	}
}
