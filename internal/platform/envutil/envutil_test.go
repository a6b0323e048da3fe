package envutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "7")
	t.Setenv("ENVUTIL_BAD_INT", "x")
	t.Setenv("ENVUTIL_BOOL", "on")
	t.Setenv("ENVUTIL_SECS", "30")
	t.Setenv("ENVUTIL_LIST", "a, ,b")

	if got := Int("ENVUTIL_INT", 1, nil); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	if got := Int("ENVUTIL_BAD_INT", 3, nil); got != 3 {
		t.Fatalf("Int fallback: want=3 got=%d", got)
	}
	if got := Bool("ENVUTIL_BOOL", false, nil); !got {
		t.Fatalf("Bool: want=true got=%v", got)
	}
	if got := Seconds("ENVUTIL_SECS", time.Minute, nil); got != 30*time.Second {
		t.Fatalf("Seconds: want=30s got=%s", got)
	}
	if got := List("ENVUTIL_LIST", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: want=[a b] got=%v", got)
	}
	if got := String("ENVUTIL_MISSING", "def", nil); got != "def" {
		t.Fatalf("String: want=def got=%s", got)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ENVUTIL_DOTENV_NEW=from_file\nENVUTIL_DOTENV_SET=from_file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENVUTIL_DOTENV_SET", "from_env")
	t.Cleanup(func() { _ = os.Unsetenv("ENVUTIL_DOTENV_NEW") })

	LoadDotEnv(nil, path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("ENVUTIL_DOTENV_NEW"); got != "from_file" {
		t.Fatalf("new var: want=from_file got=%s", got)
	}
	if got := os.Getenv("ENVUTIL_DOTENV_SET"); got != "from_env" {
		t.Fatalf("existing var: want=from_env got=%s", got)
	}
}
