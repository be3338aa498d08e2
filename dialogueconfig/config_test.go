package dialogueconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, old)
			}
		})
	}
}

func TestFromEnvDefaultsToLoopback(t *testing.T) {
	clearEnv(t, "DIALOGUE_BIND_ADDR", "DIALOGUE_ALLOW_REMOTE", "DIALOGUE_AUTH_TOKEN")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.BindAddr != "127.0.0.1" {
		t.Fatalf("expected default loopback bind, got %q", cfg.BindAddr)
	}
}

func TestFromEnvRejectsRemoteBindWithoutOptIn(t *testing.T) {
	clearEnv(t, "DIALOGUE_ALLOW_REMOTE", "DIALOGUE_AUTH_TOKEN")
	os.Setenv("DIALOGUE_BIND_ADDR", "0.0.0.0")
	defer os.Unsetenv("DIALOGUE_BIND_ADDR")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error binding non-loopback without opt-in")
	}
}

func TestFromEnvRejectsRemoteBindWithoutAuthToken(t *testing.T) {
	clearEnv(t, "DIALOGUE_AUTH_TOKEN")
	os.Setenv("DIALOGUE_BIND_ADDR", "0.0.0.0")
	os.Setenv("DIALOGUE_ALLOW_REMOTE", "true")
	defer os.Unsetenv("DIALOGUE_BIND_ADDR")
	defer os.Unsetenv("DIALOGUE_ALLOW_REMOTE")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error binding non-loopback without auth token")
	}
}

func TestFromEnvAllowsRemoteBindWithOptInAndToken(t *testing.T) {
	os.Setenv("DIALOGUE_BIND_ADDR", "0.0.0.0")
	os.Setenv("DIALOGUE_ALLOW_REMOTE", "true")
	os.Setenv("DIALOGUE_AUTH_TOKEN", "secret")
	defer os.Unsetenv("DIALOGUE_BIND_ADDR")
	defer os.Unsetenv("DIALOGUE_ALLOW_REMOTE")
	defer os.Unsetenv("DIALOGUE_AUTH_TOKEN")

	if _, err := FromEnv(); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestLoadDotenvDoesNotOverrideExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DIALOGUE_TEST_KEY=fromfile\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	os.Setenv("DIALOGUE_TEST_KEY", "fromenv")
	defer os.Unsetenv("DIALOGUE_TEST_KEY")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("DIALOGUE_TEST_KEY"); got != "fromenv" {
		t.Fatalf("expected existing env value preserved, got %q", got)
	}
}

func TestLoadDotenvMissingFileIsNotError(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing .env to be a no-op, got %v", err)
	}
}
