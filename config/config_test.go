package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firasghr/HeyteaDIY/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Port != 5969 {
		t.Errorf("Port: got %d, want 5969", cfg.Port)
	}
	if cfg.Timeout() != 20*time.Second {
		t.Errorf("RequestTimeout: got %v, want 20s", cfg.Timeout())
	}
	if cfg.AreaCode != "86" {
		t.Errorf("AreaCode: got %q, want 86", cfg.AreaCode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestDefaultConfig_IndependentCopies(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	a.AllowedOrigins[0] = "http://evil"
	if b.AllowedOrigins[0] != "http://localhost:3000" {
		t.Error("DefaultConfig copies share the AllowedOrigins slice")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"port": 7000, "request_timeout": "5s", "upstream_base_url": "http://example.com"}`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("got Port=%d, want 7000", cfg.Port)
	}
	if cfg.Timeout() != 5*time.Second {
		t.Errorf("got RequestTimeout=%v, want 5s", cfg.Timeout())
	}
	if cfg.UpstreamBaseURL != "http://example.com" {
		t.Errorf("got UpstreamBaseURL=%q, want http://example.com", cfg.UpstreamBaseURL)
	}
	// Fields absent from the file keep their defaults.
	if cfg.SignSalt != config.DefaultConfig().SignSalt {
		t.Errorf("SignSalt should keep its default, got %q", cfg.SignSalt)
	}
}

func TestLoadConfig_NumericDuration(t *testing.T) {
	path := writeFile(t, "config.json", `{"request_timeout": 3000000000}`)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeout() != 3*time.Second {
		t.Errorf("got %v, want 3s", cfg.Timeout())
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeFile(t, "bad.json", "{not valid json}")
	if _, err := config.LoadConfig(path); err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := writeFile(t, "typo.json", `{"prot": 1}`)
	if _, err := config.LoadConfig(path); err == nil {
		t.Error("expected error for unknown field, got nil")
	}
}

func TestApplyEnv_FileAndVariables(t *testing.T) {
	envPath := writeFile(t, ".env", "HEYTEA_PROXY_BASE=https://relay.example.com/\nHEYTEA_ALLOWED_ORIGINS=http://a, http://b\n")
	t.Setenv("HEYTEA_PORT", "6100")
	// godotenv.Load never overrides variables already present, so make sure
	// the file values are not shadowed by the test environment.
	os.Unsetenv("HEYTEA_PROXY_BASE")
	os.Unsetenv("HEYTEA_ALLOWED_ORIGINS")
	t.Cleanup(func() {
		os.Unsetenv("HEYTEA_PROXY_BASE")
		os.Unsetenv("HEYTEA_ALLOWED_ORIGINS")
	})

	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(envPath); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Port != 6100 {
		t.Errorf("Port: got %d, want 6100", cfg.Port)
	}
	if got := cfg.AdvertisedBaseURL(cfg.Port); got != "https://relay.example.com" {
		t.Errorf("AdvertisedBaseURL: got %q", got)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b" {
		t.Errorf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
}

func TestApplyEnv_MissingFileIsIgnored(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestApplyEnv_BadPort(t *testing.T) {
	t.Setenv("HEYTEA_PORT", "not-a-port")
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(""); err == nil {
		t.Error("expected error for non-numeric HEYTEA_PORT")
	}
}

func TestAdvertisedBaseURL_Default(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := cfg.AdvertisedBaseURL(5970); got != "http://localhost:5970" {
		t.Errorf("got %q, want http://localhost:5970", got)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*config.Config){
		"port":        func(c *config.Config) { c.Port = 0 },
		"upstream":    func(c *config.Config) { c.UpstreamBaseURL = "" },
		"timeout":     func(c *config.Config) { c.RequestTimeout = 0 },
		"upload":      func(c *config.Config) { c.MaxUploadBytes = 0 },
		"fingerprint": func(c *config.Config) { c.TLSFingerprint = "firefox" },
		"two proxies": func(c *config.Config) {
			c.OutboundProxy = "http://p:1"
			c.OutboundProxyFile = "proxies.txt"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
