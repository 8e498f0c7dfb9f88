package config

import (
	"log/slog"
	"strings"
	"testing"
)

// validConfig returns a Config that passes validation.
func validConfig() *Config {
	return &Config{
		DataDir:       "./data",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "text",
		CORSOrigins:   "*",
		PublicBaseURL: "https://api.donorline.app",
		SMTPTLS:       "starttls",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTPPort = 0 }, "http-port"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log-level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log-format"},
		{"relative base url", func(c *Config) { c.PublicBaseURL = "/webhooks" }, "public-base-url"},
		{"live without credentials", func(c *Config) { c.TelephonyLive = true }, "telephony-live"},
		{"bad smtp tls", func(c *Config) { c.SMTPTLS = "ssl3" }, "smtp-tls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "DEBUG"
	cfg.PublicBaseURL = "https://api.donorline.app/"

	if err := cfg.validate(); err != nil {
		t.Fatalf("validate() error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.PublicBaseURL != "https://api.donorline.app" {
		t.Errorf("base url = %q, want trailing slash stripped", cfg.PublicBaseURL)
	}
}

func TestTelephonyCredentials(t *testing.T) {
	cfg := &Config{
		TwilioAccountSID:     "AClive",
		TwilioAuthToken:      "live-token",
		TwilioTestAccountSID: "ACtest",
		TwilioTestAuthToken:  "test-token",
	}

	sid, token := cfg.TelephonyCredentials()
	if sid != "ACtest" || token != "test-token" {
		t.Errorf("test credentials = (%q, %q), want test pair", sid, token)
	}

	cfg.TelephonyLive = true
	sid, token = cfg.TelephonyCredentials()
	if sid != "AClive" || token != "live-token" {
		t.Errorf("live credentials = (%q, %q), want live pair", sid, token)
	}
}

func TestJWTSecretBytes(t *testing.T) {
	cfg := &Config{}

	// Empty secret generates an ephemeral key and stores it back.
	key, err := cfg.JWTSecretBytes()
	if err != nil {
		t.Fatalf("JWTSecretBytes() error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("generated key length = %d, want 32", len(key))
	}
	if cfg.JWTSecret == "" {
		t.Error("generated key not stored back in config")
	}

	// Invalid hex fails.
	cfg = &Config{JWTSecret: "not-hex"}
	if _, err := cfg.JWTSecretBytes(); err == nil {
		t.Error("JWTSecretBytes() with invalid hex succeeded")
	}

	// Wrong length fails.
	cfg = &Config{JWTSecret: "abcd"}
	if _, err := cfg.JWTSecretBytes(); err == nil {
		t.Error("JWTSecretBytes() with short key succeeded")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
