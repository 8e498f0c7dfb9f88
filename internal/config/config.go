package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the Donorline server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir     string
	DatabaseURL string // postgres:// DSN for hosted deployments; empty uses SQLite under DataDir
	HTTPPort    int
	LogLevel    string
	LogFormat   string // log output format: "text" or "json"
	CORSOrigins string

	// PublicBaseURL is the externally reachable base URL used to build the
	// webhook callback URLs registered with the telephony provider.
	PublicBaseURL string

	JWTSecret string // hex-encoded 32-byte secret for bearer-token verification

	// Telephony provider credentials. Live and test pairs are both
	// configurable; TelephonyLive selects which pair the gateway client is
	// constructed with. Nothing outside this package reads the gate.
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioTestAccountSID string
	TwilioTestAuthToken  string
	TelephonyLive        bool

	// SMTP settings for new-voicemail notification email. All empty
	// disables notifications.
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      string // "none", "starttls", "tls"
}

// defaults
const (
	defaultDataDir   = "./data"
	defaultHTTPPort  = 8080
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultSMTPTLS   = "starttls"
)

// envPrefix is the prefix for all Donorline environment variables.
const envPrefix = "DONORLINE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("donorline", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the embedded SQLite database")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres:// DSN for a hosted database (empty uses SQLite)")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "*", "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.PublicBaseURL, "public-base-url", "", "externally reachable base URL for webhook callbacks (e.g., https://api.donorline.app)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded 32-byte secret for bearer token verification (auto-generated if empty)")
	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "Twilio live account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio live auth token")
	fs.StringVar(&cfg.TwilioTestAccountSID, "twilio-test-account-sid", "", "Twilio test account SID")
	fs.StringVar(&cfg.TwilioTestAuthToken, "twilio-test-auth-token", "", "Twilio test auth token")
	fs.BoolVar(&cfg.TelephonyLive, "telephony-live", false, "use live telephony credentials instead of test credentials")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP server hostname for voicemail notifications")
	fs.StringVar(&cfg.SMTPPort, "smtp-port", "587", "SMTP server port")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", "", "From address for voicemail notifications")
	fs.StringVar(&cfg.SMTPUsername, "smtp-username", "", "SMTP auth username")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", "", "SMTP auth password")
	fs.StringVar(&cfg.SMTPTLS, "smtp-tls", defaultSMTPTLS, "SMTP TLS mode (none, starttls, tls)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	envMap := map[string]string{
		"data-dir":                envPrefix + "DATA_DIR",
		"database-url":            envPrefix + "DATABASE_URL",
		"http-port":               envPrefix + "HTTP_PORT",
		"log-level":               envPrefix + "LOG_LEVEL",
		"log-format":              envPrefix + "LOG_FORMAT",
		"cors-origins":            envPrefix + "CORS_ORIGINS",
		"public-base-url":         envPrefix + "PUBLIC_BASE_URL",
		"jwt-secret":              envPrefix + "JWT_SECRET",
		"twilio-account-sid":      envPrefix + "TWILIO_ACCOUNT_SID",
		"twilio-auth-token":       envPrefix + "TWILIO_AUTH_TOKEN",
		"twilio-test-account-sid": envPrefix + "TWILIO_TEST_ACCOUNT_SID",
		"twilio-test-auth-token":  envPrefix + "TWILIO_TEST_AUTH_TOKEN",
		"telephony-live":          envPrefix + "TELEPHONY_LIVE",
		"smtp-host":               envPrefix + "SMTP_HOST",
		"smtp-port":               envPrefix + "SMTP_PORT",
		"smtp-from":               envPrefix + "SMTP_FROM",
		"smtp-username":           envPrefix + "SMTP_USERNAME",
		"smtp-password":           envPrefix + "SMTP_PASSWORD",
		"smtp-tls":                envPrefix + "SMTP_TLS",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "database-url":
			cfg.DatabaseURL = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "cors-origins":
			cfg.CORSOrigins = val
		case "public-base-url":
			cfg.PublicBaseURL = val
		case "jwt-secret":
			cfg.JWTSecret = val
		case "twilio-account-sid":
			cfg.TwilioAccountSID = val
		case "twilio-auth-token":
			cfg.TwilioAuthToken = val
		case "twilio-test-account-sid":
			cfg.TwilioTestAccountSID = val
		case "twilio-test-auth-token":
			cfg.TwilioTestAuthToken = val
		case "telephony-live":
			if v, err := strconv.ParseBool(val); err == nil {
				cfg.TelephonyLive = v
			}
		case "smtp-host":
			cfg.SMTPHost = val
		case "smtp-port":
			cfg.SMTPPort = val
		case "smtp-from":
			cfg.SMTPFrom = val
		case "smtp-username":
			cfg.SMTPUsername = val
		case "smtp-password":
			cfg.SMTPPassword = val
		case "smtp-tls":
			cfg.SMTPTLS = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("public-base-url must be an absolute URL, got %q", c.PublicBaseURL)
		}
		c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	}

	if c.TelephonyLive && (c.TwilioAccountSID == "" || c.TwilioAuthToken == "") {
		return fmt.Errorf("telephony-live requires twilio-account-sid and twilio-auth-token")
	}

	validTLS := map[string]bool{"none": true, "starttls": true, "tls": true}
	if !validTLS[strings.ToLower(c.SMTPTLS)] {
		return fmt.Errorf("smtp-tls must be one of none, starttls, tls; got %q", c.SMTPTLS)
	}
	c.SMTPTLS = strings.ToLower(c.SMTPTLS)

	return nil
}

// TelephonyCredentials returns the provider account SID and auth token the
// gateway client should be constructed with. The test/live gate is resolved
// here, once, so business logic never consults it.
func (c *Config) TelephonyCredentials() (accountSID, authToken string) {
	if c.TelephonyLive {
		return c.TwilioAccountSID, c.TwilioAuthToken
	}
	return c.TwilioTestAccountSID, c.TwilioTestAuthToken
}

// JWTSecretBytes returns the decoded 32-byte bearer-token secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(key)
		slog.Warn("no jwt-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
