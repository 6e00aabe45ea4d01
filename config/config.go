// Package config provides configuration management for the HeyteaDIY relay.
// It supports JSON-based configuration loading, an optional .env file and
// HEYTEA_* environment overrides on top of defaults that match the vendor
// mobile app.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Duration is a time.Duration that decodes from either a JSON string
// ("20s", "1m") or a JSON number of nanoseconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("config: duration must be a string or integer: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds all tunable parameters for the relay and the vendor signer.
// The struct is loaded once at startup and then shared across request
// handlers as a read-only value.
type Config struct {
	// Port is the preferred listen port. When it is taken the relay scans
	// upward through Port+PortScanRange.
	Port          int `json:"port"`
	PortScanRange int `json:"port_scan_range"`

	// PublicBaseURL is the address advertised to the browser UI. Empty means
	// http://localhost:<bound port>.
	PublicBaseURL string `json:"public_base_url"`

	// AllowedOrigins lists the CORS origins allowed to call the relay. "*"
	// allows any origin.
	AllowedOrigins []string `json:"allowed_origins"`

	// UpstreamBaseURL is the vendor API host every call is forwarded to.
	UpstreamBaseURL string `json:"upstream_base_url"`

	// RequestTimeout bounds every vendor call end to end.
	RequestTimeout Duration `json:"request_timeout"`

	// OutboundProxy is an optional proxy URL for vendor calls.
	OutboundProxy string `json:"outbound_proxy"`

	// OutboundProxyFile names a newline-delimited proxy list rotated
	// round-robin across vendor calls. It replaces OutboundProxy.
	OutboundProxyFile string `json:"outbound_proxy_file"`

	// TLSFingerprint selects the TLS ClientHello presented to the vendor:
	// "" (Go default) or "chrome".
	TLSFingerprint string `json:"tls_fingerprint"`

	// MaxUploadBytes caps multipart uploads and JSON bodies.
	MaxUploadBytes int64 `json:"max_upload_bytes"`

	// AESKey and AESIV are the secrets used to encrypt mobile numbers. Each
	// is either 32 hex characters or 16 raw bytes.
	AESKey string `json:"aes_key"`
	AESIV  string `json:"aes_iv"`

	// SignSalt prefixes the MD5 upload signature input.
	SignSalt string `json:"sign_salt"`

	AreaCode     string `json:"area_code"`
	ClientSource string `json:"client_source"`
	BrandID      string `json:"brand_id"`
	Channel      string `json:"channel"`
	TicketFrom   string `json:"ticket_from"`

	// SegmenterURL is the background-removal service used by the editor.
	SegmenterURL string `json:"segmenter_url"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `json:"log_level"`
}

// LoadConfig reads a JSON file at filename on top of DefaultConfig, so
// fields absent from the file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 – filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields() // catch typos in config files early
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return cfg, nil
}

// DefaultConfig returns a *Config pre-filled with the values the vendor's
// mobile app uses. Each call returns a fresh independent copy.
func DefaultConfig() *Config {
	return &Config{
		Port:            5969,
		PortScanRange:   100,
		AllowedOrigins:  []string{"http://localhost:3000"},
		UpstreamBaseURL: "https://app-go.heytea.com",
		RequestTimeout:  Duration(20 * time.Second),
		MaxUploadBytes:  10 << 20,
		AESKey:          "23290CFFBB5D39B8",
		AESIV:           "HEYTEA1A2B3C4D5E",
		SignSalt:        "r5YWPjgSGAT2dbOJzwiDBK",
		AreaCode:        "86",
		ClientSource:    "app",
		BrandID:         "1000001",
		Channel:         "A",
		TicketFrom:      "min",
		LogLevel:        "info",
	}
}

// ApplyEnv loads envFile (when non-empty and present) into the process
// environment and then applies HEYTEA_* overrides to c.
//
// Recognised variables: HEYTEA_PORT, HEYTEA_PROXY_BASE, HEYTEA_UPSTREAM,
// HEYTEA_AES_KEY, HEYTEA_AES_IV, HEYTEA_SIGN_SALT, HEYTEA_ALLOWED_ORIGINS
// (comma separated), HEYTEA_OUTBOUND_PROXY, HEYTEA_OUTBOUND_PROXY_FILE,
// HEYTEA_TLS_FINGERPRINT, HEYTEA_SEGMENTER_URL, HEYTEA_LOG_LEVEL.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: load env file %q: %w", envFile, err)
		}
	}

	if v := os.Getenv("HEYTEA_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HEYTEA_PORT %q: %w", v, err)
		}
		c.Port = p
	}
	setString(&c.PublicBaseURL, "HEYTEA_PROXY_BASE")
	setString(&c.UpstreamBaseURL, "HEYTEA_UPSTREAM")
	setString(&c.AESKey, "HEYTEA_AES_KEY")
	setString(&c.AESIV, "HEYTEA_AES_IV")
	setString(&c.SignSalt, "HEYTEA_SIGN_SALT")
	setString(&c.OutboundProxy, "HEYTEA_OUTBOUND_PROXY")
	setString(&c.OutboundProxyFile, "HEYTEA_OUTBOUND_PROXY_FILE")
	setString(&c.TLSFingerprint, "HEYTEA_TLS_FINGERPRINT")
	setString(&c.SegmenterURL, "HEYTEA_SEGMENTER_URL")
	setString(&c.LogLevel, "HEYTEA_LOG_LEVEL")
	if v := strings.TrimSpace(os.Getenv("HEYTEA_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks the fields the relay cannot start without. The AES
// secrets are validated by the signer, which owns their decoding rules.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.PortScanRange < 0 {
		return fmt.Errorf("config: port_scan_range must be >= 0, got %d", c.PortScanRange)
	}
	if c.UpstreamBaseURL == "" {
		return errors.New("config: upstream_base_url is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request_timeout must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: max_upload_bytes must be > 0")
	}
	if c.OutboundProxy != "" && c.OutboundProxyFile != "" {
		return errors.New("config: set outbound_proxy or outbound_proxy_file, not both")
	}
	switch c.TLSFingerprint {
	case "", "chrome":
	default:
		return fmt.Errorf("config: unknown tls_fingerprint %q", c.TLSFingerprint)
	}
	return nil
}

// Timeout returns RequestTimeout as a time.Duration.
func (c *Config) Timeout() time.Duration { return time.Duration(c.RequestTimeout) }

// AdvertisedBaseURL returns the base URL the UI should call for a relay bound
// to port.
func (c *Config) AdvertisedBaseURL(port int) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", port)
}
