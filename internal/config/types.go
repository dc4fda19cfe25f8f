package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
)

// Duration accepts both Go duration strings ("30s") and bare integer seconds,
// the way the teacher's config layer does.
type Duration time.Duration

// UnmarshalText lets Viper decode "30s", "5m" or a plain integer-seconds value.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue returns the real time.Duration for callers that need to do math on it.
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// ByteSize accepts human units ("500MiB", "2MiB") as well as bare byte counts.
type ByteSize int64

// UnmarshalText lets Viper decode byte-size fields in either form.
func (b *ByteSize) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*b = 0
		return nil
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}

	parsed, err := units.ParseBase2Bytes(raw)
	if err != nil {
		return fmt.Errorf("invalid byte size value %q: %w", raw, err)
	}
	*b = ByteSize(parsed)
	return nil
}

// Bytes returns the plain int64 byte count.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// GlobalConfig describes every tunable the proxy process reads at startup.
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	TargetHost      string   `mapstructure:"TargetHost"`
	TargetPath      string   `mapstructure:"TargetPath"`
	TargetUsername  string   `mapstructure:"TargetUsername"`
	TargetPassword  string   `mapstructure:"TargetPassword"`
	SegmentCacheCap ByteSize `mapstructure:"SegmentCacheCap"`
	SegmentSize     ByteSize `mapstructure:"SegmentSize"`
	MetadataTTL     Duration `mapstructure:"MetadataTTL"`
	RedirectTTL     Duration `mapstructure:"RedirectTTL"`
	PreloadTTL      Duration `mapstructure:"PreloadTTL"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
}

// Config is the TOML file's root shape.
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// HasCredentials reports whether static WebDAV credentials were configured.
func (g GlobalConfig) HasCredentials() bool {
	return g.TargetUsername != "" && g.TargetPassword != ""
}

// AuthMode returns "credentialed" or "anonymous" for log fields.
func (g GlobalConfig) AuthMode() string {
	if g.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// TargetBaseURL joins the configured host and path prefix into a base URL string.
func (g GlobalConfig) TargetBaseURL() string {
	host := strings.TrimRight(g.TargetHost, "/")
	pathPrefix := g.TargetPath
	if pathPrefix == "" {
		pathPrefix = "/webdav"
	}
	if !strings.HasPrefix(pathPrefix, "/") {
		pathPrefix = "/" + pathPrefix
	}
	return host + pathPrefix
}
