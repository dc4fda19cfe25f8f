package config

import "testing"

func baseValidConfig() *Config {
	cfg := &Config{Global: GlobalConfig{
		ListenPort:      8090,
		TargetHost:      "https://origin.example.com",
		TargetPath:      "/webdav",
		SegmentCacheCap: ByteSize(500 * 1024 * 1024),
		SegmentSize:     ByteSize(2 * 1024 * 1024),
		MetadataTTL:     Duration(0),
		RedirectTTL:     Duration(0),
		PreloadTTL:      Duration(0),
		UpstreamTimeout: Duration(0),
	}}
	applyGlobalDefaults(&cfg.Global)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := baseValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Global.ListenPort = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid listen port")
	}
}

func TestValidateRejectsNonHTTPOrigin(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Global.TargetHost = "ftp://origin.example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http(s) origin")
	}
}

func TestAuthModeReflectsCredentials(t *testing.T) {
	cfg := baseValidConfig()
	if cfg.Global.AuthMode() != "anonymous" {
		t.Fatalf("expected anonymous, got %s", cfg.Global.AuthMode())
	}
	cfg.Global.TargetUsername = "alice"
	cfg.Global.TargetPassword = "secret"
	if cfg.Global.AuthMode() != "credentialed" {
		t.Fatalf("expected credentialed, got %s", cfg.Global.AuthMode())
	}
}

func TestTargetBaseURLJoinsHostAndPath(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Global.TargetHost = "https://origin.example.com/"
	cfg.Global.TargetPath = "webdav/videos"
	got := cfg.Global.TargetBaseURL()
	want := "https://origin.example.com/webdav/videos"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
