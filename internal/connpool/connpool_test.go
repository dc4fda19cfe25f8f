package connpool

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfigMatchesFixedPoolParameters(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.IdleConnTimeout != 30*time.Second {
		t.Fatalf("expected 30s idle timeout, got %v", cfg.IdleConnTimeout)
	}
	if cfg.MaxConnsPerHost != 10 {
		t.Fatalf("expected 10 max sockets per host, got %d", cfg.MaxConnsPerHost)
	}
	if cfg.MaxIdleConnsPerHost != 5 {
		t.Fatalf("expected 5 max idle sockets per host, got %d", cfg.MaxIdleConnsPerHost)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %v", cfg.RequestTimeout)
	}
}

func TestNewBuildsNonNilTransport(t *testing.T) {
	tr := New(DefaultConfig())
	if tr == nil {
		t.Fatal("expected a non-nil transport")
	}
	if tr.DialContext == nil {
		t.Fatal("expected an instrumented DialContext")
	}
}

func TestPrepareOutboundStripsHopByHopAndIdentifyingHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Origin", "https://player.example")
	h.Set("Referer", "https://player.example/watch")
	h.Set("Connection", "keep-alive")
	h.Set("Range", "bytes=0-1023")

	out := PrepareOutbound(h, "origin.example.com")

	if out.Get("Origin") != "" || out.Get("Referer") != "" || out.Get("Connection") != "" {
		t.Fatal("expected hop-by-hop and identifying headers to be stripped")
	}
	if out.Get("Range") != "bytes=0-1023" {
		t.Fatal("expected Range header to be preserved")
	}
	if out.Get("Host") != "origin.example.com" {
		t.Fatalf("expected Host rewritten to origin, got %q", out.Get("Host"))
	}
}

func TestPrepareOutboundDoesNotMutateOriginal(t *testing.T) {
	h := http.Header{}
	h.Set("Origin", "https://player.example")

	PrepareOutbound(h, "origin.example.com")

	if h.Get("Origin") == "" {
		t.Fatal("expected original header map to be untouched")
	}
}

func TestIsHopByHopHeaderMatchesCanonicalAndNonCanonicalForms(t *testing.T) {
	if !IsHopByHopHeader("connection") {
		t.Fatal("expected lowercase 'connection' to match")
	}
	if !IsHopByHopHeader("Transfer-Encoding") {
		t.Fatal("expected 'Transfer-Encoding' to match")
	}
	if IsHopByHopHeader("Range") {
		t.Fatal("did not expect 'Range' to be treated as hop-by-hop")
	}
}
