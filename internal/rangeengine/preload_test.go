package rangeengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPreloadFetchesAndCachesOnMiss(t *testing.T) {
	const total = 4 * 1024 * 1024
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "4194304")
			w.WriteHeader(http.StatusOK)
			return
		}
		hits++
		w.Header().Set("Content-Range", "bytes 0-2097151/4194304")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 2*1024*1024))
	}))
	defer srv.Close()

	e := newTestEngine(srv.URL)
	res, err := e.Preload(context.Background(), srv.URL, 0, 2*1024*1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "preloaded" {
		t.Fatalf("Status = %q, want preloaded", res.Status)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one upstream fetch, got %d", hits)
	}
	if !e.segCache.Has(srv.URL, 0, total/2-1) {
		t.Fatal("expected the aligned segment to be cached after preload")
	}
}

func TestPreloadReturnsCachedWithoutUpstreamTraffic(t *testing.T) {
	const total = 4 * 1024 * 1024
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "4194304")
			w.WriteHeader(http.StatusOK)
			return
		}
		hits++
		w.Header().Set("Content-Range", "bytes 0-2097151/4194304")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 2*1024*1024))
	}))
	defer srv.Close()

	e := newTestEngine(srv.URL)
	if _, err := e.Preload(context.Background(), srv.URL, 0, 2*1024*1024); err != nil {
		t.Fatalf("first preload: %v", err)
	}
	hitsAfterFirst := hits

	res, err := e.Preload(context.Background(), srv.URL, 0, 2*1024*1024)
	if err != nil {
		t.Fatalf("second preload: %v", err)
	}
	if res.Status != "cached" {
		t.Fatalf("Status = %q, want cached", res.Status)
	}
	if hits != hitsAfterFirst {
		t.Fatalf("expected zero additional upstream fetches, got %d more", hits-hitsAfterFirst)
	}
}
