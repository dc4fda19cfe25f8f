package metacache

import (
	"testing"
	"time"
)

func TestMetadataCacheRoundTrip(t *testing.T) {
	c := NewMetadataCache(time.Minute)
	defer c.Stop()

	want := ObjectMeta{ContentLength: 1024, ContentType: "video/mp4", ETag: `"abc"`}
	c.Set("https://origin/a.mp4", want)

	got, ok := c.Get("https://origin/a.mp4")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestMetadataCacheMiss(t *testing.T) {
	c := NewMetadataCache(time.Minute)
	defer c.Stop()

	if _, ok := c.Get("https://origin/missing.mp4"); ok {
		t.Fatal("expected miss")
	}
}

func TestRedirectCacheRoundTrip(t *testing.T) {
	c := NewRedirectCache(time.Minute)
	defer c.Stop()

	c.Set("https://origin/a.mp4", "https://cdn/a.mp4")
	got, ok := c.Get("https://origin/a.mp4")
	if !ok || got != "https://cdn/a.mp4" {
		t.Fatalf("expected resolved CDN URL, got (%q, %v)", got, ok)
	}
}

func TestPreloadCacheMarksPendingOnce(t *testing.T) {
	c := NewPreloadCache(time.Minute)
	defer c.Stop()

	now := time.Unix(0, 0)
	if alreadyPending := c.MarkPending("https://origin/a.mp4", now); alreadyPending {
		t.Fatal("expected first mark to report not-already-pending")
	}
	if alreadyPending := c.MarkPending("https://origin/a.mp4", now); !alreadyPending {
		t.Fatal("expected second mark to report already-pending")
	}
}

func TestPreloadCacheExpires(t *testing.T) {
	c := NewPreloadCache(20 * time.Millisecond)
	defer c.Stop()

	now := time.Unix(0, 0)
	c.MarkPending("https://origin/a.mp4", now)
	time.Sleep(60 * time.Millisecond)
	if alreadyPending := c.MarkPending("https://origin/a.mp4", now); alreadyPending {
		t.Fatal("expected pending flag to have expired")
	}
}
