package rangeengine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/streamhub/videoproxy/internal/metacache"
	"github.com/streamhub/videoproxy/internal/originclient"
	"github.com/streamhub/videoproxy/internal/segcache"
)

func newTestCtx(app *fiber.App, rangeHeader string) fiber.Ctx {
	c := app.AcquireCtx(new(fasthttp.RequestCtx))
	if rangeHeader != "" {
		c.Request().Header.Set("Range", rangeHeader)
	}
	return c
}

func newTestEngine(originURL string) *Engine {
	client := originclient.New(http.DefaultTransport.(*http.Transport), "", "", 5*time.Second)
	segCache := segcache.New(10*segcache.SegmentSize, segcache.SegmentSize)
	metaCache := metacache.NewMetadataCache(time.Minute)
	redirectCache := metacache.NewRedirectCache(time.Minute)
	return New(client, segCache, metaCache, redirectCache)
}

func TestServeNative206PassthroughDeliversExactRange(t *testing.T) {
	const total = 10 * 1024 * 1024
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "10485760")
			w.WriteHeader(http.StatusOK)
			return
		}
		// Origin honors the (expanded) Range in full.
		w.Header().Set("Content-Range", "bytes 0-10485759/10485760")
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, total))
	}))
	defer srv.Close()

	app := fiber.New()
	defer app.Shutdown()
	c := newTestCtx(app, "bytes=0-1023")
	defer app.ReleaseCtx(c)

	e := newTestEngine(srv.URL)
	if err := e.Serve(c, srv.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Response().StatusCode() != fiber.StatusPartialContent {
		t.Fatalf("expected 206, got %d", c.Response().StatusCode())
	}
	if len(c.Response().Body()) != 1024 {
		t.Fatalf("expected exactly 1024 client-visible bytes, got %d", len(c.Response().Body()))
	}
	contentRange := string(c.Response().Header.Peek("Content-Range"))
	if contentRange != "bytes 0-1023/10485760" {
		t.Fatalf("expected truncated content-range, got %q", contentRange)
	}
}

func TestServeStreamSliceFrom200Body(t *testing.T) {
	const total = 2 * 1024 * 1024
	full := make([]byte, total)
	for i := range full {
		full[i] = byte(i % 256)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "2097152")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(full)
	}))
	defer srv.Close()

	app := fiber.New()
	defer app.Shutdown()
	c := newTestCtx(app, "bytes=1000-1999")
	defer app.ReleaseCtx(c)

	e := newTestEngine(srv.URL)
	if err := e.Serve(c, srv.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Response().StatusCode() != fiber.StatusPartialContent {
		t.Fatalf("expected 206, got %d", c.Response().StatusCode())
	}
	body := c.Response().Body()
	if len(body) != 1000 {
		t.Fatalf("expected 1000 bytes, got %d", len(body))
	}
	if body[0] != full[1000] || body[len(body)-1] != full[1999] {
		t.Fatal("expected sliced bytes to match the requested interval")
	}
}

func TestServeCacheHitAvoidsUpstreamTraffic(t *testing.T) {
	const total = 4 * 1024 * 1024
	upstreamHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "4194304")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Range", "bytes 0-4194303/4194304")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, total))
	}))
	defer srv.Close()

	app := fiber.New()
	defer app.Shutdown()

	e := newTestEngine(srv.URL)

	c1 := newTestCtx(app, "bytes=0-1023")
	if err := e.Serve(c1, srv.URL, nil); err != nil {
		t.Fatalf("unexpected error on first request: %v", err)
	}
	app.ReleaseCtx(c1)
	hitsAfterFirst := upstreamHits

	c2 := newTestCtx(app, "bytes=512-1535")
	defer app.ReleaseCtx(c2)
	if err := e.Serve(c2, srv.URL, nil); err != nil {
		t.Fatalf("unexpected error on second request: %v", err)
	}

	if upstreamHits != hitsAfterFirst {
		t.Fatalf("expected second request to be served entirely from cache, upstream hits went from %d to %d", hitsAfterFirst, upstreamHits)
	}
	if len(c2.Response().Body()) != 1024 {
		t.Fatalf("expected 1024 cached bytes, got %d", len(c2.Response().Body()))
	}
}

func TestServeRedirectFollowPopulatesRedirectCache(t *testing.T) {
	const total = 1024 * 1024

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-1048575/1048576")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, total))
	}))
	defer cdn.Close()

	var origin *httptest.Server
	origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "1048576")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Location", cdn.URL)
		w.WriteHeader(http.StatusFound)
	}))
	defer origin.Close()

	app := fiber.New()
	defer app.Shutdown()
	c := newTestCtx(app, "bytes=0-1023")
	defer app.ReleaseCtx(c)

	e := newTestEngine(origin.URL)
	if err := e.Serve(c, origin.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := e.redirectCache.Get(origin.URL); !ok {
		t.Fatal("expected redirect cache to be populated")
	}
	if c.Response().StatusCode() != fiber.StatusPartialContent {
		t.Fatalf("expected 206 from CDN follow, got %d", c.Response().StatusCode())
	}
}

func TestServeRangeUnsatisfiableReturns416Kind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	app := fiber.New()
	defer app.Shutdown()
	c := newTestCtx(app, "bytes=99999-")
	defer app.ReleaseCtx(c)

	e := newTestEngine(srv.URL)
	err := e.Serve(c, srv.URL, nil)
	if err == nil {
		t.Fatal("expected an error for an unsatisfiable range")
	}
	var engErr *EngineError
	if !errors.As(err, &engErr) || engErr.Kind != KindRangeUnsatisfiable {
		t.Fatalf("expected a KindRangeUnsatisfiable EngineError, got %v", err)
	}
}
