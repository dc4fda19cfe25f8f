// Package router builds the Fiber application and dispatches inbound
// requests by method and path, per the corpus's Fiber-based host/path
// dispatch shape: a thin middleware stamps a request ID and an active-request
// entry before handing off to the matched handler, and a recover middleware
// converts panics into the InternalError response rather than crashing the
// listener.
package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/grafana/regexp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/streamhub/videoproxy/internal/activereq"
	"github.com/streamhub/videoproxy/internal/config"
	"github.com/streamhub/videoproxy/internal/connpool"
	"github.com/streamhub/videoproxy/internal/metacache"
	"github.com/streamhub/videoproxy/internal/rangeengine"
	"github.com/streamhub/videoproxy/internal/segcache"
	"github.com/streamhub/videoproxy/internal/stats"
	"github.com/streamhub/videoproxy/internal/webdavbrowse"
)

const contextKeyRequestID = "_videoproxy_request_id"

var videoExtensionPattern = regexp.MustCompile(`(?i)\.(mp4|mov|avi|mkv|webm|m4v)$`)

// Deps bundles every collaborator a handler might touch. Built once by main
// and passed to NewApp.
type Deps struct {
	Logger        *logrus.Logger
	Global        config.GlobalConfig
	Engine        *rangeengine.Engine
	Recorder      *stats.Recorder
	Requests      *activereq.Table
	Browser       *webdavbrowse.Browser
	Transport     *http.Transport
	MetaCache     *metacache.MetadataCache
	RedirectCache *metacache.RedirectCache
	SegCache      *segcache.Cache
	Registry      *prometheus.Registry
}

// NewApp builds the Fiber application implementing the C8 dispatch table.
func NewApp(d Deps) (*fiber.App, error) {
	if d.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if d.Engine == nil {
		return nil, errors.New("range engine is required")
	}
	if d.Recorder == nil {
		return nil, errors.New("stats recorder is required")
	}
	if d.Requests == nil {
		return nil, errors.New("active-request table is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(d.Logger),
	})

	app.Use(recover.New())
	app.Use(corsMiddleware)
	app.Use(requestContextMiddleware(d))

	app.Options("/*", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/api/stats", statsHandler(d))
	app.Get("/metrics", metricsHandler(d))
	app.Get("/api/preload", preloadHandler(d))

	app.All("/*", func(c fiber.Ctx) error {
		if c.Method() == "PROPFIND" && !isVideoPath(c) {
			return propfindHandler(d)(c)
		}

		targetURL := resolveTargetURL(d.Global, c)
		if isVideoPath(c) && hasRangeHeader(c) {
			return d.Engine.Serve(c, targetURL, d.Recorder)
		}
		return reverseProxy(c, d, targetURL)
	})

	return app, nil
}

// errorHandler renders the §7 error taxonomy for every error a handler
// returns (including a panic recovered by recover.New()): an EngineError
// becomes {error, requestId} JSON with the status Kind.StatusCode() names;
// anything else becomes {error, message, requestId} with the *fiber.Error
// code or 500. Per §4.6.6, if a handler already wrote part of the response
// body, the headers and any bytes sent are left alone and the failure is
// only logged.
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		if len(c.Response().Body()) > 0 {
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "response_already_started",
				"request_id": RequestID(c),
			}).Warn("request_failed_after_response_started")
			return nil
		}

		var engineErr *rangeengine.EngineError
		if errors.As(err, &engineErr) {
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "engine_error",
				"kind":       engineErr.Kind,
				"request_id": RequestID(c),
			}).Warn("range_request_failed")

			return c.Status(engineErr.Kind.StatusCode()).JSON(fiber.Map{
				"error":     engineErr.Message,
				"requestId": RequestID(c),
			})
		}

		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}
		return c.Status(code).JSON(fiber.Map{
			"error":     http.StatusText(code),
			"message":   err.Error(),
			"requestId": RequestID(c),
		})
	}
}

// corsMiddleware stamps the fixed CORS headers required on every response,
// including errors.
func corsMiddleware(c fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PROPFIND, PROPPATCH, MKCOL, COPY, MOVE")
	c.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Depth, Destination, If, Lock-Token, Overwrite, Timeout, X-Requested-With, Range")
	c.Set("Access-Control-Expose-Headers", "Content-Length, Content-Type, Date, Last-Modified, ETag, Accept-Ranges, Content-Range")
	c.Set("Access-Control-Allow-Credentials", "true")
	return c.Next()
}

// requestContextMiddleware stamps a request ID and registers the inbound
// request in the active-request table, guaranteeing release on every exit
// path including panics (recover.New runs outermost, so the deferred Done
// still fires as the stack unwinds).
func requestContextMiddleware(d Deps) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		isRange := hasRangeHeader(c)
		done := d.Recorder.RequestStarted(isRange)
		defer done()

		reqDone := d.Requests.Start(reqID, c.Method(), requestPath(c), string(c.Request().Header.Peek("Range")))
		defer reqDone()

		return c.Next()
	}
}

// RequestID returns the request identifier stamped by requestContextMiddleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

func statsHandler(d Deps) fiber.Handler {
	return func(c fiber.Ctx) error {
		resp := stats.BuildAPIResponse(d.Recorder, d.MetaCache, d.RedirectCache, d.SegCache)
		return c.JSON(resp)
	}
}

func metricsHandler(d Deps) fiber.Handler {
	handler := promhttp.HandlerFor(prometheus.Gatherers{d.Registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(handler)
}

func preloadHandler(d Deps) fiber.Handler {
	return func(c fiber.Ctx) error {
		path := c.Query("path")
		if path == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path is required"})
		}

		start, err := parseOptionalInt64(c.Query("start"), 0)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start"})
		}
		size := defaultPreloadSize(d)
		if raw := c.Query("size"); raw != "" {
			var parsed config.ByteSize
			if err := parsed.UnmarshalText([]byte(raw)); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid size"})
			}
			size = parsed.Bytes()
		}

		targetURL := joinTargetURL(d.Global, path)
		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		result, err := d.Engine.Preload(ctx, targetURL, start, size)
		if err != nil {
			d.Logger.WithError(err).WithFields(logrus.Fields{
				"action": "preload",
				"path":   path,
			}).Warn("preload_failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "preload failed"})
		}

		return c.JSON(fiber.Map{
			"status": result.Status,
			"range":  result.Range,
			"size":   size,
		})
	}
}

func defaultPreloadSize(d Deps) int64 {
	if d.Global.SegmentSize.Bytes() > 0 {
		return d.Global.SegmentSize.Bytes()
	}
	return 2 * 1024 * 1024
}

func parseOptionalInt64(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func propfindHandler(d Deps) fiber.Handler {
	return func(c fiber.Ctx) error {
		if d.Browser == nil {
			return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "webdav browsing not configured"})
		}
		reqPath := requestPath(c)
		entries, err := d.Browser.List(reqPath)
		if err != nil {
			d.Logger.WithError(err).WithFields(logrus.Fields{
				"action": "propfind",
				"path":   reqPath,
			}).Warn("propfind_failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "directory listing failed"})
		}
		return c.JSON(fiber.Map{"entries": entries})
	}
}

// reverseProxy forwards anything the dispatch table doesn't claim: it
// strips Origin/Referer, rewrites Host, and streams the body both ways.
func reverseProxy(c fiber.Ctx, d Deps, targetURL string) error {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream target"})
	}

	body := io.Reader(http.NoBody)
	if len(c.Body()) > 0 {
		body = strings.NewReader(string(c.Body()))
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), targetURL, body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to build upstream request"})
	}
	req.Header = connpool.PrepareOutbound(fiberHeadersAsHTTP(c), parsed.Host)

	httpClient := &http.Client{Transport: d.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		d.Logger.WithError(err).WithFields(logrus.Fields{
			"action": "reverse_proxy",
			"target": targetURL,
		}).Warn("reverse_proxy_failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream request failed"})
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if connpool.IsHopByHopHeader(key) {
			continue
		}
		for _, v := range values {
			c.Response().Header.Add(key, v)
		}
	}
	if isVideoPath(c) {
		c.Set("Accept-Ranges", "bytes")
	}
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		return nil
	}
	_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	return err
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func requestPath(c fiber.Ctx) string {
	uri := c.Request().URI()
	if uri == nil {
		return "/"
	}
	p := string(uri.Path())
	if p == "" {
		return "/"
	}
	return p
}

func isVideoPath(c fiber.Ctx) bool {
	return videoExtensionPattern.MatchString(requestPath(c))
}

func hasRangeHeader(c fiber.Ctx) bool {
	return len(c.Request().Header.Peek("Range")) > 0
}

func resolveTargetURL(g config.GlobalConfig, c fiber.Ctx) string {
	return joinTargetURL(g, requestPath(c))
}

func joinTargetURL(g config.GlobalConfig, path string) string {
	base := strings.TrimRight(g.TargetHost, "/")
	prefix := g.TargetPath
	if prefix == "" {
		prefix = "/webdav"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + prefix + path
}
