// Package rangeengine implements the streaming Range-serving state machine:
// given a client Range request and a configured origin, it satisfies the
// request from the segment cache and/or upstream without ever buffering a
// full response body, picking between native-206 passthrough, stream-slice
// from a 200 body, and redirect-follow to a CDN.
package rangeengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/streamhub/videoproxy/internal/metacache"
	"github.com/streamhub/videoproxy/internal/originclient"
	"github.com/streamhub/videoproxy/internal/rangeparse"
	"github.com/streamhub/videoproxy/internal/segcache"
)

// ThroughputRecorder receives a byte count every time a chunk is written to
// a client, feeding the stats rolling-window meter.
type ThroughputRecorder interface {
	RecordBytes(n int64)
}

const defaultContentType = "video/mp4"
const neutralUserAgent = "videoproxy/1.0"

const chunkBufSize = 32 * 1024

// Engine is C7, the streaming Range-serving state machine.
type Engine struct {
	origin        *originclient.Client
	segCache      *segcache.Cache
	metaCache     *metacache.MetadataCache
	redirectCache *metacache.RedirectCache
}

func New(origin *originclient.Client, segCache *segcache.Cache, metaCache *metacache.MetadataCache, redirectCache *metacache.RedirectCache) *Engine {
	return &Engine{
		origin:        origin,
		segCache:      segCache,
		metaCache:     metaCache,
		redirectCache: redirectCache,
	}
}

// Serve handles one client Range request against targetURL, writing the 206
// response (or a terminal error) through c.
func (e *Engine) Serve(c fiber.Ctx, targetURL string, stats ThroughputRecorder) error {
	ctx := c.Context()

	size, err := e.resolveSize(ctx, targetURL)
	if err != nil {
		return err
	}
	if size <= 0 {
		return newError(KindRangeUnsatisfiable, "resource has zero length", nil)
	}

	header := string(c.Request().Header.Peek("Range"))
	r, err := rangeparse.Parse(header, size)
	if err != nil {
		var unsat *rangeparse.UnsatisfiableRangeError
		if errors.As(err, &unsat) {
			return newError(KindRangeUnsatisfiable, "range start is not satisfiable", err)
		}
		return newError(KindMalformedRange, "could not parse Range header", err)
	}

	if full, ok := e.tryCacheHit(targetURL, r); ok {
		return e.writeFromCache(c, targetURL, r, full)
	}

	if resolved, ok := e.redirectCache.Get(targetURL); ok {
		return e.fetchFromCDN(c, ctx, targetURL, resolved, r, stats, false)
	}

	fetchStart, fetchEnd := e.alignedFetchRange(r)
	resp, err := e.origin.Get(ctx, targetURL, rangeOutHeader(fetchStart, fetchEnd))
	if err != nil {
		return classifyUpstreamErr("GET request to origin failed", err)
	}

	switch resp.Kind {
	case originclient.KindPartialContent:
		return e.streamSliced(c, resp.Body, fetchStart, resp.Header.Get("Content-Type"), r, targetURL, stats)
	case originclient.KindFullContent:
		return e.streamSliced(c, resp.Body, 0, resp.Header.Get("Content-Type"), r, targetURL, stats)
	case originclient.KindRedirect:
		resp.Body.Close()
		e.redirectCache.Set(targetURL, resp.Location)
		return e.fetchFromCDN(c, ctx, targetURL, resp.Location, r, stats, false)
	default:
		status := resp.StatusCode
		resp.Body.Close()
		return newError(KindUpstreamError, fmt.Sprintf("origin returned status %d", status), nil)
	}
}

// resolveSize returns the resource's total size, consulting the metadata
// cache before issuing a HEAD.
func (e *Engine) resolveSize(ctx context.Context, url string) (int64, error) {
	if meta, ok := e.metaCache.Get(url); ok {
		return meta.ContentLength, nil
	}

	resp, err := e.origin.Head(ctx, url)
	if err != nil {
		return 0, classifyUpstreamErr("HEAD request to origin failed", err)
	}
	defer resp.Body.Close()

	meta := metacache.ObjectMeta{
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		LastModified:  resp.Header.Get("Last-Modified"),
		ETag:          resp.Header.Get("ETag"),
	}
	e.metaCache.Set(url, meta)
	return meta.ContentLength, nil
}

// tryCacheHit attempts to satisfy the client-visible portion of r (ignoring
// any prefetch expansion) entirely from the segment cache.
func (e *Engine) tryCacheHit(url string, r rangeparse.Range) ([]byte, bool) {
	segs := e.segCache.Coalesce(url, r.Start, r.ClientEnd())
	full, ok := segcache.Assemble(segs, r.Start, r.ClientEnd())
	e.segCache.RecordLookup(ok)
	return full, ok
}

func (e *Engine) writeFromCache(c fiber.Ctx, url string, r rangeparse.Range, clientBytes []byte) error {
	contentType := defaultContentType
	if meta, ok := e.metaCache.Get(url); ok && meta.ContentType != "" {
		contentType = meta.ContentType
	}

	writeRangeHeaders(c, r, contentType)
	c.Status(fiber.StatusPartialContent)

	if _, err := c.Response().BodyWriter().Write(clientBytes); err != nil {
		return newError(KindClientAborted, "client write failed", err)
	}
	return nil
}

// alignedFetchRange widens the outbound fetch interval to the containing
// segment boundaries when the client's request is smaller than half a
// segment, so a complete aligned segment can be cached from one round-trip.
func (e *Engine) alignedFetchRange(r rangeparse.Range) (int64, int64) {
	segSize := e.segCache.SegmentSize()
	if r.FetchLength() >= segSize/2 {
		return r.Start, r.End
	}

	segStart := e.segCache.AlignDown(r.Start)
	segEnd := segStart + segSize - 1
	if segEnd > r.Total-1 {
		segEnd = r.Total - 1
	}
	return segStart, segEnd
}

// fetchFromCDN issues the redirect-follow strategy against a resolved CDN
// URL. On a first-time fetch failure it authorizes exactly one retry: a
// fresh, Range-less GET to the origin to obtain an updated redirect target.
func (e *Engine) fetchFromCDN(c fiber.Ctx, ctx context.Context, originURL, cdnURL string, r rangeparse.Range, stats ThroughputRecorder, retried bool) error {
	fetchStart, fetchEnd := e.alignedFetchRange(r)
	header := rangeOutHeader(fetchStart, fetchEnd)
	header.Set("User-Agent", neutralUserAgent)

	resp, err := e.origin.Get(ctx, cdnURL, header)
	if err != nil {
		if !retried {
			return e.retryRedirect(c, ctx, originURL, r, stats)
		}
		return classifyUpstreamErr("CDN fetch failed", err)
	}

	switch resp.Kind {
	case originclient.KindPartialContent:
		return e.streamSliced(c, resp.Body, fetchStart, resp.Header.Get("Content-Type"), r, originURL, stats)
	case originclient.KindFullContent:
		return e.streamSliced(c, resp.Body, 0, resp.Header.Get("Content-Type"), r, originURL, stats)
	default:
		status := resp.StatusCode
		resp.Body.Close()
		if !retried {
			return e.retryRedirect(c, ctx, originURL, r, stats)
		}
		return newError(KindUpstreamError, fmt.Sprintf("CDN returned status %d", status), nil)
	}
}

func (e *Engine) retryRedirect(c fiber.Ctx, ctx context.Context, originURL string, r rangeparse.Range, stats ThroughputRecorder) error {
	resp, err := e.origin.Get(ctx, originURL, nil)
	if err != nil {
		return classifyUpstreamErr("redirect retry against origin failed", err)
	}
	defer resp.Body.Close()

	if resp.Kind != originclient.KindRedirect {
		return newError(KindUpstreamError, "redirect retry did not yield a fresh redirect", nil)
	}

	e.redirectCache.Set(originURL, resp.Location)
	return e.fetchFromCDN(c, ctx, originURL, resp.Location, r, stats, true)
}

// streamSliced is the reader -> filter -> writer pipeline shared by every
// strategy: it reads chunk-sized buffers from body (whose first byte is at
// absolute offset bodyStart), writes only the client-visible overlap, and
// feeds every observed byte to the segment filler as a best-effort cache fill.
func (e *Engine) streamSliced(c fiber.Ctx, body io.ReadCloser, bodyStart int64, contentType string, r rangeparse.Range, url string, stats ThroughputRecorder) error {
	defer body.Close()

	if contentType == "" {
		contentType = defaultContentType
	}
	writeRangeHeaders(c, r, contentType)
	c.Status(fiber.StatusPartialContent)

	w := c.Response().BodyWriter()
	filter := newSliceFilter(r.Start, r.ClientEnd(), r.End)
	filler := newSegmentFiller(e.segCache, url, r.Total)

	buf := make([]byte, chunkBufSize)
	pos := bodyStart
	drainEnd := int64(-1)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			filler.feed(pos, chunk)

			done, writeErr := filter.feed(w, pos, chunk)
			if writeErr != nil {
				return newError(KindClientAborted, "client write failed", writeErr)
			}
			if stats != nil {
				stats.RecordBytes(int64(n))
			}
			pos += int64(n)
			// Once the client has everything it is owed, keep draining only
			// long enough to finish the segment window already in flight --
			// bounded overhead of at most one segment, never delaying what
			// the client has already received.
			if done {
				if drainEnd < 0 {
					drainEnd = e.segCache.AlignDown(pos) + e.segCache.SegmentSize()
				}
				if !filler.pending() || pos >= drainEnd {
					return nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return classifyUpstreamErr("reading upstream body failed", readErr)
		}
	}
}

func writeRangeHeaders(c fiber.Ctx, r rangeparse.Range, contentType string) {
	c.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.Start, r.ClientEnd(), r.Total))
	c.Set("Content-Length", strconv.FormatInt(r.ClientLength(), 10))
	c.Set("Accept-Ranges", "bytes")
	c.Set("Content-Type", contentType)
}

func rangeOutHeader(start, end int64) http.Header {
	h := http.Header{}
	h.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	return h
}
