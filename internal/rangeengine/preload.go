package rangeengine

import (
	"context"
	"fmt"
	"io"

	"github.com/streamhub/videoproxy/internal/originclient"
)

const preloadBufSize = 32 * 1024

// PreloadResult is the outcome of a GET /api/preload request.
type PreloadResult struct {
	Status string // "cached" or "preloaded"
	Range  string // "S-E"
}

// Preload ensures the byte interval [start, start+size-1] of targetURL is
// present in the segment cache, fetching and committing aligned segments
// from upstream on a miss. It returns "cached" without any upstream traffic
// when the interval is already fully covered.
func (e *Engine) Preload(ctx context.Context, targetURL string, start, size int64) (PreloadResult, error) {
	end := start + size - 1
	result := PreloadResult{Range: fmt.Sprintf("%d-%d", start, end)}

	want := start
	for _, seg := range e.segCache.Coalesce(targetURL, start, end) {
		if want < seg.Start {
			break
		}
		if seg.End() >= want {
			want = seg.End() + 1
		}
	}
	if end >= start && want > end {
		result.Status = "cached"
		return result, nil
	}

	total, err := e.resolveSize(ctx, targetURL)
	if err != nil {
		return result, err
	}
	if end > total-1 {
		end = total - 1
		result.Range = fmt.Sprintf("%d-%d", start, end)
	}

	fetchURL := targetURL
	if resolved, ok := e.redirectCache.Get(targetURL); ok {
		fetchURL = resolved
	}

	resp, err := e.origin.Get(ctx, fetchURL, rangeOutHeader(start, end))
	if err != nil {
		return result, classifyUpstreamErr("preload GET failed", err)
	}

	if resp.Kind == originclient.KindRedirect {
		location := resp.Location
		resp.Body.Close()
		e.redirectCache.Set(targetURL, location)
		resp, err = e.origin.Get(ctx, location, rangeOutHeader(start, end))
		if err != nil {
			return result, classifyUpstreamErr("preload GET to redirect target failed", err)
		}
	}
	defer resp.Body.Close()

	bodyStart := start
	switch resp.Kind {
	case originclient.KindFullContent:
		bodyStart = 0
	case originclient.KindPartialContent:
	default:
		return result, newError(KindUpstreamError, fmt.Sprintf("preload fetch returned status %d", resp.StatusCode), nil)
	}

	filler := newSegmentFiller(e.segCache, targetURL, total)
	buf := make([]byte, preloadBufSize)
	pos := bodyStart
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			filler.feed(pos, buf[:n])
			pos += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return result, classifyUpstreamErr("reading preload body failed", readErr)
		}
	}

	result.Status = "preloaded"
	return result, nil
}
