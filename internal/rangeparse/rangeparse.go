// Package rangeparse decodes HTTP Range headers against a known resource
// size and applies the prefetch-expansion policy that turns small seek
// requests into segment-cache-friendly fetches.
package rangeparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

const (
	// MinChunk is the smallest request size left unexpanded.
	MinChunk = 5 * 1024 * 1024
	// OptimalChunk is the target size a small request is expanded to.
	OptimalChunk = 10 * 1024 * 1024
	// midBand is the upper bound of the "expand proportionally" band.
	midBand = 20 * 1024 * 1024
)

var rangePattern = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// MalformedRangeError is returned when the header doesn't match the accepted grammar.
type MalformedRangeError struct {
	Header string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range header: %q", e.Header)
}

// UnsatisfiableRangeError is returned when the requested start is at or past
// the resource's total size.
type UnsatisfiableRangeError struct {
	Start, Total int64
}

func (e *UnsatisfiableRangeError) Error() string {
	return fmt.Sprintf("range start %d is not satisfiable for total size %d", e.Start, e.Total)
}

// Range is a half-open-looking but inclusive byte interval, plus optional
// bookkeeping for a prefetch expansion applied on top of the client's ask.
type Range struct {
	Start    int64
	End      int64
	Total    int64
	Expanded bool
	// OriginalEnd is the end the client actually asked for, when Expanded is
	// true. The engine owes the client only [Start, OriginalEnd].
	OriginalEnd int64
}

// ClientLength is the number of bytes the client should ultimately receive.
func (r Range) ClientLength() int64 {
	if r.Expanded {
		return r.OriginalEnd - r.Start + 1
	}
	return r.End - r.Start + 1
}

// ClientEnd is the end byte the client actually asked for.
func (r Range) ClientEnd() int64 {
	if r.Expanded {
		return r.OriginalEnd
	}
	return r.End
}

// FetchLength is the number of bytes the engine will request from upstream,
// i.e. the (possibly expanded) interval.
func (r Range) FetchLength() int64 {
	return r.End - r.Start + 1
}

// Parse decodes header against total and applies the prefetch expansion policy.
func Parse(header string, total int64) (Range, error) {
	if total <= 0 {
		return Range{}, fmt.Errorf("total must be positive, got %d", total)
	}

	start, end, err := parseInterval(header, total)
	if err != nil {
		return Range{}, err
	}
	if start >= total {
		return Range{}, &UnsatisfiableRangeError{Start: start, Total: total}
	}

	r := Range{Start: start, End: end, Total: total}
	return expand(r), nil
}

func parseInterval(header string, total int64) (int64, int64, error) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, &MalformedRangeError{Header: header}
	}

	matches := rangePattern.FindStringSubmatch(header)
	if matches == nil {
		return 0, 0, &MalformedRangeError{Header: header}
	}

	startStr, endStr := matches[1], matches[2]

	switch {
	case startStr == "" && endStr == "":
		return 0, 0, &MalformedRangeError{Header: header}
	case startStr == "":
		// bytes=-N : suffix length
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, &MalformedRangeError{Header: header}
		}
		start := total - n
		if start < 0 {
			start = 0
		}
		return start, total - 1, nil
	case endStr == "":
		// bytes=S- : from S to end
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return 0, 0, &MalformedRangeError{Header: header}
		}
		return start, total - 1, nil
	default:
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return 0, 0, &MalformedRangeError{Header: header}
		}
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, &MalformedRangeError{Header: header}
		}
		if end >= total {
			end = total - 1
		}
		return start, end, nil
	}
}

func expand(r Range) Range {
	req := r.End - r.Start + 1
	max := r.Total - 1

	switch {
	case req < MinChunk:
		end := r.Start + OptimalChunk - 1
		if end > max {
			end = max
		}
		r.OriginalEnd = r.End
		r.End = end
		r.Expanded = true
	case req < midBand:
		target := int64(float64(req) * 1.5)
		if target < OptimalChunk {
			target = OptimalChunk
		}
		end := r.Start + target - 1
		if end > max {
			end = max
		}
		if end > r.End {
			r.OriginalEnd = r.End
			r.End = end
			r.Expanded = true
		}
	}

	return r
}
