package rangeengine

import (
	"fmt"

	"github.com/streamhub/videoproxy/internal/connpool"
)

// Kind classifies a terminal engine failure per the error taxonomy: each
// maps to a specific client-visible status code.
type Kind int

const (
	KindMalformedRange Kind = iota
	KindRangeUnsatisfiable
	KindUpstreamError
	KindUpstreamTimeout
	KindClientAborted
	KindInternalError
)

// StatusCode returns the HTTP status the router should write for this Kind,
// when headers have not yet been sent to the client.
func (k Kind) StatusCode() int {
	switch k {
	case KindMalformedRange:
		return 400
	case KindRangeUnsatisfiable:
		return 416
	case KindUpstreamError:
		return 502
	case KindUpstreamTimeout:
		return 504
	case KindInternalError:
		return 500
	default:
		return 500
	}
}

// EngineError is a terminal failure of the state machine, carrying enough
// context for the router to render the §7 error taxonomy.
type EngineError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *EngineError) Unwrap() error { return e.Cause }

func newError(kind Kind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// classifyUpstreamErr distinguishes a stuck connect/read (surfaced as
// UpstreamTimeout -> 504) from any other origin failure (UpstreamError -> 502).
func classifyUpstreamErr(message string, cause error) *EngineError {
	if connpool.IsTimeout(cause) {
		return newError(KindUpstreamTimeout, message, cause)
	}
	return newError(KindUpstreamError, message, cause)
}
