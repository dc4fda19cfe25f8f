// Package originclient issues HEAD/GET requests to the configured WebDAV
// origin (and to whatever a redirect resolves to), and classifies the
// response so the range engine can pick a serving strategy.
package originclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/streamhub/videoproxy/internal/connpool"
)

// Kind is the classification of an origin response.
type Kind int

const (
	KindUnknown Kind = iota
	KindPartialContent
	KindFullContent
	KindRedirect
	KindError
)

// Response wraps an origin HTTP response with its classification. The caller
// owns Body and must close it.
type Response struct {
	Kind          Kind
	StatusCode    int
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
	Location      string // set when Kind == KindRedirect
}

// Client issues requests against a single configured origin using a shared,
// pooled transport.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
	timeout    time.Duration
}

// New builds a Client around the given transport and optional basic-auth
// credentials (either both set or both empty, per configuration validation).
// timeout bounds every individual HEAD/GET attempt (0 disables the bound).
func New(transport *http.Transport, username, password string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are classified and followed explicitly by the range
			// engine, not by the HTTP client.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		username: username,
		password: password,
		timeout:  timeout,
	}
}

func (c *Client) authenticate(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// withDeadline bounds ctx by c.timeout when one is configured, returning a
// no-op cancel func otherwise.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return connpool.WithDeadline(ctx, c.timeout)
}

// Head issues a HEAD request, used only to learn Content-Length/ETag/etc for
// the metadata cache.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build HEAD request")
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HEAD request to origin failed")
	}
	return resp, nil
}

// Get issues a GET with the given headers (typically a Range header) and
// classifies the response. The caller must close Response.Body, which
// releases the deadline context established for this call.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	ctx, cancel := c.withDeadline(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to build GET request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "GET request to origin failed")
	}

	out := &Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		Body:          cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		ContentLength: resp.ContentLength,
	}

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		out.Kind = KindPartialContent
	case resp.StatusCode == http.StatusOK:
		out.Kind = KindFullContent
	case resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound:
		out.Kind = KindRedirect
		out.Location = resp.Header.Get("Location")
	default:
		out.Kind = KindError
	}

	return out, nil
}

// cancelOnClose releases a GET call's deadline context once the caller is
// done with the response body, rather than leaking it until the deadline
// itself fires.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
