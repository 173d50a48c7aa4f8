// Package client consumes NDJSON streams served by the stream server.
package client

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oremus-labs/ol-jsonl/internal/events"
	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
	"github.com/oremus-labs/ol-jsonl/internal/users"
)

// Client wraps API calls.
type Client struct {
	BaseURL string
	Token   string
	// Timeout bounds the wait for response headers. The body of a stream is
	// never subject to it.
	Timeout    time.Duration
	HTTPClient *http.Client

	defaultOnce sync.Once
	defaultHTTP *http.Client
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", ndjson.ContentType)
	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// Built once so keep-alive connections are reused across streams.
	c.defaultOnce.Do(func() {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.Timeout
		c.defaultHTTP = &http.Client{Transport: transport}
	})
	return c.defaultHTTP
}

// Fetch requests path and decodes the response body as an NDJSON stream of T.
//
// Nothing is sent until the sequence is iterated. A non-2xx response yields a
// single HTTPStatusError and its body is discarded unread. A response that
// announces a framing mode other than opts.Mode yields a ModeMismatchError.
// Stopping the iteration early closes the response body.
func Fetch[T any](ctx context.Context, c *Client, path string, codec ndjson.Codec[T], opts ndjson.DecoderOptions) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		req, err := c.newRequest(ctx, path)
		if err != nil {
			yield(zero, &ndjson.TransportError{Err: err})
			return
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			yield(zero, &ndjson.TransportError{Err: err})
			return
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			yield(zero, &ndjson.HTTPStatusError{Code: resp.StatusCode, Status: resp.Status})
			return
		}
		if announced := resp.Header.Get(ndjson.ModeHeader); announced != "" {
			mode, err := ndjson.ParseMode(announced)
			if err != nil || mode != opts.Mode {
				_ = resp.Body.Close()
				yield(zero, &ndjson.ModeMismatchError{Want: opts.Mode, Got: announced})
				return
			}
		}

		dec := ndjson.NewDecoder(codec, opts)
		for v, err := range dec.DecodeReader(resp.Body) {
			if !yield(v, err) {
				return
			}
		}
	}
}

// Users streams GET /users, asking the server for the framing mode in opts.
func (c *Client) Users(ctx context.Context, codec ndjson.Codec[users.User], opts ndjson.DecoderOptions) iter.Seq2[users.User, error] {
	if codec == nil {
		codec = ndjson.JSONCodec[users.User]{Strict: true}
	}
	query := url.Values{"mode": []string{opts.Mode.String()}}
	return Fetch(ctx, c, "/users?"+query.Encode(), codec, opts)
}

// Events follows GET /events until ctx ends or the server closes the stream.
func (c *Client) Events(ctx context.Context) iter.Seq2[events.Event, error] {
	return Fetch[events.Event](ctx, c, "/events", nil, ndjson.DecoderOptions{Mode: ndjson.ModeEnveloped})
}
