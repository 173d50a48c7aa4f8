// Package handlers provides HTTP request handlers for the streaming API.
package handlers

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oremus-labs/ol-jsonl/internal/events"
	"github.com/oremus-labs/ol-jsonl/internal/logutil"
	"github.com/oremus-labs/ol-jsonl/internal/metrics"
	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
	"github.com/oremus-labs/ol-jsonl/internal/openapi"
	"github.com/oremus-labs/ol-jsonl/internal/users"
)

// Options configures handler runtime behavior.
type Options struct {
	Mode            ndjson.Mode
	StampDoneOnLast bool
	Pacing          time.Duration
	Version         string
}

type eventBus interface {
	Publish(context.Context, events.Event) error
	Events(context.Context) iter.Seq2[events.Event, error]
}

// Handler encapsulates dependencies for HTTP handlers.
type Handler struct {
	source users.Source
	codec  ndjson.Codec[users.User]
	bus    eventBus
	opts   Options
}

// New creates a new Handler instance. A nil codec streams plain JSON users and
// a nil bus disables lifecycle events.
func New(source users.Source, codec ndjson.Codec[users.User], bus eventBus, opts Options) *Handler {
	if codec == nil {
		codec = ndjson.JSONCodec[users.User]{}
	}
	if bus != nil && isNilBus(bus) {
		bus = nil
	}
	return &Handler{
		source: source,
		codec:  codec,
		bus:    bus,
		opts:   opts,
	}
}

func isNilBus(bus eventBus) bool {
	b, ok := bus.(*events.Bus)
	return ok && b == nil
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.opts.Version,
		"mode":    h.opts.Mode.String(),
	})
}

// OpenAPISpec serves the API description, as JSON unless ?format=yaml.
func (h *Handler) OpenAPISpec(c *gin.Context) {
	doc, contentType, err := openapi.Document(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, doc)
}

// StreamUsers streams every user as NDJSON. The framing mode defaults to the
// configured one and can be overridden with ?mode=bare|enveloped.
func (h *Handler) StreamUsers(c *gin.Context) {
	mode := h.opts.Mode
	if raw := c.Query("mode"); raw != "" {
		parsed, err := ndjson.ParseMode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mode = parsed
	}
	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user source not configured"})
		return
	}

	opts := ndjson.EncoderOptions{
		Mode:            mode,
		StampDoneOnLast: h.opts.StampDoneOnLast,
		Pacer:           ndjson.IntervalPacer(h.opts.Pacing),
	}
	ctx := c.Request.Context()
	streamResponse(c, h, "/users", h.codec, opts, h.source.Users(ctx), true)
}

// StreamEvents follows the lifecycle event bus as an unbounded enveloped
// stream. It ends when the client disconnects or the bus is closed.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not configured"})
		return
	}
	opts := ndjson.EncoderOptions{Mode: ndjson.ModeEnveloped}
	ctx := c.Request.Context()
	streamResponse(c, h, "/events", ndjson.JSONCodec[events.Event]{}, opts, h.bus.Events(ctx), false)
}

func streamResponse[T any](c *gin.Context, h *Handler, route string, codec ndjson.Codec[T], opts ndjson.EncoderOptions, src iter.Seq2[T, error], announce bool) {
	ctx := c.Request.Context()
	info := events.StreamInfo{
		StreamID:  uuid.NewString(),
		Route:     route,
		Mode:      opts.Mode.String(),
		RequestID: c.GetString("requestID"),
	}
	if announce {
		h.publish(ctx, events.TypeStreamStarted, info)
	}
	done := metrics.StreamStarted(route)

	header := c.Writer.Header()
	header.Set("Content-Type", ndjson.ContentType)
	header.Set(ndjson.ModeHeader, opts.Mode.String())
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	enc := ndjson.NewEncoder[T](c.Writer, codec, opts)
	err := enc.StreamErr(ctx, src)
	info.Frames = enc.Frames()

	fields := map[string]interface{}{
		"stream_id":  info.StreamID,
		"route":      route,
		"mode":       info.Mode,
		"frames":     info.Frames,
		"request_id": info.RequestID,
	}
	switch {
	case err == nil:
		done(metrics.OutcomeCompleted, info.Mode, info.Frames)
		logutil.Info("stream completed", fields)
		if announce {
			h.publish(ctx, events.TypeStreamCompleted, info)
		}
	case errors.Is(err, ndjson.ErrSinkClosed) || ctx.Err() != nil:
		done(metrics.OutcomeAborted, info.Mode, info.Frames)
		logutil.Info("stream closed by peer", fields)
		if announce {
			h.publish(context.WithoutCancel(ctx), events.TypeStreamAborted, info)
		}
	default:
		done(metrics.OutcomeFailed, info.Mode, info.Frames)
		logutil.Error("stream failed", err, fields)
		info.Error = err.Error()
		if announce {
			h.publish(context.WithoutCancel(ctx), events.TypeStreamFailed, info)
		}
		abortConnection(c)
	}
}

// abortConnection drops the connection so the peer observes a truncated body
// instead of a clean end of stream.
func abortConnection(c *gin.Context) {
	// gin's writer panics when the underlying writer cannot be hijacked (HTTP/2).
	defer func() { _ = recover() }()
	hj, ok := c.Writer.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func (h *Handler) publish(ctx context.Context, eventType string, info events.StreamInfo) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(ctx, events.Event{Type: eventType, Data: info}); err != nil {
		logutil.Error("publish stream event", err, map[string]interface{}{
			"type":      eventType,
			"stream_id": info.StreamID,
		})
	}
}
