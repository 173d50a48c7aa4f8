package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-jsonl/internal/events"
	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
	"github.com/oremus-labs/ol-jsonl/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
	feed      []events.Event
}

func (f *fakeBus) Publish(_ context.Context, evt events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, evt)
	return nil
}

func (f *fakeBus) Events(context.Context) iter.Seq2[events.Event, error] {
	return func(yield func(events.Event, error) bool) {
		for _, evt := range f.feed {
			if !yield(evt, nil) {
				return
			}
		}
	}
}

func (f *fakeBus) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, evt := range f.published {
		out = append(out, evt.Type)
	}
	return out
}

type failingSource struct {
	after int
	err   error
}

func (f failingSource) Users(context.Context) iter.Seq2[users.User, error] {
	return func(yield func(users.User, error) bool) {
		for _, u := range users.Defaults[:f.after] {
			if !yield(u, nil) {
				return
			}
		}
		yield(users.User{}, f.err)
	}
}

func serveUsers(h *Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set("requestID", "req-1")
	h.StreamUsers(c)
	return w
}

func TestStreamUsersEnveloped(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	handler := New(users.Memory(users.Defaults), nil, bus, Options{Mode: ndjson.ModeEnveloped, StampDoneOnLast: true})

	w := serveUsers(handler, "/users")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != ndjson.ContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if mode := w.Header().Get(ndjson.ModeHeader); mode != "enveloped" {
		t.Fatalf("unexpected mode header %q", mode)
	}

	want := `{"data":{"id":1,"name":"Alice"},"done":false}` + "\n" +
		`{"data":{"id":2,"name":"Bob"},"done":false}` + "\n" +
		`{"data":{"id":3,"name":"Charlie"},"done":false}` + "\n" +
		`{"data":{"id":4,"name":"David"},"done":true}` + "\n"
	if w.Body.String() != want {
		t.Fatalf("unexpected body:\n%s", w.Body.String())
	}
	if !w.Flushed {
		t.Fatalf("expected frames to be flushed")
	}

	got := bus.types()
	if len(got) != 2 || got[0] != events.TypeStreamStarted || got[1] != events.TypeStreamCompleted {
		t.Fatalf("unexpected lifecycle events %v", got)
	}
	info, ok := bus.published[1].Data.(events.StreamInfo)
	if !ok || info.Frames != 4 || info.RequestID != "req-1" || info.StreamID == "" {
		t.Fatalf("unexpected completion payload %+v", bus.published[1].Data)
	}
}

func TestStreamUsersModeOverride(t *testing.T) {
	t.Parallel()

	handler := New(users.Memory(users.Defaults[:2]), nil, nil, Options{Mode: ndjson.ModeEnveloped})

	w := serveUsers(handler, "/users?mode=bare")
	want := `{"id":1,"name":"Alice"}` + "\n" + `{"id":2,"name":"Bob"}` + "\n"
	if w.Body.String() != want {
		t.Fatalf("unexpected body:\n%s", w.Body.String())
	}
	if mode := w.Header().Get(ndjson.ModeHeader); mode != "bare" {
		t.Fatalf("unexpected mode header %q", mode)
	}

	w = serveUsers(handler, "/users?mode=chunked")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", w.Code)
	}
}

func TestStreamUsersEnvelopedSentinel(t *testing.T) {
	t.Parallel()

	handler := New(users.Memory(users.Defaults[:1]), nil, nil, Options{Mode: ndjson.ModeEnveloped})
	w := serveUsers(handler, "/users")
	want := `{"data":{"id":1,"name":"Alice"},"done":false}` + "\n" + `{"data":null,"done":true}` + "\n"
	if w.Body.String() != want {
		t.Fatalf("unexpected body:\n%s", w.Body.String())
	}
}

func TestStreamUsersWithoutSource(t *testing.T) {
	t.Parallel()

	w := serveUsers(New(nil, nil, nil, Options{}), "/users")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", w.Code)
	}
}

func TestStreamUsersSourceFailureTruncatesBody(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	handler := New(failingSource{after: 2, err: errors.New("database went away")}, nil, bus, Options{Mode: ndjson.ModeBare})
	engine := gin.New()
	engine.GET("/users", handler.StreamUsers)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/users")
	if err != nil {
		t.Fatalf("GET /users: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 got %d", resp.StatusCode)
	}

	dec := ndjson.NewDecoder[users.User](nil, ndjson.DecoderOptions{Mode: ndjson.ModeBare})
	var (
		got     []users.User
		lastErr error
	)
	for u, err := range dec.DecodeReader(resp.Body) {
		if err != nil {
			lastErr = err
			continue
		}
		got = append(got, u)
	}
	if len(got) != 2 {
		t.Fatalf("expected the two frames written before the failure, got %+v", got)
	}
	var transportErr *ndjson.TransportError
	if !errors.As(lastErr, &transportErr) {
		t.Fatalf("expected the truncated body to surface as a transport error, got %v", lastErr)
	}

	types := bus.types()
	if len(types) != 2 || types[1] != events.TypeStreamFailed {
		t.Fatalf("unexpected lifecycle events %v", types)
	}
}

func TestStreamEvents(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{feed: []events.Event{
		{ID: "e1", Type: events.TypeStreamStarted},
		{ID: "e2", Type: events.TypeStreamCompleted},
	}}
	handler := New(nil, nil, bus, Options{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/events", nil)
	handler.StreamEvents(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", w.Code)
	}
	dec := ndjson.NewDecoder[events.Event](nil, ndjson.DecoderOptions{Mode: ndjson.ModeEnveloped})
	var ids []string
	for evt, err := range dec.Decode(ndjson.Chunks(w.Body, 7)) {
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		ids = append(ids, evt.ID)
	}
	if len(ids) != 2 || ids[0] != "e1" || ids[1] != "e2" {
		t.Fatalf("unexpected events %v", ids)
	}
	if len(bus.types()) != 0 {
		t.Fatalf("the events stream must not announce itself")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	handler := New(nil, nil, nil, Options{Version: "1.2.3", Mode: ndjson.ModeBare})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.Health(c)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" || body["mode"] != "bare" {
		t.Fatalf("unexpected health payload %v", body)
	}
}
