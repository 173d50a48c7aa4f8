package events

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream lifecycle event types.
const (
	TypeStreamStarted   = "stream.started"
	TypeStreamCompleted = "stream.completed"
	TypeStreamAborted   = "stream.aborted"
	TypeStreamFailed    = "stream.failed"
)

// Event represents a stream lifecycle event.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// StreamInfo is the payload of stream lifecycle events.
type StreamInfo struct {
	StreamID  string `json:"streamId"`
	Route     string `json:"route"`
	Mode      string `json:"mode"`
	Frames    int    `json:"frames,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Bus multiplexes events to connected subscribers (local + Redis backed).
type Bus struct {
	client redis.UniversalClient
	logger *log.Logger
	ch     string
	buffer int

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
	stop        context.CancelFunc
	done        chan struct{}
}

// Options configure the bus.
type Options struct {
	Client  redis.UniversalClient
	Logger  *log.Logger
	Channel string
	// Buffer is the per-subscriber backlog. Events beyond it are dropped.
	Buffer int
}

// NewBus creates a new event bus. With a Redis client, events published by
// other replicas are relayed to local subscribers.
func NewBus(opts Options) *Bus {
	channel := opts.Channel
	if channel == "" {
		channel = "jsonl-stream-events"
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		client:      opts.Client,
		logger:      opts.Logger,
		ch:          channel,
		buffer:      buffer,
		subscribers: make(map[chan Event]struct{}),
		stop:        cancel,
		done:        make(chan struct{}),
	}
	if bus.client != nil {
		go bus.observeRedis(ctx)
	} else {
		close(bus.done)
	}
	return bus
}

// Publish broadcasts an event to all subscribers and Redis.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	// Redis echoes our own messages back through observeRedis.
	if b.client != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := b.client.Publish(ctx, b.ch, payload).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
		return nil
	}

	b.broadcast(evt)
	return nil
}

// Subscribe registers a subscriber and returns a channel plus a cancel func.
// The channel is closed when ctx ends, cancel is called or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, fmt.Errorf("event bus closed")
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var (
		once    sync.Once
		stopped = make(chan struct{})
	)
	cancel := func() {
		once.Do(func() {
			close(stopped)
			b.mu.Lock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stopped:
		}
	}()

	return ch, cancel, nil
}

// Events subscribes for the lifetime of the returned sequence. The sequence
// ends when ctx is done or the bus is closed.
func (b *Bus) Events(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		ch, cancel, err := b.Subscribe(ctx)
		if err != nil {
			yield(Event{}, err)
			return
		}
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !yield(evt, nil) {
					return
				}
			}
		}
	}
}

// Close detaches every subscriber and stops relaying from Redis.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()

	b.stop()
	<-b.done
	return nil
}

func (b *Bus) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			if b.logger != nil {
				b.logger.Printf("events: dropping event %s (subscriber backlog)", evt.ID)
			}
		}
	}
}

func (b *Bus) observeRedis(ctx context.Context) {
	defer close(b.done)
	pubsub := b.client.Subscribe(ctx, b.ch)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if b.logger != nil {
				b.logger.Printf("events: redis subscriber error: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			if b.logger != nil {
				b.logger.Printf("events: invalid payload: %v", err)
			}
			continue
		}
		b.broadcast(evt)
	}
}
