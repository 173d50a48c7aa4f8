package ndjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"
)

// Pacer is consulted before each record is written. Returning an error stops
// the stream. It replaces hardcoded delays between records.
type Pacer func(ctx context.Context, index int) error

// IntervalPacer spaces records d apart. The first record is never delayed.
// The wait is abandoned as soon as ctx is done.
func IntervalPacer(d time.Duration) Pacer {
	if d <= 0 {
		return nil
	}
	return func(ctx context.Context, index int) error {
		if index == 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// EncoderOptions configures the producer side.
type EncoderOptions struct {
	Mode Mode
	// StampDoneOnLast looks one record ahead so the final envelope carries
	// done=true. Without it an enveloped stream ends with a data-less
	// {"data":null,"done":true} sentinel. Ignored in bare mode.
	StampDoneOnLast bool
	Pacer           Pacer
}

// Encoder writes records to a sink as NDJSON frames.
type Encoder[T any] struct {
	sink    io.Writer
	flusher http.Flusher
	codec   Codec[T]
	opts    EncoderOptions

	buf    bytes.Buffer
	frames int
}

// NewEncoder returns an Encoder writing to sink. When sink implements
// http.Flusher every frame is flushed before the next record is pulled.
func NewEncoder[T any](sink io.Writer, codec Codec[T], opts EncoderOptions) *Encoder[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	enc := &Encoder[T]{sink: sink, codec: codec, opts: opts}
	if f, ok := sink.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// Frames returns the number of frames written so far, sentinel included.
func (e *Encoder[T]) Frames() int {
	return e.frames
}

// Stream writes one frame per record of src, in order.
func (e *Encoder[T]) Stream(ctx context.Context, src iter.Seq[T]) error {
	return e.StreamErr(ctx, func(yield func(T, error) bool) {
		for v := range src {
			if !yield(v, nil) {
				return
			}
		}
	})
}

// StreamErr is Stream for sources that can fail. A source error ends the
// stream with a SourceError. The returned error wraps ErrSinkClosed when the
// peer stopped reading or ctx was cancelled; src is not pulled again after that.
func (e *Encoder[T]) StreamErr(ctx context.Context, src iter.Seq2[T, error]) error {
	if e.opts.Mode == ModeEnveloped && e.opts.StampDoneOnLast {
		return e.streamStamped(ctx, src)
	}

	index := 0
	for v, err := range src {
		if err != nil {
			return &SourceError{At: index, Err: err}
		}
		if err := e.emit(ctx, index, v, false); err != nil {
			return err
		}
		index++
	}
	if e.opts.Mode == ModeEnveloped {
		return e.writeSentinel(ctx)
	}
	return nil
}

// streamStamped holds back exactly one record so the last one can be
// written with done=true.
func (e *Encoder[T]) streamStamped(ctx context.Context, src iter.Seq2[T, error]) error {
	next, stop := iter.Pull2(src)
	defer stop()

	cur, err, ok := next()
	if !ok {
		return e.writeSentinel(ctx)
	}
	for index := 0; ok; index++ {
		if err != nil {
			return &SourceError{At: index, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrSinkClosed, ctxErr)
		}
		following, followingErr, more := next()
		if err := e.emit(ctx, index, cur, !more); err != nil {
			return err
		}
		cur, err, ok = following, followingErr, more
	}
	return nil
}

func (e *Encoder[T]) emit(ctx context.Context, index int, v T, last bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkClosed, err)
	}
	if e.opts.Pacer != nil {
		if err := e.opts.Pacer(ctx, index); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrSinkClosed, err)
			}
			return err
		}
	}

	raw, err := e.codec.Marshal(v)
	if err != nil {
		return &SerializeError{At: index, Err: err}
	}

	e.buf.Reset()
	if e.opts.Mode == ModeEnveloped {
		e.buf.WriteString(`{"data":`)
	}
	// Compact guarantees the record holds no raw newline.
	if err := json.Compact(&e.buf, raw); err != nil {
		return &SerializeError{At: index, Err: err}
	}
	if e.opts.Mode == ModeEnveloped {
		if last {
			e.buf.WriteString(`,"done":true}`)
		} else {
			e.buf.WriteString(`,"done":false}`)
		}
	}
	e.buf.WriteByte(Delimiter)
	return e.flush()
}

func (e *Encoder[T]) writeSentinel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkClosed, err)
	}
	e.buf.Reset()
	e.buf.WriteString(`{"data":null,"done":true}`)
	e.buf.WriteByte(Delimiter)
	return e.flush()
}

func (e *Encoder[T]) flush() error {
	if _, err := e.sink.Write(e.buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkClosed, err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	e.frames++
	return nil
}
