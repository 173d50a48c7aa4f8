package ndjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"
)

// DefaultChunkSize is the read size used by Chunks when none is given.
const DefaultChunkSize = 32 * 1024

// State of a Decoder.
type State int

const (
	// StateOpen accepts further frames.
	StateOpen State = iota
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	if s == StateClosed {
		return "closed"
	}
	return "open"
}

// DecoderOptions configures the consumer side.
type DecoderOptions struct {
	Mode Mode
	// MaxFrameBytes caps a single frame. Zero means DefaultMaxFrameBytes.
	MaxFrameBytes int
	// AcceptUnterminatedTail decodes a final frame lacking its delimiter
	// instead of reporting ErrTruncatedFrame.
	AcceptUnterminatedTail bool
}

// Decoder turns a chunked byte stream into a sequence of records.
// A Decoder is single use: once its sequence ended it stays closed.
type Decoder[T any] struct {
	codec  Codec[T]
	opts   DecoderOptions
	state  State
	frames int
}

// NewDecoder returns a Decoder using codec, or JSONCodec when codec is nil.
func NewDecoder[T any](codec Codec[T], opts DecoderOptions) *Decoder[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = DefaultMaxFrameBytes
	}
	return &Decoder[T]{codec: codec, opts: opts}
}

// State reports whether the decoder can still produce records.
func (d *Decoder[T]) State() State {
	return d.state
}

// Frames returns the number of non-empty frames seen so far.
func (d *Decoder[T]) Frames() int {
	return d.frames
}

// Decode yields one element per frame of chunks, in arrival order.
//
// InvalidUTF8Error and DecodeError are yielded inline and decoding continues.
// TransportError, FrameTooLargeError and ErrTruncatedFrame are yielded last.
// In enveloped mode the sequence ends after the frame marked done; the chunk
// source is not pulled again.
func (d *Decoder[T]) Decode(chunks iter.Seq2[[]byte, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		if d.state == StateClosed {
			return
		}
		defer func() { d.state = StateClosed }()

		var (
			zero T
			rf   reframer
		)
		for chunk, err := range chunks {
			if err != nil {
				yield(zero, &TransportError{Err: err})
				return
			}
			rf.push(chunk)
			for {
				line, ok := rf.next()
				if !ok {
					break
				}
				line = trimCR(line)
				if len(line) > d.opts.MaxFrameBytes {
					yield(zero, &FrameTooLargeError{At: d.frames, Limit: d.opts.MaxFrameBytes})
					return
				}
				if !d.frame(line, yield) {
					return
				}
			}
			// The pending bytes may still end with the CR of a CRLF delimiter.
			if rf.pending() > d.opts.MaxFrameBytes+1 {
				yield(zero, &FrameTooLargeError{At: d.frames, Limit: d.opts.MaxFrameBytes})
				return
			}
		}

		tail := rf.tail()
		if isBlank(tail) {
			return
		}
		if !d.opts.AcceptUnterminatedTail {
			yield(zero, ErrTruncatedFrame)
			return
		}
		tail = trimCR(tail)
		if len(tail) > d.opts.MaxFrameBytes {
			yield(zero, &FrameTooLargeError{At: d.frames, Limit: d.opts.MaxFrameBytes})
			return
		}
		d.frame(tail, yield)
	}
}

// DecodeReader decodes rc and closes it when the sequence ends, including
// when the caller stops iterating early.
func (d *Decoder[T]) DecodeReader(rc io.ReadCloser) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer rc.Close()
		for v, err := range d.Decode(Chunks(rc, DefaultChunkSize)) {
			if !yield(v, err) {
				return
			}
		}
	}
}

// frame decodes a single line and reports whether decoding should go on.
func (d *Decoder[T]) frame(line []byte, yield func(T, error) bool) bool {
	if isBlank(line) {
		return true
	}
	var zero T
	at := d.frames
	d.frames++

	if !utf8.Valid(line) {
		return yield(zero, &InvalidUTF8Error{At: at})
	}
	// Detach from the reframer buffer before handing bytes to the codec.
	data := bytes.Clone(line)

	if d.opts.Mode == ModeBare {
		if isEnvelope(data) {
			return yield(zero, &DecodeError{At: at, Err: errEnvelopeInBare})
		}
		var v T
		if err := d.codec.Unmarshal(data, &v); err != nil {
			return yield(zero, &DecodeError{At: at, Err: err})
		}
		return yield(v, nil)
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return yield(zero, &DecodeError{At: at, Err: err})
	}
	if env.hasData() {
		var v T
		if err := d.codec.Unmarshal(env.Data, &v); err != nil {
			if !yield(zero, &DecodeError{At: at, Err: err}) {
				return false
			}
		} else if !yield(v, nil) {
			return false
		}
	}
	return !env.Done
}

var (
	errNotEnvelope    = errors.New("frame is not an envelope")
	errEnvelopeInBare = errors.New("enveloped frame in a bare stream")
)

// isEnvelope reports whether data is an object holding exactly a data field
// and a boolean done field, the shape every enveloped producer writes.
func isEnvelope(data []byte) bool {
	if !bytes.Contains(data, []byte(`"done"`)) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || len(fields) != 2 {
		return false
	}
	raw, ok := fields["done"]
	if _, hasData := fields["data"]; !ok || !hasData {
		return false
	}
	var done bool
	return json.Unmarshal(raw, &done) == nil
}

// decodeEnvelope only accepts objects made of the data and done fields, so a
// bare record is refused instead of being read as an empty envelope.
func decodeEnvelope(data []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Envelope{}, err
	}
	if fields == nil {
		return Envelope{}, errNotEnvelope
	}
	var env Envelope
	for key, raw := range fields {
		switch key {
		case "data":
			env.Data = raw
		case "done":
			if err := json.Unmarshal(raw, &env.Done); err != nil {
				return Envelope{}, fmt.Errorf("envelope done field: %w", err)
			}
		default:
			return Envelope{}, fmt.Errorf("%w: unexpected field %q", errNotEnvelope, key)
		}
	}
	if !env.hasData() && !env.Done {
		return Envelope{}, fmt.Errorf("%w: no data", errNotEnvelope)
	}
	return env, nil
}

// Chunks reads r in pieces of at most size bytes. A yielded chunk is only
// valid until the next iteration. io.EOF ends the sequence; any other read
// error is yielded once.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
