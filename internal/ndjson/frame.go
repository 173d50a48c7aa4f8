// Package ndjson implements newline-delimited JSON framing over a byte stream.
//
// A producer (Encoder) writes one compact JSON value followed by a single '\n'
// per record. A consumer (Decoder) reframes arbitrarily chunked bytes back into
// lines and decodes each line independently, so a malformed record never aborts
// the stream. Both sides are pull driven and built on the iter package.
package ndjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ContentType is the media type announced for NDJSON response bodies.
	ContentType = "application/x-ndjson"
	// ModeHeader carries the framing mode chosen by the producer.
	ModeHeader = "X-NDJSON-Mode"
	// Delimiter terminates every frame.
	Delimiter = '\n'

	// DefaultMaxFrameBytes caps the reframer buffer.
	DefaultMaxFrameBytes = 1 << 20
)

// Mode selects how each line is shaped.
type Mode int

const (
	// ModeBare writes each record as its own JSON value.
	ModeBare Mode = iota
	// ModeEnveloped wraps each record in an Envelope.
	ModeEnveloped
)

func (m Mode) String() string {
	switch m {
	case ModeBare:
		return "bare"
	case ModeEnveloped:
		return "enveloped"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts "bare" or "enveloped" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bare":
		return ModeBare, nil
	case "enveloped", "envelope":
		return ModeEnveloped, nil
	default:
		return ModeBare, fmt.Errorf("unknown ndjson mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Envelope is the wire shape of a frame in enveloped mode.
// Done marks the final frame of the logical stream.
type Envelope struct {
	Data json.RawMessage `json:"data"`
	Done bool            `json:"done"`
}

// hasData reports whether the envelope carries a record.
// A missing or null data field is treated as a bare end-of-stream marker.
func (e Envelope) hasData() bool {
	trimmed := strings.TrimSpace(string(e.Data))
	return trimmed != "" && trimmed != "null"
}
