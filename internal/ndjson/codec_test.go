package ndjson

import (
	"errors"
	"testing"
)

const userSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "name": {"type": "string", "minLength": 1}
  }
}`

func TestJSONCodecStrict(t *testing.T) {
	t.Parallel()

	var u user
	if err := (JSONCodec[user]{}).Unmarshal([]byte(`{"id":1,"name":"A","extra":true}`), &u); err != nil {
		t.Fatalf("lenient codec should ignore unknown fields: %v", err)
	}
	if err := (JSONCodec[user]{Strict: true}).Unmarshal([]byte(`{"id":1,"name":"A","extra":true}`), &u); err == nil {
		t.Fatalf("strict codec should reject unknown fields")
	}
	if err := (JSONCodec[user]{Strict: true}).Unmarshal([]byte(`{"id":1} {"id":2}`), &u); err == nil {
		t.Fatalf("strict codec should reject trailing values")
	}
}

func TestSchemaCodec(t *testing.T) {
	t.Parallel()

	codec, err := NewSchemaCodec[user](nil, []byte(userSchema))
	if err != nil {
		t.Fatalf("NewSchemaCodec: %v", err)
	}

	var u user
	if err := codec.Unmarshal([]byte(`{"id":3,"name":"Charlie"}`), &u); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	if u != (user{3, "Charlie"}) {
		t.Fatalf("unexpected record %+v", u)
	}

	err = codec.Unmarshal([]byte(`{"id":0}`), &u)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) || len(schemaErr.Violations) != 2 {
		t.Fatalf("expected two schema violations, got %v", err)
	}

	if _, err := codec.Marshal(user{ID: 5}); !errors.As(err, &schemaErr) {
		t.Fatalf("expected encode-side validation failure, got %v", err)
	}
}

func TestSchemaCodecInDecoder(t *testing.T) {
	t.Parallel()

	codec, err := NewSchemaCodec[user](nil, []byte(userSchema))
	if err != nil {
		t.Fatalf("NewSchemaCodec: %v", err)
	}
	body := `{"id":1,"name":"Alice"}` + "\n" + `{"id":-2,"name":"Bob"}` + "\n" + `{"id":3,"name":"Charlie"}` + "\n"
	got := collect(NewDecoder[user](codec, DecoderOptions{Mode: ModeBare}).Decode(chunksOf(body)))
	if len(got) != 3 || got[0].err != nil || got[2].err != nil {
		t.Fatalf("unexpected results %+v", got)
	}
	var decodeErr *DecodeError
	if !errors.As(got[1].err, &decodeErr) || decodeErr.At != 1 {
		t.Fatalf("expected DecodeError at 1, got %v", got[1].err)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"bare": ModeBare, " Enveloped ": ModeEnveloped, "envelope": ModeEnveloped} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("chunked"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	var m Mode
	if err := m.UnmarshalText([]byte("enveloped")); err != nil || m != ModeEnveloped {
		t.Fatalf("UnmarshalText: %v %v", m, err)
	}
}
