// Package users defines the user record streamed by the service.
package users

import (
	"context"
	"iter"

	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
)

// User is a single streamed record.
type User struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// Schema is the JSON Schema every User frame satisfies.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "User",
  "type": "object",
  "additionalProperties": false,
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "integer", "minimum": 0, "maximum": 4294967295},
    "name": {"type": "string"}
  }
}`

// Defaults is the seed data served when the store is empty.
var Defaults = []User{
	{ID: 1, Name: "Alice"},
	{ID: 2, Name: "Bob"},
	{ID: 3, Name: "Charlie"},
	{ID: 4, Name: "David"},
}

// Source produces users lazily, in a stable order.
type Source interface {
	Users(ctx context.Context) iter.Seq2[User, error]
}

// Memory is a Source backed by a slice.
type Memory []User

// Users implements Source.
func (m Memory) Users(ctx context.Context) iter.Seq2[User, error] {
	return func(yield func(User, error) bool) {
		for _, u := range m {
			if err := ctx.Err(); err != nil {
				yield(User{}, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

// NewCodec returns the codec for user frames. It refuses fields User does not
// declare, so an envelope is never mistaken for a user. With schema set, every
// frame is also validated against it.
func NewCodec(schema []byte) (ndjson.Codec[User], error) {
	strict := ndjson.JSONCodec[User]{Strict: true}
	if len(schema) == 0 {
		return strict, nil
	}
	codec, err := ndjson.NewSchemaCodec[User](strict, schema)
	if err != nil {
		return nil, err
	}
	return codec, nil
}
