package ndjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Codec converts records to and from their JSON representation.
type Codec[T any] interface {
	Marshal(T) ([]byte, error)
	Unmarshal([]byte, *T) error
}

// JSONCodec is the encoding/json backed Codec.
type JSONCodec[T any] struct {
	// Strict rejects objects carrying fields T does not declare.
	Strict bool
}

// Marshal implements Codec.
func (c JSONCodec[T]) Marshal(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements Codec.
func (c JSONCodec[T]) Unmarshal(data []byte, v *T) error {
	if !c.Strict {
		return json.Unmarshal(data, v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// SchemaError lists JSON Schema violations of a single record.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

// SchemaCodec validates every record against a JSON Schema before handing it
// to the wrapped codec (decode) or after the wrapped codec produced it (encode).
type SchemaCodec[T any] struct {
	inner  Codec[T]
	schema *gojsonschema.Schema
}

// NewSchemaCodec compiles schema and wraps inner. A nil inner defaults to JSONCodec.
func NewSchemaCodec[T any](inner Codec[T], schema []byte) (*SchemaCodec[T], error) {
	if inner == nil {
		inner = JSONCodec[T]{}
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &SchemaCodec[T]{inner: inner, schema: compiled}, nil
}

// Marshal implements Codec.
func (c *SchemaCodec[T]) Marshal(v T) ([]byte, error) {
	data, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := c.validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Unmarshal implements Codec.
func (c *SchemaCodec[T]) Unmarshal(data []byte, v *T) error {
	if err := c.validate(data); err != nil {
		return err
	}
	return c.inner.Unmarshal(data, v)
}

func (c *SchemaCodec[T]) validate(data []byte) error {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return &SchemaError{Violations: violations}
}
