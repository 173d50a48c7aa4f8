package openapi

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestDocumentJSONDescribesRoutes(t *testing.T) {
	data, contentType, err := Document("")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Fatalf("missing openapi version")
	}
	for _, path := range []string{"/healthz", "/users", "/events", "/openapi", "/metrics"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("path %s is not documented", path)
		}
	}
}

func TestDocumentYAML(t *testing.T) {
	data, contentType, err := Document("yaml")
	if err != nil || contentType != "application/yaml" {
		t.Fatalf("unexpected result %q %v", contentType, err)
	}
	if !bytes.HasPrefix(data, []byte("openapi:")) {
		t.Fatalf("expected the raw YAML document")
	}
	if _, _, err := Document("xml"); err == nil {
		t.Fatalf("expected an unsupported format error")
	}
}
