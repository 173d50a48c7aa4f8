// Package openapi embeds the OpenAPI document describing the stream server.
package openapi

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"
)

//go:embed spec.yaml
var specYAML []byte

var (
	jsonOnce sync.Once
	jsonDoc  []byte
	jsonErr  error
)

// Document returns the document rendered as format ("json" or "yaml", json
// when empty) along with its content type.
func Document(format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		jsonOnce.Do(func() {
			jsonDoc, jsonErr = yaml.YAMLToJSON(specYAML)
		})
		return jsonDoc, "application/json", jsonErr
	case "yaml", "yml":
		return specYAML, "application/yaml", nil
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}
