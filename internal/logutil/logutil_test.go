package logutil

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"testing"
)

func TestEncodeKeepsReservedKeys(t *testing.T) {
	payload := encode("info", "stream completed", map[string]interface{}{
		"frames":  4,
		"message": "shadowed",
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(payload, &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry["message"] != "stream completed" || entry["field.message"] != "shadowed" {
		t.Fatalf("reserved key clobbered: %v", entry)
	}
	if entry["frames"] != float64(4) || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestEncodeFallsBackOnUnencodableFields(t *testing.T) {
	payload := encode("error", "boom", map[string]interface{}{"ch": make(chan int)})

	var entry map[string]interface{}
	if err := json.Unmarshal(payload, &entry); err != nil {
		t.Fatalf("fallback must still be json: %v", err)
	}
	if entry["message"] != "boom" || entry["error"] == nil {
		t.Fatalf("unexpected fallback %v", entry)
	}
}

func TestWarnLogsAtWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})

	Warn("invalid config value, using default", map[string]interface{}{"key": "REDIS_DB"})

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["key"] != "REDIS_DB" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
