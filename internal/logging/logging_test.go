package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/config"
)

func restore(t *testing.T) {
	t.Helper()
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetupJSON(t *testing.T) {
	restore(t)
	var buf bytes.Buffer

	if err := setup(config.LoggingConfig{Level: "info", Format: "json"}, &buf); err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Int("pin", 2).Msg("button added")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["message"] != "button added" || entry["pin"] != float64(2) || entry["level"] != "info" {
		t.Errorf("entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestSetupConsole(t *testing.T) {
	restore(t)
	var buf bytes.Buffer

	if err := setup(config.LoggingConfig{Level: "debug", Format: "console"}, &buf); err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Debug().Str("source", "serial").Msg("record dropped")

	out := buf.String()
	if !strings.Contains(out, "record dropped") || !strings.Contains(out, "source=") {
		t.Errorf("console output: %q", out)
	}
	if strings.HasPrefix(out, "{") {
		t.Error("console format should not be JSON")
	}
}

func TestSetupErrors(t *testing.T) {
	restore(t)
	var buf bytes.Buffer

	if err := setup(config.LoggingConfig{Level: "loud", Format: "json"}, &buf); err == nil {
		t.Error("expected error for bad level")
	}
	if err := setup(config.LoggingConfig{Level: "info", Format: "xml"}, &buf); err == nil {
		t.Error("expected error for bad format")
	}
}
