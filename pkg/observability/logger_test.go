package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ziyasal/iotedge/pkg/config"
)

func TestSetupLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := SetupLogger(config.Log{Level: level, Format: "console", Outputs: []string{"stdout"}})
		if err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
		log.Sync()
	}
}

func TestSetupLoggerRejectsGarbage(t *testing.T) {
	if _, err := SetupLogger(config.Log{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := SetupLogger(config.Log{Level: "info", Format: "morse"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.log")
	log, err := SetupLogger(config.Log{
		Level:   "info",
		Format:  "json",
		Outputs: []string{path},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Info("file sink works")
	log.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "file sink works") {
		t.Fatalf("log line missing from file: %q", b)
	}
}

func TestSecretMasking(t *testing.T) {
	for k, want := range map[string]bool{
		"IOTEDGE_HUB_TOKEN": true,
		"API_SECRET":        true,
		"MY_PASSWORD":       true,
		"PATH":              false,
		"HOME":              false,
	} {
		if got := isSecretKey(k); got != want {
			t.Fatalf("isSecretKey(%q) = %v, want %v", k, got, want)
		}
	}
}
