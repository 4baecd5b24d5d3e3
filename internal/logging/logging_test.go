package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewTextToStderr(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Stderr: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer closer.Close()

	log.Debug("entering phase", "cycle", 3, "phase", "STASH")

	out := buf.String()
	for _, want := range []string{"level=DEBUG", `msg="entering phase"`, "cycle=3", "phase=STASH", "time="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("want exactly one line, got %q", out)
	}
}

func TestNewJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reposync.log")

	log, closer, err := New(Options{File: path, Format: FormatJSON, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	log.Info("cycle finished", "phase", "DONE")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if rec["msg"] != "cycle finished" || rec["phase"] != "DONE" {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["time"]; !ok {
		t.Error("record has no timestamp")
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("New() with unknown format succeeded")
	}
}
