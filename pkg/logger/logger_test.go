package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Init(Config{Level: LevelWarn, Format: "text", Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Init(Config{Level: LevelError, Output: &bytes.Buffer{}})

	Debug("hidden")
	Info("hidden too")
	Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered messages: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Errorf("output = %q, want the warning", out)
	}
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Init(Config{Level: LevelDebug, Format: "json", Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Init(Config{Level: LevelError, Output: &bytes.Buffer{}})

	LogOptimization("constprop", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if rec["pass"] != "constprop" || rec["changes"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}

func TestInitLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emoc.log")
	closer, err := Init(Config{Level: LevelInfo, LogFile: path})
	if err != nil {
		t.Fatal(err)
	}
	Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	Init(Config{Level: LevelError, Output: &bytes.Buffer{}})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestInitBadLogFile(t *testing.T) {
	if _, err := Init(Config{LogFile: filepath.Join(t.TempDir(), "missing", "x.log")}); err == nil {
		t.Error("Init() opened a log file in a missing directory")
	}
}
