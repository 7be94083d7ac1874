// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// captureLogger returns a logger writing to in-memory buffers
func captureLogger(level LogLevel) (*Logger, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	l := &Logger{
		level:  level,
		stdout: log.New(&stdout, "", 0),
		stderr: log.New(&stderr, "", 0),
	}
	return l, &stdout, &stderr
}

func TestNewLogger(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		l, err := NewLogger(LogLevelInfo, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.file != nil {
			t.Error("file should be nil when no path given")
		}
	})

	t.Run("with file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dmscope.log")
		l, err := NewLogger(LogLevelDebug, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		l.stdout = log.New(&bytes.Buffer{}, "", 0)
		l.Debug("hello %d", 42)
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log: %v", err)
		}
		if !strings.Contains(string(data), "DEBUG: hello 42") {
			t.Errorf("log file = %q", data)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		if _, err := NewLogger(LogLevelInfo, "/nonexistent/dir/test.log"); err == nil {
			t.Error("expected error for invalid path")
		}
	})
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level      LogLevel
		wantStdout []string
		wantStderr bool
	}{
		{LogLevelSilent, nil, false},
		{LogLevelError, nil, true},
		{LogLevelInfo, nil, true},
		{LogLevelVerbose, []string{"INFO: i", "VERBOSE: v"}, true},
		{LogLevelDebug, []string{"INFO: i", "VERBOSE: v", "DEBUG: d"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			l, stdout, stderr := captureLogger(tt.level)
			l.Error("e")
			l.Info("i")
			l.Verbose("v")
			l.Debug("d")

			if got := strings.Contains(stderr.String(), "ERROR: e"); got != tt.wantStderr {
				t.Errorf("stderr = %q", stderr.String())
			}
			for _, want := range tt.wantStdout {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout missing %q: %q", want, stdout.String())
				}
			}
			if tt.wantStdout == nil && stdout.Len() != 0 {
				t.Errorf("stdout should be empty, got %q", stdout.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"", LogLevelInfo, false},
		{"debug", LogLevelDebug, false},
		{" Verbose ", LogLevelVerbose, false},
		{"silent", LogLevelSilent, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLogRequest(t *testing.T) {
	l, stdout, _ := captureLogger(LogLevelVerbose)
	l.LogRequest("DS", "DM12", 0x03, "timeout", 200*time.Millisecond)
	l.LogRequest("DS", "DM12", 0x00, "data", 12*time.Millisecond)
	out := stdout.String()
	if !strings.Contains(out, "INFO: DS DM12 to 0x03: timeout (200.0ms)") {
		t.Errorf("timeout line missing: %q", out)
	}
	if !strings.Contains(out, "VERBOSE: DS DM12 to 0x00: data (12.0ms)") {
		t.Errorf("data line missing: %q", out)
	}
}

func TestLogHex(t *testing.T) {
	l, stdout, _ := captureLogger(LogLevelDebug)
	l.LogHex("rx", []byte{0x7E, 0x01, 0xAB})
	if !strings.Contains(stdout.String(), "rx: 7e 01 ab") {
		t.Errorf("stdout = %q", stdout.String())
	}

	quiet, out, _ := captureLogger(LogLevelVerbose)
	quiet.LogHex("rx", []byte{0x01})
	if out.Len() != 0 {
		t.Errorf("LogHex should be silent below debug, got %q", out.String())
	}
}

func TestSetGetLevel(t *testing.T) {
	l, _, _ := captureLogger(LogLevelInfo)
	l.SetLevel(LogLevelDebug)
	if l.GetLevel() != LogLevelDebug {
		t.Errorf("GetLevel() = %s", l.GetLevel())
	}
}
