/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func captureOutput(t *testing.T, jsonMode bool, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetJSONMode(jsonMode)
	SetGlobalLevel(level)
	t.Cleanup(func() {
		cfg := DefaultConfig()
		SetGlobalOutput(cfg.Output)
		SetJSONMode(cfg.JSONMode)
		SetGlobalLevel(cfg.Level)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
		"bogus":   INFO,
	}
	for in, expected := range tests {
		if got := ParseLevel(in); got != expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, expected, got)
		}
	}
}

func TestTextOutputSortsFields(t *testing.T) {
	buf := captureOutput(t, false, DEBUG)

	NewLogger("query").Info("Search executed", "rows", 3, "conditions", 1)

	line := buf.String()
	if !strings.Contains(line, "[query] Search executed") {
		t.Errorf("Expected component and message in %q", line)
	}
	if strings.Index(line, "conditions=1") > strings.Index(line, "rows=3") {
		t.Errorf("Expected fields in key order, got %q", line)
	}
}

func TestJSONOutput(t *testing.T) {
	buf := captureOutput(t, true, DEBUG)

	NewLogger("catalog").With("dataset", "user").Error("Upload failed", "error", errors.New("bad sheet"))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode JSON log line: %v", err)
	}
	if entry.Level != "ERROR" || entry.Component != "catalog" {
		t.Errorf("Unexpected entry header: %+v", entry)
	}
	if entry.Fields["dataset"] != "user" {
		t.Errorf("Expected context field dataset=user, got %v", entry.Fields["dataset"])
	}
	if entry.Fields["error"] != "bad sheet" {
		t.Errorf("Expected error rendered as message, got %v", entry.Fields["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, false, WARN)

	logger := NewLogger("server")
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected DEBUG and INFO to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("Expected WARN to be logged, got %q", out)
	}
}

func TestRequestContext(t *testing.T) {
	buf := captureOutput(t, false, DEBUG)

	rc := NewRequestContext("127.0.0.1:5000", "POST", "/search")
	if len(rc.ID) != 8 {
		t.Errorf("Expected 8 character request id, got %q", rc.ID)
	}
	rc.LogComplete(NewLogger("http"), 200, "rows", 2)

	out := buf.String()
	for _, want := range []string{"Request completed", "method=POST", "path=/search", "status=200", "rows=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}
