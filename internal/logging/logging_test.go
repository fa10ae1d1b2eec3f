// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_JSONRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "debug", Format: FormatJSON})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("loaded module", "path", "/data/adb/kpm/a.kpm")

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "loaded module" {
		t.Errorf("msg = %v, want %q", record["msg"], "loaded module")
	}
	if record["path"] != "/data/adb/kpm/a.kpm" {
		t.Errorf("path = %v", record["path"])
	}
	if record["prefix"] != DefaultPrefix {
		t.Errorf("prefix = %v, want %q", record["prefix"], DefaultPrefix)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn", Format: FormatLogfmt, Prefix: "-"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "name", "a")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "name=a") {
		t.Errorf("warn record missing from output: %q", out)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, Options{Level: "loud"}); err == nil {
		t.Error("New() with unknown level should fail")
	}

	_, err := New(&bytes.Buffer{}, Options{Format: "xml"})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("New() with unknown format = %v, want ErrInvalidFormat", err)
	}
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()

	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
}
