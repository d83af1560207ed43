// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLineWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(zerolog.New(&buf).With().Str("stream", "stderr").Logger(), zerolog.WarnLevel)

	// Lines split across writes, CRLF endings and blank lines.
	for _, chunk := range []string{"first li", "ne\r\nsecond line\n", "\n   \n", "partial"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines before flush, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"message":"first line"`) {
		t.Errorf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[0], `"level":"warn"`) || !strings.Contains(lines[0], `"stream":"stderr"`) {
		t.Errorf("expected level and logger fields: %s", lines[0])
	}

	w.Flush()
	if !strings.Contains(buf.String(), `"message":"partial"`) {
		t.Errorf("expected partial line after flush, got %s", buf.String())
	}

	// Flushing twice emits nothing new.
	before := buf.Len()
	w.Flush()
	if buf.Len() != before {
		t.Error("second Flush should be a no-op")
	}
}

func TestLineWriter_CapsLongLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewLineWriter(zerolog.New(&buf), zerolog.InfoLevel)

	if _, err := w.Write(bytes.Repeat([]byte("x"), maxLineBytes+1)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected an oversized line to be emitted without a newline")
	}
	if w.buf.Len() != 0 {
		t.Errorf("expected buffer to be reset, has %d bytes", w.buf.Len())
	}
}
