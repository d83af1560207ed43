// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package logging

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// maxLineBytes caps a single buffered line so a process that never writes
// a newline cannot grow the buffer without bound.
const maxLineBytes = 64 * 1024

// LineWriter is an io.Writer that emits one log event per line written to it.
// It is used to capture child process stdout/stderr into the structured log,
// with whatever fields the supplied logger already carries.
//
//	w := logging.NewLineWriter(logger.With().Str("stream", "stderr").Logger(), zerolog.InfoLevel)
//	cmd.Stderr = w
//	...
//	w.Flush()
type LineWriter struct {
	mu     sync.Mutex
	logger zerolog.Logger
	level  zerolog.Level
	buf    bytes.Buffer
}

// NewLineWriter creates a LineWriter logging at the given level.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLineWriter(logger zerolog.Logger, level zerolog.Level) *LineWriter {
	return &LineWriter{logger: logger, level: level}
}

// Write buffers p and logs every complete line.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.emit(data[:i])
		w.buf.Next(i + 1)
	}
	if w.buf.Len() > maxLineBytes {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	w.logger.WithLevel(w.level).Msg(string(line))
}
