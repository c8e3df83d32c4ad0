// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"grimm.is/edgesentry/internal/errors"
)

// Sink receives one already-framed message per RequestRecord. SyslogWriter
// implements Sink; WriterSink is the stdout/file default.
type Sink interface {
	Write(data []byte) error
}

// WriterSink writes each message it is given, followed by a newline, to an
// arbitrary io.Writer (WriteRecord does the JSON marshaling), serializing
// concurrent writers the way the
// teacher's audit logger guarded its underlying file handle.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w (e.g. os.Stdout, or an opened log file).
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// OpenFileSink opens (creating/appending) the file at path and wraps it in
// a WriterSink.
func OpenFileSink(path string) (*WriterSink, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.KindUnavailable, "open log sink file %s", path)
	}
	return NewWriterSink(f), f.Close, nil
}

func (s *WriterSink) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(append(data, '\n'))
	return err
}

// MultiSink fans a single record out to every underlying sink, continuing
// past individual failures so that one broken destination (e.g. an
// unreachable syslog server) never blocks the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks, dropping any nil entries.
func NewMultiSink(sinks ...Sink) *MultiSink {
	var filtered []Sink
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Write(data []byte) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Write(data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WriteRecord finalizes rec's processing time and marshals it to sink as a
// single JSON document.
func WriteRecord(sink Sink, rec *RequestRecord) error {
	rec.Finalize()
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "marshal request record")
	}
	return sink.Write(data)
}

// DefaultSink is a WriterSink over os.Stdout, used when no log destination
// is configured.
var DefaultSink = NewWriterSink(os.Stdout)
