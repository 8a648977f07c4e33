// Package logsink writes miner output lines to a log file and an echo stream.
package logsink

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Sink appends lines to a log file, echoing each one to another writer.
// The file is truncated when the sink is opened.
type Sink struct {
	path string
	file *os.File
	buf  *bufio.Writer
	echo io.Writer
}

// Open creates or truncates the log file at path. echo may be nil.
func Open(path string, echo io.Writer) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	if echo == nil {
		echo = io.Discard
	}
	return &Sink{path: path, file: f, buf: bufio.NewWriter(f), echo: echo}, nil
}

// Path returns the log file path.
func (s *Sink) Path() string { return s.path }

// WriteLine writes line plus a newline to the echo stream and the file, then
// flushes the file so readers see whole lines.
func (s *Sink) WriteLine(line string) error {
	if _, err := io.WriteString(s.echo, line+"\n"); err != nil {
		return fmt.Errorf("echo line: %w", err)
	}
	if _, err := s.buf.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return nil
}

// Close flushes pending output and closes the file.
func (s *Sink) Close() error {
	flushErr := s.buf.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", s.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", s.path, closeErr)
	}
	return nil
}
