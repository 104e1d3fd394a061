// Package logging wraps zerolog into the single log sink the control
// thread owns (spec §5: "a dedicated control thread owning ... the log
// sink"). There is no separate control goroutine: every other component
// calls the Sink's methods directly from its own goroutine, and the Sink
// holds no lock of its own.
package logging

import (
	"io"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Sink is the process-wide structured logger. The configured logfile
// path is opened for append; when verbose mode is on, records are
// additionally echoed to stdout (spec §6's "verbose" option).
type Sink struct {
	logger zerolog.Logger
	file   *os.File
}

// New opens path for append (creating it if absent) and builds a
// zerolog.Logger over it. An empty path logs to stdout only. When
// verbose is true, records are written to both the file and stdout.
func New(path string, verbose bool) (*Sink, error) {
	var file *os.File
	var out io.Writer = os.Stdout

	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		file = f
		if verbose {
			out = zerolog.MultiLevelWriter(f, os.Stdout)
		} else {
			out = f
		}
	}

	logger := zerolog.New(out).
		With().
		Timestamp().
		Str("service", "kvstore").
		Logger()

	return &Sink{logger: logger, file: file}, nil
}

// Close flushes and closes the underlying logfile, if any.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Info records an informational event with optional structured fields.
func (s *Sink) Info(msg string, fields map[string]any) {
	event := s.logger.Info()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Error records err with context. Use for expected, recoverable
// failures (a malformed request, a rejected connection).
func (s *Sink) Error(err error, msg string, fields map[string]any) {
	event := s.logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Panic records a recovered panic with a full stack trace. It does not
// terminate the process: the caller is expected to have already
// recovered and to continue running (spec §5: one session's failure
// must never bring the keyspace lock or another session down).
func (s *Sink) Panic(panicValue any, msg string, fields map[string]any) {
	event := s.logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// Command records one dispatched command for MONITOR-style echoing,
// independent of the logfile's verbosity setting.
func (s *Sink) Command(addr, name string, args []string) {
	s.logger.Debug().
		Str("addr", addr).
		Str("command", name).
		Strs("args", args).
		Msg("command dispatched")
}
