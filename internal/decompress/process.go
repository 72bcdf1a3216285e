package decompress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ProcessError reports a decompression process that could not start or exited abnormally.
// It unwraps to pgbulk.ErrDecompression and the underlying exec error.
type ProcessError struct {
	Command  string
	ExitCode int    // -1 if the process never started or was killed by a signal
	Stderr   string // tail of the process's stderr
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() []error {
	return []error{pgbulk.ErrDecompression, e.Err}
}

// ProcessOpener spawns Command with Args followed by the file path.
// The zero value runs pgbulk.DefaultDecompressCommand with pgbulk.DefaultDecompressArgs.
type ProcessOpener struct {
	Command string
	Args    []string
}

// NewProcessOpener creates an opener for the given command. An empty command
// selects the default gunzip invocation.
func NewProcessOpener(command string, args []string) *ProcessOpener {
	return &ProcessOpener{Command: command, Args: args}
}

func (o *ProcessOpener) argv(path string) (string, []string) {
	if o.Command == "" {
		return pgbulk.DefaultDecompressCommand, append(append([]string{}, pgbulk.DefaultDecompressArgs...), path)
	}
	return o.Command, append(append([]string{}, o.Args...), path)
}

// Open starts the process for path and returns its output as a stream.
// The caller must Close the stream.
func (o *ProcessOpener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	name, args := o.argv(path)
	display := strings.Join(append([]string{name}, args...), " ")

	cmd := exec.CommandContext(ctx, name, args...)
	stderr := newTailBuffer(pgbulk.MaxStderrCapture)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessError{Command: display, ExitCode: -1, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &ProcessError{Command: display, ExitCode: -1, Err: err}
	}

	return &ProcessStream{
		cmd:     cmd,
		stdout:  stdout,
		stderr:  stderr,
		display: display,
	}, nil
}

// ProcessStream is the standard output of a running decompression process.
//
// Thread-Safety: NOT safe for concurrent use.
type ProcessStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *tailBuffer
	display string

	waitOnce sync.Once
	waitErr  error
	closed   bool
}

// Read reads decompressed bytes. At end of output the process is reaped; a
// non-zero exit is returned in place of io.EOF so that a consumer never
// mistakes a truncated stream for a complete one.
func (s *ProcessStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%s: read after close: %w", s.display, pgbulk.ErrDecompression)
	}
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// Close releases the process. If the output was not read to the end the
// process is killed; that termination is not reported as an error. Otherwise
// Close returns the same exit error Read reported. Close is idempotent.
func (s *ProcessStream) Close() error {
	if s.closed {
		return s.waitErr
	}
	s.closed = true

	abandoned := false
	s.waitOnce.Do(func() {
		abandoned = true
		s.stdout.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	if abandoned {
		return nil
	}
	return s.waitErr
}

// Pid returns the process id of the child.
func (s *ProcessStream) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *ProcessStream) wait() error {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()
		if err == nil {
			return
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		s.waitErr = &ProcessError{
			Command:  s.display,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(s.stderr.String()),
			Err:      err,
		}
	})
	return s.waitErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
