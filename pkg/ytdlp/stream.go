package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"thirdcoast.systems/tubestream/internal/procgroup"
)

// ErrStreamClosed is returned by Stream.Read after Close.
var ErrStreamClosed = errors.New("ytdlp: stream closed")

// waitDelay bounds how long Wait blocks on pipes held open by descendants
// after the leader has exited.
const waitDelay = 2 * time.Second

// Stream is the stdout of a running `yt-dlp --output -` process.
//
// Read returns io.EOF only when the process exited cleanly; otherwise the
// final Read returns an *ExecError. Close kills the process group and reaps it.
// Close may be called concurrently with Read and more than once.
type Stream struct {
	cmd     *exec.Cmd
	ctx     context.Context
	cancel  context.CancelFunc
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	args    []string
	name    string
	cleanup func()

	closed   atomic.Bool
	waitOnce sync.Once
	waitErr  error
}

// Stream starts yt-dlp writing the selected format to stdout and returns a
// reader over it. The process is bound to ctx.
func (c *Client) Stream(ctx context.Context, url string, format string, extraArgs ...string) (*Stream, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(format) == "" {
		return nil, fmt.Errorf("ytdlp: format is required")
	}

	args := []string{"--no-playlist", "--no-progress", "--no-part", "--format", format}
	args = append(args, extraArgs...)
	args = append(args, "--output", "-", "--", url)

	fullArgs, cleanup, err := c.baseArgs()
	if err != nil {
		return nil, err
	}
	fullArgs = append(fullArgs, args...)

	name := c.PathOrDefault()
	childCtx, cancel := context.WithCancel(ctx)

	var cmd *exec.Cmd
	if c.commandFn != nil {
		cmd = c.commandFn(childCtx, name, fullArgs...)
	} else {
		cmd = exec.CommandContext(childCtx, name, fullArgs...)
	}
	procgroup.SetWithCancel(cmd)
	cmd.WaitDelay = waitDelay

	var errBuf bytes.Buffer
	cmd.Stderr = &streamWriter{stream: "stderr", callback: c.LogCallback, buffer: &errBuf}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		cleanup()
		return nil, fmt.Errorf("ytdlp: stdout pipe: %w", err)
	}

	slog.Debug("ytdlp: starting stream", "cmd", name, "args", redactArgs(fullArgs))
	if err := cmd.Start(); err != nil {
		cancel()
		cleanup()
		return nil, wrapExecError(name, args, nil, nil, err)
	}

	return &Stream{
		cmd:     cmd,
		ctx:     childCtx,
		cancel:  cancel,
		stdout:  stdout,
		stderr:  &errBuf,
		args:    args,
		name:    name,
		cleanup: cleanup,
	}, nil
}

// PID returns the process ID of the yt-dlp process.
func (s *Stream) PID() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrStreamClosed
	}
	n, err := s.stdout.Read(p)
	if err == nil {
		return n, nil
	}
	if s.closed.Load() {
		return n, ErrStreamClosed
	}
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
		return n, io.EOF
	}
	return n, err
}

// Close terminates yt-dlp if it is still running and waits for it to exit.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	_ = s.wait()
	return nil
}

func (s *Stream) wait() error {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()
		s.cleanup()
		if err == nil {
			return
		}
		if ctxErr := s.ctx.Err(); ctxErr != nil && !s.closed.Load() {
			s.waitErr = fmt.Errorf("ytdlp: stream interrupted: %w", ctxErr)
			return
		}
		s.waitErr = wrapExecError(s.name, s.args, nil, s.stderr.Bytes(), err)
	})
	return s.waitErr
}
