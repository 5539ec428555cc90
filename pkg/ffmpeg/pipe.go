package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"thirdcoast.systems/tubestream/internal/procgroup"
)

// ErrPipeClosed is returned by Pipe.Read after Close.
var ErrPipeClosed = errors.New("ffmpeg: pipe closed")

const (
	waitDelay = 2 * time.Second
	maxStderr = 64 << 10
)

// commandContext is replaced in tests.
var commandContext = exec.CommandContext

// Pipe is a running ffmpeg process fed from an io.ReadCloser on stdin whose
// output is read from stdout. The Pipe owns its input and closes it.
//
// Read returns io.EOF only when ffmpeg exited cleanly and the input was
// consumed without error. A failing input takes precedence over ffmpeg's own
// failure and is reported as *InputError. Close may be called concurrently
// with Read and more than once.
type Pipe struct {
	cmd          *exec.Cmd
	ctx          context.Context
	cancel       context.CancelFunc
	stdout       io.ReadCloser
	stderr       *tailBuffer
	input        *sourceReader
	feed         errgroup.Group
	args         []string
	progressDone chan struct{}

	closed   atomic.Bool
	waitOnce sync.Once
	waitErr  error
}

// StartPipe starts the command with input copied to its stdin. The command
// should use PipeInput/PipeOutput (see NewPipeCommand). onProgress, when not
// nil, receives -progress updates from a separate descriptor.
func (c *Command) StartPipe(ctx context.Context, input io.ReadCloser, onProgress func(Progress)) (*Pipe, error) {
	if input == nil {
		return nil, errors.New("ffmpeg: input is required")
	}

	built := c.Build()
	args := make([]string, 0, len(built)+3)
	args = append(args, built[:2]...)
	args = append(args, "-nostats")
	if onProgress != nil {
		// ExtraFiles[0] is fd 3 in the child.
		args = append(args, "-progress", "pipe:3")
	}
	args = append(args, built[2:]...)

	childCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(childCtx, c.BinaryPath(), args...)
	procgroup.SetWithCancel(cmd)
	cmd.WaitDelay = waitDelay

	p := &Pipe{
		cmd:    cmd,
		ctx:    childCtx,
		cancel: cancel,
		stderr: &tailBuffer{max: maxStderr},
		input:  &sourceReader{r: input},
		args:   args,
	}
	cmd.Stderr = p.stderr

	fail := func(err error) (*Pipe, error) {
		cancel()
		p.input.close()
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fail(fmt.Errorf("ffmpeg: stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("ffmpeg: stdout pipe: %w", err))
	}

	var pr, pw *os.File
	if onProgress != nil {
		pr, pw, err = os.Pipe()
		if err != nil {
			return fail(fmt.Errorf("ffmpeg: progress pipe: %w", err))
		}
		cmd.ExtraFiles = []*os.File{pw}
	}

	if err := cmd.Start(); err != nil {
		if pr != nil {
			_ = pr.Close()
			_ = pw.Close()
		}
		return fail(&Error{Args: args, Err: err})
	}
	p.stdout = stdout

	if pr != nil {
		// The child holds its own copy; ours must go so pr sees EOF on exit.
		_ = pw.Close()
		p.progressDone = make(chan struct{})
		go func() {
			defer close(p.progressDone)
			defer pr.Close()
			ParseProgressOutput(bufio.NewScanner(pr), onProgress)
			_, _ = io.Copy(io.Discard, pr)
		}()
	}

	p.feed.Go(func() error {
		_, _ = io.Copy(stdin, p.input)
		_ = stdin.Close()
		// Write failures mean ffmpeg stopped reading; its exit status says why.
		if rerr := p.input.readErr(); rerr != nil {
			return &InputError{Err: rerr}
		}
		return nil
	})

	return p, nil
}

// PID returns the ffmpeg process ID.
func (p *Pipe) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stderr returns the retained tail of ffmpeg's stderr.
func (p *Pipe) Stderr() string {
	return p.stderr.String()
}

func (p *Pipe) Read(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrPipeClosed
	}
	n, err := p.stdout.Read(b)
	if err == nil {
		return n, nil
	}
	if p.closed.Load() {
		return n, ErrPipeClosed
	}
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			return n, werr
		}
		return n, io.EOF
	}
	return n, err
}

// Close stops ffmpeg and the input, then waits for both to finish.
func (p *Pipe) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()
	p.input.abandon()
	_ = p.wait()
	return nil
}

func (p *Pipe) wait() error {
	p.waitOnce.Do(func() {
		defer p.cancel()

		werr := p.cmd.Wait()
		// ffmpeg is gone; nothing will read the rest of the input.
		p.input.abandon()
		ferr := p.feed.Wait()
		if p.progressDone != nil {
			<-p.progressDone
		}

		switch {
		case ferr != nil:
			p.waitErr = ferr
		case werr != nil:
			if ctxErr := p.ctx.Err(); ctxErr != nil && !p.closed.Load() {
				p.waitErr = fmt.Errorf("ffmpeg: interrupted: %w", ctxErr)
				return
			}
			p.waitErr = &Error{Args: p.args, Stderr: p.stderr.String(), Err: werr}
		}
	})
	return p.waitErr
}

// sourceReader records the first non-EOF read error of the input unless the
// input was abandoned first.
type sourceReader struct {
	r         io.ReadCloser
	mu        sync.Mutex
	err       error
	abandoned atomic.Bool
	closeOnce sync.Once
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && !s.abandoned.Load() {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
	return n, err
}

func (s *sourceReader) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sourceReader) abandon() {
	s.abandoned.Store(true)
	s.close()
}

func (s *sourceReader) close() {
	s.closeOnce.Do(func() { _ = s.r.Close() })
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
