package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// streamWriter wraps an io.Writer and calls a callback for each line.
type streamWriter struct {
	stream   string
	callback func(stream string, line string)
	buffer   *bytes.Buffer
	pending  []byte
}

func (w *streamWriter) Write(p []byte) (n int, err error) {
	// Also write to buffer for later retrieval
	if w.buffer != nil {
		w.buffer.Write(p)
	}

	// Append to pending data
	w.pending = append(w.pending, p...)

	// Process complete lines.
	// yt-dlp progress output often uses carriage returns (\r) to update the same
	// console line. When we're logging, treat both \n and \r as line boundaries.
	for {
		idx := bytes.IndexAny(w.pending, "\r\n")
		if idx < 0 {
			break
		}

		line := string(w.pending[:idx])

		// Consume delimiter(s). If this is a CRLF sequence, consume both.
		consume := 1
		if w.pending[idx] == '\r' && idx+1 < len(w.pending) && w.pending[idx+1] == '\n' {
			consume = 2
		}
		w.pending = w.pending[idx+consume:]

		if w.callback != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				w.callback(w.stream, trimmed)
			}
		}
	}

	return len(p), nil
}

type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *ExecError) Error() string {
	cmdline := strings.TrimSpace(e.Cmd + " " + strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		return fmt.Sprintf("ytdlp: command failed (exit %d): %s", e.ExitCode, cmdline)
	}
	return fmt.Sprintf("ytdlp: command failed: %s", cmdline)
}

func (e *ExecError) Unwrap() error { return e.Cause }

// Reason returns the most useful human-readable line of stderr: the last
// "ERROR:" line if there is one, otherwise the last non-empty line.
func (e *ExecError) Reason() string {
	lines := strings.Split(strings.ReplaceAll(e.Stderr, "\r", "\n"), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "ERROR:") {
			return l
		}
		if last == "" {
			last = l
		}
	}
	if last != "" {
		return last
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

// Client runs yt-dlp. A Client is immutable after construction and safe for
// concurrent use; every command gets its own cookies file.
type Client struct {
	// Path to yt-dlp executable. Defaults to "yt-dlp" (PATH lookup).
	Path string

	// Cookies is the cookies.txt content for authentication.
	// If set, a temporary cookies file will be created for each command.
	Cookies string

	// ExtraArgs are always appended before per-call args.
	ExtraArgs []string

	// LogCallback is called for each line of stdout/stderr output.
	// If nil, output is buffered in memory.
	LogCallback func(stream string, line string)

	execFn    func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
	commandFn func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func New() *Client {
	return &Client{Path: "yt-dlp"}
}

// baseArgs returns ExtraArgs plus the cookies flag. The returned cleanup
// removes the temporary cookies file and is never nil.
func (c *Client) baseArgs() ([]string, func(), error) {
	args := make([]string, 0, len(c.ExtraArgs)+3)
	args = append(args, c.ExtraArgs...)

	cleanup := func() {}
	if c.Cookies != "" {
		cookiesFile, err := createTempCookiesFile(c.Cookies)
		if err != nil {
			slog.Error("ytdlp: failed to create temp cookies file", "error", err)
			return nil, cleanup, fmt.Errorf("failed to create temp cookies file: %w", err)
		}
		args = append(args, "--cookies", cookiesFile)
		cleanup = func() { _ = os.Remove(cookiesFile) }
	}
	return args, cleanup, nil
}

func (c *Client) exec(ctx context.Context, args ...string) (stdout []byte, stderr []byte, err error) {
	name := c.PathOrDefault()

	fullArgs, cleanup, err := c.baseArgs()
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	if c.LogCallback != nil {
		// Force newline progress output so logs are readable.
		// This is a no-op for commands that don't emit progress.
		fullArgs = append(fullArgs, "--newline")
	}
	fullArgs = append(fullArgs, args...)

	if c.execFn != nil {
		return c.execFn(ctx, name, fullArgs...)
	}

	slog.Debug("ytdlp: executing command", "cmd", name, "args", redactArgs(fullArgs))
	cmd := exec.CommandContext(ctx, name, fullArgs...)
	var outBuf, errBuf bytes.Buffer

	// If LogCallback is set, stream output line-by-line
	if c.LogCallback != nil {
		cmd.Stdout = &streamWriter{stream: "stdout", callback: c.LogCallback, buffer: &outBuf}
		cmd.Stderr = &streamWriter{stream: "stderr", callback: c.LogCallback, buffer: &errBuf}
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Version returns `yt-dlp --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.exec(ctx, "--version")
	if err != nil {
		return "", wrapExecError(c.PathOrDefault(), []string{"--version"}, stdout, stderr, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Thumbnail is one entry of yt-dlp's thumbnails list, ordered worst to best.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Info is a light wrapper over yt-dlp JSON output. It intentionally models only common fields.
// The full JSON is preserved in Raw.
type Info struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	WebpageURL   string          `json:"webpage_url"`
	Extractor    string          `json:"extractor"`
	ExtractorKey string          `json:"extractor_key"`
	Uploader     string          `json:"uploader"`
	Channel      string          `json:"channel"`
	Duration     float64         `json:"duration"`
	ViewCount    int64           `json:"view_count"`
	Thumbnail    string          `json:"thumbnail"`
	Thumbnails   []Thumbnail     `json:"thumbnails,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// BestThumbnail returns the last (highest quality) thumbnail URL, falling
// back to the top-level thumbnail field.
func (i *Info) BestThumbnail() string {
	for j := len(i.Thumbnails) - 1; j >= 0; j-- {
		if u := strings.TrimSpace(i.Thumbnails[j].URL); u != "" {
			return u
		}
	}
	return strings.TrimSpace(i.Thumbnail)
}

// GetInfo runs yt-dlp in "metadata only" mode and parses its JSON output.
// It uses: --dump-single-json --skip-download --no-playlist
func (c *Client) GetInfo(ctx context.Context, url string, extraArgs ...string) (*Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}

	args := []string{"--dump-single-json", "--skip-download", "--no-playlist", "--no-warnings"}
	args = append(args, extraArgs...)
	args = append(args, "--", url)

	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return nil, wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}

	raw := bytes.TrimSpace(stdout)
	info := &Info{Raw: append([]byte(nil), raw...)}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse json: %w", err)
	}

	return info, nil
}

// PathOrDefault returns the configured path or "yt-dlp" if unset.
func (c *Client) PathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return "yt-dlp"
	}
	return c.Path
}

// Update runs `yt-dlp -U` to update to the latest version.
func (c *Client) Update(ctx context.Context, extraArgs ...string) error {
	args := []string{"-U"}
	args = append(args, extraArgs...)

	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return nil
}

func wrapExecError(cmd string, args []string, stdout []byte, stderr []byte, cause error) error {
	exitCode := 0
	var ee *exec.ExitError
	if errors.As(cause, &ee) {
		exitCode = ee.ExitCode()
	}

	return &ExecError{
		Cmd:      cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    cause,
	}
}

// redactArgs hides the cookies file path from logs.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "--cookies" {
			out[i+1] = "<redacted>"
		}
	}
	return out
}

// createTempCookiesFile creates a temporary file with the cookies content
func createTempCookiesFile(content string) (string, error) {
	tmpFile, err := os.CreateTemp("", "ytdlp-cookies-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(content); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}
