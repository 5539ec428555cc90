// Package ffmpeg provides a composable API for building and executing ffmpeg commands.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// PipeInput and PipeOutput address ffmpeg's stdin and stdout.
const (
	PipeInput  = "pipe:0"
	PipeOutput = "pipe:1"
)

// DefaultBinary is used when no Binary option is given.
const DefaultBinary = "ffmpeg"

// Command represents an ffmpeg command being built.
type Command struct {
	binary    string
	input     string
	output    string
	format    string   // output container (-f), required for pipe output
	preInput  []string // args before -i (like -loglevel)
	postInput []string // args after -i
}

// Option modifies a Command. Options are composable and order-independent
// (ffmpeg will receive args in correct order regardless of option order).
type Option interface {
	Apply(cmd *Command)
}

// OptionFunc is a function that implements Option.
type OptionFunc func(cmd *Command)

// Apply implements Option.
func (f OptionFunc) Apply(cmd *Command) { f(cmd) }

// NewCommand creates a command with input/output and applies options.
func NewCommand(input, output string, opts ...Option) *Command {
	cmd := &Command{
		input:  input,
		output: output,
	}
	for _, opt := range opts {
		opt.Apply(cmd)
	}
	return cmd
}

// NewPipeCommand creates a command that reads stdin and writes stdout.
func NewPipeCommand(opts ...Option) *Command {
	return NewCommand(PipeInput, PipeOutput, opts...)
}

// BinaryPath returns the ffmpeg executable the command will run.
func (c *Command) BinaryPath() string {
	if strings.TrimSpace(c.binary) == "" {
		return DefaultBinary
	}
	return c.binary
}

// Build returns the complete ffmpeg argument list.
func (c *Command) Build() []string {
	args := []string{"-hide_banner", "-y"}

	// Pre-input args
	args = append(args, c.preInput...)

	// Input
	args = append(args, "-i", c.input)

	// Post-input args
	args = append(args, c.postInput...)

	if c.format != "" {
		args = append(args, "-f", c.format)
	}

	// Auto-apply faststart for seekable MP4/M4A outputs
	ext := strings.ToLower(filepath.Ext(c.output))
	if ext == ".mp4" || ext == ".m4a" || ext == ".mov" {
		args = append(args, "-movflags", "+faststart")
	}

	// Output
	args = append(args, c.output)

	return args
}

// Version returns the first line of `ffmpeg -version`.
func Version(ctx context.Context, binary string) (string, error) {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-version").Output()
	if err != nil {
		var stderr string
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			stderr = string(ee.Stderr)
		}
		return "", &Error{Args: []string{"-version"}, Stderr: stderr, Err: err}
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return "", fmt.Errorf("ffmpeg: empty version output")
	}
	return strings.TrimSpace(line), nil
}

// --- Binary / Container Options ---

// Binary sets the ffmpeg executable. Empty means DefaultBinary.
func Binary(path string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.binary = path
	})
}

// Format sets the output container format (-f).
func Format(name string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.format = name
	})
}

// --- Audio Codec Options ---

// AudioCodec sets the audio codec (-c:a).
func AudioCodec(codec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-c:a", codec)
	})
}

// AudioBitrate sets the audio bitrate (-b:a).
func AudioBitrate(bitrate string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-b:a", bitrate)
	})
}

// --- Stream Options (variables, not functions) ---

// NoVideo disables video in output (-vn). Cover art streams would otherwise
// break raw audio containers.
var NoVideo Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-vn")
})

// --- Misc ---

// LogLevel sets the logging level.
func LogLevel(level string) Option {
	return OptionFunc(func(cmd *Command) {
		// Insert at beginning of preInput so it's early in args
		cmd.preInput = append([]string{"-loglevel", level}, cmd.preInput...)
	})
}

