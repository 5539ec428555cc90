package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/tubestream/internal/media"
	"thirdcoast.systems/tubestream/pkg/ffmpeg"
)

// Transcoder re-encodes streams with ffmpeg.
type Transcoder struct {
	binary      string
	logProgress bool
}

var _ media.Transcoder = (*Transcoder)(nil)

// NewTranscoder returns a Transcoder running the ffmpeg at binary. With
// logProgress set, ffmpeg progress is logged at debug level.
func NewTranscoder(binary string, logProgress bool) *Transcoder {
	return &Transcoder{binary: binary, logProgress: logProgress}
}

// Transcode starts ffmpeg reading in. It owns in from here on.
func (t *Transcoder) Transcode(ctx context.Context, in io.ReadCloser, params media.CodecParams) (io.ReadCloser, error) {
	if params.Format != "" && params.Format != "mp3" {
		_ = in.Close()
		return nil, media.NewError(media.FailureTranscode, fmt.Errorf("unsupported audio format %q", params.Format))
	}

	opts := ffmpeg.Flatten(
		[]ffmpeg.Option{ffmpeg.Binary(t.binary), ffmpeg.LogLevel("error")},
		ffmpeg.PresetMP3(params.BitrateKbps),
	)

	var onProgress func(ffmpeg.Progress)
	if t.logProgress {
		onProgress = func(p ffmpeg.Progress) {
			slog.Debug("ffmpeg: progress",
				"out_time", time.Duration(p.OutTimeUS)*time.Microsecond,
				"size", humanize.Bytes(uint64(max(p.TotalSize, 0))),
				"speed", p.Speed,
			)
		}
	}

	p, err := ffmpeg.NewPipeCommand(opts...).StartPipe(ctx, in, onProgress)
	if err != nil {
		return nil, media.NewError(media.FailureTranscode, err)
	}
	slog.Debug("ffmpeg: transcode started", "pid", p.PID(), "bitrate_kbps", params.BitrateKbps)
	return &transcodeStream{rc: p}, nil
}

// transcodeStream keeps a classification already attached by the input
// (a failing source) and labels everything else as a transcode failure.
type transcodeStream struct {
	rc io.ReadCloser
}

func (s *transcodeStream) Read(p []byte) (int, error) {
	n, err := s.rc.Read(p)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	var me *media.Error
	if errors.As(err, &me) {
		return n, err
	}
	return n, media.NewError(media.FailureTranscode, err)
}

func (s *transcodeStream) Close() error {
	return s.rc.Close()
}
